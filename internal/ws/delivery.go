// ABOUTME: Delivery gateway routing persisted messages to live connections
// ABOUTME: Implements the messaging Notifier port; offline receivers are skipped silently

package ws

import (
	"log/slog"

	"github.com/meridianbank/advisor-gateway/internal/presence"
	"github.com/meridianbank/advisor-gateway/internal/store"
)

// Delivery fans persisted messages out to live connections. The sender's own
// connection gets an acknowledgment; the receiver's current connection (if
// registered) gets the message; group messages reach every connection in the
// group room. There is no queuing for offline receivers.
type Delivery struct {
	registry *presence.Registry
	rooms    *presence.Rooms
	logger   *slog.Logger
}

// NewDelivery creates a delivery gateway over the given registry and rooms.
func NewDelivery(registry *presence.Registry, rooms *presence.Rooms, logger *slog.Logger) *Delivery {
	if logger == nil {
		logger = slog.Default()
	}
	return &Delivery{
		registry: registry,
		rooms:    rooms,
		logger:   logger.With("component", "delivery"),
	}
}

// PrivateMessageSaved acks the sender and delivers to the receiver if online.
// A sender who disconnected mid-send simply misses the ack; the message is
// already persisted.
func (d *Delivery) PrivateMessageSaved(msg *store.PrivateMessage) {
	dto := toPrivateDTO(msg)

	if entry, ok := d.registry.Lookup(msg.SenderID); ok {
		entry.Conn.Send(EventMessageSent, MessagePayload{Message: dto})
	}

	if entry, ok := d.registry.Lookup(msg.ReceiverID); ok {
		entry.Conn.Send(EventNewMessage, MessagePayload{Message: dto})
	} else {
		d.logger.Debug("receiver offline, skipping delivery",
			"message_id", msg.ID,
			"receiver", msg.ReceiverID)
	}
}

// GroupMessageSaved broadcasts to the group room, sender included.
func (d *Delivery) GroupMessageSaved(msg *store.GroupMessage) {
	d.rooms.Broadcast(presence.GroupRoom, EventNewGroupMessage, GroupMessagePayload{Message: toGroupDTO(msg)})
}
