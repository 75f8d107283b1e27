// ABOUTME: Output port for delivering persisted messages to live connections
// ABOUTME: The ws delivery gateway implements this; use cases stay transport-agnostic

package messaging

import "github.com/meridianbank/advisor-gateway/internal/store"

// Notifier is notified after a message has been persisted. Implementations
// deliver over whatever transport they own; delivery is best effort and a
// notifier must never fail the send that triggered it.
type Notifier interface {
	// PrivateMessageSaved delivers msg to the sender (as an acknowledgment)
	// and to the receiver if they are online.
	PrivateMessageSaved(msg *store.PrivateMessage)

	// GroupMessageSaved delivers msg to every connection in the group room.
	GroupMessageSaved(msg *store.GroupMessage)
}

// NopNotifier discards notifications. Used by tests and CLI paths that have
// no live connections to deliver to.
type NopNotifier struct{}

func (NopNotifier) PrivateMessageSaved(*store.PrivateMessage) {}
func (NopNotifier) GroupMessageSaved(*store.GroupMessage)     {}
