// ABOUTME: Event names and wire payload types for the websocket protocol
// ABOUTME: Frames are {"event": name, "payload": json}; field names match the UI contract

package ws

import (
	"encoding/json"
	"time"

	"github.com/meridianbank/advisor-gateway/internal/store"
)

// Client-to-server events
const (
	EventLoadConversation = "load_conversation"
	EventSendMessage      = "send_message"
	EventTyping           = "typing"
	EventJoinGroupChat    = "join_group_chat"
	EventSendGroupMessage = "send_group_message"
)

// Server-to-client events
const (
	EventConversationLoaded  = "conversation_loaded"
	EventMessageSent         = "message_sent"
	EventNewMessage          = "new_message"
	EventUserOnline          = "user_online"
	EventUserOffline         = "user_offline"
	EventGroupMessagesLoaded = "group_messages_loaded"
	EventNewGroupMessage     = "new_group_message"
	EventError               = "error"
)

// Frame is the envelope every websocket message travels in.
type Frame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// LoadConversationPayload identifies the counterpart whose history to load:
// clients name the advisor, advisors name the client.
type LoadConversationPayload struct {
	AdvisorID string `json:"advisorId,omitempty"`
	ClientID  string `json:"clientId,omitempty"`
}

// SendMessagePayload carries an outgoing private message.
type SendMessagePayload struct {
	ReceiverID string `json:"receiverId"`
	Content    string `json:"content"`
}

// TypingPayload is the typing signal in both directions. Inbound the sender
// names the receiver; outbound the server names the typist.
type TypingPayload struct {
	ReceiverID string `json:"receiverId,omitempty"`
	UserID     string `json:"userId,omitempty"`
	IsTyping   bool   `json:"isTyping"`
}

// SendGroupMessagePayload carries an outgoing group message.
type SendGroupMessagePayload struct {
	Content string `json:"content"`
}

// ConversationLoadedPayload is the history snapshot sent on load_conversation.
type ConversationLoadedPayload struct {
	Messages          []PrivateMessageDTO `json:"messages"`
	IsOtherUserOnline bool                `json:"isOtherUserOnline"`
}

// MessagePayload wraps a single private message for acks and delivery.
type MessagePayload struct {
	Message PrivateMessageDTO `json:"message"`
}

// GroupMessagesLoadedPayload is the group history snapshot.
type GroupMessagesLoadedPayload struct {
	Messages []GroupMessageDTO `json:"messages"`
}

// GroupMessagePayload wraps a single group message for broadcast.
type GroupMessagePayload struct {
	Message GroupMessageDTO `json:"message"`
}

// PresencePayload announces a user going online or offline.
type PresencePayload struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

// ErrorPayload reports a failed operation to the offending connection only.
type ErrorPayload struct {
	Message string `json:"message"`
}

// PrivateMessageDTO is the wire form of a private message.
type PrivateMessageDTO struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Content    string    `json:"content"`
	IsRead     bool      `json:"isRead"`
	CreatedAt  time.Time `json:"createdAt"`
}

// GroupMessageDTO is the wire form of a group message.
type GroupMessageDTO struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	SenderRole string    `json:"senderRole"`
	SenderName string    `json:"senderName"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
}

func toPrivateDTO(msg *store.PrivateMessage) PrivateMessageDTO {
	return PrivateMessageDTO{
		ID:         msg.ID,
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		Content:    msg.Content,
		IsRead:     msg.IsRead,
		CreatedAt:  msg.CreatedAt,
	}
}

func toPrivateDTOs(msgs []*store.PrivateMessage) []PrivateMessageDTO {
	out := make([]PrivateMessageDTO, len(msgs))
	for i, msg := range msgs {
		out[i] = toPrivateDTO(msg)
	}
	return out
}

func toGroupDTO(msg *store.GroupMessage) GroupMessageDTO {
	return GroupMessageDTO{
		ID:         msg.ID,
		SenderID:   msg.SenderID,
		SenderRole: msg.SenderRole,
		SenderName: msg.SenderName,
		Content:    msg.Content,
		CreatedAt:  msg.CreatedAt,
	}
}

func toGroupDTOs(msgs []*store.GroupMessage) []GroupMessageDTO {
	out := make([]GroupMessageDTO, len(msgs))
	for i, msg := range msgs {
		out[i] = toGroupDTO(msg)
	}
	return out
}
