// ABOUTME: Store interface and data types for advisor-gateway persistence
// ABOUTME: Defines Conversation, PrivateMessage, GroupMessage and the Store interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateConversation is returned when trying to create a conversation
// for a client that already has one
var ErrDuplicateConversation = errors.New("conversation already exists")

// ErrDuplicatePrincipal is returned when trying to create a principal whose ID is taken
var ErrDuplicatePrincipal = errors.New("principal already exists")

// Conversation is the durable record of which advisor (if any) currently owns
// a client's support thread. AssignedAdvisorID is nil while the conversation
// is pending.
type Conversation struct {
	ID                string
	ClientID          string
	AssignedAdvisorID *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Assigned reports whether the conversation currently has an advisor.
func (c *Conversation) Assigned() bool {
	return c.AssignedAdvisorID != nil
}

// PrivateMessage is a message between a client and an advisor. Immutable once
// written except for the read flag.
type PrivateMessage struct {
	ID         string
	SenderID   string
	ReceiverID string
	Content    string
	IsRead     bool
	CreatedAt  time.Time
}

// GroupMessage is a broadcast message visible to all advisors and directors.
// Sender name and role are denormalized at send time so history renders
// without identity lookups.
type GroupMessage struct {
	ID         string
	SenderID   string
	SenderRole string
	SenderName string
	Content    string
	CreatedAt  time.Time
}

// Principal is an identity row consumed by the identity directory. The
// identity domain itself (registration, passwords, accounts) lives elsewhere;
// the gateway only reads these rows and creates them via the bootstrap command.
type Principal struct {
	ID        string
	Role      string
	Name      string
	Email     string
	CreatedAt time.Time
}

// ConversationStore defines conversation persistence. Assignment changes go
// through conditional updates so that two server-side writers racing on the
// same pending conversation resolve to exactly one winner at the database,
// not in application memory.
type ConversationStore interface {
	CreateConversation(ctx context.Context, conv *Conversation) error
	GetConversationByClientID(ctx context.Context, clientID string) (*Conversation, error)
	ListConversationsByAdvisorID(ctx context.Context, advisorID string) ([]*Conversation, error)
	ListPendingConversations(ctx context.Context) ([]*Conversation, error)

	// AssignAdvisorIfUnassigned sets the advisor only if the conversation is
	// currently unassigned. Returns true if this call performed the
	// assignment, false if the conversation was already assigned (to anyone).
	AssignAdvisorIfUnassigned(ctx context.Context, clientID, advisorID string) (bool, error)

	// TransferAdvisor reassigns from one advisor to another. Returns true if
	// the conversation was assigned to fromAdvisorID and is now assigned to
	// toAdvisorID, false if it was assigned elsewhere (or still pending).
	TransferAdvisor(ctx context.Context, clientID, fromAdvisorID, toAdvisorID string) (bool, error)
}

// MessageStore defines append-only message persistence plus the read paths
// the messaging use cases need.
type MessageStore interface {
	SavePrivateMessage(ctx context.Context, msg *PrivateMessage) error
	// ListMessagesByPair returns the full history between two participants,
	// in either direction, ordered by creation time ascending.
	ListMessagesByPair(ctx context.Context, idA, idB string) ([]*PrivateMessage, error)
	ListMessagesByParticipant(ctx context.Context, id string) ([]*PrivateMessage, error)
	MarkMessageRead(ctx context.Context, messageID string) error
	// MarkPairRead marks every unread message from senderID to receiverID as read.
	MarkPairRead(ctx context.Context, receiverID, senderID string) error
	CountUnread(ctx context.Context, receiverID string) (int, error)

	SaveGroupMessage(ctx context.Context, msg *GroupMessage) error
	ListGroupMessages(ctx context.Context, limit int) ([]*GroupMessage, error)
}

// PrincipalStore defines identity row access.
type PrincipalStore interface {
	CreatePrincipal(ctx context.Context, p *Principal) error
	GetPrincipal(ctx context.Context, id string) (*Principal, error)
}

// Store is the full persistence interface implemented by SQLiteStore.
type Store interface {
	ConversationStore
	MessageStore
	PrincipalStore

	Close() error
}
