// ABOUTME: Messaging use cases orchestrating validation, routing and persistence
// ABOUTME: All private and group sends flow through here; persistence happens before delivery

package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/meridianbank/advisor-gateway/internal/identity"
	"github.com/meridianbank/advisor-gateway/internal/routing"
	"github.com/meridianbank/advisor-gateway/internal/store"
)

// MaxContentLength is the upper bound on message content after trimming.
const MaxContentLength = 1000

// Service implements the messaging use cases. The store is the source of
// truth: messages are persisted first, then handed to the notifier for
// best-effort live delivery.
type Service struct {
	store     store.Store
	directory identity.Directory
	routing   *routing.Engine
	notifier  Notifier
	logger    *slog.Logger
}

// NewService creates a messaging service. Pass a NopNotifier when there is no
// live transport to deliver to.
func NewService(st store.Store, directory identity.Directory, engine *routing.Engine, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Service{
		store:     st,
		directory: directory,
		routing:   engine,
		notifier:  notifier,
		logger:    logger.With("component", "messaging"),
	}
}

// SendPrivateMessage validates the pair, routes the conversation, and
// persists the message.
//
// Routing side effects: a client sender ensures their own conversation exists
// (pending until claimed); an advisor replying to a client claims the
// client's conversation if it is still unassigned. The first advisor to
// reply to a pending client becomes its assigned advisor.
func (s *Service) SendPrivateMessage(ctx context.Context, senderID, receiverID, content string) (*store.PrivateMessage, error) {
	content, err := validateContent(content)
	if err != nil {
		return nil, err
	}

	if senderID == receiverID {
		return nil, ErrSelfMessage
	}

	sender, err := s.directory.Resolve(ctx, senderID)
	if err != nil {
		return nil, err
	}
	receiver, err := s.directory.Resolve(ctx, receiverID)
	if err != nil {
		return nil, err
	}

	if sender.IsClient() && receiver.IsClient() {
		return nil, ErrClientToClient
	}
	if !sender.IsAdvisor() && !receiver.IsAdvisor() {
		return nil, ErrForbiddenPair
	}

	switch {
	case sender.IsClient():
		if _, err := s.routing.GetOrCreate(ctx, senderID); err != nil {
			return nil, fmt.Errorf("ensuring conversation: %w", err)
		}
	case sender.IsAdvisor() && receiver.IsClient():
		if _, err := s.routing.AssignIfUnassigned(ctx, receiverID, senderID); err != nil {
			return nil, fmt.Errorf("claiming conversation: %w", err)
		}
	}

	msg := &store.PrivateMessage{
		ID:         uuid.New().String(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		CreatedAt:  time.Now(),
	}
	if err := s.store.SavePrivateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("saving message: %w", err)
	}

	s.logger.Debug("private message sent",
		"message_id", msg.ID,
		"sender", senderID,
		"receiver", receiverID)

	s.notifier.PrivateMessageSaved(msg)
	return msg, nil
}

// SendGroupMessage persists a broadcast message from an advisor or director.
// Sender name and role are denormalized into the message at send time.
func (s *Service) SendGroupMessage(ctx context.Context, senderID, content string) (*store.GroupMessage, error) {
	content, err := validateContent(content)
	if err != nil {
		return nil, err
	}

	sender, err := s.directory.Resolve(ctx, senderID)
	if err != nil {
		return nil, err
	}
	if !sender.IsStaff() {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotStaff, senderID, sender.Role)
	}

	msg := &store.GroupMessage{
		ID:         uuid.New().String(),
		SenderID:   senderID,
		SenderRole: sender.Role,
		SenderName: sender.Name,
		Content:    content,
		CreatedAt:  time.Now(),
	}
	if err := s.store.SaveGroupMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("saving group message: %w", err)
	}

	s.logger.Debug("group message sent", "message_id", msg.ID, "sender", senderID)

	s.notifier.GroupMessageSaved(msg)
	return msg, nil
}

// ListPrivateMessages returns the history between two participants, oldest first.
func (s *Service) ListPrivateMessages(ctx context.Context, idA, idB string) ([]*store.PrivateMessage, error) {
	return s.store.ListMessagesByPair(ctx, idA, idB)
}

// ListGroupMessages returns the group chat history, oldest first.
func (s *Service) ListGroupMessages(ctx context.Context, limit int) ([]*store.GroupMessage, error) {
	return s.store.ListGroupMessages(ctx, limit)
}

// MarkConversationRead marks everything otherID sent to readerID as read.
// Called when a participant loads the conversation.
func (s *Service) MarkConversationRead(ctx context.Context, readerID, otherID string) error {
	return s.store.MarkPairRead(ctx, readerID, otherID)
}

// UnreadCount returns the number of unread messages addressed to the principal.
func (s *Service) UnreadCount(ctx context.Context, receiverID string) (int, error) {
	return s.store.CountUnread(ctx, receiverID)
}

// AssignConversation claims a pending client conversation for the calling
// advisor. Claims that lose the race (or find the conversation already
// owned) are quiet no-ops; the stored assignment is untouched. The returned
// bool reports whether this call won the claim.
func (s *Service) AssignConversation(ctx context.Context, advisorID, clientID string) (bool, error) {
	return s.routing.AssignIfUnassigned(ctx, clientID, advisorID)
}

// TransferConversation moves a client conversation from the calling advisor
// to another advisor.
func (s *Service) TransferConversation(ctx context.Context, fromAdvisorID, toAdvisorID, clientID string) error {
	return s.routing.Transfer(ctx, clientID, fromAdvisorID, toAdvisorID)
}

// validateContent trims and bounds message content.
func validateContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", ErrEmptyContent
	}
	if len([]rune(content)) > MaxContentLength {
		return "", fmt.Errorf("%w: %d > %d characters", ErrContentTooLong, len([]rune(content)), MaxContentLength)
	}
	return content, nil
}
