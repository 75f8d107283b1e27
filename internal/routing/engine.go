// ABOUTME: Conversation routing engine deciding which advisor owns a client's conversation
// ABOUTME: Assignment state lives in the store; claims and transfers are conditional updates there

package routing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/meridianbank/advisor-gateway/internal/identity"
	"github.com/meridianbank/advisor-gateway/internal/store"
)

// Engine governs the assignment state machine of client conversations:
// unassigned -> assigned(a) by the first advisor to claim, assigned(a) ->
// assigned(b) only by explicit transfer. A conversation never returns to
// unassigned.
//
// The engine holds no assignment state of its own. Both claim and transfer
// are compare-and-set operations at the store, so concurrent engines (or
// concurrent connections in one process) cannot double-assign.
type Engine struct {
	conversations store.ConversationStore
	directory     identity.Directory
	logger        *slog.Logger
}

// NewEngine creates a routing engine.
func NewEngine(conversations store.ConversationStore, directory identity.Directory, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		conversations: conversations,
		directory:     directory,
		logger:        logger.With("component", "routing"),
	}
}

// GetOrCreate returns the client's conversation, creating an unassigned one
// on first contact. Returns identity.ErrUnknownPrincipal if the ID does not
// resolve, ErrInvalidRole if it resolves to a non-client.
func (e *Engine) GetOrCreate(ctx context.Context, clientID string) (*store.Conversation, error) {
	principal, err := e.directory.Resolve(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if !principal.IsClient() {
		return nil, fmt.Errorf("%w: %s is %s, want client", ErrInvalidRole, clientID, principal.Role)
	}

	conv, err := e.conversations.GetConversationByClientID(ctx, clientID)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	now := time.Now()
	conv = &store.Conversation{
		ID:        uuid.New().String(),
		ClientID:  clientID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.conversations.CreateConversation(ctx, conv); err != nil {
		// Another connection may have created it between our lookup and insert
		if errors.Is(err, store.ErrDuplicateConversation) {
			existing, lookupErr := e.conversations.GetConversationByClientID(ctx, clientID)
			if lookupErr == nil {
				e.logger.Debug("found existing conversation after race", "client_id", clientID)
				return existing, nil
			}
			return nil, lookupErr
		}
		return nil, err
	}

	e.logger.Debug("conversation created", "conversation_id", conv.ID, "client_id", clientID)
	return conv, nil
}

// AssignIfUnassigned claims a pending conversation for the advisor. The
// returned bool reports whether this call performed the assignment. Repeat
// claims by the current owner and claims against a conversation owned by a
// different advisor are both quiet no-ops; first writer wins at the store.
func (e *Engine) AssignIfUnassigned(ctx context.Context, clientID, advisorID string) (bool, error) {
	principal, err := e.directory.Resolve(ctx, advisorID)
	if err != nil {
		return false, err
	}
	if !principal.IsAdvisor() {
		return false, fmt.Errorf("%w: %s is %s, want advisor", ErrInvalidRole, advisorID, principal.Role)
	}

	if _, err := e.GetOrCreate(ctx, clientID); err != nil {
		return false, err
	}

	claimed, err := e.conversations.AssignAdvisorIfUnassigned(ctx, clientID, advisorID)
	if err != nil {
		return false, err
	}
	if claimed {
		e.logger.Info("conversation claimed", "client_id", clientID, "advisor_id", advisorID)
	}
	return claimed, nil
}

// Transfer reassigns the conversation from one advisor to another. Fails with
// ErrSameAdvisor when both IDs match, ErrInvalidRole when either ID is not an
// advisor, and ErrNotAssigned when the conversation is not currently owned by
// fromAdvisorID.
func (e *Engine) Transfer(ctx context.Context, clientID, fromAdvisorID, toAdvisorID string) error {
	if fromAdvisorID == toAdvisorID {
		return ErrSameAdvisor
	}

	for _, id := range []string{fromAdvisorID, toAdvisorID} {
		principal, err := e.directory.Resolve(ctx, id)
		if err != nil {
			return err
		}
		if !principal.IsAdvisor() {
			return fmt.Errorf("%w: %s is %s, want advisor", ErrInvalidRole, id, principal.Role)
		}
	}

	transferred, err := e.conversations.TransferAdvisor(ctx, clientID, fromAdvisorID, toAdvisorID)
	if err != nil {
		return err
	}
	if !transferred {
		return fmt.Errorf("%w: client %s, advisor %s", ErrNotAssigned, clientID, fromAdvisorID)
	}

	e.logger.Info("conversation transferred",
		"client_id", clientID,
		"from_advisor", fromAdvisorID,
		"to_advisor", toAdvisorID)
	return nil
}
