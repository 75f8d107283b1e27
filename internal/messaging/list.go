// ABOUTME: Advisor inbox aggregation over conversations and message history
// ABOUTME: Summarizes assigned and pending conversations, newest activity first

package messaging

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/meridianbank/advisor-gateway/internal/store"
)

// ConversationSummary is one row of the advisor's inbox.
type ConversationSummary struct {
	ClientID      string    `json:"clientId"`
	ClientName    string    `json:"clientName"`
	ClientEmail   string    `json:"clientEmail"`
	LastMessage   string    `json:"lastMessage"`
	LastMessageAt time.Time `json:"lastMessageDate"`
	UnreadCount   int       `json:"unreadCount"`
	IsPending     bool      `json:"isPending"`
}

// ListAdvisorConversations returns the advisor's inbox: conversations
// assigned to them plus all pending ones, each summarized with the latest
// message and the advisor's unread count for that client. Conversations with
// no messages yet are omitted. Sorted by last activity, newest first.
func (s *Service) ListAdvisorConversations(ctx context.Context, advisorID string) ([]*ConversationSummary, error) {
	assigned, err := s.store.ListConversationsByAdvisorID(ctx, advisorID)
	if err != nil {
		return nil, fmt.Errorf("listing assigned conversations: %w", err)
	}
	pending, err := s.store.ListPendingConversations(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing pending conversations: %w", err)
	}

	summaries := make([]*ConversationSummary, 0, len(assigned)+len(pending))
	for _, conv := range append(assigned, pending...) {
		summary, err := s.summarize(ctx, advisorID, conv)
		if err != nil {
			return nil, err
		}
		if summary != nil {
			summaries = append(summaries, summary)
		}
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].LastMessageAt.After(summaries[j].LastMessageAt)
	})
	return summaries, nil
}

// summarize builds the inbox row for one conversation, or nil if the pair has
// no messages yet.
func (s *Service) summarize(ctx context.Context, advisorID string, conv *store.Conversation) (*ConversationSummary, error) {
	msgs, err := s.store.ListMessagesByPair(ctx, conv.ClientID, advisorID)
	if err != nil {
		return nil, fmt.Errorf("listing pair history: %w", err)
	}

	// Pending conversations have no advisor pair yet; their history is
	// whatever the client has sent so far, to anyone.
	if len(msgs) == 0 && !conv.Assigned() {
		msgs, err = s.store.ListMessagesByParticipant(ctx, conv.ClientID)
		if err != nil {
			return nil, fmt.Errorf("listing client history: %w", err)
		}
	}
	if len(msgs) == 0 {
		return nil, nil
	}

	client, err := s.directory.Resolve(ctx, conv.ClientID)
	if err != nil {
		return nil, err
	}

	last := msgs[len(msgs)-1]
	unread := 0
	for _, msg := range msgs {
		if msg.SenderID != advisorID && msg.ReceiverID == advisorID && !msg.IsRead {
			unread++
		}
	}

	return &ConversationSummary{
		ClientID:      conv.ClientID,
		ClientName:    client.Name,
		ClientEmail:   client.Email,
		LastMessage:   last.Content,
		LastMessageAt: last.CreatedAt,
		UnreadCount:   unread,
		IsPending:     !conv.Assigned(),
	}, nil
}
