// ABOUTME: In-memory Store implementation for unit tests of higher layers
// ABOUTME: Mirrors the SQLite store's semantics including the conditional assignment updates

package store

import (
	"context"
	"sort"
	"sync"
)

// MockStore is a thread-safe in-memory Store for testing. Assignment
// operations hold the mutex across check-and-set, matching the atomicity the
// SQLite store gets from conditional UPDATEs.
type MockStore struct {
	mu            sync.Mutex
	conversations map[string]*Conversation // keyed by client ID
	private       []*PrivateMessage
	group         []*GroupMessage
	principals    map[string]*Principal
}

// NewMockStore creates an empty MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		conversations: make(map[string]*Conversation),
		principals:    make(map[string]*Principal),
	}
}

func (m *MockStore) CreateConversation(_ context.Context, conv *Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.conversations[conv.ClientID]; exists {
		return ErrDuplicateConversation
	}
	c := *conv
	m.conversations[conv.ClientID] = &c
	return nil
}

func (m *MockStore) GetConversationByClientID(_ context.Context, clientID string) (*Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[clientID]
	if !ok {
		return nil, ErrNotFound
	}
	c := *conv
	return &c, nil
}

func (m *MockStore) ListConversationsByAdvisorID(_ context.Context, advisorID string) ([]*Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*Conversation
	for _, conv := range m.conversations {
		if conv.AssignedAdvisorID != nil && *conv.AssignedAdvisorID == advisorID {
			c := *conv
			out = append(out, &c)
		}
	}
	sortConversations(out)
	return out, nil
}

func (m *MockStore) ListPendingConversations(_ context.Context) ([]*Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*Conversation
	for _, conv := range m.conversations {
		if conv.AssignedAdvisorID == nil {
			c := *conv
			out = append(out, &c)
		}
	}
	sortConversations(out)
	return out, nil
}

func (m *MockStore) AssignAdvisorIfUnassigned(_ context.Context, clientID, advisorID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[clientID]
	if !ok || conv.AssignedAdvisorID != nil {
		return false, nil
	}
	id := advisorID
	conv.AssignedAdvisorID = &id
	return true, nil
}

func (m *MockStore) TransferAdvisor(_ context.Context, clientID, fromAdvisorID, toAdvisorID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[clientID]
	if !ok || conv.AssignedAdvisorID == nil || *conv.AssignedAdvisorID != fromAdvisorID {
		return false, nil
	}
	id := toAdvisorID
	conv.AssignedAdvisorID = &id
	return true, nil
}

func (m *MockStore) SavePrivateMessage(_ context.Context, msg *PrivateMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *msg
	m.private = append(m.private, &cp)
	return nil
}

func (m *MockStore) ListMessagesByPair(_ context.Context, idA, idB string) ([]*PrivateMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*PrivateMessage
	for _, msg := range m.private {
		if (msg.SenderID == idA && msg.ReceiverID == idB) || (msg.SenderID == idB && msg.ReceiverID == idA) {
			cp := *msg
			out = append(out, &cp)
		}
	}
	sortPrivateMessages(out)
	return out, nil
}

func (m *MockStore) ListMessagesByParticipant(_ context.Context, id string) ([]*PrivateMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*PrivateMessage
	for _, msg := range m.private {
		if msg.SenderID == id || msg.ReceiverID == id {
			cp := *msg
			out = append(out, &cp)
		}
	}
	sortPrivateMessages(out)
	return out, nil
}

func (m *MockStore) MarkMessageRead(_ context.Context, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, msg := range m.private {
		if msg.ID == messageID {
			msg.IsRead = true
			return nil
		}
	}
	return ErrNotFound
}

func (m *MockStore) MarkPairRead(_ context.Context, receiverID, senderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, msg := range m.private {
		if msg.ReceiverID == receiverID && msg.SenderID == senderID {
			msg.IsRead = true
		}
	}
	return nil
}

func (m *MockStore) CountUnread(_ context.Context, receiverID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, msg := range m.private {
		if msg.ReceiverID == receiverID && !msg.IsRead {
			count++
		}
	}
	return count, nil
}

func (m *MockStore) SaveGroupMessage(_ context.Context, msg *GroupMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *msg
	m.group = append(m.group, &cp)
	return nil
}

func (m *MockStore) ListGroupMessages(_ context.Context, limit int) ([]*GroupMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*GroupMessage, 0, len(m.group))
	for _, msg := range m.group {
		cp := *msg
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *MockStore) CreatePrincipal(_ context.Context, p *Principal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.principals[p.ID]; exists {
		return ErrDuplicatePrincipal
	}
	cp := *p
	m.principals[p.ID] = &cp
	return nil
}

func (m *MockStore) GetPrincipal(_ context.Context, id string) (*Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.principals[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockStore) Close() error {
	return nil
}

func sortConversations(convs []*Conversation) {
	sort.SliceStable(convs, func(i, j int) bool {
		return convs[i].UpdatedAt.After(convs[j].UpdatedAt)
	})
}

func sortPrivateMessages(msgs []*PrivateMessage) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
}
