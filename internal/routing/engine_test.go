// ABOUTME: Tests for the conversation assignment state machine
// ABOUTME: Covers claim monotonicity, idempotence, transfers and role checks

package routing

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianbank/advisor-gateway/internal/identity"
	"github.com/meridianbank/advisor-gateway/internal/store"
)

func newTestEngine(t *testing.T) (*Engine, *store.MockStore) {
	t.Helper()
	st := store.NewMockStore()
	ctx := context.Background()

	seed := []*store.Principal{
		{ID: "client-1", Role: identity.RoleClient, Name: "Claire", Email: "claire@example.com"},
		{ID: "client-2", Role: identity.RoleClient, Name: "Carl"},
		{ID: "advisor-1", Role: identity.RoleAdvisor, Name: "Ana"},
		{ID: "advisor-2", Role: identity.RoleAdvisor, Name: "Amir"},
		{ID: "director-1", Role: identity.RoleDirector, Name: "Dana"},
	}
	for _, p := range seed {
		p.CreatedAt = time.Now()
		require.NoError(t, st.CreatePrincipal(ctx, p))
	}

	return NewEngine(st, identity.NewStoreDirectory(st), nil), st
}

func TestGetOrCreate(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	conv, err := engine.GetOrCreate(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, "client-1", conv.ClientID)
	assert.False(t, conv.Assigned())

	// Second call returns the same conversation
	again, err := engine.GetOrCreate(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, conv.ID, again.ID)
}

func TestGetOrCreate_Rejections(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.GetOrCreate(ctx, "advisor-1")
	assert.ErrorIs(t, err, ErrInvalidRole)

	_, err = engine.GetOrCreate(ctx, "ghost")
	assert.ErrorIs(t, err, identity.ErrUnknownPrincipal)
}

func TestAssignIfUnassigned_FirstClaimWins(t *testing.T) {
	engine, st := newTestEngine(t)
	ctx := context.Background()

	claimed, err := engine.AssignIfUnassigned(ctx, "client-1", "advisor-1")
	require.NoError(t, err)
	assert.True(t, claimed)

	// A later claim by another advisor is a quiet no-op
	claimed, err = engine.AssignIfUnassigned(ctx, "client-1", "advisor-2")
	require.NoError(t, err)
	assert.False(t, claimed)

	// The owner's repeat claim is also a no-op
	claimed, err = engine.AssignIfUnassigned(ctx, "client-1", "advisor-1")
	require.NoError(t, err)
	assert.False(t, claimed)

	conv, err := st.GetConversationByClientID(ctx, "client-1")
	require.NoError(t, err)
	require.NotNil(t, conv.AssignedAdvisorID)
	assert.Equal(t, "advisor-1", *conv.AssignedAdvisorID)
}

func TestAssignIfUnassigned_CreatesConversation(t *testing.T) {
	engine, st := newTestEngine(t)
	ctx := context.Background()

	// No prior GetOrCreate: the claim path ensures the conversation exists
	claimed, err := engine.AssignIfUnassigned(ctx, "client-2", "advisor-1")
	require.NoError(t, err)
	assert.True(t, claimed)

	conv, err := st.GetConversationByClientID(ctx, "client-2")
	require.NoError(t, err)
	assert.True(t, conv.Assigned())
}

func TestAssignIfUnassigned_Rejections(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.AssignIfUnassigned(ctx, "client-1", "client-2")
	assert.ErrorIs(t, err, ErrInvalidRole)

	_, err = engine.AssignIfUnassigned(ctx, "client-1", "director-1")
	assert.ErrorIs(t, err, ErrInvalidRole)

	_, err = engine.AssignIfUnassigned(ctx, "client-1", "ghost")
	assert.ErrorIs(t, err, identity.ErrUnknownPrincipal)
}

func TestAssignIfUnassigned_Concurrent(t *testing.T) {
	engine, st := newTestEngine(t)
	ctx := context.Background()

	const racers = 10
	for i := 0; i < racers; i++ {
		require.NoError(t, st.CreatePrincipal(ctx, &store.Principal{
			ID:        fmt.Sprintf("racer-%d", i),
			Role:      identity.RoleAdvisor,
			Name:      fmt.Sprintf("Racer %d", i),
			CreatedAt: time.Now(),
		}))
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var winners []string
	for i := 0; i < racers; i++ {
		advisorID := fmt.Sprintf("racer-%d", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := engine.AssignIfUnassigned(ctx, "client-1", advisorID)
			assert.NoError(t, err)
			if claimed {
				mu.Lock()
				winners = append(winners, advisorID)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, winners, 1)
	conv, err := st.GetConversationByClientID(ctx, "client-1")
	require.NoError(t, err)
	require.NotNil(t, conv.AssignedAdvisorID)
	assert.Equal(t, winners[0], *conv.AssignedAdvisorID)
}

func TestTransfer(t *testing.T) {
	engine, st := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.AssignIfUnassigned(ctx, "client-1", "advisor-1")
	require.NoError(t, err)

	require.NoError(t, engine.Transfer(ctx, "client-1", "advisor-1", "advisor-2"))

	conv, err := st.GetConversationByClientID(ctx, "client-1")
	require.NoError(t, err)
	require.NotNil(t, conv.AssignedAdvisorID)
	assert.Equal(t, "advisor-2", *conv.AssignedAdvisorID)
}

func TestTransfer_Rejections(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	// Same source and destination fails before any lookup
	err := engine.Transfer(ctx, "client-1", "advisor-1", "advisor-1")
	assert.ErrorIs(t, err, ErrSameAdvisor)

	// Either side failing to resolve as an advisor fails the transfer
	err = engine.Transfer(ctx, "client-1", "advisor-1", "client-2")
	assert.ErrorIs(t, err, ErrInvalidRole)
	err = engine.Transfer(ctx, "client-1", "ghost", "advisor-2")
	assert.ErrorIs(t, err, identity.ErrUnknownPrincipal)

	// Unassigned conversation cannot be transferred
	_, err = engine.GetOrCreate(ctx, "client-1")
	require.NoError(t, err)
	err = engine.Transfer(ctx, "client-1", "advisor-1", "advisor-2")
	assert.ErrorIs(t, err, ErrNotAssigned)

	// Nor can one owned by someone else
	_, err = engine.AssignIfUnassigned(ctx, "client-1", "advisor-1")
	require.NoError(t, err)
	err = engine.Transfer(ctx, "client-1", "advisor-2", "advisor-1")
	assert.ErrorIs(t, err, ErrNotAssigned)
}
