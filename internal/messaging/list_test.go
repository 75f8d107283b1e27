// ABOUTME: Tests for the advisor inbox aggregation
// ABOUTME: Covers assigned plus pending rows, empty-conversation omission, ordering and unread counts

package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListAdvisorConversations(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	// client-1 is assigned to advisor-1 after a reply
	_, err := svc.SendPrivateMessage(ctx, "client-1", "advisor-1", "hello ana")
	require.NoError(t, err)
	_, err = svc.SendPrivateMessage(ctx, "advisor-1", "client-1", "hello claire")
	require.NoError(t, err)

	// client-2 messaged advisor-2 but nobody replied: still pending, and
	// visible to every advisor's inbox
	_, err = svc.SendPrivateMessage(ctx, "client-2", "advisor-2", "anyone there?")
	require.NoError(t, err)

	summaries, err := svc.ListAdvisorConversations(ctx, "advisor-1")
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	// Newest activity first: client-2's message is the most recent
	assert.Equal(t, "client-2", summaries[0].ClientID)
	assert.True(t, summaries[0].IsPending)
	assert.Equal(t, "anyone there?", summaries[0].LastMessage)
	assert.Equal(t, "Carl", summaries[0].ClientName)

	assert.Equal(t, "client-1", summaries[1].ClientID)
	assert.False(t, summaries[1].IsPending)
	assert.Equal(t, "hello claire", summaries[1].LastMessage)
	assert.Equal(t, "Claire", summaries[1].ClientName)
	assert.Equal(t, "claire@example.com", summaries[1].ClientEmail)
}

func TestListAdvisorConversations_UnreadCount(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.SendPrivateMessage(ctx, "client-1", "advisor-1", "one")
	require.NoError(t, err)
	_, err = svc.SendPrivateMessage(ctx, "client-1", "advisor-1", "two")
	require.NoError(t, err)
	// The advisor's own reply never counts as unread for them
	_, err = svc.SendPrivateMessage(ctx, "advisor-1", "client-1", "reply")
	require.NoError(t, err)

	summaries, err := svc.ListAdvisorConversations(ctx, "advisor-1")
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 2, summaries[0].UnreadCount)

	require.NoError(t, svc.MarkConversationRead(ctx, "advisor-1", "client-1"))

	summaries, err = svc.ListAdvisorConversations(ctx, "advisor-1")
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 0, summaries[0].UnreadCount)
}

func TestListAdvisorConversations_OmitsEmpty(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()

	// An assigned conversation with no messages yet is omitted from the inbox
	claimed, err := svc.AssignConversation(ctx, "advisor-1", "client-1")
	require.NoError(t, err)
	require.True(t, claimed)
	conv, err := st.GetConversationByClientID(ctx, "client-1")
	require.NoError(t, err)
	require.True(t, conv.Assigned())

	summaries, err := svc.ListAdvisorConversations(ctx, "advisor-1")
	require.NoError(t, err)
	assert.Empty(t, summaries)
}

func TestListAdvisorConversations_PendingUsesClientHistory(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	// client-1's only message went to advisor-2; advisor-1 has no pair
	// history with them, but the pending row still shows the client's latest
	_, err := svc.SendPrivateMessage(ctx, "client-1", "advisor-2", "I need help")
	require.NoError(t, err)

	summaries, err := svc.ListAdvisorConversations(ctx, "advisor-1")
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "client-1", summaries[0].ClientID)
	assert.True(t, summaries[0].IsPending)
	assert.Equal(t, "I need help", summaries[0].LastMessage)
}

func TestListAdvisorConversations_Ordering(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.SendPrivateMessage(ctx, "client-1", "advisor-1", "older")
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	_, err = svc.SendPrivateMessage(ctx, "client-2", "advisor-1", "newer")
	require.NoError(t, err)

	_, err = svc.AssignConversation(ctx, "advisor-1", "client-1")
	require.NoError(t, err)
	_, err = svc.AssignConversation(ctx, "advisor-1", "client-2")
	require.NoError(t, err)

	summaries, err := svc.ListAdvisorConversations(ctx, "advisor-1")
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "client-2", summaries[0].ClientID)
	assert.Equal(t, "client-1", summaries[1].ClientID)
	assert.True(t, summaries[0].LastMessageAt.After(summaries[1].LastMessageAt))
}
