// ABOUTME: Tests for the authenticated HTTP API surface
// ABOUTME: Exercises the full gateway wiring over an on-disk store

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianbank/advisor-gateway/internal/config"
	"github.com/meridianbank/advisor-gateway/internal/identity"
	"github.com/meridianbank/advisor-gateway/internal/messaging"
	"github.com/meridianbank/advisor-gateway/internal/store"
)

func newTestGateway(t *testing.T) *Gateway {
	t.Helper()

	cfg := &config.Config{}
	cfg.Server.HTTPAddr = "localhost:0"
	cfg.Database.Path = filepath.Join(t.TempDir(), "gateway.db")
	cfg.Auth.JWTSecret = "api-test-secret"
	cfg.Auth.TokenTTL = time.Hour
	cfg.Presence.OnlineBroadcastDelay = 20 * time.Millisecond
	cfg.Presence.WriteTimeout = 2 * time.Second
	cfg.Presence.SendBuffer = 32

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gw, err := New(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { gw.store.Close() })

	ctx := context.Background()
	seed := []*store.Principal{
		{ID: "client-1", Role: identity.RoleClient, Name: "Claire", Email: "claire@example.com"},
		{ID: "client-2", Role: identity.RoleClient, Name: "Carl"},
		{ID: "advisor-1", Role: identity.RoleAdvisor, Name: "Ana"},
		{ID: "advisor-2", Role: identity.RoleAdvisor, Name: "Amir"},
	}
	for _, p := range seed {
		p.CreatedAt = time.Now()
		require.NoError(t, gw.store.CreatePrincipal(ctx, p))
	}

	return gw
}

func (g *Gateway) doRequest(t *testing.T, method, path, asPrincipal string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if asPrincipal != "" {
		token, err := g.verifier.Generate(asPrincipal, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	g.httpServer.Handler.ServeHTTP(rec, req)
	return rec
}

func TestAPI_RequiresAuth(t *testing.T) {
	gw := newTestGateway(t)

	rec := gw.doRequest(t, http.MethodGet, "/api/conversations", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = gw.doRequest(t, http.MethodPost, "/api/messages", "", SendMessageRequest{ReceiverID: "advisor-1", Content: "x"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPI_StaffOnlyRoutes(t *testing.T) {
	gw := newTestGateway(t)

	rec := gw.doRequest(t, http.MethodGet, "/api/conversations", "client-1", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = gw.doRequest(t, http.MethodGet, "/api/group-messages", "client-1", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAPI_SendMessageAndHistory(t *testing.T) {
	gw := newTestGateway(t)

	rec := gw.doRequest(t, http.MethodPost, "/api/messages", "client-1",
		SendMessageRequest{ReceiverID: "advisor-1", Content: "hello there"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var sent MessageResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&sent))
	assert.Equal(t, "client-1", sent.SenderID)
	assert.Equal(t, "hello there", sent.Content)
	assert.NotEmpty(t, sent.ID)

	// Unread count for the advisor before loading the history
	rec = gw.doRequest(t, http.MethodGet, "/api/messages/unread-count", "advisor-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var unread map[string]int
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&unread))
	assert.Equal(t, 1, unread["unreadCount"])

	// Fetching the pair history marks it read
	rec = gw.doRequest(t, http.MethodGet, "/api/messages/client-1", "advisor-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history []MessageResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&history))
	require.Len(t, history, 1)
	assert.Equal(t, sent.ID, history[0].ID)

	rec = gw.doRequest(t, http.MethodGet, "/api/messages/unread-count", "advisor-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&unread))
	assert.Equal(t, 0, unread["unreadCount"])
}

func TestAPI_SendMessage_Validation(t *testing.T) {
	gw := newTestGateway(t)

	rec := gw.doRequest(t, http.MethodPost, "/api/messages", "client-1",
		SendMessageRequest{ReceiverID: "advisor-1", Content: "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = gw.doRequest(t, http.MethodPost, "/api/messages", "client-1",
		SendMessageRequest{Content: "no receiver"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = gw.doRequest(t, http.MethodPost, "/api/messages", "client-1",
		SendMessageRequest{ReceiverID: "client-2", Content: "psst"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = gw.doRequest(t, http.MethodPost, "/api/messages", "client-1",
		SendMessageRequest{ReceiverID: "ghost", Content: "hello?"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_ListConversations(t *testing.T) {
	gw := newTestGateway(t)

	rec := gw.doRequest(t, http.MethodPost, "/api/messages", "client-1",
		SendMessageRequest{ReceiverID: "advisor-2", Content: "anyone?"})
	require.Equal(t, http.StatusCreated, rec.Code)

	// Pending conversations appear in every advisor's inbox
	rec = gw.doRequest(t, http.MethodGet, "/api/conversations", "advisor-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var summaries []messaging.ConversationSummary
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, "client-1", summaries[0].ClientID)
	assert.True(t, summaries[0].IsPending)
	assert.Equal(t, "anyone?", summaries[0].LastMessage)
}

func TestAPI_ClaimAndTransfer(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()

	rec := gw.doRequest(t, http.MethodPost, "/api/messages", "client-1",
		SendMessageRequest{ReceiverID: "advisor-1", Content: "help"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = gw.doRequest(t, http.MethodPost, "/api/conversations/client-1/claim", "advisor-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	conv, err := gw.store.GetConversationByClientID(ctx, "client-1")
	require.NoError(t, err)
	require.NotNil(t, conv.AssignedAdvisorID)
	assert.Equal(t, "advisor-1", *conv.AssignedAdvisorID)

	// A losing claim still returns ok; the assignment is untouched
	rec = gw.doRequest(t, http.MethodPost, "/api/conversations/client-1/claim", "advisor-2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	conv, err = gw.store.GetConversationByClientID(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, "advisor-1", *conv.AssignedAdvisorID)

	// Transfer from the owner succeeds
	rec = gw.doRequest(t, http.MethodPost, "/api/conversations/client-1/transfer", "advisor-1",
		TransferRequest{ToAdvisorID: "advisor-2"})
	require.Equal(t, http.StatusOK, rec.Code)
	conv, err = gw.store.GetConversationByClientID(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, "advisor-2", *conv.AssignedAdvisorID)

	// The old owner can no longer transfer
	rec = gw.doRequest(t, http.MethodPost, "/api/conversations/client-1/transfer", "advisor-1",
		TransferRequest{ToAdvisorID: "advisor-2"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Transferring to yourself is rejected
	rec = gw.doRequest(t, http.MethodPost, "/api/conversations/client-1/transfer", "advisor-2",
		TransferRequest{ToAdvisorID: "advisor-2"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Missing destination
	rec = gw.doRequest(t, http.MethodPost, "/api/conversations/client-1/transfer", "advisor-2",
		TransferRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_GroupMessages(t *testing.T) {
	gw := newTestGateway(t)

	rec := gw.doRequest(t, http.MethodPost, "/api/group-messages", "advisor-1",
		SendGroupMessageRequest{Content: "team update"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var sent GroupMessageResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&sent))
	assert.Equal(t, "Ana", sent.SenderName)
	assert.Equal(t, identity.RoleAdvisor, sent.SenderRole)

	rec = gw.doRequest(t, http.MethodGet, "/api/group-messages", "advisor-2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history []GroupMessageResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&history))
	require.Len(t, history, 1)
	assert.Equal(t, "team update", history[0].Content)
}

func TestAPI_MethodNotAllowed(t *testing.T) {
	gw := newTestGateway(t)

	rec := gw.doRequest(t, http.MethodDelete, "/api/conversations", "advisor-1", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = gw.doRequest(t, http.MethodGet, "/api/conversations/client-1/claim", "advisor-1", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	gw := newTestGateway(t)

	rec := gw.doRequest(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}
