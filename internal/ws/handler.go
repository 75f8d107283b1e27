// ABOUTME: Websocket endpoint: handshake authentication, event dispatch, presence lifecycle
// ABOUTME: One read loop per connection; failures surface as error events on that connection only

package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/meridianbank/advisor-gateway/internal/auth"
	"github.com/meridianbank/advisor-gateway/internal/identity"
	"github.com/meridianbank/advisor-gateway/internal/messaging"
	"github.com/meridianbank/advisor-gateway/internal/metrics"
	"github.com/meridianbank/advisor-gateway/internal/presence"
	"github.com/meridianbank/advisor-gateway/internal/routing"
	"github.com/meridianbank/advisor-gateway/internal/store"
)

// groupHistoryLimit caps the snapshot sent on join_group_chat.
const groupHistoryLimit = 200

// Options carries the tunables the handler needs from config.
type Options struct {
	// OnlineBroadcastDelay is the settling delay before announcing a fresh
	// connection, so it can join its rooms first.
	OnlineBroadcastDelay time.Duration
	WriteTimeout         time.Duration
	SendBuffer           int
}

// Handler serves the websocket endpoint.
type Handler struct {
	verifier  auth.TokenVerifier
	directory identity.Directory
	svc       *messaging.Service
	registry  *presence.Registry
	rooms     *presence.Rooms
	metrics   *metrics.Metrics
	opts      Options
	upgrader  websocket.Upgrader
	logger    *slog.Logger
}

// NewHandler creates the websocket handler. metrics may be nil.
func NewHandler(
	verifier auth.TokenVerifier,
	directory identity.Directory,
	svc *messaging.Service,
	registry *presence.Registry,
	rooms *presence.Rooms,
	m *metrics.Metrics,
	opts Options,
	logger *slog.Logger,
) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		verifier:  verifier,
		directory: directory,
		svc:       svc,
		registry:  registry,
		rooms:     rooms,
		metrics:   m,
		opts:      opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The browser UI is served from a different origin than the API
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger.With("component", "ws"),
	}
}

// ServeHTTP upgrades the connection, authenticates the handshake credential,
// and runs the connection's read loop until disconnect.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("upgrade failed", "error", err)
		return
	}

	principal, err := h.authenticate(r)
	if err != nil {
		// Handshake failure closes the connection; there is no anonymous mode
		h.logger.Info("handshake rejected", "error", err)
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "authentication failed")
		_ = wsConn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		wsConn.Close()
		return
	}

	var dropped DropCounter
	if h.metrics != nil {
		dropped = h.metrics.DeliveriesDropped
	}
	conn := newConn(wsConn, h.opts.SendBuffer, h.opts.WriteTimeout, dropped, h.logger)

	h.register(principal, conn)
	defer h.cleanup(principal, conn)

	h.readLoop(r.Context(), principal, conn)
}

// authenticate resolves the handshake credential to a principal. The token
// travels in the ?token query parameter (browser websocket clients cannot set
// headers) or an Authorization header.
func (h *Handler) authenticate(r *http.Request) (*identity.Principal, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		if authHeader := r.Header.Get("Authorization"); len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			token = authHeader[7:]
		}
	}
	if token == "" {
		return nil, auth.ErrInvalidToken
	}

	principalID, err := h.verifier.Verify(token)
	if err != nil {
		return nil, err
	}
	return h.directory.Resolve(r.Context(), principalID)
}

// register records the connection and schedules the online broadcast after
// the settling delay. The broadcast is skipped if the connection has already
// been displaced or dropped by then.
func (h *Handler) register(principal *identity.Principal, conn *Conn) {
	h.registry.Register(principal.ID, principal.Role, conn)
	if h.metrics != nil {
		h.metrics.ConnectedSessions.Set(float64(h.registry.Count()))
	}

	time.AfterFunc(h.opts.OnlineBroadcastDelay, func() {
		entry, ok := h.registry.Lookup(principal.ID)
		if !ok || entry.Conn.ID() != conn.ID() {
			return
		}
		h.registry.Broadcast(EventUserOnline, PresencePayload{
			UserID: principal.ID,
			Role:   principal.Role,
		}, principal.ID)
	})
}

// cleanup drops room membership, unregisters the connection, and broadcasts
// the offline event — but only if this connection is still the user's
// current one. A displaced connection disconnecting must not mark the user
// offline.
func (h *Handler) cleanup(principal *identity.Principal, conn *Conn) {
	h.rooms.DropConn(conn.ID())
	if h.registry.Unregister(principal.ID, conn.ID()) {
		h.registry.Broadcast(EventUserOffline, PresencePayload{
			UserID: principal.ID,
			Role:   principal.Role,
		}, principal.ID)
	}
	if h.metrics != nil {
		h.metrics.ConnectedSessions.Set(float64(h.registry.Count()))
	}
	conn.Close()
}

func (h *Handler) readLoop(ctx context.Context, principal *identity.Principal, conn *Conn) {
	for {
		_, data, err := conn.ws.ReadMessage()
		if err != nil {
			h.logger.Debug("connection closed", "user_id", principal.ID, "conn", conn.ID(), "error", err)
			return
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			conn.SendError("malformed frame")
			continue
		}

		h.dispatch(ctx, principal, conn, &frame)
	}
}

func (h *Handler) dispatch(ctx context.Context, principal *identity.Principal, conn *Conn, frame *Frame) {
	switch frame.Event {
	case EventLoadConversation:
		h.handleLoadConversation(ctx, principal, conn, frame.Payload)
	case EventSendMessage:
		h.handleSendMessage(ctx, principal, conn, frame.Payload)
	case EventTyping:
		h.handleTyping(principal, conn, frame.Payload)
	case EventJoinGroupChat:
		h.handleJoinGroupChat(ctx, principal, conn)
	case EventSendGroupMessage:
		h.handleSendGroupMessage(ctx, principal, conn, frame.Payload)
	default:
		conn.SendError("unknown event: " + frame.Event)
	}
}

// handleLoadConversation sends the pair history and the counterpart's online
// flag, and marks the loaded history read for the loader.
func (h *Handler) handleLoadConversation(ctx context.Context, principal *identity.Principal, conn *Conn, payload json.RawMessage) {
	var req LoadConversationPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		conn.SendError("malformed payload")
		return
	}

	otherID, errMsg := counterpartID(principal, req)
	if errMsg != "" {
		conn.SendError(errMsg)
		return
	}

	msgs, err := h.svc.ListPrivateMessages(ctx, principal.ID, otherID)
	if err != nil {
		conn.SendError(errorMessage(err))
		return
	}
	if err := h.svc.MarkConversationRead(ctx, principal.ID, otherID); err != nil {
		h.logger.Error("marking conversation read", "error", err, "reader", principal.ID, "other", otherID)
	}

	conn.Send(EventConversationLoaded, ConversationLoadedPayload{
		Messages:          toPrivateDTOs(msgs),
		IsOtherUserOnline: h.registry.Online(otherID),
	})
}

func (h *Handler) handleSendMessage(ctx context.Context, principal *identity.Principal, conn *Conn, payload json.RawMessage) {
	var req SendMessagePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		conn.SendError("malformed payload")
		return
	}

	// Persistence and delivery (sender ack + receiver fan-out) happen in the
	// messaging service and its notifier
	if _, err := h.svc.SendPrivateMessage(ctx, principal.ID, req.ReceiverID, req.Content); err != nil {
		conn.SendError(errorMessage(err))
		return
	}
	if h.metrics != nil {
		h.metrics.MessagesSent.WithLabelValues("private").Inc()
	}
}

// handleTyping relays the signal to the named counterpart only. Never
// persisted, no ordering guarantee relative to messages.
func (h *Handler) handleTyping(principal *identity.Principal, conn *Conn, payload json.RawMessage) {
	var req TypingPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		conn.SendError("malformed payload")
		return
	}
	if req.ReceiverID == "" {
		conn.SendError("receiverId is required")
		return
	}

	if entry, ok := h.registry.Lookup(req.ReceiverID); ok {
		entry.Conn.Send(EventTyping, TypingPayload{UserID: principal.ID, IsTyping: req.IsTyping})
	}
}

func (h *Handler) handleJoinGroupChat(ctx context.Context, principal *identity.Principal, conn *Conn) {
	if !principal.IsStaff() {
		conn.SendError("group chat is restricted to advisors and directors")
		return
	}

	h.rooms.Join(presence.GroupRoom, conn)

	msgs, err := h.svc.ListGroupMessages(ctx, groupHistoryLimit)
	if err != nil {
		conn.SendError(errorMessage(err))
		return
	}
	conn.Send(EventGroupMessagesLoaded, GroupMessagesLoadedPayload{Messages: toGroupDTOs(msgs)})
}

func (h *Handler) handleSendGroupMessage(ctx context.Context, principal *identity.Principal, conn *Conn, payload json.RawMessage) {
	var req SendGroupMessagePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		conn.SendError("malformed payload")
		return
	}

	if _, err := h.svc.SendGroupMessage(ctx, principal.ID, req.Content); err != nil {
		conn.SendError(errorMessage(err))
		return
	}
	if h.metrics != nil {
		h.metrics.MessagesSent.WithLabelValues("group").Inc()
	}
}

// counterpartID resolves which user's conversation to load: clients name
// their advisor, staff name the client (directors may also name an advisor).
func counterpartID(principal *identity.Principal, req LoadConversationPayload) (string, string) {
	if principal.IsClient() {
		if req.AdvisorID == "" {
			return "", "advisorId is required"
		}
		return req.AdvisorID, ""
	}
	if req.ClientID != "" {
		return req.ClientID, ""
	}
	if req.AdvisorID != "" {
		return req.AdvisorID, ""
	}
	return "", "clientId is required"
}

// errorMessage maps domain errors to user-facing text. Transport and
// persistence internals never leak to the client.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, messaging.ErrEmptyContent):
		return "message content is empty"
	case errors.Is(err, messaging.ErrContentTooLong):
		return "message content exceeds 1000 characters"
	case errors.Is(err, messaging.ErrClientToClient):
		return "clients cannot message each other"
	case errors.Is(err, messaging.ErrForbiddenPair):
		return "messages must involve an advisor"
	case errors.Is(err, messaging.ErrSelfMessage):
		return "cannot send a message to yourself"
	case errors.Is(err, messaging.ErrNotStaff):
		return "group chat is restricted to advisors and directors"
	case errors.Is(err, routing.ErrInvalidRole):
		return "operation not permitted for this role"
	case errors.Is(err, routing.ErrNotAssigned):
		return "conversation is not assigned to this advisor"
	case errors.Is(err, routing.ErrSameAdvisor):
		return "conversation is already assigned to this advisor"
	case errors.Is(err, identity.ErrUnknownPrincipal), errors.Is(err, store.ErrNotFound):
		return "user not found"
	default:
		return "operation failed"
	}
}
