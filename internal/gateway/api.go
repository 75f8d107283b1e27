// ABOUTME: HTTP API for advisor UIs: conversation listing, message history, claims and transfers
// ABOUTME: Same use cases as the websocket surface, authenticated by bearer token

package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/meridianbank/advisor-gateway/internal/auth"
	"github.com/meridianbank/advisor-gateway/internal/identity"
	"github.com/meridianbank/advisor-gateway/internal/messaging"
	"github.com/meridianbank/advisor-gateway/internal/routing"
	"github.com/meridianbank/advisor-gateway/internal/store"
)

// SendMessageRequest is the JSON body for POST /api/messages.
type SendMessageRequest struct {
	ReceiverID string `json:"receiverId"`
	Content    string `json:"content"`
}

// SendGroupMessageRequest is the JSON body for POST /api/group-messages.
type SendGroupMessageRequest struct {
	Content string `json:"content"`
}

// TransferRequest is the JSON body for POST /api/conversations/{clientID}/transfer.
type TransferRequest struct {
	ToAdvisorID string `json:"toAdvisorId"`
}

// MessageResponse is the JSON form of a private message.
type MessageResponse struct {
	ID         string `json:"id"`
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
	Content    string `json:"content"`
	IsRead     bool   `json:"isRead"`
	CreatedAt  string `json:"createdAt"`
}

// GroupMessageResponse is the JSON form of a group message.
type GroupMessageResponse struct {
	ID         string `json:"id"`
	SenderID   string `json:"senderId"`
	SenderRole string `json:"senderRole"`
	SenderName string `json:"senderName"`
	Content    string `json:"content"`
	CreatedAt  string `json:"createdAt"`
}

// registerAPIRoutes wires the authenticated API surface onto the mux.
func (g *Gateway) registerAPIRoutes(mux *http.ServeMux) {
	authMiddleware := auth.Middleware(g.verifier, g.directory)
	staffMiddleware := auth.RequireStaff()

	handle := func(path string, h http.HandlerFunc) {
		mux.Handle(path, authMiddleware(h))
	}
	handleStaff := func(path string, h http.HandlerFunc) {
		mux.Handle(path, authMiddleware(staffMiddleware(h)))
	}

	handleStaff("/api/conversations", g.handleListConversations)
	handleStaff("/api/conversations/", g.handleConversationRoutes)
	handle("/api/messages", g.handleMessages)
	handle("/api/messages/", g.handleMessageRoutes)
	handleStaff("/api/group-messages", g.handleGroupMessages)
}

// handleListConversations handles GET /api/conversations.
// Returns the calling advisor's inbox: assigned plus pending conversations.
func (g *Gateway) handleListConversations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	caller := auth.FromContext(r.Context())
	summaries, err := g.messaging.ListAdvisorConversations(r.Context(), caller.ID)
	if err != nil {
		g.sendAPIError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summaries)
}

// handleConversationRoutes handles POST /api/conversations/{clientID}/claim
// and POST /api/conversations/{clientID}/transfer.
func (g *Gateway) handleConversationRoutes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/conversations/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	clientID, action := parts[0], parts[1]
	caller := auth.FromContext(r.Context())

	switch action {
	case "claim":
		claimed, err := g.messaging.AssignConversation(r.Context(), caller.ID, clientID)
		if err != nil {
			g.sendAPIError(w, err)
			return
		}
		if g.metrics != nil {
			outcome := "lost"
			if claimed {
				outcome = "won"
			}
			g.metrics.ClaimAttempts.WithLabelValues(outcome).Inc()
		}
	case "transfer":
		var req TransferRequest
		if err := decodeJSON(r.Body, &req); err != nil || req.ToAdvisorID == "" {
			g.sendJSONError(w, http.StatusBadRequest, "toAdvisorId is required")
			return
		}
		if err := g.messaging.TransferConversation(r.Context(), caller.ID, req.ToAdvisorID, clientID); err != nil {
			g.sendAPIError(w, err)
			return
		}
	default:
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// handleMessages handles POST /api/messages: send a private message. The
// message is also delivered over any live connections via the notifier.
func (g *Gateway) handleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req SendMessageRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ReceiverID == "" {
		g.sendJSONError(w, http.StatusBadRequest, "receiverId is required")
		return
	}

	caller := auth.FromContext(r.Context())
	msg, err := g.messaging.SendPrivateMessage(r.Context(), caller.ID, req.ReceiverID, req.Content)
	if err != nil {
		g.sendAPIError(w, err)
		return
	}
	if g.metrics != nil {
		g.metrics.MessagesSent.WithLabelValues("private").Inc()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toMessageResponse(msg))
}

// handleMessageRoutes handles GET /api/messages/unread-count and
// GET /api/messages/{otherID} (pair history with the caller, marked read).
func (g *Gateway) handleMessageRoutes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/messages/")
	if rest == "" || strings.Contains(rest, "/") {
		http.NotFound(w, r)
		return
	}
	caller := auth.FromContext(r.Context())

	if rest == "unread-count" {
		count, err := g.messaging.UnreadCount(r.Context(), caller.ID)
		if err != nil {
			g.sendAPIError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int{"unreadCount": count})
		return
	}

	msgs, err := g.messaging.ListPrivateMessages(r.Context(), caller.ID, rest)
	if err != nil {
		g.sendAPIError(w, err)
		return
	}
	if err := g.messaging.MarkConversationRead(r.Context(), caller.ID, rest); err != nil {
		g.logger.Error("marking conversation read", "error", err, "reader", caller.ID, "other", rest)
	}

	response := make([]MessageResponse, 0, len(msgs))
	for _, msg := range msgs {
		response = append(response, toMessageResponse(msg))
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleGroupMessages handles GET and POST /api/group-messages.
func (g *Gateway) handleGroupMessages(w http.ResponseWriter, r *http.Request) {
	caller := auth.FromContext(r.Context())

	switch r.Method {
	case http.MethodGet:
		msgs, err := g.messaging.ListGroupMessages(r.Context(), 0)
		if err != nil {
			g.sendAPIError(w, err)
			return
		}
		response := make([]GroupMessageResponse, 0, len(msgs))
		for _, msg := range msgs {
			response = append(response, toGroupMessageResponse(msg))
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)

	case http.MethodPost:
		var req SendGroupMessageRequest
		if err := decodeJSON(r.Body, &req); err != nil {
			g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		msg, err := g.messaging.SendGroupMessage(r.Context(), caller.ID, req.Content)
		if err != nil {
			g.sendAPIError(w, err)
			return
		}
		if g.metrics != nil {
			g.metrics.MessagesSent.WithLabelValues("group").Inc()
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(toGroupMessageResponse(msg))

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// sendAPIError maps domain errors to HTTP status codes and a JSON error body.
func (g *Gateway) sendAPIError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, messaging.ErrEmptyContent),
		errors.Is(err, messaging.ErrContentTooLong),
		errors.Is(err, messaging.ErrSelfMessage):
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, messaging.ErrClientToClient),
		errors.Is(err, messaging.ErrForbiddenPair),
		errors.Is(err, messaging.ErrNotStaff),
		errors.Is(err, routing.ErrInvalidRole):
		g.sendJSONError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, routing.ErrNotAssigned),
		errors.Is(err, routing.ErrSameAdvisor):
		g.sendJSONError(w, http.StatusConflict, err.Error())
	case errors.Is(err, identity.ErrUnknownPrincipal),
		errors.Is(err, store.ErrNotFound):
		g.sendJSONError(w, http.StatusNotFound, err.Error())
	default:
		g.logger.Error("API request failed", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal error")
	}
}

// sendJSONError writes a JSON error response with the given status code.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func decodeJSON(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func toMessageResponse(msg *store.PrivateMessage) MessageResponse {
	return MessageResponse{
		ID:         msg.ID,
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		Content:    msg.Content,
		IsRead:     msg.IsRead,
		CreatedAt:  msg.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
}

func toGroupMessageResponse(msg *store.GroupMessage) GroupMessageResponse {
	return GroupMessageResponse{
		ID:         msg.ID,
		SenderID:   msg.SenderID,
		SenderRole: msg.SenderRole,
		SenderName: msg.SenderName,
		Content:    msg.Content,
		CreatedAt:  msg.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
}
