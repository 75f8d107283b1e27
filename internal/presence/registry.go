// ABOUTME: Runtime registry mapping principal IDs to their live connection
// ABOUTME: One entry per user, last connect wins; reads come from any goroutine

package presence

import (
	"log/slog"
	"sync"
)

// Sender is the write side of a live connection. The ws package's connection
// wrapper implements it; tests use channel-backed fakes.
type Sender interface {
	// ID uniquely identifies the underlying connection, not the user.
	ID() string
	// Send delivers an already-encoded event frame, best effort.
	Send(event string, payload any)
}

// Entry is one registered connection.
type Entry struct {
	UserID string
	Role   string
	Conn   Sender
}

// Registry tracks which principals currently have a live connection. A later
// registration for the same user replaces the earlier entry; the displaced
// connection stays open but no longer receives targeted delivery.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry // userID -> current connection
	logger  *slog.Logger
}

// NewRegistry creates an empty registry. Pass nil logger for default.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		entries: make(map[string]Entry),
		logger:  logger.With("component", "presence"),
	}
}

// Register records conn as the user's live connection, replacing any earlier
// one. Returns true if an earlier connection was displaced.
func (r *Registry) Register(userID, role string, conn Sender) bool {
	r.mu.Lock()
	prev, had := r.entries[userID]
	r.entries[userID] = Entry{UserID: userID, Role: role, Conn: conn}
	total := len(r.entries)
	r.mu.Unlock()

	if had {
		r.logger.Info("connection replaced",
			"user_id", userID,
			"old_conn", prev.Conn.ID(),
			"new_conn", conn.ID(),
			"total_online", total)
	} else {
		r.logger.Info("user online",
			"user_id", userID,
			"role", role,
			"conn", conn.ID(),
			"total_online", total)
	}
	return had
}

// Unregister removes the user's entry only if it still points at connID.
// A stale disconnect from a displaced connection must not knock the user's
// current connection out of the registry. Returns true if an entry was removed.
func (r *Registry) Unregister(userID, connID string) bool {
	r.mu.Lock()
	entry, ok := r.entries[userID]
	if !ok || entry.Conn.ID() != connID {
		r.mu.Unlock()
		return false
	}
	delete(r.entries, userID)
	total := len(r.entries)
	r.mu.Unlock()

	r.logger.Info("user offline", "user_id", userID, "conn", connID, "total_online", total)
	return true
}

// Lookup returns the user's current connection entry.
func (r *Registry) Lookup(userID string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[userID]
	return entry, ok
}

// Online reports whether the user currently has a registered connection.
func (r *Registry) Online(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[userID]
	return ok
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Entries returns a snapshot of all registered connections.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, 0, len(r.entries))
	for _, entry := range r.entries {
		out = append(out, entry)
	}
	return out
}

// Broadcast sends an event to every registered connection except the user
// named by excludeUserID (pass "" to reach everyone).
func (r *Registry) Broadcast(event string, payload any, excludeUserID string) {
	for _, entry := range r.Entries() {
		if excludeUserID != "" && entry.UserID == excludeUserID {
			continue
		}
		entry.Conn.Send(event, payload)
	}
}
