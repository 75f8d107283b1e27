// Package store provides persistent storage for the gateway using SQLite.
//
// # Architecture
//
// The store package uses an interface-driven architecture with specialized
// interfaces:
//
//   - ConversationStore: Conversation rows and their advisor assignment
//   - MessageStore: Private and group message persistence and read state
//   - PrincipalStore: Principal records for the store-backed identity directory
//
// SQLiteStore implements all interfaces in a single struct; Store composes
// them for callers that need the full surface.
//
// # Data Models
//
//   - Conversation: One row per client, holding the assigned advisor (or NULL
//     while pending). The client_id column is UNIQUE.
//   - PrivateMessage: One-to-one message with read state.
//   - GroupMessage: Staff broadcast message with the sender's name and role
//     denormalized at send time.
//   - Principal: Identity record (client, advisor, director).
//
// # Assignment Semantics
//
// Claiming and transferring a conversation are conditional UPDATEs:
//
//	UPDATE conversations SET assigned_advisor_id = ?
//	WHERE client_id = ? AND assigned_advisor_id IS NULL
//
// The affected-row count decides the winner, so concurrent claims resolve in
// the database without any in-process locking. MockStore mirrors the same
// semantics by holding its mutex across the check and the write.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// # Error Handling
//
// Common errors:
//
//   - ErrNotFound: Requested entity does not exist
//   - ErrDuplicateConversation: The client already has a conversation
//   - ErrDuplicatePrincipal: The principal ID is already taken
//
// All methods accept context.Context for cancellation support.
//
// # Testing
//
// Use NewMockStore() for unit tests of higher layers; it implements the full
// Store interface in memory. The SQLite tests run against a temp-dir database.
package store
