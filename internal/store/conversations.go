// ABOUTME: SQLite conversation persistence including atomic assignment updates
// ABOUTME: Claim and transfer are conditional UPDATEs so concurrent writers get one winner

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// CreateConversation inserts a new conversation row.
// Returns ErrDuplicateConversation if the client already has one.
func (s *SQLiteStore) CreateConversation(ctx context.Context, conv *Conversation) error {
	query := `
		INSERT INTO conversations (id, client_id, assigned_advisor_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		conv.ID,
		conv.ClientID,
		conv.AssignedAdvisorID,
		conv.CreatedAt.UTC().Format(time.RFC3339),
		conv.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateConversation
		}
		return fmt.Errorf("inserting conversation: %w", err)
	}

	s.logger.Debug("created conversation", "id", conv.ID, "client_id", conv.ClientID)
	return nil
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

// GetConversationByClientID retrieves a client's conversation.
// Returns ErrNotFound if the client has no conversation yet.
func (s *SQLiteStore) GetConversationByClientID(ctx context.Context, clientID string) (*Conversation, error) {
	query := `
		SELECT id, client_id, assigned_advisor_id, created_at, updated_at
		FROM conversations
		WHERE client_id = ?
	`

	row := s.db.QueryRowContext(ctx, query, clientID)
	conv, err := scanConversation(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying conversation: %w", err)
	}
	return conv, nil
}

// ListConversationsByAdvisorID returns conversations currently assigned to the advisor.
func (s *SQLiteStore) ListConversationsByAdvisorID(ctx context.Context, advisorID string) ([]*Conversation, error) {
	query := `
		SELECT id, client_id, assigned_advisor_id, created_at, updated_at
		FROM conversations
		WHERE assigned_advisor_id = ?
		ORDER BY updated_at DESC
	`
	return s.queryConversations(ctx, query, advisorID)
}

// ListPendingConversations returns conversations with no assigned advisor.
func (s *SQLiteStore) ListPendingConversations(ctx context.Context) ([]*Conversation, error) {
	query := `
		SELECT id, client_id, assigned_advisor_id, created_at, updated_at
		FROM conversations
		WHERE assigned_advisor_id IS NULL
		ORDER BY updated_at DESC
	`
	return s.queryConversations(ctx, query)
}

// AssignAdvisorIfUnassigned performs a compare-and-set against the stored NULL.
// Two advisors replying to the same pending client near-simultaneously both
// reach this statement; RowsAffected tells each caller whether it won.
func (s *SQLiteStore) AssignAdvisorIfUnassigned(ctx context.Context, clientID, advisorID string) (bool, error) {
	query := `
		UPDATE conversations
		SET assigned_advisor_id = ?, updated_at = ?
		WHERE client_id = ? AND assigned_advisor_id IS NULL
	`

	res, err := s.db.ExecContext(ctx, query, advisorID, time.Now().UTC().Format(time.RFC3339), clientID)
	if err != nil {
		return false, fmt.Errorf("assigning advisor: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading rows affected: %w", err)
	}

	if n > 0 {
		s.logger.Debug("conversation claimed", "client_id", clientID, "advisor_id", advisorID)
	}
	return n > 0, nil
}

// TransferAdvisor reassigns the conversation, conditional on the current assignee.
func (s *SQLiteStore) TransferAdvisor(ctx context.Context, clientID, fromAdvisorID, toAdvisorID string) (bool, error) {
	query := `
		UPDATE conversations
		SET assigned_advisor_id = ?, updated_at = ?
		WHERE client_id = ? AND assigned_advisor_id = ?
	`

	res, err := s.db.ExecContext(ctx, query, toAdvisorID, time.Now().UTC().Format(time.RFC3339), clientID, fromAdvisorID)
	if err != nil {
		return false, fmt.Errorf("transferring conversation: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading rows affected: %w", err)
	}

	if n > 0 {
		s.logger.Debug("conversation transferred",
			"client_id", clientID,
			"from_advisor", fromAdvisorID,
			"to_advisor", toAdvisorID)
	}
	return n > 0, nil
}

// scanner covers both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanConversation(row scanner) (*Conversation, error) {
	var conv Conversation
	var advisorID sql.NullString
	var createdAtStr, updatedAtStr string

	if err := row.Scan(&conv.ID, &conv.ClientID, &advisorID, &createdAtStr, &updatedAtStr); err != nil {
		return nil, err
	}

	if advisorID.Valid {
		conv.AssignedAdvisorID = &advisorID.String
	}

	var err error
	conv.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	conv.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &conv, nil
}

func (s *SQLiteStore) queryConversations(ctx context.Context, query string, args ...any) ([]*Conversation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying conversations: %w", err)
	}
	defer rows.Close()

	var convs []*Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		convs = append(convs, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating conversations: %w", err)
	}

	return convs, nil
}
