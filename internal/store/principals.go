// ABOUTME: SQLite persistence for principal identity rows
// ABOUTME: Read-mostly; rows are created by the bootstrap command or the external identity domain

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CreatePrincipal inserts a principal row.
// Returns ErrDuplicatePrincipal if the ID is already taken.
func (s *SQLiteStore) CreatePrincipal(ctx context.Context, p *Principal) error {
	query := `
		INSERT INTO principals (id, role, name, email, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		p.ID,
		p.Role,
		p.Name,
		p.Email,
		p.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicatePrincipal
		}
		return fmt.Errorf("inserting principal: %w", err)
	}

	s.logger.Debug("created principal", "id", p.ID, "role", p.Role)
	return nil
}

// GetPrincipal retrieves a principal by ID.
// Returns ErrNotFound if no such principal exists.
func (s *SQLiteStore) GetPrincipal(ctx context.Context, id string) (*Principal, error) {
	query := `
		SELECT id, role, name, email, created_at
		FROM principals
		WHERE id = ?
	`

	var p Principal
	var createdAtStr string

	err := s.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.Role, &p.Name, &p.Email, &createdAtStr)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying principal: %w", err)
	}

	p.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	return &p, nil
}
