// ABOUTME: SQLite persistence for private and group messages
// ABOUTME: Pair history reads ascending by creation time, unread tracking via is_read flag

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SavePrivateMessage appends a private message.
func (s *SQLiteStore) SavePrivateMessage(ctx context.Context, msg *PrivateMessage) error {
	query := `
		INSERT INTO private_messages (id, sender_id, receiver_id, content, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		msg.ID,
		msg.SenderID,
		msg.ReceiverID,
		msg.Content,
		msg.IsRead,
		msg.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting private message: %w", err)
	}

	s.logger.Debug("saved private message", "id", msg.ID, "sender", msg.SenderID, "receiver", msg.ReceiverID)
	return nil
}

// ListMessagesByPair returns the conversation history between two participants,
// both directions, oldest first.
func (s *SQLiteStore) ListMessagesByPair(ctx context.Context, idA, idB string) ([]*PrivateMessage, error) {
	query := `
		SELECT id, sender_id, receiver_id, content, is_read, created_at
		FROM private_messages
		WHERE (sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)
		ORDER BY created_at ASC
	`
	return s.queryPrivateMessages(ctx, query, idA, idB, idB, idA)
}

// ListMessagesByParticipant returns every message the participant sent or
// received, oldest first. Used by the advisor conversation aggregation.
func (s *SQLiteStore) ListMessagesByParticipant(ctx context.Context, id string) ([]*PrivateMessage, error) {
	query := `
		SELECT id, sender_id, receiver_id, content, is_read, created_at
		FROM private_messages
		WHERE sender_id = ? OR receiver_id = ?
		ORDER BY created_at ASC
	`
	return s.queryPrivateMessages(ctx, query, id, id)
}

// MarkMessageRead flips the read flag on a single message.
// Returns ErrNotFound if no such message exists.
func (s *SQLiteStore) MarkMessageRead(ctx context.Context, messageID string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE private_messages SET is_read = 1 WHERE id = ?`, messageID)
	if err != nil {
		return fmt.Errorf("marking message read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkPairRead marks all unread messages from senderID to receiverID as read.
func (s *SQLiteStore) MarkPairRead(ctx context.Context, receiverID, senderID string) error {
	query := `
		UPDATE private_messages
		SET is_read = 1
		WHERE receiver_id = ? AND sender_id = ? AND is_read = 0
	`
	if _, err := s.db.ExecContext(ctx, query, receiverID, senderID); err != nil {
		return fmt.Errorf("marking pair read: %w", err)
	}
	return nil
}

// CountUnread returns how many unread messages are addressed to the receiver.
func (s *SQLiteStore) CountUnread(ctx context.Context, receiverID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM private_messages WHERE receiver_id = ? AND is_read = 0`
	if err := s.db.QueryRowContext(ctx, query, receiverID).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting unread: %w", err)
	}
	return count, nil
}

// SaveGroupMessage appends a group message.
func (s *SQLiteStore) SaveGroupMessage(ctx context.Context, msg *GroupMessage) error {
	query := `
		INSERT INTO group_messages (id, sender_id, sender_role, sender_name, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		msg.ID,
		msg.SenderID,
		msg.SenderRole,
		msg.SenderName,
		msg.Content,
		msg.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting group message: %w", err)
	}

	s.logger.Debug("saved group message", "id", msg.ID, "sender", msg.SenderID)
	return nil
}

// ListGroupMessages returns group messages oldest first. A limit of 0 means no limit.
func (s *SQLiteStore) ListGroupMessages(ctx context.Context, limit int) ([]*GroupMessage, error) {
	query := `
		SELECT id, sender_id, sender_role, sender_name, content, created_at
		FROM group_messages
		ORDER BY created_at ASC
	`
	args := []any{}
	if limit > 0 {
		// Take the most recent N, then present them oldest first
		query = `
			SELECT id, sender_id, sender_role, sender_name, content, created_at
			FROM (
				SELECT id, sender_id, sender_role, sender_name, content, created_at
				FROM group_messages
				ORDER BY created_at DESC
				LIMIT ?
			)
			ORDER BY created_at ASC
		`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying group messages: %w", err)
	}
	defer rows.Close()

	var msgs []*GroupMessage
	for rows.Next() {
		var msg GroupMessage
		var createdAtStr string
		if err := rows.Scan(&msg.ID, &msg.SenderID, &msg.SenderRole, &msg.SenderName, &msg.Content, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scanning group message: %w", err)
		}
		msg.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		msgs = append(msgs, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating group messages: %w", err)
	}

	return msgs, nil
}

func (s *SQLiteStore) queryPrivateMessages(ctx context.Context, query string, args ...any) ([]*PrivateMessage, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying private messages: %w", err)
	}
	defer rows.Close()

	var msgs []*PrivateMessage
	for rows.Next() {
		msg, err := scanPrivateMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning private message: %w", err)
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating private messages: %w", err)
	}

	return msgs, nil
}

func scanPrivateMessage(rows *sql.Rows) (*PrivateMessage, error) {
	var msg PrivateMessage
	var createdAtStr string
	if err := rows.Scan(&msg.ID, &msg.SenderID, &msg.ReceiverID, &msg.Content, &msg.IsRead, &createdAtStr); err != nil {
		return nil, err
	}
	var err error
	msg.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &msg, nil
}
