package message

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresRepository implements Repository backed by PostgreSQL.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgreSQL message repository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert stores a new message.
func (r *PostgresRepository) Insert(ctx context.Context, m *Message) error {
	query := `
		INSERT INTO messages (id, sender_id, receiver_id, content, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		m.ID, m.SenderID, m.ReceiverID, m.Content, m.Read, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// Conversation returns the messages between two users, oldest first.
func (r *PostgresRepository) Conversation(ctx context.Context, userA, userB string, limit int) ([]Message, error) {
	query := `
		SELECT id, sender_id, receiver_id, content, read, created_at
		FROM (
			SELECT id, sender_id, receiver_id, content, read, created_at
			FROM messages
			WHERE (sender_id = $1 AND receiver_id = $2)
			   OR (sender_id = $2 AND receiver_id = $1)
			ORDER BY created_at DESC
			LIMIT $3
		) recent
		ORDER BY created_at ASC
	`
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, query, userA, userB, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Content,
			&m.Read, &m.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// UnreadBySender returns unread counts for a receiver grouped by sender.
func (r *PostgresRepository) UnreadBySender(ctx context.Context, receiverID string) ([]UnreadCount, error) {
	query := `
		SELECT sender_id, COUNT(*)
		FROM messages
		WHERE receiver_id = $1 AND read = FALSE
		GROUP BY sender_id
		ORDER BY sender_id
	`
	rows, err := r.db.QueryContext(ctx, query, receiverID)
	if err != nil {
		return nil, fmt.Errorf("failed to count unread messages: %w", err)
	}
	defer rows.Close()

	var out []UnreadCount
	for rows.Next() {
		var c UnreadCount
		if err := rows.Scan(&c.SenderID, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan unread count: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// MarkReadFrom marks all messages from a sender to a receiver as read.
func (r *PostgresRepository) MarkReadFrom(ctx context.Context, receiverID, senderID string) error {
	query := `
		UPDATE messages SET read = TRUE
		WHERE receiver_id = $1 AND sender_id = $2 AND read = FALSE
	`
	if _, err := r.db.ExecContext(ctx, query, receiverID, senderID); err != nil {
		return fmt.Errorf("failed to mark messages read: %w", err)
	}
	return nil
}
