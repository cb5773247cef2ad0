package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"slashchat/internal/pkg/randx"
)

// MessageRepository manages the append-only message log.
type MessageRepository interface {
	// Append stores a new message. The ID and the server timestamp are
	// assigned by the store; the returned record carries both.
	Append(ctx context.Context, m *Message) (*Message, error)

	// Recent returns the latest limit messages in chronological order
	// (oldest first).
	Recent(ctx context.Context, limit int) ([]Message, error)
}

// PGMessageRepository is the PostgreSQL implementation of MessageRepository.
type PGMessageRepository struct {
	pool *pgxpool.Pool
}

// NewPGMessageRepository returns a MessageRepository backed by the given pool.
func NewPGMessageRepository(pool *pgxpool.Pool) *PGMessageRepository {
	return &PGMessageRepository{pool: pool}
}

func (r *PGMessageRepository) Append(ctx context.Context, m *Message) (*Message, error) {
	const query = `
		INSERT INTO messages (id, username, text, xp, created_at)
		VALUES ($1, $2, $3, $4, now())
		RETURNING created_at`

	stored := *m
	stored.ID = randx.MessageID()

	err := r.pool.QueryRow(ctx, query,
		stored.ID, stored.Username, stored.Text, stored.XP).Scan(&stored.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}

	return &stored, nil
}

func (r *PGMessageRepository) Recent(ctx context.Context, limit int) ([]Message, error) {
	// Fetched newest-first to use the timestamp index, then reversed so the
	// caller receives chronological order.
	const query = `
		SELECT id, username, text, xp, created_at
		FROM messages
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Username, &m.Text, &m.XP, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed reading message rows: %w", err)
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}
