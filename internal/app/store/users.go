package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepository manages persistent user records.
type UserRepository interface {
	// Create inserts a new user. Returns ErrDuplicate if the username exists.
	Create(ctx context.Context, u *User) error

	// GetByUsername fetches a user by exact username. Returns ErrNotFound if absent.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// UpdateLastSeen sets the user's last-seen timestamp.
	UpdateLastSeen(ctx context.Context, username string, t time.Time) error

	// AddXP atomically increments the user's XP and recomputes the level in
	// one statement, so concurrent awards from separate sessions never lose
	// an increment. Returns the resulting xp and level.
	AddXP(ctx context.Context, username string, amount, xpToNextLevel int) (xp int, level int, err error)
}

// PGUserRepository is the PostgreSQL implementation of UserRepository.
type PGUserRepository struct {
	pool *pgxpool.Pool
}

// NewPGUserRepository returns a UserRepository backed by the given pool.
func NewPGUserRepository(pool *pgxpool.Pool) *PGUserRepository {
	return &PGUserRepository{pool: pool}
}

func (r *PGUserRepository) Create(ctx context.Context, u *User) error {
	const query = `
		INSERT INTO users (username, password_hash, xp, level, join_date, last_seen)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, query,
		u.Username, u.PasswordHash, u.XP, u.Level, u.JoinDate, u.LastSeen)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return nil
}

func (r *PGUserRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	const query = `
		SELECT username, password_hash, xp, level, join_date, last_seen
		FROM users
		WHERE username = $1`

	u := &User{}
	err := r.pool.QueryRow(ctx, query, username).Scan(
		&u.Username, &u.PasswordHash, &u.XP, &u.Level, &u.JoinDate, &u.LastSeen)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}

	return u, nil
}

func (r *PGUserRepository) UpdateLastSeen(ctx context.Context, username string, t time.Time) error {
	const query = `UPDATE users SET last_seen = $2 WHERE username = $1`

	tag, err := r.pool.Exec(ctx, query, username, t)
	if err != nil {
		return fmt.Errorf("failed to update last_seen: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *PGUserRepository) AddXP(ctx context.Context, username string, amount, xpToNextLevel int) (int, int, error) {
	// xp and level move together in a single statement. Integer division in
	// Postgres matches the floor(xp / xpToNextLevel) + 1 level rule for
	// non-negative xp.
	const query = `
		UPDATE users
		SET xp = xp + $2, level = (xp + $2) / $3 + 1
		WHERE username = $1
		RETURNING xp, level`

	var xp, level int
	err := r.pool.QueryRow(ctx, query, username, amount, xpToNextLevel).Scan(&xp, &level)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, ErrNotFound
		}
		return 0, 0, fmt.Errorf("failed to award xp: %w", err)
	}

	return xp, level, nil
}
