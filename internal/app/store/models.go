/*
Package store implements the persistence layer for SlashChat.

User and message records live in PostgreSQL; the online-presence set and the
cross-instance event feed live in Redis. The package exposes small repository
interfaces so the session controller and the tests never depend on a concrete
backend.
*/
package store

import (
	"errors"
	"time"
)

// Sentinel errors returned by repositories. Callers match them with errors.Is
// and translate them into user-facing error codes.
var (
	// ErrNotFound indicates that no record exists for the given key.
	ErrNotFound = errors.New("store: record not found")

	// ErrDuplicate indicates a unique-constraint conflict on insert.
	ErrDuplicate = errors.New("store: duplicate record")
)

// User is a registered chat participant. Username doubles as the primary key.
// The invariant level == xp/XPToNextLevel + 1 holds after every XP update.
type User struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	XP           int       `json:"xp"`
	Level        int       `json:"level"`
	JoinDate     time.Time `json:"joinDate"`
	LastSeen     time.Time `json:"lastSeen"`
}

// Message is a single chat message. Records are immutable once created and
// ordered by their server-assigned timestamp.
type Message struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Text      string    `json:"text"`
	XP        int       `json:"xp"`
	Timestamp time.Time `json:"timestamp"`
}

// PresenceEntry marks a username as currently online, with the level snapshot
// taken when the entry was written.
type PresenceEntry struct {
	Username string    `json:"username"`
	LastSeen time.Time `json:"lastSeen"`
	Level    int       `json:"level"`
}
