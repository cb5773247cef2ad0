/*
Package session contains the session, presence, and XP state machine for SlashChat.

It defines the Session type (the server-side record of one authenticated
client), the Controller that drives sign-up, login, logout, restore, message
sending, and XP awards, and the Hub that fans store change events out to the
live subscriptions of every active session.
*/
package session

import (
	"sync"

	"slashchat/internal/app/store"
)

// Session is the explicit handle for one authenticated client. It is created
// by Login, SignUp, or RestoreSession and passed by the caller to every
// session-scoped operation; there is no ambient current-session global.
type Session struct {
	mu sync.Mutex

	// user is the denormalized copy of the User record for this session.
	// AwardXP keeps xp and level in step with the remote record.
	user store.User

	// token is the signed session token handed to the client for restore.
	token string

	// sub carries the two live subscriptions. Nil for detached sessions
	// (e.g. a session reconstructed from a token just to log out).
	sub *Subscriber

	closed bool
}

// User returns a copy of the session's cached user record.
func (s *Session) User() store.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// Token returns the signed session token for this session.
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Messages returns the live feed of newly appended messages, in server order.
// The channel is closed when the session ends. Nil for detached sessions.
func (s *Session) Messages() <-chan store.Message {
	if s.sub == nil {
		return nil
	}
	return s.sub.Messages()
}

// Presence returns the live feed of full presence snapshots, one per change.
// The channel is closed when the session ends. Nil for detached sessions.
func (s *Session) Presence() <-chan []store.PresenceEntry {
	if s.sub == nil {
		return nil
	}
	return s.sub.Presence()
}

// applyXP updates the cached xp/level snapshot after a persisted award.
func (s *Session) applyXP(xp, level int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user.XP = xp
	s.user.Level = level
}

// markClosed flips the session to closed. Returns false if it already was,
// which makes Logout idempotent.
func (s *Session) markClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	return true
}

// isClosed reports whether the session has ended.
func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
