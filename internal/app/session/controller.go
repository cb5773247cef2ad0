/*
Package session contains the session, presence, and XP state machine for SlashChat.

This file defines the Controller, which owns the lifecycle of authenticated
sessions and keeps their derived state (XP, level, presence) consistent with
the backing store.
*/
package session

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"slashchat/internal/app/store"
	"slashchat/internal/pkg/auth/jwt"
	"slashchat/internal/pkg/errs"
	"slashchat/internal/pkg/logx"
)

const (
	// XPPerMessage is the fixed experience award per sent message.
	XPPerMessage = 5

	// XPToNextLevel is the XP span of one level: level = xp/XPToNextLevel + 1.
	XPToNextLevel = 100

	// MinUsernameLength is the minimum accepted username length at sign-up.
	MinUsernameLength = 3

	// MaxMessageLength is the maximum message length in runes after trimming.
	MaxMessageLength = 500

	// RecentMessageLimit is the backlog size delivered to a fresh session.
	RecentMessageLimit = 50
)

// XPAward reports the outcome of one experience award.
type XPAward struct {
	XP        int  `json:"xp"`
	Level     int  `json:"level"`
	LeveledUp bool `json:"leveledUp"`
}

// Controller manages the lifecycle of authenticated sessions.
type Controller struct {
	users    store.UserRepository
	messages store.MessageRepository
	presence store.PresenceRepository
	feed     store.EventFeed
	hub      *Hub

	jwtSecret string
	logger    zerolog.Logger
}

// NewController constructs a Controller over the given repositories and hub.
func NewController(
	users store.UserRepository,
	messages store.MessageRepository,
	presence store.PresenceRepository,
	feed store.EventFeed,
	hub *Hub,
	jwtSecret string,
) *Controller {
	controllerLogger := logx.Logger().With().Str("component", "Controller").Logger()

	return &Controller{
		users:     users,
		messages:  messages,
		presence:  presence,
		feed:      feed,
		hub:       hub,
		jwtSecret: jwtSecret,
		logger:    controllerLogger,
	}
}

// SignUp creates a new user and opens a session for it.
// The new user starts at xp=0, level=1 with both timestamps set to now.
func (c *Controller) SignUp(ctx context.Context, username, password, confirmPassword string) (*Session, *errs.CustomError) {
	if password != confirmPassword {
		return nil, errs.NewError(errs.ErrPasswordMismatch)
	}

	if utf8.RuneCountInString(username) < MinUsernameLength {
		return nil, errs.NewError(errs.ErrUsernameTooShort)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errs.NewError(errs.ErrUnknown, err)
	}

	now := time.Now()
	u := &store.User{
		Username:     username,
		PasswordHash: string(hashedPassword),
		XP:           0,
		Level:        1,
		JoinDate:     now,
		LastSeen:     now,
	}

	if err := c.users.Create(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			c.logger.Warn().Str("username", username).Msg("Sign-up conflict: username already exists.")
			return nil, errs.NewError(errs.ErrUsernameTaken)
		}
		return nil, errs.NewError(errs.ErrRemoteStore, err)
	}

	c.logger.Info().Str("username", username).Msg("New user created.")

	return c.openSession(ctx, u)
}

// Login verifies credentials and opens a session.
func (c *Controller) Login(ctx context.Context, username, password string) (*Session, *errs.CustomError) {
	u, err := c.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errs.NewError(errs.ErrUserNotFound)
		}
		return nil, errs.NewError(errs.ErrRemoteStore, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		c.logger.Warn().Str("username", username).Msg("Login: password mismatch.")
		return nil, errs.NewError(errs.ErrInvalidCredentials)
	}

	return c.openSession(ctx, u)
}

// RestoreSession re-hydrates a session from a previously issued token without
// re-checking the password. The remote user record wins over the token's
// snapshot; if the record no longer exists the token is discarded and no
// session results (nil, nil).
func (c *Controller) RestoreSession(ctx context.Context, token string) (*Session, *errs.CustomError) {
	claims, err := jwt.ParseToken(token, c.jwtSecret)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Session restore with invalid token. Discarding.")
		return nil, nil
	}

	u, err := c.users.GetByUsername(ctx, claims.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.logger.Info().Str("username", claims.Username).Msg("Session restore for deleted user. Discarding.")
			return nil, nil
		}
		return nil, errs.NewError(errs.ErrRemoteStore, err)
	}

	return c.openSession(ctx, u)
}

// openSession runs the shared post-authentication steps: stamp last-seen,
// mint the session token, mirror the session into the presence set, and
// attach the live subscriptions.
func (c *Controller) openSession(ctx context.Context, u *store.User) (*Session, *errs.CustomError) {
	now := time.Now()
	u.LastSeen = now

	if err := c.users.UpdateLastSeen(ctx, u.Username, now); err != nil {
		c.logger.Error().Err(err).Str("username", u.Username).Msg("Failed to update last_seen.")
	}

	// The token mints before the presence entry is written, so no error exit
	// below this point can leave a user listed online without a session.
	claims := &jwt.SessionClaims{
		Username: u.Username,
		XP:       u.XP,
		Level:    u.Level,
	}
	token, err := jwt.GenerateToken(claims, c.jwtSecret, jwt.SessionExpiration)
	if err != nil {
		return nil, errs.NewError(errs.ErrUnknown, err)
	}

	entry := store.PresenceEntry{
		Username: u.Username,
		LastSeen: now,
		Level:    u.Level,
	}
	if err := c.presence.Set(ctx, entry); err != nil {
		c.logger.Error().Err(err).Str("username", u.Username).Msg("Failed to write presence entry.")
	} else {
		c.publishPresenceChange(ctx)
	}

	sess := &Session{
		user:  *u,
		token: token,
		sub:   c.hub.Subscribe(ctx),
	}

	c.logger.Info().
		Str("username", u.Username).
		Int("level", u.Level).
		Msg("Session opened.")

	return sess, nil
}

// Logout ends a session: the presence entry is removed and both live
// subscriptions are cancelled before Logout returns, so no delivery fires
// against a torn-down session. Calling it again, or with nil, is a no-op.
func (c *Controller) Logout(ctx context.Context, sess *Session) {
	if sess == nil || !sess.markClosed() {
		return
	}

	username := sess.User().Username

	if err := c.presence.Delete(ctx, username); err != nil {
		c.logger.Error().Err(err).Str("username", username).Msg("Failed to delete presence entry.")
	} else {
		c.publishPresenceChange(ctx)
	}

	c.hub.Unsubscribe(sess.sub)

	c.logger.Info().Str("username", username).Msg("Session closed.")
}

// LogoutByUsername removes a user's presence entry without a live session
// object. This is the HTTP logout path, where only the token identifies the
// caller; any live feeds the user holds are torn down by their own transport.
func (c *Controller) LogoutByUsername(ctx context.Context, username string) {
	if err := c.presence.Delete(ctx, username); err != nil {
		c.logger.Error().Err(err).Str("username", username).Msg("Failed to delete presence entry.")
		return
	}

	c.publishPresenceChange(ctx)

	c.logger.Info().Str("username", username).Msg("Presence cleared via token logout.")
}

// Disconnect cancels a session's live subscriptions without removing its
// presence entry, mirroring a client that vanished without logging out: the
// user stays listed as online indefinitely.
func (c *Controller) Disconnect(sess *Session) {
	if sess == nil || !sess.markClosed() {
		return
	}

	c.hub.Unsubscribe(sess.sub)

	c.logger.Info().Str("username", sess.User().Username).Msg("Session detached without logout.")
}

// SendMessage appends a message under the session's user and awards the fixed
// per-message XP. The text must be non-empty after trimming and at most
// MaxMessageLength runes. The returned XPAward tells the caller whether the
// award crossed a level boundary. When the award itself fails the persisted
// message is returned together with the error, never a zero-valued award.
func (c *Controller) SendMessage(ctx context.Context, sess *Session, text string) (*store.Message, XPAward, *errs.CustomError) {
	if sess == nil || sess.isClosed() {
		return nil, XPAward{}, errs.NewError(errs.ErrNoActiveSession)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, XPAward{}, errs.NewError(errs.ErrEmptyMessage)
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return nil, XPAward{}, errs.NewError(errs.ErrMessageTooLong)
	}

	msg := &store.Message{
		Username: sess.User().Username,
		Text:     text,
		XP:       XPPerMessage,
	}

	stored, err := c.messages.Append(ctx, msg)
	if err != nil {
		return nil, XPAward{}, errs.NewError(errs.ErrRemoteStore, err)
	}

	if err := c.feed.Publish(ctx, store.Event{Type: store.EventMessage, Message: stored}); err != nil {
		c.logger.Error().Err(err).Str("message_id", stored.ID).Msg("Failed to publish message event.")
	}

	award, awardErr := c.AwardXP(ctx, sess, XPPerMessage)
	if awardErr != nil {
		c.logger.Error().Err(awardErr).Str("message_id", stored.ID).Str("username", stored.Username).Msg("Failed to award message XP.")
		return stored, XPAward{}, awardErr
	}

	return stored, award, nil
}

// AwardXP adds amount to the session user's XP and recomputes the level. The
// increment happens in a single store operation, so two sessions racing on
// the same user both land their awards. The session's cached snapshot is
// refreshed from the persisted result.
func (c *Controller) AwardXP(ctx context.Context, sess *Session, amount int) (XPAward, *errs.CustomError) {
	if sess == nil || sess.isClosed() {
		return XPAward{}, errs.NewError(errs.ErrNoActiveSession)
	}

	oldLevel := sess.User().Level

	xp, level, err := c.users.AddXP(ctx, sess.User().Username, amount, XPToNextLevel)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return XPAward{}, errs.NewError(errs.ErrUserNotFound)
		}
		return XPAward{}, errs.NewError(errs.ErrRemoteStore, err)
	}

	sess.applyXP(xp, level)

	award := XPAward{
		XP:        xp,
		Level:     level,
		LeveledUp: level > oldLevel,
	}

	if award.LeveledUp {
		c.logger.Info().
			Str("username", sess.User().Username).
			Int("level", level).
			Msg("User leveled up.")
	}

	return award, nil
}

// RecentMessages returns the latest backlog in chronological order.
func (c *Controller) RecentMessages(ctx context.Context) ([]store.Message, *errs.CustomError) {
	messages, err := c.messages.Recent(ctx, RecentMessageLimit)
	if err != nil {
		return nil, errs.NewError(errs.ErrRemoteStore, err)
	}
	return messages, nil
}

// publishPresenceChange nudges every hub to re-read the presence set.
func (c *Controller) publishPresenceChange(ctx context.Context) {
	if err := c.feed.Publish(ctx, store.Event{Type: store.EventPresence}); err != nil {
		c.logger.Error().Err(err).Msg("Failed to publish presence change event.")
	}
}
