package handler

import (
	"context"
	"sync"
	"time"

	"slashchat/internal/app/session"
	"slashchat/internal/app/store"
	"slashchat/internal/configs"
	"slashchat/internal/pkg/randx"
)

// --- in-memory fakes backing the handler tests ---

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]store.User

	// addXPErr, when set, makes every AddXP call fail.
	addXPErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]store.User)}
}

func (f *fakeUserRepo) Create(ctx context.Context, u *store.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.users[u.Username]; ok {
		return store.ErrDuplicate
	}
	f.users[u.Username] = *u
	return nil
}

func (f *fakeUserRepo) GetByUsername(ctx context.Context, username string) (*store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := u
	return &copied, nil
}

func (f *fakeUserRepo) UpdateLastSeen(ctx context.Context, username string, t time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[username]
	if !ok {
		return store.ErrNotFound
	}
	u.LastSeen = t
	f.users[username] = u
	return nil
}

func (f *fakeUserRepo) AddXP(ctx context.Context, username string, amount, xpToNextLevel int) (int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.addXPErr != nil {
		return 0, 0, f.addXPErr
	}

	u, ok := f.users[username]
	if !ok {
		return 0, 0, store.ErrNotFound
	}
	u.XP += amount
	u.Level = u.XP/xpToNextLevel + 1
	f.users[username] = u
	return u.XP, u.Level, nil
}

type fakeMessageRepo struct {
	mu       sync.Mutex
	messages []store.Message
}

func (f *fakeMessageRepo) Append(ctx context.Context, m *store.Message) (*store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	stored := *m
	stored.ID = randx.MessageID()
	stored.Timestamp = time.Now()
	f.messages = append(f.messages, stored)
	return &stored, nil
}

func (f *fakeMessageRepo) Recent(ctx context.Context, limit int) ([]store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	start := len(f.messages) - limit
	if start < 0 {
		start = 0
	}
	out := make([]store.Message, len(f.messages[start:]))
	copy(out, f.messages[start:])
	return out, nil
}

type fakePresenceRepo struct {
	mu      sync.Mutex
	entries map[string]store.PresenceEntry
}

func newFakePresenceRepo() *fakePresenceRepo {
	return &fakePresenceRepo{entries: make(map[string]store.PresenceEntry)}
}

func (f *fakePresenceRepo) Set(ctx context.Context, entry store.PresenceEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[entry.Username] = entry
	return nil
}

func (f *fakePresenceRepo) Delete(ctx context.Context, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, username)
	return nil
}

func (f *fakePresenceRepo) Snapshot(ctx context.Context) ([]store.PresenceEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]store.PresenceEntry, 0, len(f.entries))
	for _, entry := range f.entries {
		out = append(out, entry)
	}
	return out, nil
}

func (f *fakePresenceRepo) has(username string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.entries[username]
	return ok
}

// fakeFeed records published events; nothing consumes them in these tests.
type fakeFeed struct {
	mu        sync.Mutex
	published []store.Event
}

func (f *fakeFeed) Publish(ctx context.Context, event store.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, event)
	return nil
}

func (f *fakeFeed) Subscribe(ctx context.Context) (<-chan store.Event, error) {
	ch := make(chan store.Event)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

const testJWTSecret = "test-secret"

// newTestDeps wires an AppDeps over a real controller backed by fakes.
func newTestDeps() (*AppDeps, *fakeUserRepo, *fakePresenceRepo) {
	users := newFakeUserRepo()
	messages := &fakeMessageRepo{}
	presence := newFakePresenceRepo()
	feed := &fakeFeed{}
	hub := session.NewHub(presence, feed)
	ctrl := session.NewController(users, messages, presence, feed, hub, testJWTSecret)

	deps := &AppDeps{
		Controller: ctrl,
		Config: &configs.AppConfig{
			Environment: "development",
			Port:        8080,
			JWTSecret:   testJWTSecret,
		},
	}

	return deps, users, presence
}
