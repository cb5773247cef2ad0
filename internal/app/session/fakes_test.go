package session

import (
	"context"
	"sync"
	"time"

	"slashchat/internal/app/store"
	"slashchat/internal/pkg/randx"
)

// --- in-memory fakes shared by the controller and hub tests ---

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

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{}
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

func (f *fakeMessageRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

type fakePresenceRepo struct {
	mu      sync.Mutex
	entries map[string]store.PresenceEntry

	// setErr, when set, makes every Set call fail.
	setErr error
}

func newFakePresenceRepo() *fakePresenceRepo {
	return &fakePresenceRepo{entries: make(map[string]store.PresenceEntry)}
}

func (f *fakePresenceRepo) Set(ctx context.Context, entry store.PresenceEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
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

// fakeFeed delivers published events to every subscriber synchronously.
type fakeFeed struct {
	mu        sync.Mutex
	published []store.Event
	subs      []chan store.Event
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{}
}

func (f *fakeFeed) Publish(ctx context.Context, event store.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.published = append(f.published, event)
	for _, sub := range f.subs {
		select {
		case sub <- event:
		default:
		}
	}
	return nil
}

func (f *fakeFeed) Subscribe(ctx context.Context) (<-chan store.Event, error) {
	ch := make(chan store.Event, 64)

	f.mu.Lock()
	f.subs = append(f.subs, ch)
	f.mu.Unlock()

	go func() {
		<-ctx.Done()

		f.mu.Lock()
		for i, sub := range f.subs {
			if sub == ch {
				f.subs = append(f.subs[:i], f.subs[i+1:]...)
				break
			}
		}
		f.mu.Unlock()

		close(ch)
	}()

	return ch, nil
}

func (f *fakeFeed) eventCount(eventType store.EventType) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	count := 0
	for _, event := range f.published {
		if event.Type == eventType {
			count++
		}
	}
	return count
}

// newTestController wires a controller over fresh fakes.
func newTestController() (*Controller, *fakeUserRepo, *fakeMessageRepo, *fakePresenceRepo, *fakeFeed) {
	users := newFakeUserRepo()
	messages := newFakeMessageRepo()
	presence := newFakePresenceRepo()
	feed := newFakeFeed()
	hub := NewHub(presence, feed)

	ctrl := NewController(users, messages, presence, feed, hub, "test-secret")

	return ctrl, users, messages, presence, feed
}
