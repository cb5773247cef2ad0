package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slashchat/internal/app/store"
)

func newTestHub(t *testing.T) (*Hub, *fakePresenceRepo, *fakeFeed, context.CancelFunc) {
	t.Helper()

	presence := newFakePresenceRepo()
	feed := newFakeFeed()
	hub := NewHub(presence, feed)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, hub.Start(ctx))

	t.Cleanup(func() {
		cancel()
		hub.Wait()
	})

	return hub, presence, feed, cancel
}

func recvMessage(t *testing.T, ch <-chan store.Message) store.Message {
	t.Helper()

	select {
	case msg, ok := <-ch:
		require.True(t, ok, "message channel closed unexpectedly")
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message delivery")
		return store.Message{}
	}
}

func recvPresence(t *testing.T, ch <-chan []store.PresenceEntry) []store.PresenceEntry {
	t.Helper()

	select {
	case snapshot, ok := <-ch:
		require.True(t, ok, "presence channel closed unexpectedly")
		return snapshot
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for presence snapshot")
		return nil
	}
}

func TestHub_DeliversMessagesToAllSubscribers(t *testing.T) {
	hub, _, feed, _ := newTestHub(t)
	ctx := context.Background()

	sub1 := hub.Subscribe(ctx)
	sub2 := hub.Subscribe(ctx)

	msg := store.Message{ID: "m1", Username: "alice", Text: "hi", XP: 5, Timestamp: time.Now()}
	require.NoError(t, feed.Publish(ctx, store.Event{Type: store.EventMessage, Message: &msg}))

	got1 := recvMessage(t, sub1.Messages())
	got2 := recvMessage(t, sub2.Messages())

	assert.Equal(t, "m1", got1.ID)
	assert.Equal(t, "m1", got2.ID)
}

func TestHub_PresenceChangeDeliversFullSnapshot(t *testing.T) {
	hub, presence, feed, _ := newTestHub(t)
	ctx := context.Background()

	sub := hub.Subscribe(ctx)

	// Subscribing seeds the current (empty) snapshot.
	seed := recvPresence(t, sub.Presence())
	assert.Empty(t, seed)

	require.NoError(t, presence.Set(ctx, store.PresenceEntry{Username: "alice", Level: 1}))
	require.NoError(t, presence.Set(ctx, store.PresenceEntry{Username: "bob", Level: 3}))
	require.NoError(t, feed.Publish(ctx, store.Event{Type: store.EventPresence}))

	snapshot := recvPresence(t, sub.Presence())
	require.Len(t, snapshot, 2)

	names := []string{snapshot[0].Username, snapshot[1].Username}
	assert.ElementsMatch(t, []string{"alice", "bob"}, names)
}

// seedRacePresenceRepo lets a test inject a presence change exactly while a
// subscriber's seed snapshot is being read.
type seedRacePresenceRepo struct {
	*fakePresenceRepo

	hookMu    sync.Mutex
	afterSeed func()
}

func (r *seedRacePresenceRepo) Snapshot(ctx context.Context) ([]store.PresenceEntry, error) {
	snapshot, err := r.fakePresenceRepo.Snapshot(ctx)

	r.hookMu.Lock()
	hook := r.afterSeed
	r.afterSeed = nil
	r.hookMu.Unlock()
	if hook != nil {
		hook()
	}

	return snapshot, err
}

func TestHub_ChangeDuringSubscribeSeedIsNotLost(t *testing.T) {
	base := newFakePresenceRepo()
	feed := newFakeFeed()
	repo := &seedRacePresenceRepo{fakePresenceRepo: base}
	hub := NewHub(repo, feed)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, hub.Start(ctx))
	t.Cleanup(func() {
		cancel()
		hub.Wait()
	})

	// The change lands after the seed was read but before Subscribe returns.
	repo.hookMu.Lock()
	repo.afterSeed = func() {
		require.NoError(t, base.Set(ctx, store.PresenceEntry{Username: "alice", Level: 1}))
		require.NoError(t, feed.Publish(ctx, store.Event{Type: store.EventPresence}))
	}
	repo.hookMu.Unlock()

	sub := hub.Subscribe(ctx)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case snapshot := <-sub.Presence():
			for _, entry := range snapshot {
				if entry.Username == "alice" {
					return
				}
			}
		case <-deadline:
			t.Fatal("presence change during subscribe seed was never delivered")
		}
	}
}

func TestHub_SubscribeSeedsCurrentPresence(t *testing.T) {
	hub, presence, _, _ := newTestHub(t)
	ctx := context.Background()

	require.NoError(t, presence.Set(ctx, store.PresenceEntry{Username: "alice", Level: 2}))

	sub := hub.Subscribe(ctx)

	snapshot := recvPresence(t, sub.Presence())
	require.Len(t, snapshot, 1)
	assert.Equal(t, "alice", snapshot[0].Username)
}

func TestHub_UnsubscribeClosesChannelsSynchronously(t *testing.T) {
	hub, _, feed, _ := newTestHub(t)
	ctx := context.Background()

	sub := hub.Subscribe(ctx)
	hub.Unsubscribe(sub)

	// A delivery after Unsubscribe must not reach the subscriber.
	msg := store.Message{ID: "m1", Username: "alice", Text: "hi"}
	require.NoError(t, feed.Publish(ctx, store.Event{Type: store.EventMessage, Message: &msg}))

	for range sub.Messages() {
		t.Fatal("received delivery after unsubscribe")
	}

	// Unsubscribing twice must be safe.
	hub.Unsubscribe(sub)
	hub.Unsubscribe(nil)
}

func TestHub_SlowSubscriberDoesNotBlockOthers(t *testing.T) {
	presence := newFakePresenceRepo()
	feed := newFakeFeed()
	hub := NewHub(presence, feed)
	ctx := context.Background()

	slow := hub.Subscribe(ctx)
	fast := hub.Subscribe(ctx)
	_ = slow // never drained

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberMessageBuffer+10; i++ {
			hub.fanOutMessage(store.Message{ID: "m", Username: "alice", Text: "hi"})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("fan-out blocked on an undrained subscriber")
	}

	// The fast subscriber kept receiving up to its buffer while the slow
	// one's overflow was dropped.
	for i := 0; i < subscriberMessageBuffer; i++ {
		recvMessage(t, fast.Messages())
	}
}
