/*
Package session contains the session, presence, and XP state machine for SlashChat.

This file defines the Hub, which consumes the store's event feed and fans
changes out to every subscribed session: new messages are delivered as they
arrive, presence changes trigger a re-read of the full online set which is
delivered as a replacement snapshot.
*/
package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"slashchat/internal/app/store"
	"slashchat/internal/pkg/logx"
)

const (
	// subscriberMessageBuffer is the per-subscriber buffer for message delivery.
	subscriberMessageBuffer = 64

	// subscriberPresenceBuffer is the per-subscriber buffer for presence snapshots.
	subscriberPresenceBuffer = 8

	// snapshotTimeout bounds the presence re-read triggered by a change event.
	snapshotTimeout = 5 * time.Second
)

// Subscriber holds the two live delivery channels for one session.
type Subscriber struct {
	messages chan store.Message
	presence chan []store.PresenceEntry
}

// Messages returns the channel of newly appended messages.
func (s *Subscriber) Messages() <-chan store.Message {
	return s.messages
}

// Presence returns the channel of full presence snapshots.
func (s *Subscriber) Presence() <-chan []store.PresenceEntry {
	return s.presence
}

// Hub fans store change events out to subscribers.
type Hub struct {
	presence store.PresenceRepository
	feed     store.EventFeed

	// mu protects the subs set. Fan-out holds the read lock while sending,
	// so Unsubscribe can never close a channel mid-send.
	mu   sync.RWMutex
	subs map[*Subscriber]struct{}

	wg     sync.WaitGroup
	logger zerolog.Logger
}

// NewHub constructs a Hub over the given presence repository and event feed.
func NewHub(presence store.PresenceRepository, feed store.EventFeed) *Hub {
	hubLogger := logx.Logger().With().Str("component", "Hub").Logger()

	return &Hub{
		presence: presence,
		feed:     feed,
		subs:     make(map[*Subscriber]struct{}),
		logger:   hubLogger,
	}
}

// Start subscribes to the event feed and launches the fan-out loop. The loop
// runs until ctx is cancelled; Wait blocks until it has drained.
func (h *Hub) Start(ctx context.Context) error {
	events, err := h.feed.Subscribe(ctx)
	if err != nil {
		return err
	}

	h.wg.Add(1)
	go h.run(ctx, events)

	return nil
}

// Wait blocks until the fan-out loop has stopped.
func (h *Hub) Wait() {
	h.wg.Wait()
}

func (h *Hub) run(ctx context.Context, events <-chan store.Event) {
	defer h.wg.Done()

	h.logger.Info().Msg("Fan-out loop started.")

	for event := range events {
		switch event.Type {
		case store.EventMessage:
			if event.Message == nil {
				h.logger.Warn().Msg("Message event without payload. Skipping.")
				continue
			}
			h.fanOutMessage(*event.Message)

		case store.EventPresence:
			snapCtx, cancel := context.WithTimeout(ctx, snapshotTimeout)
			snapshot, err := h.presence.Snapshot(snapCtx)
			cancel()
			if err != nil {
				h.logger.Error().Err(err).Msg("Failed to read presence snapshot after change event.")
				continue
			}
			h.fanOutPresence(snapshot)

		default:
			h.logger.Warn().Str("event_type", string(event.Type)).Msg("Unknown event type on feed.")
		}
	}

	h.logger.Info().Msg("Fan-out loop stopped.")
}

// Subscribe registers a new subscriber and seeds it with the current presence
// snapshot, mirroring the initial delivery of a fresh live query.
func (h *Hub) Subscribe(ctx context.Context) *Subscriber {
	sub := &Subscriber{
		messages: make(chan store.Message, subscriberMessageBuffer),
		presence: make(chan []store.PresenceEntry, subscriberPresenceBuffer),
	}

	// Registration and the seed read happen under the same lock that fan-out
	// takes, so a presence change can never fall between them: it either shows
	// up in the seed or is fanned out to the already-registered subscriber.
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	if snapshot, err := h.presence.Snapshot(ctx); err != nil {
		h.logger.Error().Err(err).Msg("Failed to seed subscriber with presence snapshot.")
	} else {
		sub.presence <- snapshot
	}
	total := len(h.subs)
	h.mu.Unlock()

	h.logger.Info().Int("total_subscribers", total).Msg("Subscriber joined.")

	return sub
}

// Unsubscribe removes a subscriber and closes its channels. It is synchronous:
// once it returns, no further delivery can reach the subscriber. Safe to call
// twice.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[sub]; !ok {
		return
	}

	delete(h.subs, sub)
	close(sub.messages)
	close(sub.presence)

	h.logger.Info().Int("total_subscribers", len(h.subs)).Msg("Subscriber left.")
}

func (h *Hub) fanOutMessage(msg store.Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs {
		select {
		case sub.messages <- msg:
		default:
			h.logger.Warn().Str("message_id", msg.ID).Msg("Subscriber message buffer full. Dropping delivery.")
		}
	}
}

func (h *Hub) fanOutPresence(snapshot []store.PresenceEntry) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs {
		select {
		case sub.presence <- snapshot:
		default:
			// Snapshots are full replacements, so the stalest queued one can
			// make room for the newest.
			select {
			case <-sub.presence:
			default:
			}
			select {
			case sub.presence <- snapshot:
			default:
			}
		}
	}
}
