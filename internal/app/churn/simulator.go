/*
Package churn implements the synthetic presence churn simulator.

On a fixed interval it probabilistically inserts or removes presence entries
drawn from a fixed pool of synthetic names, and occasionally appends messages
under those names, so a quiet room still looks alive. It never touches the
records of real authenticated users.
*/
package churn

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"slashchat/internal/app/store"
	"slashchat/internal/pkg/logx"
	"slashchat/internal/pkg/randx"
)

const (
	// TickInterval is how often the simulator rolls its dice.
	TickInterval = 3 * time.Second

	// joinChance is the probability per tick of a synthetic user appearing.
	joinChance = 0.10

	// messageChance is the probability that a freshly joined synthetic user
	// also posts a message.
	messageChance = 0.30

	// leaveChance is the probability per tick of a synthetic user vanishing.
	leaveChance = 0.05

	// maxSyntheticLevel bounds the random level assigned to synthetic users.
	maxSyntheticLevel = 10

	// maxMessageDelay bounds the random delay before a synthetic message.
	maxMessageDelay = 5 * time.Second

	// xpPerMessage matches the award real messages carry.
	xpPerMessage = 5
)

// names is the fixed pool of synthetic usernames.
var names = []string{
	"ChaosMaster",
	"LightningBolt",
	"ThunderStorm",
	"ElectricEel",
	"PowerSurge",
	"VoltageKing",
	"SparkPlug",
	"EnergyWave",
}

// lines is the fixed pool of synthetic message texts.
var lines = []string{
	"This is chaos! 🔥",
	"I love the XP system! ⚡",
	"SlashChat is amazing! ✨",
	"Level up time! 🎉",
	"The energy here is electric! ⚡",
	"More XP please! 💫",
	"Chaos mode activated! 🌟",
	"This is so fun! 🎆",
	"I'm addicted to this chat! 💥",
	"The leveling system rocks! 🎇",
}

// Simulator drives the synthetic churn. Start launches its loop, Stop halts
// it and waits for in-flight work to finish.
type Simulator struct {
	presence store.PresenceRepository
	messages store.MessageRepository
	feed     store.EventFeed

	// online tracks which synthetic names this instance has put online.
	mu     sync.Mutex
	online map[string]struct{}

	stop   chan struct{}
	wg     sync.WaitGroup
	logger zerolog.Logger
}

// NewSimulator constructs a Simulator over the given repositories and feed.
func NewSimulator(presence store.PresenceRepository, messages store.MessageRepository, feed store.EventFeed) *Simulator {
	simLogger := logx.Logger().With().Str("component", "ChurnSimulator").Logger()

	return &Simulator{
		presence: presence,
		messages: messages,
		feed:     feed,
		online:   make(map[string]struct{}),
		stop:     make(chan struct{}),
		logger:   simLogger,
	}
}

// Start launches the simulator loop.
func (s *Simulator) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.run(ctx)

	s.logger.Info().Dur("interval", TickInterval).Msg("Churn simulator started.")
}

// Stop halts the loop and waits for it to drain.
func (s *Simulator) Stop() {
	close(s.stop)
	s.wg.Wait()

	s.logger.Info().Msg("Churn simulator stopped.")
}

func (s *Simulator) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick performs one round of probabilistic churn.
func (s *Simulator) tick(ctx context.Context) {
	if roll, err := randx.Float64(); err == nil && roll < joinChance {
		s.join(ctx)
	}

	if roll, err := randx.Float64(); err == nil && roll < leaveChance {
		s.leave(ctx)
	}
}

// join puts a synthetic user online and maybe schedules a message from it.
func (s *Simulator) join(ctx context.Context) {
	name, err := randx.Pick(names)
	if err != nil {
		return
	}

	s.mu.Lock()
	_, alreadyOnline := s.online[name]
	s.mu.Unlock()
	if alreadyOnline {
		return
	}

	level, err := randx.IntN(maxSyntheticLevel)
	if err != nil {
		return
	}

	entry := store.PresenceEntry{
		Username: name,
		LastSeen: time.Now(),
		Level:    level + 1,
	}
	if err := s.presence.Set(ctx, entry); err != nil {
		s.logger.Error().Err(err).Str("username", name).Msg("Failed to add synthetic presence entry.")
		return
	}

	s.mu.Lock()
	s.online[name] = struct{}{}
	s.mu.Unlock()

	s.publishPresenceChange(ctx)

	if roll, err := randx.Float64(); err == nil && roll < messageChance {
		delayMillis, err := randx.IntN(int(maxMessageDelay.Milliseconds()))
		if err != nil {
			return
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()

			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-time.After(time.Duration(delayMillis) * time.Millisecond):
				s.post(ctx, name)
			}
		}()
	}
}

// leave takes a random synthetic user offline.
func (s *Simulator) leave(ctx context.Context) {
	s.mu.Lock()
	if len(s.online) == 0 {
		s.mu.Unlock()
		return
	}
	candidates := make([]string, 0, len(s.online))
	for name := range s.online {
		candidates = append(candidates, name)
	}
	s.mu.Unlock()

	name, err := randx.Pick(candidates)
	if err != nil {
		return
	}

	if err := s.presence.Delete(ctx, name); err != nil {
		s.logger.Error().Err(err).Str("username", name).Msg("Failed to remove synthetic presence entry.")
		return
	}

	s.mu.Lock()
	delete(s.online, name)
	s.mu.Unlock()

	s.publishPresenceChange(ctx)
}

// post appends a synthetic message under the given name.
func (s *Simulator) post(ctx context.Context, name string) {
	text, err := randx.Pick(lines)
	if err != nil {
		return
	}

	msg := &store.Message{
		Username: name,
		Text:     text,
		XP:       xpPerMessage,
	}

	stored, err := s.messages.Append(ctx, msg)
	if err != nil {
		s.logger.Error().Err(err).Str("username", name).Msg("Failed to append synthetic message.")
		return
	}

	if err := s.feed.Publish(ctx, store.Event{Type: store.EventMessage, Message: stored}); err != nil {
		s.logger.Error().Err(err).Str("message_id", stored.ID).Msg("Failed to publish synthetic message event.")
	}
}

func (s *Simulator) publishPresenceChange(ctx context.Context) {
	if err := s.feed.Publish(ctx, store.Event{Type: store.EventPresence}); err != nil {
		s.logger.Error().Err(err).Msg("Failed to publish presence change event.")
	}
}
