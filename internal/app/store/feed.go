package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"slashchat/internal/pkg/logx"
)

// eventChannel is the Redis pub/sub channel carrying store change events.
const eventChannel = "slashchat:events"

// EventType discriminates store change events on the feed.
type EventType string

const (
	// EventMessage signals that a new message record was appended.
	EventMessage EventType = "message"

	// EventPresence signals that the presence set changed. Consumers re-read
	// the full set; the event itself carries no payload.
	EventPresence EventType = "presence"
)

// Event is one store change notification.
type Event struct {
	Type    EventType `json:"type"`
	Message *Message  `json:"message,omitempty"`
}

// EventFeed propagates store change events between all server instances, so a
// message appended or a presence change on one node reaches subscribers on
// every node.
type EventFeed interface {
	// Publish sends an event to all subscribers.
	Publish(ctx context.Context, event Event) error

	// Subscribe returns a channel of events. The channel is closed when ctx
	// is cancelled.
	Subscribe(ctx context.Context) (<-chan Event, error)
}

// RedisEventFeed is the Redis pub/sub implementation of EventFeed.
type RedisEventFeed struct {
	rdb *redis.Client
}

// NewRedisEventFeed returns an EventFeed backed by the given client.
func NewRedisEventFeed(rdb *redis.Client) *RedisEventFeed {
	return &RedisEventFeed{rdb: rdb}
}

func (f *RedisEventFeed) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := f.rdb.Publish(ctx, eventChannel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

func (f *RedisEventFeed) Subscribe(ctx context.Context) (<-chan Event, error) {
	pubsub := f.rdb.Subscribe(ctx, eventChannel)

	// Force the subscription to be established before returning, so callers
	// never miss events published right after Subscribe.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to event channel: %w", err)
	}

	out := make(chan Event, 64)

	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					logx.Warn("Dropping malformed event from feed", "error", err)
					continue
				}

				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// NewRedisClient builds a Redis client and verifies connectivity.
func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return rdb, nil
}
