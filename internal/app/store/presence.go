package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

// presenceKey is the Redis hash holding the online set, one field per username.
const presenceKey = "slashchat:presence"

// PresenceRepository manages the authoritative set of online users.
// Entries are written when a session starts and deleted when it ends; there is
// no heartbeat or expiry, so an entry outlives a session that never logged out.
type PresenceRepository interface {
	// Set upserts the presence entry for a username.
	Set(ctx context.Context, entry PresenceEntry) error

	// Delete removes the presence entry for a username. Deleting an absent
	// entry is not an error.
	Delete(ctx context.Context, username string) error

	// Snapshot returns the full current presence set, sorted by username.
	Snapshot(ctx context.Context) ([]PresenceEntry, error)
}

// RedisPresenceRepository is the Redis implementation of PresenceRepository.
type RedisPresenceRepository struct {
	rdb *redis.Client
}

// NewRedisPresenceRepository returns a PresenceRepository backed by the given client.
func NewRedisPresenceRepository(rdb *redis.Client) *RedisPresenceRepository {
	return &RedisPresenceRepository{rdb: rdb}
}

func (r *RedisPresenceRepository) Set(ctx context.Context, entry PresenceEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal presence entry: %w", err)
	}

	if err := r.rdb.HSet(ctx, presenceKey, entry.Username, data).Err(); err != nil {
		return fmt.Errorf("failed to write presence entry: %w", err)
	}

	return nil
}

func (r *RedisPresenceRepository) Delete(ctx context.Context, username string) error {
	if err := r.rdb.HDel(ctx, presenceKey, username).Err(); err != nil {
		return fmt.Errorf("failed to delete presence entry: %w", err)
	}

	return nil
}

func (r *RedisPresenceRepository) Snapshot(ctx context.Context) ([]PresenceEntry, error) {
	raw, err := r.rdb.HGetAll(ctx, presenceKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read presence set: %w", err)
	}

	entries := make([]PresenceEntry, 0, len(raw))
	for username, data := range raw {
		var entry PresenceEntry
		if err := json.Unmarshal([]byte(data), &entry); err != nil {
			// A malformed field should not poison the whole snapshot.
			entries = append(entries, PresenceEntry{Username: username})
			continue
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Username < entries[j].Username
	})

	return entries, nil
}
