package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"echelon/pkg/riskscore"
)

// ProfileCache keeps scored profiles for recent runs in Redis so repeated
// reads of a finished run skip Postgres. Scores are immutable per run, so a
// plain TTL is enough.
type ProfileCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewProfileCache connects to Redis. addr empty means caching is disabled
// (nil cache; all methods are nil-safe).
func NewProfileCache(addr string, ttl time.Duration) (*ProfileCache, error) {
	if addr == "" {
		return nil, nil
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return &ProfileCache{client: client, ttl: ttl}, nil
}

func (c *ProfileCache) key(runID string) string {
	return fmt.Sprintf("echelon:profiles:%s", runID)
}

// Put caches a run's profiles as JSON.
func (c *ProfileCache) Put(ctx context.Context, runID string, profiles map[string]*riskscore.UserRiskProfile) error {
	if c == nil {
		return nil
	}
	data, err := json.Marshal(profiles)
	if err != nil {
		return fmt.Errorf("failed to marshal profiles: %w", err)
	}
	if err := c.client.Set(ctx, c.key(runID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache profiles: %w", err)
	}
	return nil
}

// Get returns cached profiles, or (nil, nil) on a miss.
func (c *ProfileCache) Get(ctx context.Context, runID string) (map[string]*riskscore.UserRiskProfile, error) {
	if c == nil {
		return nil, nil
	}
	data, err := c.client.Get(ctx, c.key(runID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached profiles: %w", err)
	}
	var profiles map[string]*riskscore.UserRiskProfile
	if err := json.Unmarshal(data, &profiles); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached profiles: %w", err)
	}
	return profiles, nil
}

// Close releases the Redis connection.
func (c *ProfileCache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
