package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aimd54/elearn-gamification/internal/models"
)

// cacheTTL bounds staleness if an invalidation is ever missed; rankings
// are rewritten on every recompute anyway.
const cacheTTL = 5 * time.Minute

// ErrCacheMiss is returned when a scope has no cached ranking.
var ErrCacheMiss = errors.New("leaderboard: cache miss")

// Cache mirrors ranked scopes in Redis as JSON snapshots so reads skip
// the database. The database remains the source of truth; the cache is
// rewritten wholesale after each recompute.
type Cache struct {
	client *redis.Client
}

// NewCache creates a leaderboard cache on the given Redis client.
func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// cacheKey builds the Redis key for a scope.
func cacheKey(scope models.LeaderboardScope, referenceID *uint) string {
	switch scope {
	case models.ScopeCourse:
		if referenceID != nil {
			return fmt.Sprintf("leaderboard:course:%d", *referenceID)
		}
		return "leaderboard:course:unknown"
	case models.ScopePeriodic:
		return "leaderboard:weekly"
	default:
		return "leaderboard:global"
	}
}

// SetScope replaces the cached snapshot for a scope.
func (c *Cache) SetScope(ctx context.Context, scope models.LeaderboardScope, referenceID *uint, entries []Entry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshaling leaderboard snapshot: %w", err)
	}
	key := cacheKey(scope, referenceID)
	if err := c.client.Set(ctx, key, data, cacheTTL).Err(); err != nil {
		return fmt.Errorf("caching leaderboard %s: %w", key, err)
	}
	return nil
}

// GetScope returns the cached snapshot for a scope, truncated to limit
// when limit > 0. Returns ErrCacheMiss when nothing is cached.
func (c *Cache) GetScope(ctx context.Context, scope models.LeaderboardScope, referenceID *uint, limit int) ([]Entry, error) {
	key := cacheKey(scope, referenceID)
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("reading leaderboard %s: %w", key, err)
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decoding leaderboard %s: %w", key, err)
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Invalidate drops the cached snapshot for a scope.
func (c *Cache) Invalidate(ctx context.Context, scope models.LeaderboardScope, referenceID *uint) error {
	return c.client.Del(ctx, cacheKey(scope, referenceID)).Err()
}
