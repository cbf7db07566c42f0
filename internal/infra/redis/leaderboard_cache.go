package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"celeb-trivia-service/internal/app"
	"celeb-trivia-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const generationKey = "leaderboard:gen"

var errStaleFill = errors.New("leaderboard changed during fill")

var _ app.LeaderboardReader = (*LeaderboardCache)(nil)

// LeaderboardCache keeps the top of the leaderboard in Redis and falls back to
// the source reader on a miss. Stored as:
//
//	SET leaderboard:top:{limit} <json entries> EX ttl
//	INCR leaderboard:gen            on every invalidation
//
// A fill only stores its list if the generation did not move while it read
// the source. Individual ranks are always read from the source.
type LeaderboardCache struct {
	client *redis.Client
	source app.LeaderboardReader
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewLeaderboardCache(client *redis.Client, source app.LeaderboardReader, ttl time.Duration) *LeaderboardCache {
	return &LeaderboardCache{
		client: client,
		source: source,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *LeaderboardCache) TopPlayers(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	key := c.topKey(limit)
	if entries, ok := c.cached(ctx, key); ok {
		return entries, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if entries, ok := c.cached(ctx, key); ok {
			return entries, nil
		}

		gen, err := c.client.Get(ctx, generationKey).Int64()
		fillable := err == nil || errors.Is(err, redis.Nil)

		entries, err := c.source.TopPlayers(ctx, limit)
		if err != nil {
			return nil, err
		}
		if fillable {
			// Best effort; the source stays authoritative.
			_ = c.store(ctx, key, gen, entries)
		}
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.LeaderboardEntry), nil
}

func (c *LeaderboardCache) PlayerRank(ctx context.Context, userID string) (domain.LeaderboardEntry, error) {
	return c.source.PlayerRank(ctx, userID)
}

// Invalidate drops the cached top list so the next read goes to the source.
// Bumping the generation also voids fills that are still in flight.
func (c *LeaderboardCache) Invalidate(ctx context.Context, limit int) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKey)
		pipe.Del(ctx, c.topKey(limit))
		return nil
	})
	return err
}

// store writes entries under key only while the generation still equals gen.
func (c *LeaderboardCache) store(ctx context.Context, key string, gen int64, entries []domain.LeaderboardEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, generationKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != gen {
			return errStaleFill
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, c.ttlWithJitter())
			return nil
		})
		return err
	}, generationKey)
}

func (c *LeaderboardCache) cached(ctx context.Context, key string) ([]domain.LeaderboardEntry, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		// redis.Nil is a plain miss; other errors also degrade to the source.
		return nil, false
	}
	var entries []domain.LeaderboardEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, false
	}
	return entries, true
}

func (c *LeaderboardCache) topKey(limit int) string {
	return "leaderboard:top:" + strconv.Itoa(limit)
}

func (c *LeaderboardCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
