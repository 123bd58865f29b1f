package tenant

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mokavoice/callbridge/internal/log"
)

// Fetcher loads a tenant profile from the configuration collaborator.
type Fetcher interface {
	Fetch(ctx context.Context, calleeNumber string) (Profile, error)
}

type localEntry struct {
	profile  Profile
	expireAt time.Time
}

// Cache is a read-mostly, read-through cache of tenant profiles.
// Entries are shared across gateway instances via Redis and mirrored in
// a per-process map so a Redis outage degrades to direct fetches rather
// than failing admission. Safe for concurrent readers.
type Cache struct {
	fetch Fetcher
	rdb   *redis.Client // optional
	ttl   time.Duration

	mu    sync.RWMutex
	local map[string]localEntry
}

// NewCache wraps fetch with caching. rdb may be nil to cache only
// in-process.
func NewCache(fetch Fetcher, rdb *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{
		fetch: fetch,
		rdb:   rdb,
		ttl:   ttl,
		local: make(map[string]localEntry),
	}
}

// Get returns the profile for a callee number, fetching and caching it
// on a miss. Expiry refreshes entries out of band of any single call.
func (c *Cache) Get(ctx context.Context, calleeNumber string) (Profile, error) {
	c.mu.RLock()
	entry, ok := c.local[calleeNumber]
	c.mu.RUnlock()
	if ok && time.Now().Before(entry.expireAt) {
		return entry.profile, nil
	}

	if p, ok := c.fromRedis(ctx, calleeNumber); ok {
		c.storeLocal(calleeNumber, p)
		return p, nil
	}

	p, err := c.fetch.Fetch(ctx, calleeNumber)
	if err != nil {
		// Serve a stale local entry over failing the call.
		if ok {
			return entry.profile, nil
		}
		return Profile{}, err
	}

	c.storeLocal(calleeNumber, p)
	c.toRedis(ctx, calleeNumber, p)
	return p, nil
}

func (c *Cache) storeLocal(calleeNumber string, p Profile) {
	c.mu.Lock()
	c.local[calleeNumber] = localEntry{profile: p, expireAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}

func (c *Cache) fromRedis(ctx context.Context, calleeNumber string) (Profile, bool) {
	if c.rdb == nil {
		return Profile{}, false
	}
	raw, err := c.rdb.Get(ctx, redisKey(calleeNumber)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Warn("tenant cache read failed", "error", err)
		}
		return Profile{}, false
	}
	var p Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		log.Warn("tenant cache entry corrupt", "callee", calleeNumber, "error", err)
		return Profile{}, false
	}
	return p, true
}

func (c *Cache) toRedis(ctx context.Context, calleeNumber string, p Profile) {
	if c.rdb == nil {
		return
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, redisKey(calleeNumber), raw, c.ttl).Err(); err != nil {
		log.Warn("tenant cache write failed", "error", err)
	}
}

func redisKey(calleeNumber string) string {
	return "tenant:" + calleeNumber
}

// OpenRedis initializes a Redis client and validates connectivity.
func OpenRedis(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}
