package cache

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/i474232898/weather-timeline/internal/metrics"
	"github.com/i474232898/weather-timeline/internal/weather"
)

const (
	// DefaultTTL is how long a combined result stays fresh.
	DefaultTTL = 15 * time.Minute
	// DefaultNamespace prefixes every key; bump it to invalidate all entries
	// after a format change.
	DefaultNamespace = "ws-cache-v1"
)

// Store is the key/value capability the cache persists entries in.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Fetcher produces fresh combined weather for a query.
type Fetcher interface {
	Fetch(ctx context.Context, query string) (weather.CombinedWeather, error)
}

// Entry is the serialized form of a cached value. Expires is an absolute
// unix timestamp in milliseconds.
type Entry[T any] struct {
	Expires int64 `json:"expires"`
	Value   T     `json:"value"`
}

// Cache fronts a Fetcher with a TTL cache keyed by query. Store failures
// never fail a lookup; they only cost a fetch.
type Cache struct {
	store     Store
	fetcher   Fetcher
	ttl       time.Duration
	namespace string
	now       func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL sets the freshness window. Non-positive values are ignored.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithNamespace sets the key prefix.
func WithNamespace(ns string) Option {
	return func(c *Cache) {
		if ns != "" {
			c.namespace = ns
		}
	}
}

// WithClock overrides the clock used for expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates a Cache. store may be nil, which disables caching.
func New(store Store, fetcher Fetcher, opts ...Option) *Cache {
	c := &Cache{
		store:     store,
		fetcher:   fetcher,
		ttl:       DefaultTTL,
		namespace: DefaultNamespace,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key returns the namespaced store key for query.
func (c *Cache) Key(query string) string {
	return c.namespace + ":combined:" + query
}

// Lookup returns the cached result for query when fresh, otherwise fetches,
// stores and returns a new one. Failed fetches are not cached.
func (c *Cache) Lookup(ctx context.Context, query string) (weather.CombinedWeather, error) {
	if v, ok := c.read(ctx, c.Key(query)); ok {
		return v, nil
	}
	return c.Refresh(ctx, query)
}

// Refresh fetches query bypassing any cached value and stores the result.
func (c *Cache) Refresh(ctx context.Context, query string) (weather.CombinedWeather, error) {
	v, err := c.fetcher.Fetch(ctx, query)
	if err != nil {
		return weather.CombinedWeather{}, err
	}
	c.write(ctx, c.Key(query), v)
	return v, nil
}

func (c *Cache) read(ctx context.Context, key string) (weather.CombinedWeather, bool) {
	if c.store == nil {
		return weather.CombinedWeather{}, false
	}

	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		log.Printf("INFO: cache read failed for %s: %v", key, err)
		metrics.RecordStoreError("get")
		metrics.RecordCacheLookup("miss")
		return weather.CombinedWeather{}, false
	}
	if !ok {
		metrics.RecordCacheLookup("miss")
		return weather.CombinedWeather{}, false
	}

	var entry Entry[weather.CombinedWeather]
	if err := json.Unmarshal([]byte(raw), &entry); err != nil || entry.Expires <= 0 {
		log.Printf("INFO: ignoring unreadable cache entry %s", key)
		metrics.RecordCacheLookup("corrupt")
		return weather.CombinedWeather{}, false
	}

	if !c.now().Before(time.UnixMilli(entry.Expires)) {
		if err := c.store.Delete(ctx, key); err != nil {
			log.Printf("INFO: cache delete failed for %s: %v", key, err)
			metrics.RecordStoreError("delete")
		}
		metrics.RecordCacheLookup("expired")
		return weather.CombinedWeather{}, false
	}

	metrics.RecordCacheLookup("hit")
	return entry.Value, true
}

func (c *Cache) write(ctx context.Context, key string, v weather.CombinedWeather) {
	if c.store == nil {
		return
	}

	raw, err := json.Marshal(Entry[weather.CombinedWeather]{
		Expires: c.now().Add(c.ttl).UnixMilli(),
		Value:   v,
	})
	if err != nil {
		log.Printf("ERROR: encoding cache entry %s: %v", key, err)
		return
	}
	if err := c.store.Set(ctx, key, string(raw), c.ttl); err != nil {
		log.Printf("INFO: cache write failed for %s: %v", key, err)
		metrics.RecordStoreError("set")
	}
}
