package cache

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/i474232898/weather-timeline/internal/store"
	"github.com/i474232898/weather-timeline/internal/weather"
)

type countingFetcher struct {
	mu    sync.Mutex
	calls int
	err   error
	value weather.CombinedWeather
}

func (f *countingFetcher) Fetch(_ context.Context, query string) (weather.CombinedWeather, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return weather.CombinedWeather{}, f.err
	}
	v := f.value
	v.Location = query
	return v, nil
}

func (f *countingFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// brokenStore fails every operation.
type brokenStore struct{}

func (brokenStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("store unavailable")
}
func (brokenStore) Set(context.Context, string, string, time.Duration) error {
	return errors.New("store unavailable")
}
func (brokenStore) Delete(context.Context, string) error {
	return errors.New("store unavailable")
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func sampleWeather() weather.CombinedWeather {
	return weather.CombinedWeather{
		Current: &weather.CurrentWeather{Temperature: 17, Descriptions: []string{"Sunny"}},
		Days: []weather.DaySummary{
			{Date: "2024-03-09", AvgTemp: 10, Precip: 1.5, Description: "Rain"},
			{Date: "2024-03-10", AvgTemp: 17, Description: "Sunny"},
		},
	}
}

func newTestCache(kv Store, f Fetcher) (*Cache, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)}
	return New(kv, f, WithClock(clock.Now)), clock
}

func TestLookup_SecondCallServedFromCache(t *testing.T) {
	fetcher := &countingFetcher{value: sampleWeather()}
	c, _ := newTestCache(store.NewMemoryStore(0), fetcher)
	ctx := context.Background()

	first, err := c.Lookup(ctx, "Wellington")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := c.Lookup(ctx, "Wellington")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if fetcher.Calls() != 1 {
		t.Errorf("expected 1 fetch, got %d", fetcher.Calls())
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("cached value differs:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestLookup_QueriesCachedSeparately(t *testing.T) {
	fetcher := &countingFetcher{value: sampleWeather()}
	c, _ := newTestCache(store.NewMemoryStore(0), fetcher)
	ctx := context.Background()

	c.Lookup(ctx, "Wellington")
	c.Lookup(ctx, "Auckland")
	c.Lookup(ctx, "Wellington")

	if fetcher.Calls() != 2 {
		t.Errorf("expected 2 fetches, got %d", fetcher.Calls())
	}
}

func TestLookup_RefetchesAfterTTL(t *testing.T) {
	fetcher := &countingFetcher{value: sampleWeather()}
	kv := store.NewMemoryStore(0)
	c, clock := newTestCache(kv, fetcher)
	ctx := context.Background()

	c.Lookup(ctx, "Wellington")

	clock.Advance(DefaultTTL - time.Second)
	c.Lookup(ctx, "Wellington")
	if fetcher.Calls() != 1 {
		t.Fatalf("expected cached value within TTL, got %d fetches", fetcher.Calls())
	}

	clock.Advance(2 * time.Second)
	c.Lookup(ctx, "Wellington")
	if fetcher.Calls() != 2 {
		t.Errorf("expected refetch after TTL, got %d fetches", fetcher.Calls())
	}
}

func TestLookup_ExpiredEntryDeleted(t *testing.T) {
	kv := store.NewMemoryStore(0)
	c, clock := newTestCache(kv, &countingFetcher{err: errors.New("upstream down")})
	ctx := context.Background()

	raw, _ := json.Marshal(Entry[weather.CombinedWeather]{
		Expires: clock.Now().Add(-time.Minute).UnixMilli(),
		Value:   sampleWeather(),
	})
	kv.Set(ctx, c.Key("Wellington"), string(raw), 0)

	if _, err := c.Lookup(ctx, "Wellington"); err == nil {
		t.Fatal("expected the expired entry to be ignored")
	}
	if _, ok, _ := kv.Get(ctx, c.Key("Wellington")); ok {
		t.Error("expected expired entry to be deleted")
	}
}

func TestLookup_CorruptEntryIsMiss(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "not json", raw: "{broken"},
		{name: "wrong shape", raw: `{"expires": "soon", "value": 3}`},
		{name: "missing expiry", raw: `{"value": {"location": "x"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv := store.NewMemoryStore(0)
			fetcher := &countingFetcher{value: sampleWeather()}
			c, _ := newTestCache(kv, fetcher)
			ctx := context.Background()

			kv.Set(ctx, c.Key("Wellington"), tt.raw, 0)

			got, err := c.Lookup(ctx, "Wellington")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if fetcher.Calls() != 1 {
				t.Errorf("expected a fresh fetch, got %d", fetcher.Calls())
			}
			if got.Location != "Wellington" {
				t.Errorf("unexpected value: %+v", got)
			}

			// The corrupt entry is replaced by the fresh one.
			c.Lookup(ctx, "Wellington")
			if fetcher.Calls() != 1 {
				t.Errorf("expected replacement entry to be served, got %d fetches", fetcher.Calls())
			}
		})
	}
}

func TestLookup_FailureNotCached(t *testing.T) {
	kv := store.NewMemoryStore(0)
	fetcher := &countingFetcher{err: errors.New("Current weather API failed")}
	c, _ := newTestCache(kv, fetcher)
	ctx := context.Background()

	_, err := c.Lookup(ctx, "Nowhere")
	if err == nil || err.Error() != "Current weather API failed" {
		t.Fatalf("expected upstream error to pass through, got %v", err)
	}
	if kv.Len() != 0 {
		t.Errorf("expected nothing cached, store has %d entries", kv.Len())
	}

	c.Lookup(ctx, "Nowhere")
	if fetcher.Calls() != 2 {
		t.Errorf("expected failures to be retried on next lookup, got %d fetches", fetcher.Calls())
	}
}

func TestLookup_StoreFailuresFailOpen(t *testing.T) {
	fetcher := &countingFetcher{value: sampleWeather()}
	c, _ := newTestCache(brokenStore{}, fetcher)

	got, err := c.Lookup(context.Background(), "Wellington")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Location != "Wellington" || len(got.Days) != 2 {
		t.Errorf("unexpected value: %+v", got)
	}
}

func TestLookup_NilStoreDisablesCaching(t *testing.T) {
	fetcher := &countingFetcher{value: sampleWeather()}
	c, _ := newTestCache(nil, fetcher)

	c.Lookup(context.Background(), "Wellington")
	c.Lookup(context.Background(), "Wellington")
	if fetcher.Calls() != 2 {
		t.Errorf("expected 2 fetches without a store, got %d", fetcher.Calls())
	}
}

func TestRefresh_BypassesCache(t *testing.T) {
	fetcher := &countingFetcher{value: sampleWeather()}
	c, _ := newTestCache(store.NewMemoryStore(0), fetcher)
	ctx := context.Background()

	c.Lookup(ctx, "Wellington")
	if _, err := c.Refresh(ctx, "Wellington"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.Lookup(ctx, "Wellington")

	if fetcher.Calls() != 2 {
		t.Errorf("expected 2 fetches, got %d", fetcher.Calls())
	}
}

func TestKeyAndOptions(t *testing.T) {
	c := New(nil, nil, WithNamespace("ws-cache-v2"), WithTTL(time.Minute), WithTTL(-1))

	if got := c.Key("Wellington"); got != "ws-cache-v2:combined:Wellington" {
		t.Errorf("Key() = %q", got)
	}
	if c.ttl != time.Minute {
		t.Errorf("ttl = %v, want %v", c.ttl, time.Minute)
	}
	if got := New(nil, nil).Key("x"); got != "ws-cache-v1:combined:x" {
		t.Errorf("default Key() = %q", got)
	}
}
