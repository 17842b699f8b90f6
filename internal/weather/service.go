package weather

import (
	"context"
	"log"
	"sync"
	"time"
)

const (
	// HistoryDays is how many days before today are requested from history.
	HistoryDays = 3
	// ForecastDays is how many days, starting today, are requested from forecast.
	ForecastDays = 3
)

// Aggregator fans out to the three upstream endpoints and merges the
// results into one day-by-day timeline.
type Aggregator struct {
	source   Source
	now      func() time.Time
	location *time.Location
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithClock overrides the clock used to compute date windows.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// WithLocation sets the timezone calendar dates are computed in.
// Defaults to time.Local.
func WithLocation(loc *time.Location) Option {
	return func(a *Aggregator) {
		if loc != nil {
			a.location = loc
		}
	}
}

// NewAggregator creates a new Aggregator.
func NewAggregator(source Source, opts ...Option) *Aggregator {
	a := &Aggregator{
		source:   source,
		now:      time.Now,
		location: time.Local,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Today returns the current time in the aggregator's timezone.
func (a *Aggregator) Today() time.Time {
	return a.now().In(a.location)
}

// Fetch issues the current, historical and forecast lookups concurrently,
// waits for all three to settle and merges them. Only a current-conditions
// failure fails the whole operation.
func (a *Aggregator) Fetch(ctx context.Context, query string) (CombinedWeather, error) {
	today := a.Today()
	histStart := dayOf(today, -HistoryDays)
	histEnd := dayOf(today, -1)

	var (
		wg       sync.WaitGroup
		current  FetchResult[CurrentReport]
		history  FetchResult[map[string]DayRecord]
		forecast FetchResult[map[string]DayRecord]
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		current = settle(a.source.Current(ctx, query))
	}()
	go func() {
		defer wg.Done()
		history = settle(a.source.Historical(ctx, query, histStart, histEnd))
	}()
	go func() {
		defer wg.Done()
		forecast = settle(a.source.Forecast(ctx, query, ForecastDays))
	}()
	wg.Wait()

	if !history.OK() {
		log.Printf("INFO: historical lookup failed for %q: %v", query, history.Err)
	}
	if !forecast.OK() {
		log.Printf("INFO: forecast lookup failed for %q: %v", query, forecast.Err)
	}

	combined, err := Merge(query, today, current, history, forecast)
	if err != nil {
		log.Printf("ERROR: current lookup failed for %q: %v", query, err)
		return CombinedWeather{}, err
	}

	log.Printf("DEBUG: merged %d days for %q (partial=%t)", len(combined.Days), query, combined.Partial)
	return combined, nil
}
