package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
)

// Refresher re-fetches a query and stores the fresh result.
type Refresher interface {
	Refresh(ctx context.Context, query string) error
}

// RefresherFunc adapts a function to Refresher.
type RefresherFunc func(ctx context.Context, query string) error

func (f RefresherFunc) Refresh(ctx context.Context, query string) error {
	return f(ctx, query)
}

// Scheduler periodically warms the cache for configured locations.
type Scheduler struct {
	scheduler *gocron.Scheduler
	refresher Refresher
	locations []string
	interval  time.Duration
	timeout   time.Duration
}

// New creates a new Scheduler.
func New(locations []string, interval time.Duration, refresher Refresher) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		refresher: refresher,
		locations: locations,
		interval:  interval,
		timeout:   30 * time.Second,
	}
}

// Start schedules the warm-up job and starts the underlying scheduler.
// The first run happens immediately.
func (s *Scheduler) Start() error {
	if len(s.locations) == 0 {
		log.Println("scheduler: no locations configured; nothing to schedule")
		return nil
	}

	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 15
	}

	if _, err := s.scheduler.Every(minutes).Minutes().Do(func() { s.RunOnce() }); err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// RunOnce refreshes every configured location concurrently and returns the
// number of failures.
func (s *Scheduler) RunOnce() int {
	log.Println("scheduler: running cache warm-up job")

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed int
	)
	for _, loc := range s.locations {
		wg.Add(1)
		go func(loc string) {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
			defer cancel()

			if err := s.refresher.Refresh(ctx, loc); err != nil {
				log.Printf("scheduler: refresh failed for %s: %v", loc, err)
				mu.Lock()
				failed++
				mu.Unlock()
			}
		}(loc)
	}
	wg.Wait()

	log.Printf("scheduler: completed cache warm-up job (%d/%d failed)", failed, len(s.locations))
	return failed
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
