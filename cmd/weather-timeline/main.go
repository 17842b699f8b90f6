package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"gopkg.in/natefinch/lumberjack.v2"

	httpapi "github.com/i474232898/weather-timeline/internal/api/http"
	"github.com/i474232898/weather-timeline/internal/cache"
	"github.com/i474232898/weather-timeline/internal/config"
	"github.com/i474232898/weather-timeline/internal/scheduler"
	"github.com/i474232898/weather-timeline/internal/store"
	"github.com/i474232898/weather-timeline/internal/weather"
	"github.com/i474232898/weather-timeline/internal/weather/providers"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if cfg.LogFile != "" {
		log.SetFlags(log.LstdFlags | log.LUTC | log.Lshortfile)
		log.SetOutput(&lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxAge:     28,
			MaxSize:    5,
			MaxBackups: 3,
			Compress:   true,
		})
	}

	tz, err := cfg.Location()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Shared HTTP client for outbound calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	kv, closeStore := openStore(cfg)
	defer closeStore()

	source := providers.NewWeatherstackProvider(httpClient, cfg.APIURL, cfg.APIKey)
	aggregator := weather.NewAggregator(source, weather.WithLocation(tz))
	results := cache.New(kv, aggregator,
		cache.WithTTL(cfg.CacheTTL),
		cache.WithNamespace(cfg.CacheNamespace),
	)

	// Scheduler that keeps configured locations warm in the cache.
	sched := scheduler.New(cfg.WarmLocations, cfg.WarmInterval,
		scheduler.RefresherFunc(func(ctx context.Context, query string) error {
			_, err := results.Refresh(ctx, query)
			return err
		}))
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "weather-timeline",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(logger.New(logger.Config{Output: log.Writer()}))
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weather-timeline",
			"store":   cfg.StoreBackend,
		})
	})

	httpapi.RegisterRoutes(app, results, aggregator, aggregator.Today)
	httpapi.RegisterMetrics(app)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}

// openStore builds the configured cache store. Caching is best-effort, so an
// unreachable backend degrades to the in-memory store instead of failing.
func openStore(cfg *config.AppConfig) (cache.Store, func()) {
	switch cfg.StoreBackend {
	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		rs := store.NewRedisStore(client)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rs.Ping(ctx); err != nil {
			log.Printf("ERROR: redis unavailable at %s, falling back to memory store: %v", cfg.Redis.Addr, err)
			client.Close()
			break
		}
		return rs, func() { client.Close() }

	case config.StoreSQLite:
		ss, err := store.OpenSQLiteStore(cfg.SQLitePath)
		if err != nil {
			log.Printf("ERROR: sqlite store unavailable, falling back to memory store: %v", err)
			break
		}
		if n, err := ss.Purge(context.Background()); err != nil {
			log.Printf("INFO: purging expired cache entries: %v", err)
		} else if n > 0 {
			log.Printf("INFO: purged %d expired cache entries", n)
		}
		return ss, func() { ss.Close() }
	}

	return store.NewMemoryStore(cfg.StoreMaxEntries), func() {}
}
