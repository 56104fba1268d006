package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/XavierBriggs/fortuna/services/carviz/internal/cache"
	"github.com/XavierBriggs/fortuna/services/carviz/internal/config"
	"github.com/XavierBriggs/fortuna/services/carviz/internal/dashboard"
	"github.com/XavierBriggs/fortuna/services/carviz/internal/datastore"
	"github.com/XavierBriggs/fortuna/services/carviz/internal/handlers"
	"github.com/XavierBriggs/fortuna/services/carviz/internal/hub"
	"github.com/XavierBriggs/fortuna/services/carviz/internal/metrics"
	"github.com/redis/go-redis/v9"
)

func main() {
	fmt.Println("🚀 Starting carviz...")

	// Load config
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		fmt.Printf("❌ Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Optional Redis cache for remote datasets
	var opts datastore.SourceOptions
	opts.Table = cfg.Data.Table
	opts.OrderBy = cfg.Data.OrderBy
	redisClient := connectCache(ctx, cfg)
	if redisClient != nil {
		defer redisClient.Close()
		opts.HTTP = append(opts.HTTP, datastore.WithCache(cache.NewDatasetCache(redisClient, "carviz", cfg.Data.CacheTTL)))
	}

	// Load the dataset; nothing is built if this fails
	store, err := loadDataset(ctx, cfg, opts)
	if err != nil {
		var loadErr *datastore.LoadError
		if errors.As(err, &loadErr) {
			fmt.Printf("❌ Could not load dataset from %s: %v\n", loadErr.Source, loadErr.Err)
		} else {
			fmt.Printf("❌ Could not load dataset: %v\n", err)
		}
		os.Exit(1)
	}
	minYear, maxYear := store.YearBounds()
	fmt.Printf("✓ Loaded %d records from %s (%d-%d, %d manufacturers)\n",
		store.Len(), store.Source(), minYear, maxYear, len(store.Manufacturers()))

	// Create hub
	h := hub.NewHub()
	go h.Run(ctx)

	// Build the linked charts; the hub receives every update
	dash, err := dashboard.New(store, cfg.Layout,
		dashboard.WithPublisher(h),
		dashboard.WithTransition(cfg.Transition.Duration),
	)
	if err != nil {
		fmt.Printf("❌ Failed to build charts: %v\n", err)
		os.Exit(1)
	}
	defer dash.Close()
	fmt.Println("✓ Charts rendered")

	// Create HTTP handler (pass context for WebSocket lifecycle)
	handler := handlers.NewHandler(ctx, dash, h)

	// Start HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handlers.NewRouter(handler, cfg.Server.CORSOrigins, cfg.Server.RequestTimeout),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		fmt.Printf("✓ carviz listening on %s\n", cfg.Server.Addr)
		fmt.Println("  Endpoints:")
		for _, e := range handlers.Endpoints {
			fmt.Printf("    %s\n", e)
		}

		serverErrors <- srv.ListenAndServe()
	}()

	// Wait for interrupt signal
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			fmt.Printf("❌ Server error: %v\n", err)
			os.Exit(1)
		}

	case sig := <-shutdown:
		fmt.Printf("\n🛑 Received signal: %v\n", sig)

		// Stop the hub and websocket clients first
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("⚠️  Graceful shutdown failed: %v\n", err)
			if err := srv.Close(); err != nil {
				fmt.Printf("❌ Could not stop server: %v\n", err)
			}
		}
	}

	fmt.Println("✓ Shutdown complete")
}

// connectCache returns a Redis client for the dataset cache, or nil when the
// cache is disabled or Redis is unreachable
func connectCache(ctx context.Context, cfg *config.Config) *redis.Client {
	if !cfg.Data.CacheEnabled {
		return nil
	}

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		fmt.Printf("⚠️  Invalid REDIS_URL, dataset cache disabled: %v\n", err)
		return nil
	}
	if cfg.Redis.Password != "" {
		redisOpts.Password = cfg.Redis.Password
	}
	client := redis.NewClient(redisOpts)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		fmt.Printf("⚠️  Redis unavailable, dataset cache disabled: %v\n", err)
		client.Close()
		return nil
	}

	fmt.Println("✓ Connected to Redis (dataset cache)")
	return client
}

// loadDataset reads the configured source within the load timeout
func loadDataset(ctx context.Context, cfg *config.Config, opts datastore.SourceOptions) (*datastore.Store, error) {
	src, err := datastore.ParseSourceURI(cfg.Data.Source, opts)
	if err != nil {
		return nil, err
	}

	loadCtx, cancel := context.WithTimeout(ctx, cfg.Data.LoadTimeout)
	defer cancel()

	start := time.Now()
	store, err := datastore.Load(loadCtx, src)
	metrics.DatasetLoadDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	metrics.DatasetRecords.Set(float64(store.Len()))
	return store, nil
}
