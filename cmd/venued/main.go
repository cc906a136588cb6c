package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/solana-venue-bounds/internal/accountcache"
	"github.com/aman-zulfiqar/solana-venue-bounds/internal/config"
	"github.com/aman-zulfiqar/solana-venue-bounds/internal/cpamm"
	"github.com/aman-zulfiqar/solana-venue-bounds/internal/router"
	"github.com/aman-zulfiqar/solana-venue-bounds/internal/rpc"
	"github.com/aman-zulfiqar/solana-venue-bounds/internal/server"
	"github.com/aman-zulfiqar/solana-venue-bounds/internal/store"
	"github.com/aman-zulfiqar/solana-venue-bounds/internal/venue"
)

// env bootstrap function
func loadEnv(logger *logrus.Logger) {
	// Get the project root directory (where go.mod is)
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	envPath := filepath.Join(projectRoot, ".env")

	if err := godotenv.Load(envPath); err != nil {
		logger.Warnf("no .env file found at %s, using system environment variables", envPath)
	} else {
		logger.Infof("loaded .env from %s", envPath)
	}
}

// main is the entry point for the venue bounds daemon
// It loads pool configs, starts the boundary refresh loop, and serves
// the HTTP API with graceful shutdown
func main() {
	// Initialize structured logger with custom formatting
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logger.SetLevel(logrus.InfoLevel)

	// load .env BEFORE anything reads os.Getenv
	loadEnv(logger)

	// Load and validate configuration from environment variables
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown (Ctrl+C, SIGTERM)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	// Initialize the Solana RPC client
	rpcClient := rpc.NewClient(rpc.ClientConfig{
		BaseURL:      cfg.RPCUrl,
		Timeout:      cfg.HTTPTimeout,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		Logger:       logger,
	})

	// Account cache sits between venues and the RPC endpoint: it
	// deduplicates concurrent reads and bounds refetch frequency
	cache, err := accountcache.New(accountcache.Config{
		Fetcher:         rpcClient,
		MaxEntries:      cfg.CacheMaxEntries,
		StalenessSlots:  uint64(cfg.CacheStalenessSlots),
		FetchRatePerSec: cfg.CacheRatePerSec,
		FetchBurst:      cfg.CacheBurst,
		Logger:          logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create account cache")
	}

	// Load pool definitions and build one venue per pool
	registry, err := cpamm.NewRegistry(cfg.PoolConfigPath)
	if err != nil {
		logger.WithError(err).Fatal("failed to load pool config")
	}
	pools := registry.All()
	venues := make([]venue.Venue, 0, len(pools))
	for i := range pools {
		venues = append(venues, cpamm.NewVenue(&pools[i], logger))
	}
	logger.WithField("venues", len(venues)).Info("loaded venue registry")

	// Optional Redis store for out-of-process boundary consumers
	var boundaryStore *store.Store
	if cfg.RedisAddr != "" {
		rclient := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
			DB:   0, // Use default database for main application
		})
		if err := rclient.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Fatal("failed to connect to Redis")
		}
		boundaryStore, err = store.NewStore(rclient)
		if err != nil {
			logger.WithError(err).Fatal("failed to create boundary store")
		}
	}

	// Router owns state refresh and boundary recomputation
	rt, err := router.New(router.Config{
		Venues:          venues,
		Cache:           cache,
		Store:           boundaryStore,
		RefreshInterval: cfg.RefreshInterval,
		VerifyProbes:    cfg.VerifyProbes,
		Logger:          logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create router")
	}

	// Run the refresh loop until shutdown
	go func() {
		if err := rt.Run(ctx); err != nil && ctx.Err() == nil {
			logger.WithError(err).Error("refresh loop stopped")
		}
	}()

	// Create handlers with all dependencies injected
	h := &server.Handlers{
		Router:  rt,
		Cache:   cache,
		DevMode: cfg.DevMode,
		Logger:  logger,
	}

	// Create HTTP server with configuration and handlers
	srv, err := server.NewServer(server.ServerDeps{
		Handlers: h,
		Config: server.ServerConfig{
			Addr:    cfg.ListenAddr,
			DevMode: cfg.DevMode,
			APIKey:  cfg.APIKey,
		},
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create http server")
	}

	// Setup graceful shutdown in a separate goroutine
	go func() {
		<-sigCh // Wait for shutdown signal
		logger.Info("shutting down")
		cancel()                               // Stop the refresh loop
		_ = srv.Shutdown(context.Background()) // Gracefully shutdown HTTP server
	}()

	// Start the HTTP server
	logger.WithField("addr", cfg.ListenAddr).Info("venue bounds api starting")
	if err := srv.Start(); err != nil {
		// "http: Server closed" is expected during graceful shutdown
		if err.Error() == "http: Server closed" {
			return
		}
		logger.WithError(err).Fatal("api server failed")
	}

	// Wait for server to be fully shut down
	if err := srv.WaitClosed(context.Background()); err != nil {
		fmt.Println(err)
	}
}
