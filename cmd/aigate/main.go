// Package main is the entry point for the aigate gateway server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aigate/internal/cache"
	"aigate/internal/config"
	"aigate/internal/gateway"
	"aigate/internal/llmclient"
	"aigate/internal/logging"
	"aigate/internal/metrics"
	"aigate/internal/provider/openai"
	"aigate/internal/ratelimit"
	"aigate/internal/server"
	"aigate/internal/usage"
)

const (
	rateLimitSweepInterval = 10 * time.Minute
	rateLimitIdleAfter     = 30 * time.Minute
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	logging.Setup(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	slog.Info("starting aigate",
		"port", cfg.Server.Port,
		"default_model", cfg.Models.Default,
	)

	if cfg.Provider.APIKey == "" {
		slog.Error("provider api_key is required (set AIGATE_PROVIDER_API_KEY)")
		os.Exit(1)
	}

	prov := openai.New(openai.Config{
		APIKey:       cfg.Provider.APIKey,
		Organization: cfg.Provider.Organization,
		BaseURL:      cfg.Provider.BaseURL,
		Client: llmclient.Config{
			Timeout:    cfg.Provider.Timeout,
			MaxRetries: cfg.Provider.MaxRetries,
		},
	})

	m := metrics.New()

	// Cache backend: Redis when configured, in-memory otherwise.
	var store cache.Store
	if !cfg.Cache.Enabled {
		store = cache.NewNoop()
		slog.Info("response caching disabled")
	} else if cfg.Cache.RedisURL != "" {
		store, err = cache.NewRedis(cache.RedisConfig{
			URL: cfg.Cache.RedisURL,
			TTL: cfg.Cache.TTL,
		})
		if err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		slog.Info("using redis response cache")
	}

	// Durable usage sink: SQLite when configured.
	var sink usage.Writer
	var sqliteStore *usage.SQLiteStore
	if cfg.Usage.SQLitePath != "" {
		sqliteStore, err = usage.NewSQLiteStore(cfg.Usage.SQLitePath)
		if err != nil {
			slog.Error("failed to open usage store", "error", err)
			os.Exit(1)
		}
		buffered := usage.NewBufferedWriter(sqliteStore, 0, 0)
		defer func() {
			_ = buffered.Close()
			_ = sqliteStore.Close()
		}()
		sink = buffered
		slog.Info("durable usage tracking enabled", "path", cfg.Usage.SQLitePath)
	}

	gw := gateway.New(prov, gateway.Config{
		DefaultModel:   cfg.Models.Default,
		EmbeddingModel: cfg.Models.Embedding,
		Cache: cache.MemoryConfig{
			MaxSize: cfg.Cache.MaxSize,
			TTL:     cfg.Cache.TTL,
		},
		Store:     store,
		RateLimit: ratelimit.Config{
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
			Disabled:          !cfg.RateLimit.Enabled,
		},
		Pricing:   pricingFromConfig(cfg),
		Sink:      sink,
		Metrics:   m,
	})
	defer func() {
		_ = gw.Close()
	}()

	// Background maintenance: idle rate limit buckets and old usage records.
	stop := make(chan struct{})
	defer close(stop)
	go gw.Limiter().RunSweepLoop(stop, rateLimitSweepInterval, rateLimitIdleAfter)
	go usage.RunRetentionLoop(stop, usage.DefaultRetentionInterval, func() {
		removed := gw.Usage().ClearOldRecords(cfg.Usage.RetentionDays)
		if sqliteStore != nil {
			cutoff := time.Now().UTC().AddDate(0, 0, -cfg.Usage.RetentionDays)
			if n, err := sqliteStore.DeleteOlderThan(context.Background(), cutoff); err != nil {
				slog.Warn("usage retention sweep failed", "error", err)
			} else {
				removed += int(n)
			}
		}
		if removed > 0 {
			slog.Info("usage retention sweep", "removed", removed)
		}
	})

	masterKey := os.Getenv("AIGATE_MASTER_KEY")
	if masterKey == "" {
		slog.Warn("AIGATE_MASTER_KEY not set, server accepts unauthenticated requests")
	}

	srv := server.New(gw, &server.Config{
		MasterKey:    masterKey,
		Metrics:      m,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	})

	// Handle graceful shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		slog.Info("shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	slog.Info("starting server", "address", addr)

	if err := srv.Start(addr); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			slog.Info("server stopped gracefully")
		} else {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}
}

// pricingFromConfig overlays configured prices onto the built-in table.
func pricingFromConfig(cfg *config.Config) usage.Pricing {
	pricing := usage.DefaultPricing()
	for model, p := range cfg.Usage.Pricing {
		pricing[model] = p
	}
	return pricing
}
