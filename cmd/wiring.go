package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/CosmoTheDev/hubwatch/internal/config"
	"github.com/CosmoTheDev/hubwatch/internal/database"
	"github.com/CosmoTheDev/hubwatch/internal/hub"
	"github.com/CosmoTheDev/hubwatch/internal/pipeline"
	"github.com/CosmoTheDev/hubwatch/internal/resolve"
	"github.com/CosmoTheDev/hubwatch/internal/store"
)

func newHubClient(cfg *config.Config) (*hub.Client, error) {
	return hub.New(hub.Options{
		BaseURL:           cfg.Hub.URL,
		APIToken:          cfg.Hub.APIToken,
		ProxyURL:          cfg.Hub.ProxyURL,
		Timeout:           cfg.Hub.Timeout(),
		RetryMax:          cfg.Hub.RetryMax,
		RequestsPerSecond: cfg.Hub.RequestsPerSecond,
	})
}

// openStore opens and migrates the configured database.
func openStore(ctx context.Context, cfg *config.Config) (*store.Store, database.DB, error) {
	db, err := database.New(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrating database: %w", err)
	}
	return store.New(db), db, nil
}

func newRedisClient(cfg config.CacheConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

// newResolver wraps the hub client with the Redis cache when enabled.
// The returned func releases the cache connection.
func newResolver(ctx context.Context, cfg *config.Config, client *hub.Client) (resolve.Resolver, func()) {
	if !cfg.Cache.Enabled {
		return client, func() {}
	}
	rdb := newRedisClient(cfg.Cache)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		slog.Warn("resolver cache unavailable, continuing without it", "addr", cfg.Cache.RedisAddr, "error", err)
		rdb.Close()
		return client, func() {}
	}
	cache := resolve.NewRedisStore(rdb, cfg.Cache.KeyPrefix)
	return resolve.Cached(client, cache, cfg.Cache.TTL()), func() { rdb.Close() }
}

func pipelineOptions(cfg *config.Config) pipeline.Options {
	return pipeline.Options{
		Workers:         cfg.Pipeline.Workers,
		MaxInFlight:     cfg.Pipeline.MaxInFlight,
		Timeout:         time.Duration(cfg.Pipeline.TimeoutSeconds) * time.Second,
		OutageThreshold: cfg.Pipeline.OutageThreshold,
	}
}
