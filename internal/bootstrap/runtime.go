// Package bootstrap connects the external dependencies a server process needs.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"feedline/internal/cache"
	"feedline/internal/config"
	"feedline/internal/database"
	"feedline/internal/observability"
	"feedline/internal/storage"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Runtime holds the connected dependencies. Redis is nil when unreachable.
type Runtime struct {
	DB    *gorm.DB
	Redis *redis.Client
	Store storage.ObjectStore
}

// connectDB is replaced in tests.
var connectDB = database.Connect

// InitRuntime connects to the database, Redis and the configured object store.
// A Redis failure is logged and tolerated; the other two are fatal, and the
// database pool is closed before returning them.
func InitRuntime(ctx context.Context, cfg *config.Config) (_ *Runtime, err error) {
	db, err := connectDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	defer func() {
		if err != nil {
			_ = database.Close(db)
		}
	}()

	store, err := NewObjectStore(cfg)
	if err != nil {
		return nil, err
	}
	if err := store.Ping(ctx); err != nil {
		return nil, fmt.Errorf("object store %s unreachable: %w", store.Driver(), err)
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			observability.Logger.Warn("redis unavailable; caching, revocation and fan-out disabled",
				slog.String("error", err.Error()))
			rdb = nil
		}
	}

	return &Runtime{DB: db, Redis: rdb, Store: store}, nil
}

// NewObjectStore builds the store selected by STORAGE_DRIVER.
func NewObjectStore(cfg *config.Config) (storage.ObjectStore, error) {
	switch cfg.StorageDriver {
	case "s3":
		store, err := storage.NewS3Store(storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			ForcePathStyle:  cfg.S3ForcePathStyle,
			PublicBaseURL:   cfg.ImagePublicBaseURL,
			Timeout:         cfg.S3Timeout,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case "local", "":
		store, err := storage.NewLocalStore(cfg.ImageDir, cfg.ImagePublicBaseURL)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

// Close releases Redis and the database pool.
func (r *Runtime) Close() error {
	if r.Redis != nil {
		_ = r.Redis.Close()
	}
	return database.Close(r.DB)
}
