package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/m3rciful/rabiesbot/core/logger"
	"github.com/m3rciful/rabiesbot/internal/conversation"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

var (
	// ErrNilSession is returned by Put for a nil session.
	ErrNilSession = errors.New("session: nil session")
	// ErrUnknownBackend is returned for an unsupported backend name.
	ErrUnknownBackend = errors.New("session: unknown backend")
)

// RedisConfig holds connection settings for the redis backend.
type RedisConfig struct {
	Addr      string `yaml:"addr" envconfig:"REDIS_ADDR"`
	Password  string `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB        int    `yaml:"db" envconfig:"REDIS_DB"`
	KeyPrefix string `yaml:"key_prefix" envconfig:"REDIS_KEY_PREFIX"`
}

// Config selects and configures the session backend.
type Config struct {
	Backend string      `yaml:"backend" envconfig:"SESSIONS_BACKEND"`
	Redis   RedisConfig `yaml:"redis"`
}

// Store is a conversation.Store that owns resources released by Close.
type Store interface {
	conversation.Store
	Close() error
}

// NormalizeBackend lowercases the backend name and applies the memory default.
func NormalizeBackend(name string) (string, error) {
	b := strings.ToLower(strings.TrimSpace(name))
	switch b {
	case "":
		return BackendMemory, nil
	case BackendMemory, BackendPostgres, BackendRedis:
		return b, nil
	}
	return "", fmt.Errorf("%w: %q; allowed: memory, postgres, redis", ErrUnknownBackend, name)
}

// Open builds the configured store. db is required for the postgres backend
// and ignored otherwise.
func Open(ctx context.Context, cfg Config, db *sqlx.DB) (Store, error) {
	backend, err := NormalizeBackend(cfg.Backend)
	if err != nil {
		return nil, err
	}

	var store Store
	switch backend {
	case BackendPostgres:
		if db == nil {
			return nil, fmt.Errorf("session: postgres backend requires a database connection")
		}
		store = NewPostgresStore(db)
	case BackendRedis:
		if strings.TrimSpace(cfg.Redis.Addr) == "" {
			return nil, fmt.Errorf("session: sessions.redis.addr is required for the redis backend")
		}
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("session: redis ping %s: %w", cfg.Redis.Addr, err)
		}
		store = NewRedisStore(rdb, cfg.Redis.KeyPrefix)
	default:
		store = NewMemoryStore()
	}

	logger.Info(ctx, "session", "store.open",
		slog.String("status", "ok"),
		slog.String("backend", backend),
	)
	return store, nil
}
