// Package archive provides an optional durable record of every completed
// interaction, independent of the per-image ledger files. A driver is
// selected at startup: memory (tests, throwaway runs), sqlite (default
// file-backed archive) or redis (shared remote archive with TTL).
package archive

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrInvalidDriver = errors.New("archive: invalid driver")
	ErrInvalidConfig = errors.New("archive: invalid configuration")
)

// Record is one archived interaction.
type Record struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	ImagePath string    `json:"image_path,omitempty"`
	Prompt    string    `json:"prompt"`
	Response  string    `json:"response"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists interaction records. Writes are best-effort from the
// session's point of view: a failed append is logged by the caller and
// never fails the turn.
type Store interface {
	Append(ctx context.Context, rec *Record) error
	List(ctx context.Context, sessionID string) ([]Record, error)
	Close() error
}

type storeConfig struct {
	sqlitePath  string
	redisClient *redis.Client
	redisTTL    time.Duration
}

// StoreOption configures NewStore.
type StoreOption func(*storeConfig)

// WithSQLitePath sets the database file for the sqlite driver.
func WithSQLitePath(path string) StoreOption {
	return func(c *storeConfig) { c.sqlitePath = path }
}

// WithRedisClient sets the client for the redis driver.
func WithRedisClient(client *redis.Client) StoreOption {
	return func(c *storeConfig) { c.redisClient = client }
}

// WithRedisTTL sets the expiry for archived sessions in redis.
func WithRedisTTL(ttl time.Duration) StoreOption {
	return func(c *storeConfig) { c.redisTTL = ttl }
}

// NewStore creates a Store for the given driver name. Supported drivers:
// "memory", "sqlite", "redis".
func NewStore(driver string, opts ...StoreOption) (Store, error) {
	config := &storeConfig{}
	for _, opt := range opts {
		opt(config)
	}

	switch driver {
	case "memory":
		return newMemoryStore(), nil

	case "sqlite":
		if config.sqlitePath == "" {
			return nil, ErrInvalidConfig
		}
		return newSQLiteStore(config.sqlitePath)

	case "redis":
		if config.redisClient == nil {
			return nil, ErrInvalidConfig
		}
		ttl := config.redisTTL
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
		return &redisStore{client: config.redisClient, ttl: ttl}, nil

	default:
		return nil, ErrInvalidDriver
	}
}
