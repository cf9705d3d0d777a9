package journal

import (
	"context"
	"time"
)

const (
	DefaultLimit = 20
	MaxLimit     = 200
	// DefaultCapacity 每个存储保留的最近记录数
	DefaultCapacity = 500
)

// Entry is one recorded describe request.
type Entry struct {
	ID        string        `json:"id"`
	RequestID string        `json:"request_id"`
	ImageURL  string        `json:"image_url"`
	Host      string        `json:"host,omitempty"`
	Outcome   string        `json:"outcome"`
	Caption   string        `json:"caption,omitempty"`
	Detail    string        `json:"detail,omitempty"`
	Engine    string        `json:"engine,omitempty"`
	Format    string        `json:"format,omitempty"`
	Width     int           `json:"width,omitempty"`
	Height    int           `json:"height,omitempty"`
	Bytes     int           `json:"bytes,omitempty"`
	Duration  time.Duration `json:"duration_ns"`
	CreatedAt time.Time     `json:"created_at"`
}

// Store persists entries and returns the most recent ones first.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
	Stats(ctx context.Context) (map[string]any, error)
	Close(ctx context.Context) error
}

// Config describes the store selection parameters.
type Config struct {
	Driver   string
	Capacity int
	SQLite   *SQLiteConfig
	Redis    *RedisConfig
}

// SQLiteConfig provides the database location.
type SQLiteConfig struct {
	DSN string
}

// RedisConfig captures connection options.
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
	Key      string
}

// ClampLimit maps a requested limit into [1, MaxLimit]; zero means DefaultLimit.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

func capacityOf(cfg Config) int {
	if cfg.Capacity <= 0 {
		return DefaultCapacity
	}
	return cfg.Capacity
}
