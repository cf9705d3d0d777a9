package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type redisStore struct {
	client   *redis.Client
	key      string
	capacity int
}

// NewRedis keeps entries in a capped list and outcome counters in a hash.
func NewRedis(cfg Config) (Store, error) {
	if cfg.Redis == nil {
		return nil, fmt.Errorf("redis configuration missing")
	}
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis address required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	key := cfg.Redis.Key
	if key == "" {
		key = "caption:journal"
	}
	return &redisStore{client: client, key: key, capacity: capacityOf(cfg)}, nil
}

func (s *redisStore) statsKey() string {
	return s.key + ":outcomes"
}

func (s *redisStore) Append(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, s.key, data)
		pipe.LTrim(ctx, s.key, 0, int64(s.capacity-1))
		pipe.HIncrBy(ctx, s.statsKey(), entry.Outcome, 1)
		return nil
	})
	return err
}

func (s *redisStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	raw, err := s.client.LRange(ctx, s.key, 0, int64(ClampLimit(limit)-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(raw))
	for _, item := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, fmt.Errorf("decode journal entry: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *redisStore) Stats(ctx context.Context) (map[string]any, error) {
	counts, err := s.client.HGetAll(ctx, s.statsKey()).Result()
	if err != nil {
		return nil, err
	}
	outcomes := make(map[string]int64, len(counts))
	var total int64
	for k, v := range counts {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		outcomes[k] = n
		total += n
	}
	return map[string]any{
		"type":     DriverRedis,
		"total":    total,
		"capacity": s.capacity,
		"outcomes": outcomes,
	}, nil
}

func (s *redisStore) Close(context.Context) error {
	return s.client.Close()
}
