package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/web-casa/aiui/internal/model"
)

const (
	keyPrefix = "aiui:aimodel:"
	ttl       = 10 * time.Minute
)

// Redis caches AI models as JSON values.
type Redis struct {
	rdb *redis.Client
}

// Connect creates a Redis client from a URL and verifies connectivity.
func Connect(url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return NewRedis(rdb), nil
}

// NewRedis wraps an existing client.
func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb}
}

func (r *Redis) Get(ctx context.Context, name string) (*model.AIModel, error) {
	val, err := r.rdb.Get(ctx, keyPrefix+name).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var m model.AIModel
	if err := json.Unmarshal(val, &m); err != nil {
		// A stale or foreign value is treated as a miss.
		return nil, nil
	}
	return &m, nil
}

func (r *Redis) Set(ctx context.Context, m *model.AIModel) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, keyPrefix+m.Name, data, ttl).Err()
}

func (r *Redis) Invalidate(ctx context.Context, name string) error {
	return r.rdb.Del(ctx, keyPrefix+name).Err()
}

// Close releases the underlying connection pool.
func (r *Redis) Close() error {
	return r.rdb.Close()
}
