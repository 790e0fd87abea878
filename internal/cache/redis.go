package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/staywatch/room-deals/backend/internal/models"
)

// Redis is a Store backed by a shared Redis instance, for deployments where
// API and worker replicas must see each other's results. Expiry is Redis
// native TTL; ttl <= 0 keeps entries until overwritten.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis connects a Redis-backed store. All keys are namespaced under prefix.
func NewRedis(addr, prefix string, ttl time.Duration) *Redis {
	return &Redis{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		prefix: prefix,
		ttl:    ttl,
	}
}

func (r *Redis) Get(ctx context.Context, key string) (models.ResultSet, bool, error) {
	data, err := r.client.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var set models.ResultSet
	if err := json.Unmarshal([]byte(data), &set); err != nil {
		return nil, false, fmt.Errorf("decode cached result set: %w", err)
	}
	return set, true, nil
}

func (r *Redis) Put(ctx context.Context, key string, set models.ResultSet) error {
	data, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("marshal result set: %w", err)
	}
	if err := r.client.Set(ctx, r.prefix+key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
