package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Clark-Hu/bayesrank/internal/domain"
)

// Redis stores constants as JSON strings, shared by every server process.
type Redis struct {
	client *redis.Client
}

// NewRedis connects to Redis and verifies the connection with PING.
func NewRedis(ctx context.Context, opts Options) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        opts.RedisAddr,
		DB:          opts.RedisDB,
		Password:    opts.RedisPassword,
		DialTimeout: opts.DialTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Redis{client: client}, nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Name() string { return BackendRedis }

func (r *Redis) Get(ctx context.Context, key string) (domain.GlobalConstants, bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.GlobalConstants{}, false, nil
	}
	if err != nil {
		return domain.GlobalConstants{}, false, err
	}
	value, err := decode(data)
	if err != nil {
		return domain.GlobalConstants{}, false, err
	}
	return value, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value domain.GlobalConstants, ttl time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, ttl).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
