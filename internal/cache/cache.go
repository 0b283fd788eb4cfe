// Package cache stores the global Bayesian constants, in process or in Redis.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/Clark-Hu/bayesrank/internal/domain"
)

// Backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Cache is a constant cache backend.
type Cache interface {
	Name() string
	Get(ctx context.Context, key string) (domain.GlobalConstants, bool, error)
	Set(ctx context.Context, key string, value domain.GlobalConstants, ttl time.Duration) error
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Backend       string
	RedisAddr     string
	RedisDB       int
	RedisPassword string
	DialTimeout   time.Duration
}

// Open returns the backend named by opts.Backend.
func Open(ctx context.Context, opts Options) (Cache, error) {
	switch opts.Backend {
	case "", BackendMemory:
		return NewMemory(), nil
	case BackendRedis:
		return NewRedis(ctx, opts)
	default:
		return nil, fmt.Errorf("cache: unknown backend %q", opts.Backend)
	}
}
