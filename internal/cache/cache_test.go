package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Clark-Hu/bayesrank/internal/bayes"
	"github.com/Clark-Hu/bayesrank/internal/domain"
)

var (
	_ bayes.ConstantCache = (*Memory)(nil)
	_ bayes.ConstantCache = (*Redis)(nil)
)

func sampleConstants() domain.GlobalConstants {
	return domain.GlobalConstants{
		C:          11.5,
		M:          3.75,
		ComputedAt: time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestMemory_GetSet(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.now = func() time.Time { return now }

	_, found, err := m.Get(ctx, "BayesianAverage_MovieRating")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, m.Set(ctx, "BayesianAverage_MovieRating", sampleConstants(), time.Hour))
	got, found, err := m.Get(ctx, "BayesianAverage_MovieRating")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, sampleConstants(), got)

	now = now.Add(time.Hour + time.Second)
	_, found, err = m.Get(ctx, "BayesianAverage_MovieRating")
	require.NoError(t, err)
	assert.False(t, found, "entry should expire after its ttl")
}

func TestMemory_NoTTLNeverExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	m := NewMemory()
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "k", sampleConstants(), 0))
	now = now.Add(365 * 24 * time.Hour)
	_, found, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
}

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	r, err := NewRedis(context.Background(), Options{Backend: BackendRedis, RedisAddr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r, mr
}

func TestRedis_GetSet(t *testing.T) {
	ctx := context.Background()
	r, mr := newTestRedis(t)

	_, found, err := r.Get(ctx, "BayesianAverage_MovieRating")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, r.Set(ctx, "BayesianAverage_MovieRating", sampleConstants(), 10*time.Minute))

	got, found, err := r.Get(ctx, "BayesianAverage_MovieRating")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, sampleConstants(), got)

	raw, err := mr.Get("BayesianAverage_MovieRating")
	require.NoError(t, err)
	assert.JSONEq(t, `{"time":1709294400,"C":11.5,"m":3.75}`, raw)
	assert.Equal(t, 10*time.Minute, mr.TTL("BayesianAverage_MovieRating"))

	mr.FastForward(11 * time.Minute)
	_, found, err = r.Get(ctx, "BayesianAverage_MovieRating")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedis_CorruptPayload(t *testing.T) {
	r, mr := newTestRedis(t)
	require.NoError(t, mr.Set("broken", "not json"))

	_, found, err := r.Get(context.Background(), "broken")
	require.Error(t, err)
	assert.False(t, found)
}

func TestRedis_ServerDown(t *testing.T) {
	r, mr := newTestRedis(t)
	mr.Close()

	_, _, err := r.Get(context.Background(), "BayesianAverage_MovieRating")
	require.Error(t, err)
	require.Error(t, r.Set(context.Background(), "BayesianAverage_MovieRating", sampleConstants(), 0))
}

func TestNewRedisWithClient(t *testing.T) {
	mr := miniredis.RunT(t)
	r := NewRedisWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	defer r.Close()

	require.NoError(t, r.Set(context.Background(), "k", sampleConstants(), 0))
	assert.True(t, mr.Exists("k"))
	assert.Equal(t, BackendRedis, r.Name())
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	c, err := Open(ctx, Options{})
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, c.Name())

	mr := miniredis.RunT(t)
	c, err = Open(ctx, Options{Backend: BackendRedis, RedisAddr: mr.Addr()})
	require.NoError(t, err)
	assert.Equal(t, BackendRedis, c.Name())
	require.NoError(t, c.Close())

	_, err = Open(ctx, Options{Backend: "memcached"})
	require.Error(t, err)
}
