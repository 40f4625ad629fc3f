package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drivekr-wallet-backend/internal/domain"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, normalize([]string{"b", "", "a", "b"}))
}

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	m := NewKeyedMutex()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		overlap bool
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := m.Lock(context.Background(), "acct-1")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			active++
			if active > 1 {
				overlap = true
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	assert.False(t, overlap)
	assert.Zero(t, m.size())
}

func TestKeyedMutex_TimesOut(t *testing.T) {
	m := NewKeyedMutex()
	unlock, err := m.Lock(context.Background(), "rider", "driver")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = m.Lock(ctx, "driver")
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	unlock()
	unlock()
	assert.Zero(t, m.size())
}

func TestKeyedMutex_OppositeOrderDoesNotDeadlock(t *testing.T) {
	m := NewKeyedMutex()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if unlock, err := m.Lock(ctx, "a", "b"); err == nil {
				unlock()
			}
		}()
		go func() {
			defer wg.Done()
			if unlock, err := m.Lock(ctx, "b", "a"); err == nil {
				unlock()
			}
		}()
	}
	wg.Wait()
	assert.NoError(t, ctx.Err())
}

// fakeRedis implements the two commands RedisLocker issues.
type fakeRedis struct {
	redis.Cmdable
	mu   sync.Mutex
	keys map[string]string
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.keys[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.keys[key] = value.(string)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Eval(ctx context.Context, _ string, keys []string, args ...any) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.keys[keys[0]] != args[0] {
		return redis.NewCmdResult(int64(0), nil)
	}
	delete(f.keys, keys[0])
	return redis.NewCmdResult(int64(1), nil)
}

func TestRedisLocker(t *testing.T) {
	rdb := &fakeRedis{keys: map[string]string{}}
	l := NewRedisLocker(rdb, time.Second)

	unlock, err := l.Lock(context.Background(), "rider", "driver")
	require.NoError(t, err)
	assert.Contains(t, rdb.keys, "lock:wallet:rider")
	assert.Contains(t, rdb.keys, "lock:wallet:driver")

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "driver")
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	unlock()
	assert.Empty(t, rdb.keys)

	unlock, err = l.Lock(context.Background(), "driver")
	require.NoError(t, err)
	unlock()
}
