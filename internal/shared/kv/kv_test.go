package kv

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// backend agrupa um Store com a forma de avançar o tempo dele.
type backend struct {
	name    string
	store   Store
	advance func(time.Duration)
}

func backends(t *testing.T) []backend {
	t.Helper()

	memClock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	mem := NewMemory().WithClock(memClock.Now)

	boltClock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	b, err := OpenBolt(filepath.Join(t.TempDir(), "kv", "test.db"))
	require.NoError(t, err)
	b.WithClock(boltClock.Now)
	t.Cleanup(func() { _ = b.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return []backend{
		{name: "memory", store: mem, advance: memClock.Advance},
		{name: "bolt", store: b, advance: boltClock.Advance},
		{name: "redis", store: NewRedis(rdb), advance: mr.FastForward},
	}
}

func TestStoreContract(t *testing.T) {
	ctx := context.Background()

	for _, be := range backends(t) {
		t.Run(be.name, func(t *testing.T) {
			s := be.store

			_, err := s.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Put(ctx, "a", []byte("1"), 0))
			v, err := s.Get(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, []byte("1"), v)

			require.NoError(t, s.Put(ctx, "a", []byte("2"), 0))
			v, err = s.Get(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, []byte("2"), v)

			require.NoError(t, s.Delete(ctx, "a"))
			_, err = s.Get(ctx, "a")
			assert.ErrorIs(t, err, ErrNotFound)

			// apagar chave inexistente não é erro
			require.NoError(t, s.Delete(ctx, "a"))
		})
	}
}

func TestStoreTTL(t *testing.T) {
	ctx := context.Background()

	for _, be := range backends(t) {
		t.Run(be.name, func(t *testing.T) {
			s := be.store
			require.NoError(t, s.Put(ctx, "short", []byte("x"), 10*time.Second))
			require.NoError(t, s.Put(ctx, "forever", []byte("y"), 0))

			be.advance(5 * time.Second)
			_, err := s.Get(ctx, "short")
			require.NoError(t, err)

			be.advance(6 * time.Second)
			_, err = s.Get(ctx, "short")
			assert.ErrorIs(t, err, ErrNotFound)

			v, err := s.Get(ctx, "forever")
			require.NoError(t, err)
			assert.Equal(t, []byte("y"), v)
		})
	}
}

func TestPutIfAbsent(t *testing.T) {
	ctx := context.Background()

	for _, be := range backends(t) {
		t.Run(be.name, func(t *testing.T) {
			ok, err := Claim(ctx, be.store, "nonce:abc", []byte("1"), time.Minute)
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = Claim(ctx, be.store, "nonce:abc", []byte("2"), time.Minute)
			require.NoError(t, err)
			assert.False(t, ok)

			v, err := be.store.Get(ctx, "nonce:abc")
			require.NoError(t, err)
			assert.Equal(t, []byte("1"), v)

			// depois de expirar a chave pode ser reivindicada de novo
			be.advance(2 * time.Minute)
			ok, err = Claim(ctx, be.store, "nonce:abc", []byte("3"), time.Minute)
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestClaimConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()

	for _, be := range backends(t) {
		t.Run(be.name, func(t *testing.T) {
			var wins int32
			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					ok, err := Claim(ctx, be.store, "doubleup_used:g1", []byte("1"), time.Minute)
					if err == nil && ok {
						atomic.AddInt32(&wins, 1)
					}
				}()
			}
			wg.Wait()
			assert.Equal(t, int32(1), wins)
		})
	}
}

// plainStore esconde o PutIfAbsent para exercitar o fallback.
type plainStore struct{ Store }

func TestClaimFallbackWithoutClaimer(t *testing.T) {
	ctx := context.Background()
	s := plainStore{NewMemory()}

	ok, err := Claim(ctx, s, "k", []byte("1"), 0)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Claim(ctx, s, "k", []byte("1"), 0)
	require.NoError(t, err)
	assert.False(t, ok)
}

type brokenStore struct{ err error }

func (b brokenStore) Get(context.Context, string) ([]byte, error) { return nil, b.err }
func (b brokenStore) Put(context.Context, string, []byte, time.Duration) error { return b.err }
func (b brokenStore) Delete(context.Context, string) error { return b.err }

func TestClaimPropagatesStoreError(t *testing.T) {
	boom := errors.New("boom")
	ok, err := Claim(context.Background(), brokenStore{err: boom}, "k", nil, 0)
	assert.False(t, ok)
	assert.ErrorIs(t, err, boom)
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	type rec struct {
		Credit float64 `json:"credit"`
	}

	var got rec
	found, err := GetJSON(ctx, s, "credit:w", &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, PutJSON(ctx, s, "credit:w", rec{Credit: 12.5}, 0))
	found, err = GetJSON(ctx, s, "credit:w", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 12.5, got.Credit)

	require.NoError(t, s.Put(ctx, "bad", []byte("{"), 0))
	found, err = GetJSON(ctx, s, "bad", &got)
	assert.True(t, found)
	assert.Error(t, err)
}

func TestBoltPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "credits.db")

	b, err := OpenBolt(path)
	require.NoError(t, err)
	require.NoError(t, b.Put(ctx, "credit:w", []byte(`{"credit":3}`), 0))
	require.NoError(t, b.Close())

	b, err = OpenBolt(path)
	require.NoError(t, err)
	defer b.Close()

	v, err := b.Get(ctx, "credit:w")
	require.NoError(t, err)
	assert.JSONEq(t, `{"credit":3}`, string(v))
	assert.NoError(t, Ping(ctx, b))
}
