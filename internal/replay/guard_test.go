package replay

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/jetton-slots/internal/shared/kv"
)

var now = time.UnixMilli(1_700_000_000_000)

func newGuard(store kv.Store) *Guard {
	return New(store, 5*time.Minute, 10*time.Minute, WithClock(func() time.Time { return now }))
}

func TestAcceptOnceThenReject(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	g := newGuard(store)

	require.NoError(t, g.Accept(ctx, "n1", now.UnixMilli()))
	assert.ErrorIs(t, g.Accept(ctx, "n1", now.UnixMilli()), ErrNonceReused)

	_, err := store.Get(ctx, "nonce:n1")
	assert.NoError(t, err)
}

func TestTimestampWindow(t *testing.T) {
	g := newGuard(kv.NewMemory())
	ctx := context.Background()

	tests := []struct {
		name string
		ts   int64
		err  error
	}{
		{"now", now.UnixMilli(), nil},
		{"edge of window", now.Add(-5 * time.Minute).UnixMilli(), nil},
		{"seconds precision", now.Add(-time.Minute).Unix(), nil},
		{"too old", now.Add(-5*time.Minute - time.Millisecond).UnixMilli(), ErrStale},
		{"future", now.Add(time.Second).UnixMilli(), ErrStale},
		{"zero", 0, ErrStale},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.Accept(ctx, "nonce-"+string(rune('a'+i)), tt.ts)
			if tt.err == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.err)
			}
		})
	}
}

func TestStaleRequestDoesNotConsumeNonce(t *testing.T) {
	ctx := context.Background()
	g := newGuard(kv.NewMemory())

	assert.ErrorIs(t, g.Accept(ctx, "n1", now.Add(-time.Hour).UnixMilli()), ErrStale)
	assert.NoError(t, g.Accept(ctx, "n1", now.UnixMilli()))
}

func TestInvalidNonce(t *testing.T) {
	g := newGuard(kv.NewMemory())
	assert.ErrorIs(t, g.Accept(context.Background(), " ", now.UnixMilli()), ErrInvalidNonce)
}

func TestNonceTTLCoversWindow(t *testing.T) {
	g := New(kv.NewMemory(), 5*time.Minute, time.Minute)
	assert.Equal(t, 5*time.Minute, g.ttl)
}

type brokenStore struct{}

func (brokenStore) Get(context.Context, string) ([]byte, error) { return nil, errors.New("timeout") }
func (brokenStore) Put(context.Context, string, []byte, time.Duration) error {
	return errors.New("timeout")
}
func (brokenStore) Delete(context.Context, string) error { return errors.New("timeout") }

func TestStoreErrorFailsClosed(t *testing.T) {
	g := newGuard(brokenStore{})
	err := g.Accept(context.Background(), "n1", now.UnixMilli())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestConcurrentDuplicatesSingleAccept(t *testing.T) {
	g := newGuard(kv.NewMemory())
	ctx := context.Background()

	var accepted int32
	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.Accept(ctx, "same", now.UnixMilli()) == nil {
				atomic.AddInt32(&accepted, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), accepted)
}
