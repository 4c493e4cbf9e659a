// Package replay rejeita requisições repetidas ou fora da janela de validade.
// O nonce é gravado antes de qualquer efeito colateral; erro no store rejeita.
package replay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/jetton-slots/internal/shared/kv"
	"github.com/radieske/jetton-slots/internal/shared/logger"
	"github.com/radieske/jetton-slots/internal/shared/metrics"
)

var (
	ErrInvalidNonce = errors.New("nonce is required")
	ErrStale        = errors.New("request timestamp outside accepted window")
	ErrNonceReused  = errors.New("duplicate request: nonce already used")
	ErrUnavailable  = errors.New("replay protection unavailable")
)

const maxNonceLen = 128

// timestamps abaixo disso vieram em segundos
const msThreshold = 1_000_000_000_000

type Guard struct {
	store   kv.Store
	maxAge  time.Duration
	ttl     time.Duration
	now     func() time.Time
	log     *zap.Logger
	metrics *metrics.Metrics
}

type Option func(*Guard)

func WithClock(now func() time.Time) Option { return func(g *Guard) { g.now = now } }

func WithLogger(l *zap.Logger) Option { return func(g *Guard) { g.log = logger.OrNop(l) } }

func WithMetrics(m *metrics.Metrics) Option { return func(g *Guard) { g.metrics = m } }

// New cria o guard. ttl menor que maxAge é elevado para maxAge.
func New(store kv.Store, maxAge, ttl time.Duration, opts ...Option) *Guard {
	if ttl < maxAge {
		ttl = maxAge
	}
	g := &Guard{store: store, maxAge: maxAge, ttl: ttl, now: time.Now, log: zap.NewNop()}
	for _, o := range opts {
		o(g)
	}
	return g
}

func NonceKey(nonce string) string { return "nonce:" + nonce }

// Accept valida a janela do timestamp e consome o nonce.
func (g *Guard) Accept(ctx context.Context, nonce string, timestamp int64) error {
	nonce = strings.TrimSpace(nonce)
	if nonce == "" || len(nonce) > maxNonceLen {
		return ErrInvalidNonce
	}

	if err := g.checkWindow(timestamp); err != nil {
		g.metrics.ReplayRejected("stale")
		g.log.Warn("stale request rejected", zap.String("nonce", nonce), zap.Int64("timestamp", timestamp))
		return err
	}

	claimed, err := kv.Claim(ctx, g.store, NonceKey(nonce), []byte(fmt.Sprint(g.now().UnixMilli())), g.ttl)
	if err != nil {
		g.metrics.ReplayRejected("store_error")
		g.log.Error("nonce claim failed, rejecting", zap.String("nonce", nonce), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !claimed {
		g.metrics.ReplayRejected("reused")
		g.log.Warn("nonce reuse rejected", zap.String("nonce", nonce))
		return ErrNonceReused
	}
	return nil
}

func (g *Guard) checkWindow(timestamp int64) error {
	if timestamp <= 0 {
		return ErrStale
	}
	if timestamp < msThreshold {
		timestamp *= 1000
	}
	age := g.now().Sub(time.UnixMilli(timestamp))
	if age < 0 || age > g.maxAge {
		return fmt.Errorf("%w (age %s, max %s)", ErrStale, age.Round(time.Millisecond), g.maxAge)
	}
	return nil
}
