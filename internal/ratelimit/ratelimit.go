// Package ratelimit implementa um contador por (endpoint, ip) em janela fixa,
// guardado no mesmo KV do jogo. O read-then-write não é atômico; serve para
// conter abuso, não para garantir limite exato.
package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/jetton-slots/internal/shared/kv"
	"github.com/radieske/jetton-slots/internal/shared/logger"
	"github.com/radieske/jetton-slots/internal/shared/metrics"
)

// folga somada ao TTL do contador
const ttlBuffer = 10 * time.Second

type Policy struct {
	Limit  int
	Window time.Duration
}

// ParsePolicy lê o formato "limite/janela", ex.: "30/1m".
func ParsePolicy(s string) (Policy, error) {
	limit, window, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return Policy{}, fmt.Errorf("rate limit %q: expected limit/window", s)
	}
	n, err := strconv.Atoi(strings.TrimSpace(limit))
	if err != nil || n <= 0 {
		return Policy{}, fmt.Errorf("rate limit %q: invalid limit", s)
	}
	d, err := time.ParseDuration(strings.TrimSpace(window))
	if err != nil || d <= 0 {
		return Policy{}, fmt.Errorf("rate limit %q: invalid window", s)
	}
	return Policy{Limit: n, Window: d}, nil
}

func ParsePolicies(raw map[string]string) (map[string]Policy, error) {
	out := make(map[string]Policy, len(raw))
	for endpoint, s := range raw {
		p, err := ParsePolicy(s)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", endpoint, err)
		}
		out[endpoint] = p
	}
	return out, nil
}

// Counter é o valor de rate_limit:<endpoint>:<ip>.
type Counter struct {
	Count       int   `json:"count"`
	WindowStart int64 `json:"windowStart"` // unix ms
}

type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

type Limiter struct {
	store    kv.Store
	policies map[string]Policy
	now      func() time.Time
	log      *zap.Logger
	metrics  *metrics.Metrics
}

type Option func(*Limiter)

func WithClock(now func() time.Time) Option { return func(l *Limiter) { l.now = now } }

func WithLogger(lg *zap.Logger) Option { return func(l *Limiter) { l.log = logger.OrNop(lg) } }

func WithMetrics(m *metrics.Metrics) Option { return func(l *Limiter) { l.metrics = m } }

func New(store kv.Store, policies map[string]Policy, opts ...Option) *Limiter {
	l := &Limiter{store: store, policies: policies, now: time.Now, log: zap.NewNop()}
	for _, o := range opts {
		o(l)
	}
	return l
}

func counterKey(endpoint, client string) string {
	return "rate_limit:" + endpoint + ":" + client
}

// Allow incrementa o contador do cliente. Endpoint sem política sempre passa.
func (l *Limiter) Allow(ctx context.Context, endpoint, client string) (Decision, error) {
	p, ok := l.policies[endpoint]
	if !ok {
		return Decision{Allowed: true}, nil
	}

	now := l.now()
	key := counterKey(endpoint, client)

	var c Counter
	found, err := kv.GetJSON(ctx, l.store, key, &c)
	if err != nil {
		return Decision{Allowed: true}, err
	}

	start := time.UnixMilli(c.WindowStart)
	if !found || now.Sub(start) >= p.Window {
		c = Counter{WindowStart: now.UnixMilli()}
		start = now
	}
	resetAt := start.Add(p.Window)

	if c.Count >= p.Limit {
		return Decision{Allowed: false, ResetAt: resetAt}, nil
	}

	c.Count++
	ttl := resetAt.Sub(now) + ttlBuffer
	if err := kv.PutJSON(ctx, l.store, key, c, ttl); err != nil {
		return Decision{Allowed: true}, err
	}
	return Decision{Allowed: true, Remaining: p.Limit - c.Count, ResetAt: resetAt}, nil
}

// Middleware aplica a política do endpoint. Falha no store deixa passar.
func (l *Limiter) Middleware(endpoint string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := ClientID(r)
			d, err := l.Allow(r.Context(), endpoint, client)
			if err != nil {
				l.log.Warn("rate limit store error, allowing request",
					zap.String("endpoint", endpoint), zap.String("client", client), zap.Error(err))
			}
			if !d.Allowed {
				l.metrics.RateLimited(endpoint)
				l.log.Warn("rate limit exceeded", zap.String("endpoint", endpoint), zap.String("client", client))

				retry := int(d.ResetAt.Sub(l.now()).Seconds()) + 1
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"success": false,
					"error":   "rate limit exceeded, try again later",
				})
				return
			}
			if !d.ResetAt.IsZero() {
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientID identifica o cliente por X-Real-IP, X-Forwarded-For ou RemoteAddr.
func ClientID(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		first = strings.TrimSpace(first)
		if parsed := net.ParseIP(first); parsed != nil {
			return parsed.String()
		}
		if first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
