package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SERVICE_NAME", "game-api")

	cfg := Load()
	assert.Equal(t, "redis", cfg.KVBackend)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "9095", cfg.MetricsPort)
	assert.Equal(t, 5*time.Minute, cfg.RequestMaxAge)
	assert.Equal(t, int32(9), cfg.JettonDecimals)
	assert.Equal(t, "5/1m", cfg.RateLimits["withdraw"])
	assert.Nil(t, cfg.Brokers())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERVICE_NAME", "chain-simulator")
	t.Setenv("KV_BACKEND", "BOLT")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,")
	t.Setenv("RATE_LIMIT_DOUBLE_UP", "3/10s")
	t.Setenv("MAX_BET", "not-a-number")
	// nonce precisa durar pelo menos a janela
	t.Setenv("REQUEST_MAX_AGE", "20m")
	t.Setenv("NONCE_TTL", "1m")

	cfg := Load()
	assert.Equal(t, "bolt", cfg.KVBackend)
	assert.Equal(t, "8081", cfg.HTTPPort)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Brokers())
	assert.Equal(t, "3/10s", cfg.RateLimits["double-up"])
	assert.Equal(t, 1000.0, cfg.MaxBet)
	assert.Equal(t, 20*time.Minute, cfg.NonceTTL)
}
