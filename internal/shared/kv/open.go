package kv

import (
	"fmt"

	"github.com/radieske/jetton-slots/internal/shared/config"
)

// Open escolhe o backend conforme KV_BACKEND. closeFn libera conexão ou arquivo.
func Open(cfg config.Config) (store Store, closeFn func() error, err error) {
	switch cfg.KVBackend {
	case "redis", "":
		c, err := ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
		}
		return NewRedis(c), c.Close, nil
	case "bolt":
		b, err := OpenBolt(cfg.BoltPath)
		if err != nil {
			return nil, nil, err
		}
		return b, b.Close, nil
	case "memory":
		return NewMemory(), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown KV_BACKEND %q", cfg.KVBackend)
	}
}
