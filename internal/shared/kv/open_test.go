package kv

import (
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/jetton-slots/internal/shared/config"
)

func TestOpenBackends(t *testing.T) {
	mr := miniredis.RunT(t)

	cases := map[string]config.Config{
		"memory": {KVBackend: "memory"},
		"bolt":   {KVBackend: "bolt", BoltPath: filepath.Join(t.TempDir(), "kv.db")},
		"redis":  {KVBackend: "redis", RedisAddr: mr.Addr()},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			s, closeFn, err := Open(cfg)
			require.NoError(t, err)
			assert.NotNil(t, s)
			assert.NoError(t, closeFn())
		})
	}
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	_, _, err := Open(config.Config{KVBackend: "etcd"})
	assert.ErrorContains(t, err, "etcd")
}
