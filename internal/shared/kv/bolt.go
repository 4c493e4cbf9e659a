package kv

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketKV = []byte("kv")

// Bolt é um Store embarcado (bbolt). Cada valor carrega um prefixo de 8 bytes
// com a expiração em unix nanos (0 = sem expiração); chaves vencidas somem na leitura.
type Bolt struct {
	db  *bolt.DB
	now func() time.Time
}

// OpenBolt abre (ou cria) o arquivo do banco e garante o bucket.
func OpenBolt(path string) (*Bolt, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create bolt dir: %w", err)
		}
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketKV)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init bolt bucket: %w", err)
	}
	return &Bolt{db: db, now: time.Now}, nil
}

// WithClock troca o relógio usado para expirar chaves.
func (b *Bolt) WithClock(now func() time.Time) *Bolt {
	b.now = now
	return b
}

func (b *Bolt) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

func (b *Bolt) Get(_ context.Context, key string) ([]byte, error) {
	var out []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketKV).Get([]byte(key))
		value, ok := b.decode(raw)
		if !ok {
			return ErrNotFound
		}
		// o slice do bolt só vale dentro da transação
		out = append([]byte(nil), value...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *Bolt) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketKV).Put([]byte(key), b.encode(value, ttl))
	})
}

func (b *Bolt) Delete(_ context.Context, key string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketKV).Delete([]byte(key))
	})
}

// PutIfAbsent roda dentro de uma única transação de escrita, logo é atômico.
func (b *Bolt) PutIfAbsent(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	created := false
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketKV)
		if _, ok := b.decode(bucket.Get([]byte(key))); ok {
			return nil
		}
		created = true
		return bucket.Put([]byte(key), b.encode(value, ttl))
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

func (b *Bolt) Ping(_ context.Context) error {
	if b == nil || b.db == nil {
		return fmt.Errorf("bolt store closed")
	}
	return nil
}

func (b *Bolt) encode(value []byte, ttl time.Duration) []byte {
	buf := make([]byte, 8+len(value))
	if ttl > 0 {
		binary.BigEndian.PutUint64(buf[:8], uint64(b.now().Add(ttl).UnixNano()))
	}
	copy(buf[8:], value)
	return buf
}

func (b *Bolt) decode(raw []byte) ([]byte, bool) {
	if len(raw) < 8 {
		return nil, false
	}
	if exp := int64(binary.BigEndian.Uint64(raw[:8])); exp != 0 && b.now().UnixNano() >= exp {
		return nil, false
	}
	return raw[8:], true
}
