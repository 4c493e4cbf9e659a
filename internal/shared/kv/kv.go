// Package kv define o armazenamento chave-valor compartilhado por ledger,
// replay guard, fila de saques e rate limiter. Não há transações entre chaves:
// cada operação afeta uma única chave, com TTL opcional.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound indica chave ausente ou expirada.
var ErrNotFound = errors.New("kv: key not found")

// Store é o contrato mínimo (get/put/delete com TTL). ttl == 0 significa sem expiração.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Claimer é implementado por backends com escrita condicional atômica (SETNX).
type Claimer interface {
	PutIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
}

// Pinger é usado pelo /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Claim grava value em key somente se a chave não existir.
// Em backends sem Claimer cai para get-then-put, que não é atômico.
func Claim(ctx context.Context, s Store, key string, value []byte, ttl time.Duration) (bool, error) {
	if c, ok := s.(Claimer); ok {
		return c.PutIfAbsent(ctx, key, value, ttl)
	}
	_, err := s.Get(ctx, key)
	switch {
	case err == nil:
		return false, nil
	case !errors.Is(err, ErrNotFound):
		return false, err
	}
	if err := s.Put(ctx, key, value, ttl); err != nil {
		return false, err
	}
	return true, nil
}

// GetJSON carrega e desserializa key em dst. found=false quando a chave não existe.
func GetJSON(ctx context.Context, s Store, key string, dst any) (bool, error) {
	b, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return true, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// PutJSON serializa v e grava em key.
func PutJSON(ctx context.Context, s Store, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Put(ctx, key, b, ttl)
}

// Ping verifica o backend quando ele suporta; caso contrário considera saudável.
func Ping(ctx context.Context, s Store) error {
	if p, ok := s.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
