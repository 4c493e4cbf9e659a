// Package keylock serializa operações por chave (carteira) dentro do processo.
// Não protege contra outras instâncias escrevendo no mesmo store.
package keylock

import (
	"hash/fnv"
	"sync"
)

const stripes = 64

type Striped struct {
	locks [stripes]sync.Mutex
}

// Lock trava a faixa da chave e devolve o unlock.
func (s *Striped) Lock(key string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	mu := &s.locks[h.Sum32()%stripes]
	mu.Lock()
	return mu.Unlock
}
