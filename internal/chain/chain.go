// Package chain fala com o serviço externo que assina e envia transferências
// Jetton. A derivação da carteira Jetton também fica do lado de lá.
package chain

import (
	"context"
	"errors"
	"math/big"
)

var (
	ErrRejected    = errors.New("chain: transfer rejected")
	ErrUnavailable = errors.New("chain: submission service unavailable")
)

// Transfer é uma instrução de envio de `AmountNano` para a carteira Jetton do destino.
type Transfer struct {
	WithdrawalID string
	Destination  string
	JettonWallet string
	AmountNano   *big.Int
	Memo         string
}

type Submitter interface {
	Submit(ctx context.Context, t Transfer) (txHash string, err error)
}

type AddressResolver interface {
	JettonWallet(ctx context.Context, owner string) (string, error)
}

// FuncSubmitter adapta callbacks aos contratos acima.
type FuncSubmitter struct {
	SubmitFunc  func(ctx context.Context, t Transfer) (string, error)
	ResolveFunc func(ctx context.Context, owner string) (string, error)
}

func (f FuncSubmitter) Submit(ctx context.Context, t Transfer) (string, error) {
	if f.SubmitFunc == nil {
		return "", ErrUnavailable
	}
	return f.SubmitFunc(ctx, t)
}

// JettonWallet devolve o próprio dono quando não há resolver configurado.
func (f FuncSubmitter) JettonWallet(ctx context.Context, owner string) (string, error) {
	if f.ResolveFunc == nil {
		return owner, nil
	}
	return f.ResolveFunc(ctx, owner)
}
