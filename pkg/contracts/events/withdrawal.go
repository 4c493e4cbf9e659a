package events

import "time"

// WithdrawalRequested é emitido quando um saque entra na fila (débito já aplicado).
type WithdrawalRequested struct {
	WithdrawalID  string    `json:"withdrawal_id"`
	WalletAddress string    `json:"wallet_address"`
	Amount        float64   `json:"amount"`
	Nonce         string    `json:"nonce"`
	CreditAfter   float64   `json:"credit_after"`
	Ts            time.Time `json:"ts"`
}

// WithdrawalSettled é emitido pela liquidação depois que a chain devolve o hash.
type WithdrawalSettled struct {
	WithdrawalID  string    `json:"withdrawal_id"`
	WalletAddress string    `json:"wallet_address"`
	Amount        float64   `json:"amount"`
	TxHash        string    `json:"tx_hash"`
	Ts            time.Time `json:"ts"`
}

// WithdrawalSettlementFailed fica visível para retry manual do operador.
type WithdrawalSettlementFailed struct {
	WithdrawalID  string    `json:"withdrawal_id"`
	WalletAddress string    `json:"wallet_address"`
	Amount        float64   `json:"amount"`
	Reason        string    `json:"reason"`
	Ts            time.Time `json:"ts"`
}
