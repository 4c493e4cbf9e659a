package dto

type SpinRequest struct {
	WalletAddress string  `json:"walletAddress"`
	BetAmount     float64 `json:"betAmount"`
	ClientSeed    string  `json:"clientSeed"`
}

// DoubleUpRequest: gameId e currentWin são opcionais; vazios usam a oferta pendente.
type DoubleUpRequest struct {
	WalletAddress string  `json:"walletAddress"`
	Choice        string  `json:"choice"` // red | black
	ClientSeed    string  `json:"clientSeed,omitempty"`
	GameID        string  `json:"gameId,omitempty"`
	CurrentWin    float64 `json:"currentWin,omitempty"`
}

type CollectRequest struct {
	WalletAddress string `json:"walletAddress"`
}

type WithdrawRequest struct {
	Action      string  `json:"action"` // sempre "withdraw"
	Amount      float64 `json:"amount"`
	UserAddress string  `json:"userAddress"`
	Timestamp   int64   `json:"timestamp"` // unix ms (segundos também aceitos)
	Nonce       string  `json:"nonce"`
}

type MarkProcessedRequest struct {
	WithdrawalID string `json:"withdrawalId"`
	TxHash       string `json:"txHash"`
}

// AdminCreditRequest ajusta o saldo manualmente; amount negativo debita.
type AdminCreditRequest struct {
	WalletAddress string  `json:"walletAddress"`
	Amount        float64 `json:"amount"`
}

type SettleRequest struct {
	WithdrawalIDs []string `json:"withdrawalIds,omitempty"`
	Limit         int      `json:"limit,omitempty"`
}
