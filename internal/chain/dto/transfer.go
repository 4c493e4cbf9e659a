package dto

// TransferReq é o corpo de POST /transfers no serviço de submissão.
type TransferReq struct {
	WithdrawalID string `json:"withdrawalId"`
	Destination  string `json:"destination"`  // carteira dona
	JettonWallet string `json:"jettonWallet"` // carteira Jetton derivada
	Amount       string `json:"amount"`       // unidades mínimas, decimal em string
	Memo         string `json:"memo,omitempty"`
}

type TransferResp struct {
	Status string `json:"status"` // SUBMITTED | REJECTED
	TxHash string `json:"txHash,omitempty"`
	Reason string `json:"reason,omitempty"`
}

type JettonWalletResp struct {
	Owner   string `json:"owner"`
	Address string `json:"address"`
}

const (
	StatusSubmitted = "SUBMITTED"
	StatusRejected  = "REJECTED"
)
