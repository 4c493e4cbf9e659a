package topics

const (
	// Rodadas
	RoundResolved = "round_resolved"

	// Saques
	WithdrawalRequested        = "withdrawal_requested"
	WithdrawalSettled          = "withdrawal_settled"
	WithdrawalSettlementFailed = "withdrawal_settlement_failed"
)
