package dto

import (
	"github.com/radieske/jetton-slots/internal/settlement"
	"github.com/radieske/jetton-slots/internal/withdrawal"
)

// Envelope é a base de toda resposta: success sempre presente, error só em falha.
type Envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type SpinResponse struct {
	Envelope
	GameID           string   `json:"gameId"`
	Reels            []string `json:"reels"`
	Winnings         float64  `json:"winnings"`
	NewCredit        float64  `json:"newCredit"`
	IsJackpot        bool     `json:"isJackpot"`
	CanDoubleUp      bool     `json:"canDoubleUp"`
	PendingWinnings  float64  `json:"pendingWinnings"`
	HashedServerSeed string   `json:"hashedServerSeed"`
	ServerSeed       string   `json:"serverSeed"`
}

type DoubleUpResponse struct {
	Envelope
	GameID    string  `json:"gameId"`
	Won       bool    `json:"won"`
	Choice    string  `json:"choice"`
	Result    string  `json:"result"`
	Amount    float64 `json:"amount"`
	NewCredit float64 `json:"newCredit"`
}

type CollectResponse struct {
	Envelope
	GameID    string  `json:"gameId,omitempty"`
	Collected float64 `json:"collected"`
	Credit    float64 `json:"credit"`
}

type CreditResponse struct {
	Envelope
	WalletAddress   string  `json:"walletAddress"`
	Credit          float64 `json:"credit"`
	CanDoubleUp     bool    `json:"canDoubleUp"`
	PendingWinnings float64 `json:"pendingWinnings"`
	GameID          string  `json:"gameId,omitempty"`
	LastUpdated     int64   `json:"lastUpdated,omitempty"`
}

type VerifyResponse struct {
	Envelope
	Reels            []string `json:"reels"`
	Winnings         float64  `json:"winnings"`
	IsJackpot        bool     `json:"isJackpot"`
	Multiplier       float64  `json:"multiplier"`
	HashedServerSeed string   `json:"hashedServerSeed"`
	HashMatches      *bool    `json:"hashMatches,omitempty"`
}

type WithdrawResponse struct {
	Envelope
	WithdrawalID         string  `json:"withdrawalId"`
	Amount               float64 `json:"amount"`
	NewCredit            float64 `json:"newCredit"`
	EstimatedProcessTime string  `json:"estimatedProcessTime"`
}

type WithdrawalListResponse struct {
	Envelope
	Withdrawals []withdrawal.Record `json:"withdrawals"`
	Count       int                 `json:"count"`
}

type WithdrawalResponse struct {
	Envelope
	Withdrawal withdrawal.Record `json:"withdrawal"`
	// false quando o saque já estava processado
	Changed *bool `json:"changed,omitempty"`
}

type AdminCreditResponse struct {
	Envelope
	WalletAddress string  `json:"walletAddress"`
	Credit        float64 `json:"credit"`
}

type SettleResponse struct {
	Envelope
	settlement.Report
}

type AttemptsResponse struct {
	Envelope
	WithdrawalID string               `json:"withdrawalId"`
	Attempts     []settlement.Attempt `json:"attempts"`
}
