package events

import "time"

// Evento publicado após cada giro e após cada double-up.
type RoundResolved struct {
	GameID        string    `json:"game_id"`
	WalletAddress string    `json:"wallet_address"`
	Kind          string    `json:"kind"` // "spin" | "double_up" | "collect"
	BetAmount     float64   `json:"bet_amount"`
	Reels         []string  `json:"reels,omitempty"`
	Winnings      float64   `json:"winnings"`
	IsJackpot     bool      `json:"is_jackpot,omitempty"`
	DoubleUpWon   *bool     `json:"double_up_won,omitempty"`
	CreditAfter   float64   `json:"credit_after"`
	HashedSeed    string    `json:"hashed_server_seed,omitempty"`
	Ts            time.Time `json:"ts"`
}
