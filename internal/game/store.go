package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/radieske/jetton-slots/internal/shared/kv"
)

// Round é gravado em game:<id> no giro e fica imutável até expirar.
type Round struct {
	GameID           string   `json:"gameId"`
	WalletAddress    string   `json:"walletAddress"`
	BetAmount        float64  `json:"betAmount"`
	Reels            []string `json:"reels"`
	TotalWin         float64  `json:"totalWin"`
	IsJackpot        bool     `json:"isJackpot"`
	ClientSeed       string   `json:"clientSeed"`
	ServerSeed       string   `json:"serverSeed"`
	HashedServerSeed string   `json:"hashedServerSeed"`
	Timestamp        int64    `json:"timestamp"`
}

// PlayerState é o esquema unificado de state:<wallet>. O saldo fica só no ledger.
type PlayerState struct {
	CanDoubleUp     bool    `json:"canDoubleUp"`
	PendingWinnings float64 `json:"pendingWinnings"`
	GameID          string  `json:"gameId,omitempty"`
	UpdatedAt       int64   `json:"updatedAt,omitempty"`
}

func RoundKey(gameID string) string        { return "game:" + gameID }
func DoubleUpUsedKey(gameID string) string { return "doubleup_used:" + gameID }
func StateKey(wallet string) string        { return "state:" + wallet }

func (e *Engine) loadState(ctx context.Context, wallet string) (PlayerState, error) {
	raw, err := e.store.Get(ctx, StateKey(wallet))
	if errors.Is(err, kv.ErrNotFound) {
		return PlayerState{}, nil
	}
	if err != nil {
		return PlayerState{}, fmt.Errorf("%w: load state: %v", ErrUnavailable, err)
	}
	var st PlayerState
	if err := json.Unmarshal(raw, &st); err != nil {
		e.log.Warn("unparseable player state, resetting", zap.String("wallet", wallet), zap.Error(err))
		return PlayerState{}, nil
	}
	return st, nil
}

func (e *Engine) saveState(ctx context.Context, wallet string, st PlayerState) error {
	if err := kv.PutJSON(ctx, e.store, StateKey(wallet), st, 0); err != nil {
		return fmt.Errorf("%w: save state: %v", ErrUnavailable, err)
	}
	return nil
}
