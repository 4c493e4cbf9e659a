package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/radieske/jetton-slots/internal/game"
	"github.com/radieske/jetton-slots/internal/game-api/dto"
	"github.com/radieske/jetton-slots/internal/ledger"
)

func (a *API) spin(w http.ResponseWriter, r *http.Request) {
	var req dto.SpinRequest
	if err := decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	res, err := a.Engine.Spin(r.Context(), req.WalletAddress, req.BetAmount, req.ClientSeed)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.SpinResponse{
		Envelope:         ok(),
		GameID:           res.GameID,
		Reels:            res.Reels,
		Winnings:         res.Winnings,
		NewCredit:        res.NewCredit,
		IsJackpot:        res.IsJackpot,
		CanDoubleUp:      res.CanDoubleUp,
		PendingWinnings:  res.PendingWinnings,
		HashedServerSeed: res.HashedServerSeed,
		ServerSeed:       res.ServerSeed,
	})
}

func (a *API) doubleUp(w http.ResponseWriter, r *http.Request) {
	var req dto.DoubleUpRequest
	if err := decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	res, err := a.Engine.DoubleUp(r.Context(), game.DoubleUpRequest{
		Wallet:     req.WalletAddress,
		GameID:     req.GameID,
		Choice:     req.Choice,
		CurrentWin: req.CurrentWin,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.DoubleUpResponse{
		Envelope:  ok(),
		GameID:    res.GameID,
		Won:       res.Won,
		Choice:    res.Choice,
		Result:    res.Outcome,
		Amount:    res.Amount,
		NewCredit: res.NewCredit,
	})
}

func (a *API) collect(w http.ResponseWriter, r *http.Request) {
	var req dto.CollectRequest
	if err := decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	res, err := a.Engine.Collect(r.Context(), req.WalletAddress)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.CollectResponse{
		Envelope:  ok(),
		GameID:    res.GameID,
		Collected: res.Collected,
		Credit:    res.Credit,
	})
}

// credit: GET /api/credit?walletAddress=
func (a *API) credit(w http.ResponseWriter, r *http.Request) {
	wallet := strings.TrimSpace(r.URL.Query().Get("walletAddress"))
	if wallet == "" {
		a.fail(w, r, ledger.ErrInvalidWallet)
		return
	}

	rec, err := a.Ledger.GetRecord(r.Context(), wallet)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	st, err := a.Engine.State(r.Context(), wallet)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.CreditResponse{
		Envelope:        ok(),
		WalletAddress:   wallet,
		Credit:          rec.Credit,
		CanDoubleUp:     st.CanDoubleUp,
		PendingWinnings: st.PendingWinnings,
		GameID:          st.GameID,
		LastUpdated:     rec.LastUpdated,
	})
}

// verify recalcula uma rodada. Com gameId e sem serverSeed usa as seeds gravadas.
func (a *API) verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	serverSeed := q.Get("serverSeed")
	clientSeed := q.Get("clientSeed")
	expected := q.Get("hashedServerSeed")

	var bet float64
	if raw := strings.TrimSpace(q.Get("betAmount")); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			a.fail(w, r, fmt.Errorf("%w: betAmount %q", game.ErrInvalidBet, raw))
			return
		}
		bet = v
	}

	if gameID := strings.TrimSpace(q.Get("gameId")); gameID != "" && serverSeed == "" {
		round, err := a.Engine.Round(r.Context(), gameID)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		serverSeed, clientSeed, bet = round.ServerSeed, round.ClientSeed, round.BetAmount
		if expected == "" {
			expected = round.HashedServerSeed
		}
	}

	v, err := a.Engine.Paytable().Verify(serverSeed, clientSeed, bet, expected)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.VerifyResponse{
		Envelope:         ok(),
		Reels:            v.Reels,
		Winnings:         v.Winnings,
		IsJackpot:        v.IsJackpot,
		Multiplier:       v.Multiplier,
		HashedServerSeed: v.HashedServerSeed,
		HashMatches:      v.HashMatches,
	})
}
