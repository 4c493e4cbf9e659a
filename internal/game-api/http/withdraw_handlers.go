package httpapi

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/radieske/jetton-slots/internal/game-api/dto"
	"github.com/radieske/jetton-slots/internal/ledger"
	"github.com/radieske/jetton-slots/internal/settlement"
	"github.com/radieske/jetton-slots/internal/withdrawal"
)

func (a *API) withdrawRequest(w http.ResponseWriter, r *http.Request) {
	var req dto.WithdrawRequest
	if err := decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if req.Action != "withdraw" {
		a.fail(w, r, errInvalidAction)
		return
	}

	rcpt, err := a.Queue.Request(r.Context(), withdrawal.Request{
		Wallet:    req.UserAddress,
		Amount:    req.Amount,
		Nonce:     req.Nonce,
		Timestamp: req.Timestamp,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.WithdrawResponse{
		Envelope:             ok(),
		WithdrawalID:         rcpt.Record.ID,
		Amount:               rcpt.Record.Amount,
		NewCredit:            rcpt.CreditAfter,
		EstimatedProcessTime: a.EstimatedProcessTime,
	})
}

func (a *API) pendingWithdrawals(w http.ResponseWriter, r *http.Request) {
	recs, err := a.Queue.ListPending(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.WithdrawalListResponse{Envelope: ok(), Withdrawals: recs, Count: len(recs)})
}

func (a *API) processedWithdrawals(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	recs, err := a.Queue.ListProcessed(r.Context(), limit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.WithdrawalListResponse{Envelope: ok(), Withdrawals: recs, Count: len(recs)})
}

func (a *API) getWithdrawal(w http.ResponseWriter, r *http.Request) {
	rec, err := a.Queue.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.WithdrawalResponse{Envelope: ok(), Withdrawal: rec})
}

func (a *API) markProcessed(w http.ResponseWriter, r *http.Request) {
	var req dto.MarkProcessedRequest
	if err := decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	rec, changed, err := a.Queue.MarkProcessed(r.Context(), req.WithdrawalID, req.TxHash)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.Log.Info("withdrawal marked processed by operator",
		zap.String("withdrawal_id", rec.ID), zap.String("tx_hash", rec.TxHash), zap.Bool("changed", changed))
	writeJSON(w, http.StatusOK, dto.WithdrawalResponse{Envelope: ok(), Withdrawal: rec, Changed: &changed})
}

// adjustCredit substitui a confirmação de depósito on-chain
func (a *API) adjustCredit(w http.ResponseWriter, r *http.Request) {
	var req dto.AdminCreditRequest
	if err := decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if strings.TrimSpace(req.WalletAddress) == "" {
		a.fail(w, r, ledger.ErrInvalidWallet)
		return
	}
	if req.Amount == 0 || math.IsNaN(req.Amount) || math.IsInf(req.Amount, 0) {
		a.fail(w, r, errInvalidAdjustment)
		return
	}

	credit, err := a.Ledger.Add(r.Context(), req.WalletAddress, req.Amount)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.Log.Info("credit adjusted by operator",
		zap.String("wallet", strings.TrimSpace(req.WalletAddress)), zap.Float64("delta", req.Amount), zap.Float64("credit", credit))
	writeJSON(w, http.StatusOK, dto.AdminCreditResponse{
		Envelope:      ok(),
		WalletAddress: strings.TrimSpace(req.WalletAddress),
		Credit:        credit,
	})
}

func (a *API) settle(w http.ResponseWriter, r *http.Request) {
	if a.Settler == nil {
		a.fail(w, r, errSettlementDisabled)
		return
	}
	var req dto.SettleRequest
	if err := decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if req.Limit < 0 {
		a.fail(w, r, errInvalidLimit)
		return
	}

	var (
		report settlement.Report
		err    error
	)
	if len(req.WithdrawalIDs) > 0 {
		report, err = a.Settler.SettleIDs(r.Context(), req.WithdrawalIDs)
	} else {
		report, err = a.Settler.SettleBatch(r.Context(), req.Limit)
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.SettleResponse{Envelope: ok(), Report: report})
}

func (a *API) attempts(w http.ResponseWriter, r *http.Request) {
	if a.Settler == nil {
		a.fail(w, r, errSettlementDisabled)
		return
	}
	id := chi.URLParam(r, "id")
	// 404 para ids desconhecidos em vez de lista vazia
	if _, err := a.Queue.Get(r.Context(), id); err != nil {
		a.fail(w, r, err)
		return
	}
	list, err := a.Settler.Attempts(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if list == nil {
		list = []settlement.Attempt{}
	}
	writeJSON(w, http.StatusOK, dto.AttemptsResponse{Envelope: ok(), WithdrawalID: id, Attempts: list})
}

func queryLimit(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q", errInvalidLimit, raw)
	}
	return n, nil
}
