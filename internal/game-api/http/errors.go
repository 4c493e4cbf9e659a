package httpapi

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/radieske/jetton-slots/internal/chain"
	"github.com/radieske/jetton-slots/internal/game"
	"github.com/radieske/jetton-slots/internal/ledger"
	"github.com/radieske/jetton-slots/internal/replay"
	"github.com/radieske/jetton-slots/internal/settlement"
	"github.com/radieske/jetton-slots/internal/withdrawal"
)

var (
	errBadJSON            = errors.New("invalid JSON body")
	errInvalidAction      = errors.New(`action must be "withdraw"`)
	errInvalidAdjustment  = errors.New("amount must be a non-zero finite number")
	errInvalidLimit       = errors.New("limit must be a non-negative integer")
	errSettlementDisabled = errors.New("settlement not configured")
)

var statusByError = []struct {
	err    error
	status int
}{
	{errBadJSON, http.StatusBadRequest},
	{errInvalidAction, http.StatusBadRequest},
	{errInvalidAdjustment, http.StatusBadRequest},
	{errInvalidLimit, http.StatusBadRequest},
	{ledger.ErrInvalidWallet, http.StatusBadRequest},
	{ledger.ErrInsufficientCredit, http.StatusBadRequest},
	{game.ErrInvalidBet, http.StatusBadRequest},
	{game.ErrInvalidClientSeed, http.StatusBadRequest},
	{game.ErrInvalidServerSeed, http.StatusBadRequest},
	{game.ErrInvalidChoice, http.StatusBadRequest},
	{game.ErrInvalidWin, http.StatusBadRequest},
	{game.ErrWinMismatch, http.StatusBadRequest},
	{withdrawal.ErrInvalidAmount, http.StatusBadRequest},
	{withdrawal.ErrInvalidTxHash, http.StatusBadRequest},
	{withdrawal.ErrInvalidID, http.StatusBadRequest},
	{replay.ErrInvalidNonce, http.StatusBadRequest},

	{replay.ErrStale, http.StatusUnauthorized},
	{game.ErrWalletMismatch, http.StatusForbidden},

	{game.ErrRoundNotFound, http.StatusNotFound},
	{withdrawal.ErrNotFound, http.StatusNotFound},

	{replay.ErrNonceReused, http.StatusConflict},
	{game.ErrRoundAlreadyUsed, http.StatusConflict},
	{game.ErrDoubleUpPending, http.StatusConflict},
	{game.ErrNoDoubleUpOffer, http.StatusConflict},
	{settlement.ErrInFlight, http.StatusConflict},

	{chain.ErrRejected, http.StatusBadGateway},
	{chain.ErrUnavailable, http.StatusBadGateway},
	{errSettlementDisabled, http.StatusServiceUnavailable},
}

func statusFor(err error) int {
	for _, m := range statusByError {
		if errors.Is(err, m.err) {
			return m.status
		}
	}
	return http.StatusInternalServerError
}

// fail traduz o erro de domínio. 5xx não expõe detalhes internos ao cliente.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		a.Log.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestID(r)),
			zap.Int("status", status),
			zap.Error(err),
		)
		switch status {
		case http.StatusInternalServerError:
			writeError(w, status, "internal error")
		case http.StatusBadGateway:
			writeError(w, status, "upstream error: "+err.Error())
		default:
			writeError(w, status, err.Error())
		}
		return
	}
	writeError(w, status, err.Error())
}
