package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/jetton-slots/internal/chain"
	"github.com/radieske/jetton-slots/internal/game"
	"github.com/radieske/jetton-slots/internal/game-api/dto"
	"github.com/radieske/jetton-slots/internal/ledger"
	"github.com/radieske/jetton-slots/internal/ratelimit"
	"github.com/radieske/jetton-slots/internal/replay"
	"github.com/radieske/jetton-slots/internal/settlement"
	"github.com/radieske/jetton-slots/internal/shared/kv"
	"github.com/radieske/jetton-slots/internal/withdrawal"
)

const adminKey = "s3cret"

var testNow = time.UnixMilli(1_700_000_000_000)

type fixture struct {
	api     *API
	handler http.Handler
	store   *kv.Memory
	ledger  *ledger.Ledger

	seeds    []string
	red      bool
	chainErr error
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := func() time.Time { return testNow }
	f := &fixture{store: kv.NewMemory().WithClock(clock)}
	f.ledger = ledger.New(f.store, ledger.WithClock(clock))

	ids := 0
	engine := game.NewEngine(f.store, f.ledger, game.DefaultPaytable(),
		game.Settings{MaxBet: 1000, RoundTTL: time.Hour, DoubleUpTTL: 10 * time.Minute},
		game.WithSeedSource(func() (string, error) {
			if len(f.seeds) == 0 {
				return "", errors.New("no seeds queued")
			}
			s := f.seeds[0]
			f.seeds = f.seeds[1:]
			return s, nil
		}),
		game.WithCoin(func() (bool, error) { return f.red, nil }),
		game.WithIDs(func() string { ids++; return fmt.Sprintf("g%d", ids) }),
		game.WithClock(clock),
	)

	guard := replay.New(f.store, 5*time.Minute, 10*time.Minute, replay.WithClock(clock))
	wd := 0
	queue := withdrawal.NewQueue(f.store, f.ledger, guard, withdrawal.Settings{MinAmount: 1},
		withdrawal.WithClock(clock),
		withdrawal.WithIDs(func() string { wd++; return fmt.Sprintf("wd-%d", wd) }),
		withdrawal.WithOfferGate(engine),
	)

	sub := chain.FuncSubmitter{SubmitFunc: func(_ context.Context, tr chain.Transfer) (string, error) {
		if f.chainErr != nil {
			return "", f.chainErr
		}
		return "0xhash-" + tr.WithdrawalID, nil
	}}
	settler := settlement.New(queue, sub, sub, settlement.Settings{JettonDecimals: 9})

	f.api = &API{
		Engine:               engine,
		Ledger:               f.ledger,
		Queue:                queue,
		Settler:              settler,
		AdminKey:             adminKey,
		EstimatedProcessTime: "24 hours",
		Log:                  zap.NewNop(),
	}
	f.handler = f.api.Router()
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any, admin bool) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if admin {
		req.Header.Set("X-Admin-Key", adminKey)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (f *fixture) fund(t *testing.T, wallet string, amount float64) {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/admin/credit", dto.AdminCreditRequest{WalletAddress: wallet, Amount: amount}, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func (f *fixture) creditOf(t *testing.T, wallet string) dto.CreditResponse {
	t.Helper()
	rec := f.do(t, http.MethodGet, "/api/credit?walletAddress="+url.QueryEscape(wallet), nil, false)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decodeBody[dto.CreditResponse](t, rec)
}

// seedFor procura uma server seed cujo resultado satisfaz pred.
func seedFor(t *testing.T, p *game.Paytable, clientSeed string, bet float64, pred func(game.Outcome) bool) string {
	t.Helper()
	for i := 0; i < 500_000; i++ {
		s := fmt.Sprintf("seed-%d", i)
		if pred(p.Evaluate(s, clientSeed, bet)) {
			return s
		}
	}
	t.Fatalf("no seed found for %q", clientSeed)
	return ""
}

func starTriple(o game.Outcome) bool {
	return o.Reels[0] == "⭐" && o.Reels[1] == "⭐" && o.Reels[2] == "⭐"
}

func loss(o game.Outcome) bool { return o.Winnings == 0 }

func TestSpinDoubleUpScenario(t *testing.T) {
	f := newFixture(t)
	p := f.api.Engine.Paytable()
	f.fund(t, "W1", 50)
	f.seeds = []string{seedFor(t, p, "c1", 10, loss), seedFor(t, p, "c2", 10, starTriple)}

	rec := f.do(t, http.MethodPost, "/api/spin", dto.SpinRequest{WalletAddress: "W1", BetAmount: 10, ClientSeed: "c1"}, false)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	spin := decodeBody[dto.SpinResponse](t, rec)
	assert.True(t, spin.Success)
	assert.Equal(t, 40.0, spin.NewCredit)
	assert.Len(t, spin.Reels, 3)

	rec = f.do(t, http.MethodPost, "/api/spin", dto.SpinRequest{WalletAddress: "W1", BetAmount: 10, ClientSeed: "c2"}, false)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	spin = decodeBody[dto.SpinResponse](t, rec)
	assert.Equal(t, 15.0, spin.Winnings)
	assert.Equal(t, 45.0, spin.NewCredit)
	assert.True(t, spin.CanDoubleUp)

	// giro bloqueado enquanto o double-up está pendente
	rec = f.do(t, http.MethodPost, "/api/spin", dto.SpinRequest{WalletAddress: "W1", BetAmount: 10, ClientSeed: "c3"}, false)
	assert.Equal(t, http.StatusConflict, rec.Code)

	cr := f.creditOf(t, "W1")
	assert.Equal(t, 45.0, cr.Credit)
	assert.True(t, cr.CanDoubleUp)
	assert.Equal(t, 15.0, cr.PendingWinnings)

	f.red = false
	rec = f.do(t, http.MethodPost, "/api/double-up", dto.DoubleUpRequest{WalletAddress: "W1", Choice: "red", GameID: spin.GameID, CurrentWin: 15}, false)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	du := decodeBody[dto.DoubleUpResponse](t, rec)
	assert.False(t, du.Won)
	assert.Equal(t, "black", du.Result)
	assert.Equal(t, 30.0, du.NewCredit)

	// a mesma rodada não pode ser dobrada de novo
	rec = f.do(t, http.MethodPost, "/api/double-up", dto.DoubleUpRequest{WalletAddress: "W1", Choice: "red", GameID: spin.GameID, CurrentWin: 15}, false)
	assert.Equal(t, http.StatusConflict, rec.Code)
	env := decodeBody[dto.Envelope](t, rec)
	assert.False(t, env.Success)
	assert.NotEmpty(t, env.Error)

	assert.Equal(t, 30.0, f.creditOf(t, "W1").Credit)

	rec = f.do(t, http.MethodPost, "/api/withdraw-request", withdrawBody(20, "n1", testNow), false)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 10.0, f.creditOf(t, "W1").Credit)

	rec = f.do(t, http.MethodPost, "/api/withdraw-request", withdrawBody(20, "n1", testNow), false)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, 10.0, f.creditOf(t, "W1").Credit)

	rec = f.do(t, http.MethodGet, "/api/admin/pending-withdrawals", nil, true)
	pending := decodeBody[dto.WithdrawalListResponse](t, rec)
	require.Equal(t, 1, pending.Count)
	assert.Equal(t, 20.0, pending.Withdrawals[0].Amount)
}

func TestSpinErrors(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "W1", 5)

	cases := []struct {
		name string
		body any
		code int
	}{
		{"missing wallet", dto.SpinRequest{BetAmount: 1, ClientSeed: "c"}, http.StatusBadRequest},
		{"zero bet", dto.SpinRequest{WalletAddress: "W1", ClientSeed: "c"}, http.StatusBadRequest},
		{"no client seed", dto.SpinRequest{WalletAddress: "W1", BetAmount: 1}, http.StatusBadRequest},
		{"over credit", dto.SpinRequest{WalletAddress: "W1", BetAmount: 10, ClientSeed: "c"}, http.StatusBadRequest},
		{"bad json", "not an object", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/spin", tc.body, false)
			assert.Equal(t, tc.code, rec.Code)
			env := decodeBody[dto.Envelope](t, rec)
			assert.False(t, env.Success)
		})
	}
	assert.Equal(t, 5.0, f.creditOf(t, "W1").Credit)
}

func TestCollectAndVerify(t *testing.T) {
	f := newFixture(t)
	p := f.api.Engine.Paytable()
	f.fund(t, "W1", 20)
	f.seeds = []string{seedFor(t, p, "c1", 10, starTriple)}

	rec := f.do(t, http.MethodPost, "/api/spin", dto.SpinRequest{WalletAddress: "W1", BetAmount: 10, ClientSeed: "c1"}, false)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	spin := decodeBody[dto.SpinResponse](t, rec)

	rec = f.do(t, http.MethodPost, "/api/collect", dto.CollectRequest{WalletAddress: "W1"}, false)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	col := decodeBody[dto.CollectResponse](t, rec)
	assert.Equal(t, 15.0, col.Collected)
	assert.Equal(t, 25.0, col.Credit)

	rec = f.do(t, http.MethodPost, "/api/collect", dto.CollectRequest{WalletAddress: "W1"}, false)
	assert.Equal(t, http.StatusConflict, rec.Code)

	q := url.Values{}
	q.Set("serverSeed", spin.ServerSeed)
	q.Set("clientSeed", "c1")
	q.Set("betAmount", "10")
	q.Set("hashedServerSeed", spin.HashedServerSeed)
	rec = f.do(t, http.MethodGet, "/api/verify?"+q.Encode(), nil, false)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	v := decodeBody[dto.VerifyResponse](t, rec)
	assert.Equal(t, spin.Reels, v.Reels)
	assert.Equal(t, spin.Winnings, v.Winnings)
	require.NotNil(t, v.HashMatches)
	assert.True(t, *v.HashMatches)

	rec = f.do(t, http.MethodGet, "/api/verify?gameId="+spin.GameID, nil, false)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	v = decodeBody[dto.VerifyResponse](t, rec)
	assert.Equal(t, spin.Reels, v.Reels)

	rec = f.do(t, http.MethodGet, "/api/verify?gameId=missing", nil, false)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/verify?clientSeed=c1", nil, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func withdrawBody(amount float64, nonce string, ts time.Time) dto.WithdrawRequest {
	return dto.WithdrawRequest{Action: "withdraw", Amount: amount, UserAddress: "W1", Timestamp: ts.UnixMilli(), Nonce: nonce}
}

func TestWithdrawRequestIsIdempotentPerNonce(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "W1", 100)

	rec := f.do(t, http.MethodPost, "/api/withdraw-request", withdrawBody(30, "n-1", testNow), false)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody[dto.WithdrawResponse](t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, "wd-1", resp.WithdrawalID)
	assert.Equal(t, "24 hours", resp.EstimatedProcessTime)
	assert.Equal(t, 70.0, resp.NewCredit)

	rec = f.do(t, http.MethodPost, "/api/withdraw-request", withdrawBody(30, "n-1", testNow), false)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, 70.0, f.creditOf(t, "W1").Credit)

	rec = f.do(t, http.MethodGet, "/api/admin/pending-withdrawals", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[dto.WithdrawalListResponse](t, rec)
	assert.Equal(t, 1, list.Count)
}

func TestWithdrawBlockedWhileDoubleUpPending(t *testing.T) {
	f := newFixture(t)
	p := f.api.Engine.Paytable()
	f.fund(t, "W1", 50)
	f.seeds = []string{seedFor(t, p, "c1", 10, starTriple)}

	rec := f.do(t, http.MethodPost, "/api/spin", dto.SpinRequest{WalletAddress: "W1", BetAmount: 10, ClientSeed: "c1"}, false)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	spin := decodeBody[dto.SpinResponse](t, rec)
	require.True(t, spin.CanDoubleUp)
	require.Equal(t, 55.0, spin.NewCredit)

	rec = f.do(t, http.MethodPost, "/api/withdraw-request", withdrawBody(55, "n1", testNow), false)
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	assert.Equal(t, 55.0, f.creditOf(t, "W1").Credit)

	// perdendo o double-up o prêmio volta inteiro para a casa
	f.red = false
	rec = f.do(t, http.MethodPost, "/api/double-up", dto.DoubleUpRequest{WalletAddress: "W1", Choice: "red"}, false)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 40.0, decodeBody[dto.DoubleUpResponse](t, rec).NewCredit)

	rec = f.do(t, http.MethodPost, "/api/withdraw-request", withdrawBody(40, "n1", testNow), false)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 0.0, f.creditOf(t, "W1").Credit)

	rec = f.do(t, http.MethodGet, "/api/admin/pending-withdrawals", nil, true)
	pending := decodeBody[dto.WithdrawalListResponse](t, rec)
	require.Equal(t, 1, pending.Count)
	assert.Equal(t, 40.0, pending.Withdrawals[0].Amount)
}

func TestWithdrawRequestRejections(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "W1", 10)

	wrongAction := withdrawBody(5, "a", testNow)
	wrongAction.Action = "deposit"

	cases := []struct {
		name string
		body dto.WithdrawRequest
		code int
	}{
		{"wrong action", wrongAction, http.StatusBadRequest},
		{"stale", withdrawBody(5, "b", testNow.Add(-10*time.Minute)), http.StatusUnauthorized},
		{"no nonce", withdrawBody(5, "", testNow), http.StatusBadRequest},
		{"over credit", withdrawBody(50, "c", testNow), http.StatusBadRequest},
		{"non positive", withdrawBody(-1, "d", testNow), http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/withdraw-request", tc.body, false)
			assert.Equal(t, tc.code, rec.Code, rec.Body.String())
		})
	}
	assert.Equal(t, 10.0, f.creditOf(t, "W1").Credit)
}

func TestAdminRequiresKey(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/admin/pending-withdrawals", nil, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	f.api.AdminKey = ""
	h := f.api.Router()
	req := httptest.NewRequest(http.MethodGet, "/api/admin/pending-withdrawals", nil)
	req.Header.Set("X-Admin-Key", "")
	out := httptest.NewRecorder()
	h.ServeHTTP(out, req)
	assert.Equal(t, http.StatusForbidden, out.Code)
}

func TestAdminMarkProcessedFlow(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "W1", 100)
	rec := f.do(t, http.MethodPost, "/api/withdraw-request", withdrawBody(40, "n-1", testNow), false)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/admin/mark-processed", dto.MarkProcessedRequest{WithdrawalID: "wd-1"}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/admin/mark-processed", dto.MarkProcessedRequest{WithdrawalID: "nope", TxHash: "0x1"}, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/admin/mark-processed", dto.MarkProcessedRequest{WithdrawalID: "wd-1", TxHash: "0x1"}, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody[dto.WithdrawalResponse](t, rec)
	assert.Equal(t, withdrawal.StatusProcessed, resp.Withdrawal.Status)
	require.NotNil(t, resp.Changed)
	assert.True(t, *resp.Changed)

	rec = f.do(t, http.MethodPost, "/api/admin/mark-processed", dto.MarkProcessedRequest{WithdrawalID: "wd-1", TxHash: "0x1"}, true)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decodeBody[dto.WithdrawalResponse](t, rec)
	assert.False(t, *resp.Changed)

	rec = f.do(t, http.MethodGet, "/api/admin/pending-withdrawals", nil, true)
	assert.Equal(t, 0, decodeBody[dto.WithdrawalListResponse](t, rec).Count)

	rec = f.do(t, http.MethodGet, "/api/admin/processed-withdrawals?limit=5", nil, true)
	processed := decodeBody[dto.WithdrawalListResponse](t, rec)
	require.Equal(t, 1, processed.Count)
	assert.Equal(t, "0x1", processed.Withdrawals[0].TxHash)

	rec = f.do(t, http.MethodGet, "/api/admin/processed-withdrawals?limit=-1", nil, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/admin/withdrawals/wd-1", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0x1", decodeBody[dto.WithdrawalResponse](t, rec).Withdrawal.TxHash)

	// credito não muda ao processar
	assert.Equal(t, 60.0, f.creditOf(t, "W1").Credit)
}

func TestAdminSettle(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "W1", 100)
	for i := 1; i <= 2; i++ {
		rec := f.do(t, http.MethodPost, "/api/withdraw-request", withdrawBody(10, fmt.Sprintf("n-%d", i), testNow), false)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := f.do(t, http.MethodPost, "/api/admin/settle", dto.SettleRequest{WithdrawalIDs: []string{"wd-2"}}, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rep := decodeBody[dto.SettleResponse](t, rec)
	assert.Equal(t, 1, rep.Settled)
	require.Len(t, rep.Results, 1)
	assert.Equal(t, "0xhash-wd-2", rep.Results[0].TxHash)

	f.chainErr = fmt.Errorf("%w: insufficient jetton balance", chain.ErrRejected)
	rec = f.do(t, http.MethodPost, "/api/admin/settle", dto.SettleRequest{}, true)
	require.Equal(t, http.StatusOK, rec.Code)
	rep = decodeBody[dto.SettleResponse](t, rec)
	assert.Equal(t, 1, rep.Failed)
	assert.Equal(t, 0, rep.Settled)

	f.chainErr = nil
	rec = f.do(t, http.MethodPost, "/api/admin/settle", dto.SettleRequest{Limit: 10}, true)
	rep = decodeBody[dto.SettleResponse](t, rec)
	assert.Equal(t, 1, rep.Settled)

	rec = f.do(t, http.MethodGet, "/api/admin/withdrawals/wd-1/attempts", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	att := decodeBody[dto.AttemptsResponse](t, rec)
	assert.Empty(t, att.Attempts)

	rec = f.do(t, http.MethodGet, "/api/admin/withdrawals/unknown/attempts", nil, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	f.api.Settler = nil
	f.handler = f.api.Router()
	rec = f.do(t, http.MethodPost, "/api/admin/settle", dto.SettleRequest{}, true)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRateLimitedEndpoint(t *testing.T) {
	f := newFixture(t)
	f.api.Limiter = ratelimit.New(f.store, map[string]ratelimit.Policy{
		"credit": {Limit: 1, Window: time.Minute},
	}, ratelimit.WithClock(func() time.Time { return testNow }))
	f.handler = f.api.Router()

	rec := f.do(t, http.MethodGet, "/api/credit?walletAddress=W1", nil, false)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/credit?walletAddress=W1", nil, false)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "61", rec.Header().Get("Retry-After"))
	assert.False(t, decodeBody[dto.Envelope](t, rec).Success)

	// endpoint sem política não é afetado
	rec = f.do(t, http.MethodGet, "/api/verify?serverSeed=a&clientSeed=b", nil, false)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSAndUnknownRoutes(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/spin", nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = f.do(t, http.MethodGet, "/api/nothing", nil, false)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, decodeBody[dto.Envelope](t, rec).Success)

	rec = f.do(t, http.MethodGet, "/api/spin", nil, false)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRecovererReturnsJSON(t *testing.T) {
	a := &API{Log: zap.NewNop()}
	h := a.recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	env := decodeBody[dto.Envelope](t, rec)
	assert.Equal(t, "internal error", env.Error)
}

func TestStatusMapping(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, statusFor(replay.ErrStale))
	assert.Equal(t, http.StatusConflict, statusFor(replay.ErrNonceReused))
	assert.Equal(t, http.StatusInternalServerError, statusFor(replay.ErrUnavailable))
	assert.Equal(t, http.StatusForbidden, statusFor(game.ErrWalletMismatch))
	assert.Equal(t, http.StatusBadGateway, statusFor(fmt.Errorf("submit: %w", chain.ErrRejected)))
	assert.Equal(t, http.StatusBadRequest, statusFor(withdrawal.ErrInsufficientCredit))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
}
