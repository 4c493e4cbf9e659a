// Package settlement executa, por comando do operador, as transferências on-chain
// dos saques pendentes e marca cada um como processado.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/radieske/jetton-slots/internal/chain"
	"github.com/radieske/jetton-slots/internal/shared/logger"
	"github.com/radieske/jetton-slots/internal/shared/metrics"
	"github.com/radieske/jetton-slots/internal/shared/money"
	"github.com/radieske/jetton-slots/internal/withdrawal"
	"github.com/radieske/jetton-slots/pkg/contracts/events"
)

var ErrInFlight = errors.New("settlement already in progress for withdrawal")

const (
	StatusSettled = "settled"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

type Queue interface {
	Get(ctx context.Context, id string) (withdrawal.Record, error)
	ListPending(ctx context.Context) ([]withdrawal.Record, error)
	MarkProcessed(ctx context.Context, id, txHash string) (withdrawal.Record, bool, error)
}

type Publisher interface {
	PublishWithdrawalSettled(ctx context.Context, e events.WithdrawalSettled) error
	PublishSettlementFailed(ctx context.Context, e events.WithdrawalSettlementFailed) error
}

type Settings struct {
	// intervalo mínimo entre submissões consecutivas
	Delay          time.Duration
	JettonDecimals int32
}

type Result struct {
	WithdrawalID  string  `json:"withdrawalId"`
	WalletAddress string  `json:"walletAddress,omitempty"`
	Amount        float64 `json:"amount,omitempty"`
	Status        string  `json:"status"`
	TxHash        string  `json:"txHash,omitempty"`
	Error         string  `json:"error,omitempty"`
}

type Report struct {
	Results []Result `json:"results"`
	Settled int      `json:"settled"`
	Failed  int      `json:"failed"`
	Skipped int      `json:"skipped"`
}

func (r *Report) add(res Result) {
	r.Results = append(r.Results, res)
	switch res.Status {
	case StatusSettled:
		r.Settled++
	case StatusFailed:
		r.Failed++
	default:
		r.Skipped++
	}
}

type Settler struct {
	queue     Queue
	submitter chain.Submitter
	resolver  chain.AddressResolver
	settings  Settings

	journal Journal
	pub     Publisher
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu       sync.Mutex
	inFlight map[string]struct{}
	// hashes aceitos pela chain cujo MarkProcessed ainda não confirmou
	submitted map[string]string
}

type Option func(*Settler)

func WithJournal(j Journal) Option { return func(s *Settler) { s.journal = j } }

func WithPublisher(p Publisher) Option { return func(s *Settler) { s.pub = p } }

func WithLogger(l *zap.Logger) Option { return func(s *Settler) { s.log = logger.OrNop(l) } }

func WithMetrics(m *metrics.Metrics) Option { return func(s *Settler) { s.metrics = m } }

func WithClock(now func() time.Time) Option { return func(s *Settler) { s.now = now } }

func New(q Queue, sub chain.Submitter, res chain.AddressResolver, st Settings, opts ...Option) *Settler {
	if res == nil {
		res = chain.FuncSubmitter{}
	}
	s := &Settler{
		queue:     q,
		submitter: sub,
		resolver:  res,
		settings:  st,
		log:       zap.NewNop(),
		now:       time.Now,
		inFlight:  make(map[string]struct{}),
		submitted: make(map[string]string),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SettleOne envia a transferência de um saque pendente e o marca como processado.
// Saques já processados voltam como skipped sem erro.
func (s *Settler) SettleOne(ctx context.Context, id string) (Result, error) {
	id = strings.TrimSpace(id)
	rec, err := s.queue.Get(ctx, id)
	if err != nil {
		return Result{WithdrawalID: id, Status: StatusFailed, Error: err.Error()}, err
	}
	res := Result{WithdrawalID: rec.ID, WalletAddress: rec.WalletAddress, Amount: rec.Amount}
	if rec.Status == withdrawal.StatusProcessed {
		res.Status = StatusSkipped
		res.TxHash = rec.TxHash
		s.metrics.Settlement(StatusSkipped, 0)
		return res, nil
	}

	if !s.begin(rec.ID) {
		res.Status = StatusSkipped
		res.Error = ErrInFlight.Error()
		return res, ErrInFlight
	}
	defer s.end(rec.ID)

	// transferência já aceita antes: só falta marcar, nunca reenviar
	hash, err := s.previousSubmission(ctx, rec.ID)
	if err != nil {
		return s.fail(ctx, rec, res, err)
	}

	start := s.now()
	if hash == "" {
		hash, err = s.submit(ctx, rec)
		if err != nil {
			return s.fail(ctx, rec, res, err)
		}
		s.remember(rec.ID, hash)
		s.journalRecord(ctx, rec, AttemptSubmitted, hash, "")
	} else {
		s.log.Warn("reusing previous submission for withdrawal",
			zap.String("withdrawal_id", rec.ID), zap.String("tx_hash", hash))
	}

	if _, _, err := s.queue.MarkProcessed(ctx, rec.ID, hash); err != nil {
		res.Status = StatusFailed
		res.TxHash = hash
		res.Error = err.Error()
		s.metrics.Settlement(StatusFailed, 0)
		s.log.Error("transfer submitted but mark-processed failed; rerun settlement to finish",
			zap.String("withdrawal_id", rec.ID), zap.String("tx_hash", hash), zap.Error(err))
		return res, err
	}
	s.forget(rec.ID)

	res.Status = StatusSettled
	res.TxHash = hash
	s.metrics.Settlement(StatusSettled, s.now().Sub(start).Seconds())
	s.log.Info("withdrawal settled",
		zap.String("withdrawal_id", rec.ID),
		zap.String("wallet", rec.WalletAddress),
		zap.Float64("amount", rec.Amount),
		zap.String("tx_hash", hash),
	)

	if s.pub != nil {
		ev := events.WithdrawalSettled{
			WithdrawalID:  rec.ID,
			WalletAddress: rec.WalletAddress,
			Amount:        rec.Amount,
			TxHash:        hash,
			Ts:            s.now(),
		}
		if err := s.pub.PublishWithdrawalSettled(ctx, ev); err != nil {
			s.log.Warn("publish withdrawal_settled failed", zap.String("withdrawal_id", rec.ID), zap.Error(err))
		}
	}
	return res, nil
}

func (s *Settler) submit(ctx context.Context, rec withdrawal.Record) (string, error) {
	jw, err := s.resolver.JettonWallet(ctx, rec.WalletAddress)
	if err != nil {
		return "", fmt.Errorf("resolve jetton wallet: %w", err)
	}
	return s.submitter.Submit(ctx, chain.Transfer{
		WithdrawalID: rec.ID,
		Destination:  rec.WalletAddress,
		JettonWallet: jw,
		AmountNano:   money.ToNano(rec.Amount, s.settings.JettonDecimals),
		Memo:         "withdrawal " + rec.ID,
	})
}

func (s *Settler) fail(ctx context.Context, rec withdrawal.Record, res Result, err error) (Result, error) {
	res.Status = StatusFailed
	res.Error = err.Error()
	s.metrics.Settlement(StatusFailed, 0)
	s.journalRecord(ctx, rec, AttemptFailed, "", err.Error())
	s.log.Error("settlement failed, left pending for retry",
		zap.String("withdrawal_id", rec.ID),
		zap.String("wallet", rec.WalletAddress),
		zap.Float64("amount", rec.Amount),
		zap.Error(err),
	)
	if s.pub != nil {
		ev := events.WithdrawalSettlementFailed{
			WithdrawalID:  rec.ID,
			WalletAddress: rec.WalletAddress,
			Amount:        rec.Amount,
			Reason:        err.Error(),
			Ts:            s.now(),
		}
		if perr := s.pub.PublishSettlementFailed(ctx, ev); perr != nil {
			s.log.Warn("publish settlement_failed failed", zap.String("withdrawal_id", rec.ID), zap.Error(perr))
		}
	}
	return res, err
}

// SettleBatch liquida até limit pendentes (0 = todos) em sequência.
func (s *Settler) SettleBatch(ctx context.Context, limit int) (Report, error) {
	pending, err := s.queue.ListPending(ctx)
	if err != nil {
		return Report{}, err
	}
	ids := make([]string, 0, len(pending))
	for _, rec := range pending {
		if limit > 0 && len(ids) >= limit {
			break
		}
		ids = append(ids, rec.ID)
	}
	return s.SettleIDs(ctx, ids)
}

// SettleIDs processa os ids em ordem, respeitando o intervalo entre submissões.
// Falha em um id não interrompe os demais; cancelar ctx interrompe o lote.
func (s *Settler) SettleIDs(ctx context.Context, ids []string) (Report, error) {
	pace := rate.NewLimiter(rate.Inf, 1)
	if s.settings.Delay > 0 {
		pace = rate.NewLimiter(rate.Every(s.settings.Delay), 1)
	}

	var report Report
	for _, id := range ids {
		if err := pace.Wait(ctx); err != nil {
			return report, err
		}
		res, err := s.SettleOne(ctx, id)
		report.add(res)
		if err != nil && ctx.Err() != nil {
			return report, ctx.Err()
		}
	}
	s.log.Info("settlement batch finished",
		zap.Int("settled", report.Settled), zap.Int("failed", report.Failed), zap.Int("skipped", report.Skipped))
	return report, nil
}

// Attempts devolve o histórico do journal; vazio quando não há journal.
func (s *Settler) Attempts(ctx context.Context, id string) ([]Attempt, error) {
	if s.journal == nil {
		return nil, nil
	}
	return s.journal.Attempts(ctx, id)
}

func (s *Settler) previousSubmission(ctx context.Context, id string) (string, error) {
	s.mu.Lock()
	hash, ok := s.submitted[id]
	s.mu.Unlock()
	if ok {
		return hash, nil
	}
	if s.journal == nil {
		return "", nil
	}
	hash, _, err := s.journal.LastSubmitted(ctx, id)
	if err != nil {
		return "", fmt.Errorf("check previous submission: %w", err)
	}
	return hash, nil
}

func (s *Settler) journalRecord(ctx context.Context, rec withdrawal.Record, status, hash, msg string) {
	if s.journal == nil {
		return
	}
	a := Attempt{
		WithdrawalID:  rec.ID,
		WalletAddress: rec.WalletAddress,
		Amount:        rec.Amount,
		Status:        status,
		TxHash:        hash,
		Error:         msg,
		CreatedAt:     s.now(),
	}
	if err := s.journal.Record(context.WithoutCancel(ctx), a); err != nil {
		s.log.Error("journal write failed", zap.String("withdrawal_id", rec.ID), zap.String("status", status), zap.Error(err))
	}
}

func (s *Settler) begin(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[id]; busy {
		return false
	}
	s.inFlight[id] = struct{}{}
	return true
}

func (s *Settler) end(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, id)
}

func (s *Settler) remember(id, hash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitted[id] = hash
}

func (s *Settler) forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.submitted, id)
}
