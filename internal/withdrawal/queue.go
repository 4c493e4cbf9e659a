// Package withdrawal transforma um débito aprovado em registro pendente de
// liquidação on-chain. Todo registro pending corresponde a um débito já aplicado.
package withdrawal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/jetton-slots/internal/ledger"
	"github.com/radieske/jetton-slots/internal/shared/keylock"
	"github.com/radieske/jetton-slots/internal/shared/kv"
	"github.com/radieske/jetton-slots/internal/shared/logger"
	"github.com/radieske/jetton-slots/internal/shared/metrics"
	"github.com/radieske/jetton-slots/internal/shared/money"
	"github.com/radieske/jetton-slots/pkg/contracts/events"
)

var (
	ErrInvalidWallet      = ledger.ErrInvalidWallet
	ErrInsufficientCredit = ledger.ErrInsufficientCredit

	ErrInvalidAmount = errors.New("invalid withdrawal amount")
	ErrInvalidTxHash = errors.New("transaction hash is required")
	ErrInvalidID     = errors.New("withdrawal id is required")
	ErrNotFound      = errors.New("withdrawal not found")
	ErrUnavailable   = errors.New("withdrawal queue unavailable")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusProcessed Status = "processed"
)

const (
	PendingIndexKey   = "withdrawals:pending"
	ProcessedIndexKey = "withdrawals:processed"
)

func RecordKey(id string) string { return "withdrawal:" + id }

type Record struct {
	ID            string  `json:"id"`
	WalletAddress string  `json:"walletAddress"`
	Amount        float64 `json:"amount"`
	Nonce         string  `json:"nonce"`
	Status        Status  `json:"status"`
	RequestedAt   int64   `json:"requestedAt"`
	ProcessedAt   int64   `json:"processedAt,omitempty"`
	TxHash        string  `json:"txHash,omitempty"`
}

// Guard consome o nonce antes de qualquer efeito.
type Guard interface {
	Accept(ctx context.Context, nonce string, timestamp int64) error
}

// OfferGate roda fn só quando a carteira não tem oferta de double-up em aberto,
// segurando a oferta fechada enquanto fn executa.
type OfferGate interface {
	WithoutOpenOffer(ctx context.Context, wallet string, fn func() error) error
}

type Publisher interface {
	PublishWithdrawalRequested(ctx context.Context, e events.WithdrawalRequested) error
}

type Request struct {
	Wallet    string
	Amount    float64
	Nonce     string
	Timestamp int64
}

type Receipt struct {
	Record      Record
	CreditAfter float64
}

type Settings struct {
	MinAmount float64
}

type Queue struct {
	store    kv.Store
	ledger   *ledger.Ledger
	guard    Guard
	gate     OfferGate
	settings Settings

	newID   func() string
	now     func() time.Time
	pub     Publisher
	log     *zap.Logger
	metrics *metrics.Metrics

	// read-modify-write dos índices; outras instâncias ainda podem perder updates
	indexMu sync.Mutex
	idLocks keylock.Striped
}

type Option func(*Queue)

func WithIDs(f func() string) Option { return func(q *Queue) { q.newID = f } }

func WithClock(now func() time.Time) Option { return func(q *Queue) { q.now = now } }

func WithPublisher(p Publisher) Option { return func(q *Queue) { q.pub = p } }

func WithOfferGate(g OfferGate) Option { return func(q *Queue) { q.gate = g } }

func WithLogger(l *zap.Logger) Option { return func(q *Queue) { q.log = logger.OrNop(l) } }

func WithMetrics(m *metrics.Metrics) Option { return func(q *Queue) { q.metrics = m } }

func NewQueue(store kv.Store, l *ledger.Ledger, g Guard, s Settings, opts ...Option) *Queue {
	q := &Queue{
		store:    store,
		ledger:   l,
		guard:    g,
		settings: s,
		newID:    uuid.NewString,
		now:      time.Now,
		log:      zap.NewNop(),
	}
	for _, o := range opts {
		o(q)
	}
	return q
}

// Request valida, confere que não há double-up em aberto, consome o nonce,
// debita e enfileira. Se o enfileiramento falhar depois do débito o valor é
// devolvido antes de retornar o erro.
func (q *Queue) Request(ctx context.Context, req Request) (Receipt, error) {
	wallet := strings.TrimSpace(req.Wallet)
	if wallet == "" {
		return Receipt{}, ErrInvalidWallet
	}
	if err := money.ValidatePositive(req.Amount, 0); err != nil {
		return Receipt{}, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	amount := money.Normalize(req.Amount)
	if amount <= 0 {
		return Receipt{}, fmt.Errorf("%w: below minimum unit", ErrInvalidAmount)
	}
	if err := money.ValidateMinimum(amount, q.settings.MinAmount); err != nil {
		return Receipt{}, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}

	if q.gate == nil {
		return q.request(ctx, wallet, amount, req)
	}
	var (
		rc  Receipt
		ran bool
	)
	err := q.gate.WithoutOpenOffer(ctx, wallet, func() error {
		ran = true
		var err error
		rc, err = q.request(ctx, wallet, amount, req)
		return err
	})
	if err != nil {
		if !ran {
			// nonce intacto: o cliente pode repetir depois de resolver a oferta
			q.metrics.Withdrawal("rejected")
			q.log.Warn("withdrawal refused", zap.String("wallet", wallet), zap.Error(err))
		}
		return Receipt{}, err
	}
	return rc, nil
}

func (q *Queue) request(ctx context.Context, wallet string, amount float64, req Request) (Receipt, error) {
	if err := q.guard.Accept(ctx, req.Nonce, req.Timestamp); err != nil {
		q.metrics.Withdrawal("rejected")
		return Receipt{}, err
	}
	nonce := strings.TrimSpace(req.Nonce)

	creditAfter, err := q.ledger.Debit(ctx, wallet, amount)
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientCredit) {
			q.metrics.Withdrawal("rejected")
			q.log.Warn("withdrawal exceeds credit",
				zap.String("wallet", wallet), zap.Float64("amount", amount), zap.Float64("credit", creditAfter))
			return Receipt{}, err
		}
		return Receipt{}, fmt.Errorf("%w: debit: %v", ErrUnavailable, err)
	}

	now := q.now()
	rec := Record{
		ID:            q.newID(),
		WalletAddress: wallet,
		Amount:        amount,
		Nonce:         nonce,
		Status:        StatusPending,
		RequestedAt:   now.UnixMilli(),
	}

	if err := q.enqueue(ctx, rec); err != nil {
		q.compensate(ctx, rec, err)
		return Receipt{}, fmt.Errorf("%w: enqueue: %v", ErrUnavailable, err)
	}

	q.metrics.Withdrawal("accepted")
	q.log.Info("withdrawal queued",
		zap.String("withdrawal_id", rec.ID),
		zap.String("wallet", wallet),
		zap.Float64("amount", amount),
		zap.Float64("credit", creditAfter),
	)

	if q.pub != nil {
		ev := events.WithdrawalRequested{
			WithdrawalID:  rec.ID,
			WalletAddress: wallet,
			Amount:        amount,
			Nonce:         nonce,
			CreditAfter:   creditAfter,
			Ts:            now,
		}
		if err := q.pub.PublishWithdrawalRequested(ctx, ev); err != nil {
			q.log.Warn("publish withdrawal_requested failed", zap.String("withdrawal_id", rec.ID), zap.Error(err))
		}
	}

	return Receipt{Record: rec, CreditAfter: creditAfter}, nil
}

func (q *Queue) enqueue(ctx context.Context, rec Record) error {
	if err := kv.PutJSON(ctx, q.store, RecordKey(rec.ID), rec, 0); err != nil {
		return err
	}
	if err := q.appendIndex(ctx, PendingIndexKey, rec.ID); err != nil {
		// registro sem índice ficaria invisível para a liquidação
		if derr := q.store.Delete(ctx, RecordKey(rec.ID)); derr != nil {
			q.log.Error("orphan withdrawal record left behind", zap.String("withdrawal_id", rec.ID), zap.Error(derr))
		}
		return err
	}
	return nil
}

// compensate devolve o débito de um saque que não entrou na fila.
func (q *Queue) compensate(ctx context.Context, rec Record, cause error) {
	q.metrics.Compensated()
	credit, err := q.ledger.Add(context.WithoutCancel(ctx), rec.WalletAddress, rec.Amount)
	if err != nil {
		q.log.Error("compensation failed, manual reconciliation required",
			zap.String("withdrawal_id", rec.ID),
			zap.String("wallet", rec.WalletAddress),
			zap.Float64("amount", rec.Amount),
			zap.NamedError("cause", cause),
			zap.Error(err),
		)
		return
	}
	q.log.Error("withdrawal enqueue failed, debit re-credited",
		zap.String("withdrawal_id", rec.ID),
		zap.String("wallet", rec.WalletAddress),
		zap.Float64("amount", rec.Amount),
		zap.Float64("credit", credit),
		zap.Error(cause),
	)
}

// Get carrega um registro pelo id.
func (q *Queue) Get(ctx context.Context, id string) (Record, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Record{}, ErrInvalidID
	}
	var rec Record
	found, err := kv.GetJSON(ctx, q.store, RecordKey(id), &rec)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !found {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

// ListPending devolve os registros pendentes na ordem de chegada.
func (q *Queue) ListPending(ctx context.Context) ([]Record, error) {
	ids, err := q.readIndex(ctx, PendingIndexKey)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		rec, err := q.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			q.log.Warn("pending index references missing withdrawal", zap.String("withdrawal_id", id))
			continue
		}
		if err != nil {
			return nil, err
		}
		if rec.Status != StatusPending {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// ListProcessed devolve os últimos processados, mais recentes primeiro. limit <= 0 traz todos.
func (q *Queue) ListProcessed(ctx context.Context, limit int) ([]Record, error) {
	ids, err := q.readIndex(ctx, ProcessedIndexKey)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		rec, err := q.Get(ctx, ids[i])
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// MarkProcessed move o registro para processed. Chamadas repetidas não alteram
// nada além de arrumar os índices; changed indica se houve transição.
func (q *Queue) MarkProcessed(ctx context.Context, id, txHash string) (rec Record, changed bool, err error) {
	id = strings.TrimSpace(id)
	txHash = strings.TrimSpace(txHash)
	if id == "" {
		return Record{}, false, ErrInvalidID
	}
	if txHash == "" {
		return Record{}, false, ErrInvalidTxHash
	}

	defer q.idLocks.Lock(id)()

	rec, err = q.Get(ctx, id)
	if err != nil {
		return Record{}, false, err
	}

	if rec.Status != StatusProcessed {
		rec.Status = StatusProcessed
		rec.ProcessedAt = q.now().UnixMilli()
		rec.TxHash = txHash
		// o status é a fonte da verdade; índices vêm depois
		if err := kv.PutJSON(ctx, q.store, RecordKey(id), rec, 0); err != nil {
			return Record{}, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		changed = true
	}

	if err := q.removeIndex(ctx, PendingIndexKey, id); err != nil {
		return rec, changed, err
	}
	if err := q.appendIndex(ctx, ProcessedIndexKey, id); err != nil {
		return rec, changed, err
	}

	if changed {
		q.log.Info("withdrawal marked processed",
			zap.String("withdrawal_id", id), zap.String("tx_hash", txHash), zap.Float64("amount", rec.Amount))
	}
	return rec, changed, nil
}

func (q *Queue) readIndex(ctx context.Context, key string) ([]string, error) {
	var ids []string
	if _, err := kv.GetJSON(ctx, q.store, key, &ids); err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrUnavailable, key, err)
	}
	return ids, nil
}

func (q *Queue) appendIndex(ctx context.Context, key, id string) error {
	q.indexMu.Lock()
	defer q.indexMu.Unlock()

	ids, err := q.readIndex(ctx, key)
	if err != nil {
		return err
	}
	for _, existing := range ids {
		if existing == id {
			return nil
		}
	}
	if err := kv.PutJSON(ctx, q.store, key, append(ids, id), 0); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

func (q *Queue) removeIndex(ctx context.Context, key, id string) error {
	q.indexMu.Lock()
	defer q.indexMu.Unlock()

	ids, err := q.readIndex(ctx, key)
	if err != nil {
		return err
	}
	kept := ids[:0]
	removed := false
	for _, existing := range ids {
		if existing == id {
			removed = true
			continue
		}
		kept = append(kept, existing)
	}
	if !removed {
		return nil
	}
	if err := kv.PutJSON(ctx, q.store, key, kept, 0); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrUnavailable, key, err)
	}
	return nil
}
