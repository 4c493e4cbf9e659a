// Package ledger guarda o saldo gastável de cada carteira em credit:<wallet>.
// Todo valor passa por money.Normalize, então o saldo nunca fica negativo.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/jetton-slots/internal/shared/keylock"
	"github.com/radieske/jetton-slots/internal/shared/kv"
	"github.com/radieske/jetton-slots/internal/shared/logger"
	"github.com/radieske/jetton-slots/internal/shared/money"
)

var (
	ErrInvalidWallet      = errors.New("wallet address is required")
	ErrInsufficientCredit = errors.New("insufficient credit")
)

// Record é o formato canônico de credit:<wallet>.
type Record struct {
	Credit      float64 `json:"credit"`
	LastUpdated int64   `json:"lastUpdated"` // unix ms
}

type Ledger struct {
	store kv.Store
	log   *zap.Logger
	now   func() time.Time

	// serializa read-modify-write da mesma carteira dentro do processo
	locks keylock.Striped
}

type Option func(*Ledger)

func WithClock(now func() time.Time) Option { return func(l *Ledger) { l.now = now } }

func WithLogger(log *zap.Logger) Option { return func(l *Ledger) { l.log = logger.OrNop(log) } }

func New(store kv.Store, opts ...Option) *Ledger {
	l := &Ledger{store: store, log: zap.NewNop(), now: time.Now}
	for _, o := range opts {
		o(l)
	}
	return l
}

func CreditKey(wallet string) string { return "credit:" + wallet }

// chaves de esquemas antigos que ainda podem carregar "credit"
func legacyKeys(wallet string) []string {
	return []string{"user_" + wallet, "state:" + wallet}
}

// Get devolve o saldo atual (0 quando não há registro).
func (l *Ledger) Get(ctx context.Context, wallet string) (float64, error) {
	rec, err := l.GetRecord(ctx, wallet)
	if err != nil {
		return 0, err
	}
	return rec.Credit, nil
}

// GetRecord carrega o registro canônico, migrando formatos antigos na primeira leitura.
func (l *Ledger) GetRecord(ctx context.Context, wallet string) (Record, error) {
	wallet = strings.TrimSpace(wallet)
	if wallet == "" {
		return Record{}, ErrInvalidWallet
	}

	raw, err := l.store.Get(ctx, CreditKey(wallet))
	switch {
	case err == nil:
		credit, ok := parseCredit(raw)
		if !ok {
			l.log.Warn("unparseable credit record, treating as zero",
				zap.String("wallet", wallet), zap.ByteString("raw", truncate(raw)))
			return Record{}, nil
		}
		var rec Record
		if json.Unmarshal(raw, &rec) != nil {
			rec = Record{} // número puro, sem lastUpdated
		}
		rec.Credit = money.Normalize(credit)
		return rec, nil
	case !errors.Is(err, kv.ErrNotFound):
		return Record{}, fmt.Errorf("load credit: %w", err)
	}

	return l.migrateLegacy(ctx, wallet)
}

func (l *Ledger) migrateLegacy(ctx context.Context, wallet string) (Record, error) {
	for _, key := range legacyKeys(wallet) {
		raw, err := l.store.Get(ctx, key)
		if errors.Is(err, kv.ErrNotFound) {
			continue
		}
		if err != nil {
			return Record{}, fmt.Errorf("load legacy %s: %w", key, err)
		}

		var legacy map[string]json.RawMessage
		if json.Unmarshal(raw, &legacy) != nil {
			continue
		}
		field, ok := legacy["credit"]
		if !ok {
			continue
		}
		credit, ok := parseCredit(field)
		if !ok {
			l.log.Warn("legacy credit field unparseable", zap.String("wallet", wallet), zap.String("key", key))
			continue
		}

		rec := Record{Credit: money.Normalize(credit), LastUpdated: l.now().UnixMilli()}
		if err := kv.PutJSON(ctx, l.store, CreditKey(wallet), rec, 0); err != nil {
			return Record{}, fmt.Errorf("write migrated credit: %w", err)
		}
		l.log.Info("migrated legacy credit record",
			zap.String("wallet", wallet), zap.String("from", key), zap.Float64("credit", rec.Credit))
		return rec, nil
	}
	return Record{}, nil
}

// Add aplica delta (pode ser negativo) e devolve o novo saldo, com piso em zero.
func (l *Ledger) Add(ctx context.Context, wallet string, delta float64) (float64, error) {
	defer l.locks.Lock(strings.TrimSpace(wallet))()

	current, err := l.Get(ctx, wallet)
	if err != nil {
		return 0, err
	}
	return l.write(ctx, wallet, money.Add(current, delta))
}

// Debit subtrai amount somente se houver saldo suficiente.
func (l *Ledger) Debit(ctx context.Context, wallet string, amount float64) (float64, error) {
	return l.Wager(ctx, wallet, amount, 0)
}

// Wager debita stake e credita payout numa única escrita.
// Falha com ErrInsufficientCredit se stake > saldo.
func (l *Ledger) Wager(ctx context.Context, wallet string, stake, payout float64) (float64, error) {
	defer l.locks.Lock(strings.TrimSpace(wallet))()

	current, err := l.Get(ctx, wallet)
	if err != nil {
		return 0, err
	}
	if money.Normalize(stake) > current {
		return current, ErrInsufficientCredit
	}
	return l.write(ctx, wallet, money.Add(money.Add(current, -stake), payout))
}

func (l *Ledger) write(ctx context.Context, wallet string, credit float64) (float64, error) {
	rec := Record{Credit: money.Normalize(credit), LastUpdated: l.now().UnixMilli()}
	if err := kv.PutJSON(ctx, l.store, CreditKey(strings.TrimSpace(wallet)), rec, 0); err != nil {
		return 0, fmt.Errorf("write credit: %w", err)
	}
	return rec.Credit, nil
}

// parseCredit aceita número JSON, string numérica ou objeto {credit: ...}.
func parseCredit(raw []byte) (float64, bool) {
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return f, err == nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err == nil {
		if field, ok := obj["credit"]; ok {
			return parseCredit(field)
		}
		return 0, false
	}

	// valor gravado sem JSON (ex.: "12.5" cru)
	f, err := strconv.ParseFloat(strings.TrimSpace(string(raw)), 64)
	return f, err == nil
}

func truncate(b []byte) []byte {
	if len(b) > 64 {
		return b[:64]
	}
	return b
}
