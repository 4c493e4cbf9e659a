package settlement

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	AttemptSubmitted = "submitted"
	AttemptFailed    = "failed"
)

// Attempt é uma linha do histórico de tentativas de liquidação.
type Attempt struct {
	ID            int64     `json:"id"`
	WithdrawalID  string    `json:"withdrawalId"`
	WalletAddress string    `json:"walletAddress"`
	Amount        float64   `json:"amount"`
	Status        string    `json:"status"`
	TxHash        string    `json:"txHash,omitempty"`
	Error         string    `json:"error,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

type Journal interface {
	Record(ctx context.Context, a Attempt) error
	Attempts(ctx context.Context, withdrawalID string) ([]Attempt, error)
	// LastSubmitted devolve o hash de uma submissão já aceita pela chain, se houver.
	LastSubmitted(ctx context.Context, withdrawalID string) (string, bool, error)
}

const schema = `
CREATE TABLE IF NOT EXISTS settlement_attempts (
	id             BIGSERIAL PRIMARY KEY,
	withdrawal_id  TEXT          NOT NULL,
	wallet_address TEXT          NOT NULL,
	amount         NUMERIC(20,2) NOT NULL,
	status         TEXT          NOT NULL,
	tx_hash        TEXT,
	error          TEXT,
	created_at     TIMESTAMPTZ   NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_settlement_attempts_withdrawal ON settlement_attempts (withdrawal_id);
`

// PostgresJournal grava tentativas em settlement_attempts.
type PostgresJournal struct{ db *sql.DB }

func NewPostgresJournal(db *sql.DB) *PostgresJournal { return &PostgresJournal{db: db} }

func (j *PostgresJournal) EnsureSchema(ctx context.Context) error {
	if _, err := j.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create settlement_attempts: %w", err)
	}
	return nil
}

func (j *PostgresJournal) Record(ctx context.Context, a Attempt) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO settlement_attempts (withdrawal_id, wallet_address, amount, status, tx_hash, error, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		a.WithdrawalID, a.WalletAddress, decimal.NewFromFloat(a.Amount).StringFixed(2), a.Status,
		nullString(a.TxHash), nullString(a.Error), a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert settlement attempt: %w", err)
	}
	return nil
}

func (j *PostgresJournal) Attempts(ctx context.Context, withdrawalID string) ([]Attempt, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, withdrawal_id, wallet_address, amount, status, COALESCE(tx_hash,''), COALESCE(error,''), created_at
		FROM settlement_attempts WHERE withdrawal_id=$1 ORDER BY id`, withdrawalID)
	if err != nil {
		return nil, fmt.Errorf("query settlement attempts: %w", err)
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		var a Attempt
		var amount decimal.Decimal
		if err := rows.Scan(&a.ID, &a.WithdrawalID, &a.WalletAddress, &amount, &a.Status, &a.TxHash, &a.Error, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan settlement attempt: %w", err)
		}
		a.Amount, _ = amount.Float64()
		out = append(out, a)
	}
	return out, rows.Err()
}

func (j *PostgresJournal) LastSubmitted(ctx context.Context, withdrawalID string) (string, bool, error) {
	var hash string
	err := j.db.QueryRowContext(ctx, `
		SELECT tx_hash FROM settlement_attempts
		WHERE withdrawal_id=$1 AND status=$2 AND tx_hash IS NOT NULL
		ORDER BY id DESC LIMIT 1`, withdrawalID, AttemptSubmitted).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query last submission: %w", err)
	}
	return hash, true, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
