package settlement

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	sharedkafka "github.com/radieske/jetton-slots/internal/shared/kafka"
	"github.com/radieske/jetton-slots/internal/shared/logger"
	"github.com/radieske/jetton-slots/pkg/contracts/events"
)

const watchBackoff = 500 * time.Millisecond

// Watcher acompanha withdrawal_requested e avisa o operador. Não liquida nada:
// a liquidação continua sendo uma ação explícita.
type Watcher struct {
	reader  sharedkafka.MessageReader
	notify  func(events.WithdrawalRequested)
	log     *zap.Logger
	backoff time.Duration
}

func NewWatcher(r sharedkafka.MessageReader, notify func(events.WithdrawalRequested), log *zap.Logger) *Watcher {
	return &Watcher{reader: r, notify: notify, log: logger.OrNop(log), backoff: watchBackoff}
}

// Run consome até ctx ser cancelado. Erros de leitura são logados e repetidos.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		key, value, err := sharedkafka.ReadNext(ctx, w.reader)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.log.Warn("kafka read failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(w.backoff):
			}
			continue
		}

		var ev events.WithdrawalRequested
		if err := json.Unmarshal(value, &ev); err != nil {
			w.log.Warn("skipping malformed withdrawal_requested", zap.ByteString("key", key), zap.Error(err))
			continue
		}
		w.notify(ev)
	}
}
