package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/jetton-slots/internal/chain"
	"github.com/radieske/jetton-slots/internal/events"
	"github.com/radieske/jetton-slots/internal/ledger"
	"github.com/radieske/jetton-slots/internal/replay"
	"github.com/radieske/jetton-slots/internal/settlement"
	"github.com/radieske/jetton-slots/internal/shared/config"
	"github.com/radieske/jetton-slots/internal/shared/db"
	sharedkafka "github.com/radieske/jetton-slots/internal/shared/kafka"
	"github.com/radieske/jetton-slots/internal/shared/kv"
	"github.com/radieske/jetton-slots/internal/shared/logger"
	"github.com/radieske/jetton-slots/internal/withdrawal"
	cevents "github.com/radieske/jetton-slots/pkg/contracts/events"
)

func main() {
	var (
		id    = flag.String("id", "", "settle a single withdrawal id")
		all   = flag.Bool("all", false, "settle every pending withdrawal")
		limit = flag.Int("limit", 0, "with -all, settle at most N withdrawals (0 = SETTLEMENT_BATCH)")
		list  = flag.Bool("list", false, "print pending withdrawals and exit")
		watch = flag.Bool("watch", false, "follow withdrawal_requested events and log them (never settles)")
		delay = flag.Duration("delay", -1, "pause between transfers (default SETTLEMENT_DELAY)")
	)
	flag.Parse()

	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "settle"
	}
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	var code int
	switch {
	case *watch:
		code = runWatch(ctx, cfg, log)
	case *id == "" && !*all && !*list:
		flag.Usage()
		code = 2
	default:
		code = runSettle(ctx, cfg, log, settleArgs{id: *id, limit: *limit, list: *list, delay: *delay})
	}

	// os.Exit não roda defers; tudo já foi fechado dentro de run*
	stop()
	_ = log.Sync()
	os.Exit(code)
}

type settleArgs struct {
	id    string
	limit int
	list  bool
	delay time.Duration
}

func runSettle(ctx context.Context, cfg config.Config, log *zap.Logger, args settleArgs) int {
	store, closeStore, err := kv.Open(cfg)
	if err != nil {
		log.Error("kv", zap.String("backend", cfg.KVBackend), zap.Error(err))
		return 1
	}
	defer closeStore()

	l := ledger.New(store, ledger.WithLogger(log))
	guard := replay.New(store, cfg.RequestMaxAge, cfg.NonceTTL, replay.WithLogger(log))
	queue := withdrawal.NewQueue(store, l, guard, withdrawal.Settings{MinAmount: cfg.MinWithdrawal}, withdrawal.WithLogger(log))

	if args.list {
		pending, err := queue.ListPending(ctx)
		if err != nil {
			log.Error("list pending", zap.Error(err))
			return 1
		}
		printJSON(pending)
		return 0
	}

	settings := settlement.Settings{Delay: cfg.SettlementDelay, JettonDecimals: cfg.JettonDecimals}
	if args.delay >= 0 {
		settings.Delay = args.delay
	}

	opts := []settlement.Option{settlement.WithLogger(log)}
	if cfg.PostgresDSN != "" {
		pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Error("pg", zap.Error(err))
			return 1
		}
		defer pg.Close()
		journal := settlement.NewPostgresJournal(pg)
		if err := journal.EnsureSchema(ctx); err != nil {
			log.Error("journal schema", zap.Error(err))
			return 1
		}
		opts = append(opts, settlement.WithJournal(journal))
	} else {
		log.Warn("POSTGRES_DSN not set, settlement attempts will not be journaled")
	}
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		kp := events.NewKafkaPublisher(brokers, events.Topics{
			WithdrawalSettled: cfg.TopicWithdrawalSettled,
			SettlementFailed:  cfg.TopicSettlementFailed,
		}, log)
		defer kp.Close()
		opts = append(opts, settlement.WithPublisher(kp))
	}

	cc := chain.NewClient(cfg.ChainURL)
	settler := settlement.New(queue, cc, cc, settings, opts...)

	var report settlement.Report
	if args.id != "" {
		res, err := settler.SettleOne(ctx, args.id)
		report = settlement.Report{Results: []settlement.Result{res}}
		switch {
		case err != nil:
			report.Failed = 1
		case res.Status == settlement.StatusSkipped:
			report.Skipped = 1
		default:
			report.Settled = 1
		}
	} else {
		n := args.limit
		if n == 0 {
			n = cfg.SettlementBatch
		}
		report, err = settler.SettleBatch(ctx, n)
		if err != nil {
			log.Error("settlement batch interrupted", zap.Error(err))
		}
	}

	printJSON(report)
	if report.Failed > 0 {
		return 1
	}
	return 0
}

// runWatch só avisa o operador; a liquidação continua manual
func runWatch(ctx context.Context, cfg config.Config, log *zap.Logger) int {
	brokers := cfg.Brokers()
	if len(brokers) == 0 {
		log.Error("-watch requires KAFKA_BROKERS")
		return 2
	}
	reader := sharedkafka.NewReader(brokers, cfg.TopicWithdrawalRequested, "settle-watch")
	defer reader.Close()

	w := settlement.NewWatcher(reader, func(e cevents.WithdrawalRequested) {
		log.Info("withdrawal awaiting settlement",
			zap.String("withdrawal_id", e.WithdrawalID),
			zap.String("wallet", e.WalletAddress),
			zap.Float64("amount", e.Amount),
			zap.Time("requested_at", e.Ts),
		)
	}, log)

	log.Info("watching withdrawal requests", zap.String("topic", cfg.TopicWithdrawalRequested))
	if err := w.Run(ctx); err != nil {
		log.Error("watch stopped", zap.Error(err))
		return 1
	}
	return 0
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
