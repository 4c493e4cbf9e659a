package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/radieske/jetton-slots/internal/chain"
	"github.com/radieske/jetton-slots/internal/events"
	"github.com/radieske/jetton-slots/internal/game"
	httpapi "github.com/radieske/jetton-slots/internal/game-api/http"
	"github.com/radieske/jetton-slots/internal/ledger"
	"github.com/radieske/jetton-slots/internal/ratelimit"
	"github.com/radieske/jetton-slots/internal/replay"
	"github.com/radieske/jetton-slots/internal/settlement"
	"github.com/radieske/jetton-slots/internal/shared/config"
	"github.com/radieske/jetton-slots/internal/shared/db"
	"github.com/radieske/jetton-slots/internal/shared/kv"
	"github.com/radieske/jetton-slots/internal/shared/logger"
	"github.com/radieske/jetton-slots/internal/shared/metrics"
	"github.com/radieske/jetton-slots/internal/withdrawal"
)

func main() {
	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "game-api"
	}
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, log)
	stop()
	if err != nil {
		log.Error("game-api failed", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
	log.Info("game-api stopped")
	_ = log.Sync()
}

// run monta e serve a API; os defers fecham store, Kafka e Postgres em qualquer saída.
func run(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	// Prometheus
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// KV
	store, closeStore, err := kv.Open(cfg)
	if err != nil {
		return fmt.Errorf("kv %s: %w", cfg.KVBackend, err)
	}
	defer closeStore()

	paytable := game.DefaultPaytable()
	if cfg.PaytablePath != "" {
		if paytable, err = game.LoadPaytable(cfg.PaytablePath); err != nil {
			return fmt.Errorf("paytable %s: %w", cfg.PaytablePath, err)
		}
	}

	policies, err := ratelimit.ParsePolicies(cfg.RateLimits)
	if err != nil {
		return fmt.Errorf("rate limits: %w", err)
	}

	// Kafka opcional
	var pub events.Publisher = events.Noop{}
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		kp := events.NewKafkaPublisher(brokers, events.Topics{
			RoundResolved:       cfg.TopicRoundResolved,
			WithdrawalRequested: cfg.TopicWithdrawalRequested,
			WithdrawalSettled:   cfg.TopicWithdrawalSettled,
			SettlementFailed:    cfg.TopicSettlementFailed,
		}, log)
		defer kp.Close()
		pub = kp
	}

	// deps
	l := ledger.New(store, ledger.WithLogger(log))
	guard := replay.New(store, cfg.RequestMaxAge, cfg.NonceTTL, replay.WithLogger(log), replay.WithMetrics(m))
	engine := game.NewEngine(store, l, paytable,
		game.Settings{MaxBet: cfg.MaxBet, RoundTTL: cfg.RoundTTL, DoubleUpTTL: cfg.DoubleUpTTL},
		game.WithPublisher(pub), game.WithLogger(log), game.WithMetrics(m),
	)
	queue := withdrawal.NewQueue(store, l, guard, withdrawal.Settings{MinAmount: cfg.MinWithdrawal},
		withdrawal.WithPublisher(pub), withdrawal.WithLogger(log), withdrawal.WithMetrics(m),
		withdrawal.WithOfferGate(engine),
	)

	settleOpts := []settlement.Option{
		settlement.WithPublisher(pub), settlement.WithLogger(log), settlement.WithMetrics(m),
	}
	if cfg.PostgresDSN != "" {
		pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("pg: %w", err)
		}
		defer pg.Close()
		journal := settlement.NewPostgresJournal(pg)
		if err := journal.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("journal schema: %w", err)
		}
		settleOpts = append(settleOpts, settlement.WithJournal(journal))
	}
	cc := chain.NewClient(cfg.ChainURL)
	settler := settlement.New(queue, cc, cc,
		settlement.Settings{Delay: cfg.SettlementDelay, JettonDecimals: cfg.JettonDecimals}, settleOpts...)

	if cfg.AdminAPIKey == "" {
		log.Warn("ADMIN_API_KEY not set, admin endpoints disabled")
	}

	api := &httpapi.API{
		Engine:               engine,
		Ledger:               l,
		Queue:                queue,
		Settler:              settler,
		Limiter:              ratelimit.New(store, policies, ratelimit.WithLogger(log), ratelimit.WithMetrics(m)),
		AdminKey:             cfg.AdminAPIKey,
		EstimatedProcessTime: cfg.EstimatedProcessTime,
		Log:                  log,
	}

	// metrics/health
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, reg, func(ctx context.Context) error {
		return kv.Ping(ctx, store)
	})
	log.Info("metrics/health", zap.String("addr", metricsSrv.Addr))

	// HTTP público
	apiSrv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = apiSrv.Shutdown(shutdown)
		_ = metricsSrv.Shutdown(shutdown)
	}()

	log.Info("game-api listening",
		zap.String("addr", apiSrv.Addr),
		zap.String("kv_backend", cfg.KVBackend),
		zap.Bool("journal", cfg.PostgresDSN != ""),
		zap.Bool("kafka", len(cfg.Brokers()) > 0),
	)
	if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}
