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
	"go.uber.org/zap"

	simulator "github.com/radieske/jetton-slots/internal/chain-simulator"
	"github.com/radieske/jetton-slots/internal/shared/config"
	"github.com/radieske/jetton-slots/internal/shared/logger"
	"github.com/radieske/jetton-slots/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "chain-simulator"
	}
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	hub := simulator.NewHub(log, reg)
	s := simulator.NewServer(log, hub, cfg.SimulatorFailureRate, reg)

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, reg, nil)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdown)
		_ = metricsSrv.Shutdown(shutdown)
	}()

	log.Info("chain simulator running",
		zap.String("addr", srv.Addr),
		zap.String("metrics_addr", metricsSrv.Addr),
		zap.String("paths", "/transfers,/jetton-wallets/{owner},/ws"),
		zap.Float64("failure_rate", cfg.SimulatorFailureRate),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("public server error", zap.Error(err))
	}
}
