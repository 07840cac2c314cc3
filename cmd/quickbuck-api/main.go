package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"quickbuck/internal/api"
	"quickbuck/internal/audit"
	"quickbuck/internal/config"
	"quickbuck/internal/db"
	"quickbuck/internal/market"
	"quickbuck/internal/store"
	"quickbuck/internal/tick"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	queries := store.New(pool)
	if cfg.StartupSeed {
		if err := queries.SeedDefaults(ctx); err != nil {
			logger.Error("seed defaults failed", "err", err)
			os.Exit(1)
		}
	}

	server := api.New(cfg, logger, buildEngine(cfg, pool, queries, logger), queries)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("api listening", "addr", cfg.Addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("api server failed", "err", err)
		os.Exit(1)
	}
}

func buildEngine(cfg config.Config, pool *pgxpool.Pool, queries *store.Queries, logger *slog.Logger) *tick.Orchestrator {
	locks := tick.NewLockManager(queries, cfg.LockStaleAfter, logger)
	bots := tick.NewBotSimulator(queries, cfg.BotBudgetCents, logger)
	payroll := tick.NewPayrollSettler(queries, audit.NewLogger(pool, logger), cfg.PayrollBatchSize, logger)
	loans := tick.NewInterestAccrual(queries, logger)
	netWorth := tick.NewNetWorthAggregator(queries, logger)
	opts := tick.Options{
		LoanBatchSize:     cfg.LoanBatchSize,
		LoanRounds:        cfg.LoanRounds,
		NetWorthBatchSize: cfg.NetWorthBatchSize,
		NetWorthRounds:    cfg.NetWorthRounds,
	}
	return tick.NewOrchestrator(
		locks,
		bots,
		payroll,
		market.NewStockMarket(pool, cfg.MarketVolatility, logger),
		market.NewCryptoMarket(pool, logger),
		loans,
		netWorth,
		queries,
		opts,
		logger,
	)
}
