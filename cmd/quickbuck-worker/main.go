package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

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
	engine := buildEngine(cfg, pool, queries, logger)

	runOnce := strings.EqualFold(strings.TrimSpace(os.Getenv("QUICKBUCK_WORKER_RUN_ONCE")), "true")
	if runOnce {
		if _, err := engine.Execute(ctx, "manual"); err != nil {
			logger.Error("tick failed", "err", err)
			os.Exit(1)
		}
		logger.Info("worker run-once completed")
		return
	}

	ticker := time.NewTicker(cfg.TickEvery)
	defer ticker.Stop()

	logger.Info("worker started", "tick_every", cfg.TickEvery.String(), "volatility", cfg.MarketVolatility)
	for {
		select {
		case <-ctx.Done():
			logger.Info("worker shutdown")
			return
		case <-ticker.C:
			if _, err := engine.Execute(ctx, "cron"); err != nil {
				if errors.Is(err, tick.ErrTickInProgress) {
					logger.Warn("tick skipped, previous still running")
					continue
				}
				logger.Error("tick failed", "err", err)
			}
		}
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
