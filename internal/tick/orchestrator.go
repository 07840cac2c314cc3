package tick

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"quickbuck/internal/store"
)

// ErrTickInProgress is returned when another tick holds a fresh lock. The
// caller should skip this invocation, not retry synchronously.
var ErrTickInProgress = errors.New("tick already in progress")

// StockPricer and CryptoPricer are the external pricing collaborators; the
// engine treats them as opaque.
type StockPricer interface {
	UpdateStockPrices(ctx context.Context) (int, error)
}

type CryptoPricer interface {
	UpdateCryptoPrices(ctx context.Context) ([]store.CryptoPriceUpdate, error)
}

type HistoryStore interface {
	// LastTickNumber returns 0 when no history exists.
	LastTickNumber(ctx context.Context) (int64, error)
	InsertTickHistory(ctx context.Context, e store.TickHistoryEntry) error
}

type Summary struct {
	TickNumber       int64 `json:"tick_number"`
	BotPurchases     int   `json:"bot_purchases"`
	TotalSpentCents  int64 `json:"total_spent_cents"`
	StocksUpdated    int   `json:"stocks_updated"`
	CryptoUpdates    int   `json:"crypto_updates"`
	LoansProcessed   int   `json:"loans_processed"`
	PlayersProcessed int   `json:"players_processed"`
}

// Options bound the per-tick cost of the rotation steps.
type Options struct {
	LoanBatchSize     int
	LoanRounds        int
	NetWorthBatchSize int
	NetWorthRounds    int
}

func (o *Options) fill() {
	if o.LoanBatchSize <= 0 {
		o.LoanBatchSize = DefaultLoanBatchSize
	}
	if o.LoanRounds <= 0 {
		o.LoanRounds = 3
	}
	if o.NetWorthBatchSize <= 0 {
		o.NetWorthBatchSize = DefaultNetWorthBatchSize
	}
	if o.NetWorthRounds <= 0 {
		o.NetWorthRounds = 3
	}
}

// Orchestrator runs the full economic update cycle: lock, bot demand, payroll,
// external pricing, loan interest, net worth, history, unlock. Steps are
// isolated failure domains; only lock acquisition and the history record may
// fail the tick as a whole, and the lock is released on every exit path.
type Orchestrator struct {
	locks    *LockManager
	bots     *BotSimulator
	payroll  *PayrollSettler
	stocks   StockPricer
	crypto   CryptoPricer
	loans    *InterestAccrual
	netWorth *NetWorthAggregator
	history  HistoryStore
	opts     Options
	log      *slog.Logger
	now      func() time.Time
}

func NewOrchestrator(
	locks *LockManager,
	bots *BotSimulator,
	payroll *PayrollSettler,
	stocks StockPricer,
	crypto CryptoPricer,
	loans *InterestAccrual,
	netWorth *NetWorthAggregator,
	history HistoryStore,
	opts Options,
	logger *slog.Logger,
) *Orchestrator {
	opts.fill()
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		locks:    locks,
		bots:     bots,
		payroll:  payroll,
		stocks:   stocks,
		crypto:   crypto,
		loans:    loans,
		netWorth: netWorth,
		history:  history,
		opts:     opts,
		log:      logger,
		now:      time.Now,
	}
}

// Execute runs one tick on behalf of source ("cron", "manual", ...). Both the
// scheduled and the manual path funnel through here; a manual trigger fails
// cleanly with ErrTickInProgress when a scheduled tick is already running.
func (o *Orchestrator) Execute(ctx context.Context, source string) (Summary, error) {
	acquired, err := o.locks.TryAcquire(ctx, source)
	if err != nil {
		return Summary{}, fmt.Errorf("acquire tick lock: %w", err)
	}
	if !acquired {
		return Summary{}, ErrTickInProgress
	}
	defer func() {
		// The inbound context may be canceled by the time the tick unwinds
		// (shutdown signal, API client gone); the lock must come off anyway.
		if err := o.locks.Release(context.WithoutCancel(ctx)); err != nil {
			o.log.Error("tick lock release failed", "err", err)
		}
	}()

	last, err := o.history.LastTickNumber(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("read last tick number: %w", err)
	}
	sum := Summary{TickNumber: last + 1}
	o.log.Info("tick started", "tick_number", sum.TickNumber, "source", source)

	purchases, spent, err := o.bots.Run(ctx)
	if err != nil {
		o.log.Error("bot demand step failed", "tick_number", sum.TickNumber, "err", err)
		purchases, spent = nil, 0
	}
	sum.BotPurchases = len(purchases)
	sum.TotalSpentCents = spent

	if _, err := o.payroll.Run(ctx); err != nil {
		o.log.Error("payroll step failed", "tick_number", sum.TickNumber, "err", err)
	}

	updated, err := o.stocks.UpdateStockPrices(ctx)
	if err != nil {
		o.log.Error("stock pricing step failed", "tick_number", sum.TickNumber, "err", err)
	}
	sum.StocksUpdated = updated

	cryptoUpdates, err := o.crypto.UpdateCryptoPrices(ctx)
	if err != nil {
		o.log.Error("crypto pricing step failed", "tick_number", sum.TickNumber, "err", err)
		cryptoUpdates = nil
	}
	sum.CryptoUpdates = len(cryptoUpdates)

	sum.LoansProcessed = o.runBatches(ctx, "loan interest", o.opts.LoanRounds, func(cursor string) (BatchResult, error) {
		return o.loans.Apply(ctx, o.opts.LoanBatchSize, cursor)
	})

	sum.PlayersProcessed = o.runBatches(ctx, "net worth", o.opts.NetWorthRounds, func(cursor string) (BatchResult, error) {
		return o.netWorth.Apply(ctx, o.opts.NetWorthBatchSize, cursor)
	})

	entry := store.TickHistoryEntry{
		TickNumber:            sum.TickNumber,
		Timestamp:             o.now(),
		BotPurchases:          purchases,
		CryptoPriceUpdates:    cryptoUpdates,
		TotalBudgetSpentCents: spent,
	}
	if err := o.history.InsertTickHistory(ctx, entry); err != nil {
		return Summary{}, fmt.Errorf("record tick history: %w", err)
	}

	o.log.Info("tick complete",
		"tick_number", sum.TickNumber,
		"bot_purchases", sum.BotPurchases,
		"spent_cents", sum.TotalSpentCents,
		"stocks_updated", sum.StocksUpdated,
		"crypto_updates", sum.CryptoUpdates,
		"loans_processed", sum.LoansProcessed,
		"players_processed", sum.PlayersProcessed)
	return sum, nil
}

// runBatches drives a rotation step for up to rounds batches, threading the
// continuation cursor and stopping early when a batch reports no more rows.
func (o *Orchestrator) runBatches(ctx context.Context, step string, rounds int, apply func(cursor string) (BatchResult, error)) int {
	var (
		processed int
		cursor    string
	)
	for i := 0; i < rounds; i++ {
		res, err := apply(cursor)
		if err != nil {
			o.log.Error("rotation batch failed", "step", step, "round", i+1, "err", err)
			break
		}
		processed += res.Processed
		if res.Cursor == "" {
			break
		}
		cursor = res.Cursor
	}
	return processed
}
