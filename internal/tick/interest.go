package tick

import (
	"context"
	"log/slog"
	"math"
	"strconv"
	"time"

	"quickbuck/internal/store"
)

type LoanStore interface {
	// ActiveLoans returns active loans with id > afterID, ascending by id.
	ActiveLoans(ctx context.Context, afterID int64, limit int) ([]store.Loan, error)
	ApplyLoanInterest(ctx context.Context, loanID, amountCents int64, appliedAt time.Time) error
	DebitPlayer(ctx context.Context, playerID string, amountCents int64) error
}

const (
	DefaultLoanBatchSize = 40
	maxLoanBatchSize     = 100

	// interestMinInterval gates eligibility; intervalsPerDay turns the daily
	// rate into per-interval compounding (72 twenty-minute intervals a day).
	interestMinInterval = 20 * time.Minute
	intervalsPerDay     = 72
)

// InterestAccrual applies proportional interest to a rotating batch of active
// loans. The loan patch and the borrower debit are two separate writes; a
// crash between them is an accepted partial-failure window.
type InterestAccrual struct {
	store LoanStore
	log   *slog.Logger
	now   func() time.Time
}

func NewInterestAccrual(s LoanStore, logger *slog.Logger) *InterestAccrual {
	if logger == nil {
		logger = slog.Default()
	}
	return &InterestAccrual{store: s, log: logger, now: time.Now}
}

// Apply processes up to limit loans past the cursor. Loans inside the
// 20-minute window are fetched but left untouched; they consume read budget
// without counting as processed.
func (a *InterestAccrual) Apply(ctx context.Context, limit int, cursor string) (BatchResult, error) {
	if limit <= 0 {
		limit = DefaultLoanBatchSize
	}
	if limit > maxLoanBatchSize {
		limit = maxLoanBatchSize
	}
	cur, err := DecodeCursor(cursor)
	if err != nil {
		return BatchResult{}, err
	}
	afterID := int64(0)
	if cur.LastID != "" {
		afterID, err = strconv.ParseInt(cur.LastID, 10, 64)
		if err != nil {
			return BatchResult{}, err
		}
	}

	loans, err := a.store.ActiveLoans(ctx, afterID, limit)
	if err != nil {
		return BatchResult{}, err
	}

	now := a.now()
	var res BatchResult
	for _, loan := range loans {
		if now.Sub(loan.LastInterestApplied) < interestMinInterval {
			continue
		}
		interest := interestForInterval(loan.RemainingCents, loan.InterestRateDaily)
		if interest <= 0 {
			continue
		}
		if err := a.store.ApplyLoanInterest(ctx, loan.ID, interest, now); err != nil {
			a.log.Error("loan interest patch failed", "loan_id", loan.ID, "err", err)
			continue
		}
		if err := a.store.DebitPlayer(ctx, loan.PlayerID, interest); err != nil {
			a.log.Error("borrower debit failed", "loan_id", loan.ID, "player_id", loan.PlayerID, "err", err)
		}
		res.Processed++
	}

	if len(loans) == limit {
		last := loans[len(loans)-1]
		res.Cursor = Cursor{LastID: strconv.FormatInt(last.ID, 10)}.Encode()
	}
	return res, nil
}

// interestForInterval is floor(remaining * (dailyRate/100) / intervalsPerDay).
func interestForInterval(remainingCents int64, dailyRatePct float64) int64 {
	if remainingCents <= 0 || dailyRatePct <= 0 {
		return 0
	}
	return int64(math.Floor(float64(remainingCents) * (dailyRatePct / 100) / intervalsPerDay))
}
