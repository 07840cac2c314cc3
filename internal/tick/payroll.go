package tick

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"quickbuck/internal/audit"
	"quickbuck/internal/store"
)

type PayrollStore interface {
	OldestCompanies(ctx context.Context, limit int) ([]store.Company, error)
	SalesIncomeSince(ctx context.Context, companyID int64, since time.Time, limit int) (int64, error)
	PlayerExists(ctx context.Context, playerID string) (bool, error)
	DebitCompany(ctx context.Context, companyID, amountCents int64) error
	TouchCompany(ctx context.Context, companyID int64, at time.Time) error
}

type AuditLogger interface {
	LogAction(ctx context.Context, a audit.Action) error
}

const (
	DefaultPayrollBatchSize = 10

	payrollIncomeWindow = 20 * time.Minute
	payrollSalesLimit   = 20
)

// PayrollSettler deducts employee operating costs from a rotating batch of
// companies, oldest-updated first. The deduction is an expense sink: the
// money leaves the company but is not credited to the owner, only logged as
// an audit transaction for traceability.
type PayrollSettler struct {
	store     PayrollStore
	audit     AuditLogger
	batchSize int
	log       *slog.Logger
	now       func() time.Time
}

func NewPayrollSettler(s PayrollStore, auditLog AuditLogger, batchSize int, logger *slog.Logger) *PayrollSettler {
	if batchSize <= 0 {
		batchSize = DefaultPayrollBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PayrollSettler{store: s, audit: auditLog, batchSize: batchSize, log: logger, now: time.Now}
}

// Run settles one rotation batch. Every visited company has its updated_at
// touched, deduction or not, so the ascending scan keeps rotating.
func (p *PayrollSettler) Run(ctx context.Context) (int, error) {
	companies, err := p.store.OldestCompanies(ctx, p.batchSize)
	if err != nil {
		return 0, err
	}
	now := p.now()
	for _, c := range companies {
		if err := p.settleOne(ctx, c, now); err != nil {
			p.log.Error("payroll settle failed", "company_id", c.ID, "err", err)
		}
	}
	return len(companies), nil
}

func (p *PayrollSettler) settleOne(ctx context.Context, c store.Company, now time.Time) error {
	// Mark visited in every branch; starving a company out of the rotation
	// is worse than a missed deduction.
	defer func() {
		if err := p.store.TouchCompany(ctx, c.ID, now); err != nil {
			p.log.Error("payroll touch failed", "company_id", c.ID, "err", err)
		}
	}()

	if len(c.Employees) == 0 {
		return nil
	}
	var totalPct float64
	for _, e := range c.Employees {
		totalPct += e.TickCostPct
	}
	if totalPct <= 0 {
		return nil
	}

	income, err := p.store.SalesIncomeSince(ctx, c.ID, now.Add(-payrollIncomeWindow), payrollSalesLimit)
	if err != nil {
		return fmt.Errorf("recent income: %w", err)
	}
	if income <= 0 {
		return nil
	}

	cost := int64(math.Floor(float64(income) * totalPct / 100))
	if cost <= 0 || cost > c.BalanceCents {
		return nil
	}

	exists, err := p.store.PlayerExists(ctx, c.OwnerID)
	if err != nil {
		return fmt.Errorf("owner lookup: %w", err)
	}
	if !exists {
		p.log.Warn("payroll skipped, owner unresolvable", "company_id", c.ID, "owner_id", c.OwnerID)
		return nil
	}

	if err := p.store.DebitCompany(ctx, c.ID, cost); err != nil {
		return fmt.Errorf("debit company: %w", err)
	}
	if err := p.audit.LogAction(ctx, audit.Action{
		ActorID:     c.OwnerID,
		ActionType:  "employee_cost",
		Category:    "company",
		Description: fmt.Sprintf("operating cost of %d cents deducted from %s", cost, c.Name),
		Metadata: map[string]any{
			"company_id":   c.ID,
			"owner_id":     c.OwnerID,
			"cost_cents":   cost,
			"income_cents": income,
			"total_pct":    totalPct,
		},
	}); err != nil {
		p.log.Error("payroll audit log failed", "company_id", c.ID, "err", err)
	}
	return nil
}
