package tick

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"quickbuck/internal/store"
)

// BotStore is the persistence surface the demand simulator needs. Planning
// uses only the read methods; execution uses the write methods.
type BotStore interface {
	ListCompanies(ctx context.Context) ([]store.Company, error)
	ProductsByCompany(ctx context.Context, companyID int64, limit int) ([]store.Product, error)
	GetCompany(ctx context.Context, id int64) (store.Company, bool, error)
	RecordProductSale(ctx context.Context, productID, quantity, totalCents int64, newStock *int64) error
	CreditCompany(ctx context.Context, companyID, amountCents int64) error
	InsertSale(ctx context.Context, s store.Sale) error
	TouchCompanies(ctx context.Context, companyIDs []int64, at time.Time) error
}

const (
	// DefaultBotBudgetCents is the fixed per-company, per-tick purchase budget.
	DefaultBotBudgetCents = int64(500_000)

	// maxBotPriceCents excludes luxury items from simulated demand.
	maxBotPriceCents      = int64(5_000_000)
	maxProductsPerCompany = 100
	executeBatchSize      = 25
)

// BotSimulator computes simulated marketplace purchases for every company in
// two phases: a read-only planning pass over the full catalog, then batched
// writes of the resulting plans. The split keeps write amplification (product
// patch + company credit + sale insert per purchase) bounded per batch while
// letting the planner see everything.
type BotSimulator struct {
	store       BotStore
	budgetCents int64
	log         *slog.Logger
	now         func() time.Time
}

func NewBotSimulator(s BotStore, budgetCents int64, logger *slog.Logger) *BotSimulator {
	if budgetCents <= 0 {
		budgetCents = DefaultBotBudgetCents
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BotSimulator{store: s, budgetCents: budgetCents, log: logger, now: time.Now}
}

// Run plans and executes one tick's worth of bot demand. It returns the
// purchases that actually went through and their total spend.
func (b *BotSimulator) Run(ctx context.Context) ([]store.BotPurchase, int64, error) {
	companies, err := b.store.ListCompanies(ctx)
	if err != nil {
		return nil, 0, err
	}

	var plans []store.PurchasePlan
	for _, c := range companies {
		products, err := b.store.ProductsByCompany(ctx, c.ID, maxProductsPerCompany)
		if err != nil {
			b.log.Error("bot planning: product fetch failed", "company_id", c.ID, "err", err)
			continue
		}
		plans = append(plans, planCompanyPurchases(c.ID, products, b.budgetCents)...)
	}

	executed := b.execute(ctx, plans)

	var total int64
	for _, p := range executed {
		total += p.TotalCents
	}

	// Rotation bookkeeping: touch every company whether or not it sold
	// anything, so downstream rotations keyed on updated_at never starve.
	// Every company gets the same timestamp here, so the payroll scan breaks
	// ties by id until its own per-company touches spread them out.
	ids := make([]int64, 0, len(companies))
	for _, c := range companies {
		ids = append(ids, c.ID)
	}
	if err := b.store.TouchCompanies(ctx, ids, b.now()); err != nil {
		b.log.Error("bot run: company touch failed", "err", err)
	}

	return executed, total, nil
}

// planCompanyPurchases allocates the company budget simultaneously across all
// eligible products: every product gets the same floor(budget/validCount)
// allocation regardless of scan order, rather than first-come-first-served.
func planCompanyPurchases(companyID int64, products []store.Product, budgetCents int64) []store.PurchasePlan {
	valid := products[:0:0]
	for _, p := range products {
		if p.PriceCents > 0 && p.PriceCents <= maxBotPriceCents {
			valid = append(valid, p)
		}
	}
	if len(valid) == 0 {
		return nil
	}

	perProduct := budgetCents / int64(len(valid))
	remaining := budgetCents

	var plans []store.PurchasePlan
	for _, p := range valid {
		if remaining <= 0 {
			break
		}
		alloc := perProduct
		if alloc > remaining {
			alloc = remaining
		}
		if alloc < p.PriceCents {
			continue
		}
		qty := alloc / p.PriceCents
		if p.Stock != nil {
			if *p.Stock <= 0 {
				continue
			}
			if qty > *p.Stock {
				qty = *p.Stock
			}
		}
		if p.MaxPerOrder != nil && qty > *p.MaxPerOrder {
			qty = *p.MaxPerOrder
		}
		if qty <= 0 {
			continue
		}
		total := qty * p.PriceCents
		var newStock *int64
		if p.Stock != nil {
			ns := *p.Stock - qty
			newStock = &ns
		}
		plans = append(plans, store.PurchasePlan{
			ProductID:  p.ID,
			Product:    p,
			CompanyID:  companyID,
			Quantity:   qty,
			TotalCents: total,
			NewStock:   newStock,
		})
		remaining -= total
	}
	return plans
}

// execute flushes plans in fixed-size batches, with full parallelism inside a
// batch and batches themselves sequential. Per-item failures are logged and
// dropped; they never abort the batch or the tick.
func (b *BotSimulator) execute(ctx context.Context, plans []store.PurchasePlan) []store.BotPurchase {
	var (
		mu       sync.Mutex
		executed []store.BotPurchase
	)
	for start := 0; start < len(plans); start += executeBatchSize {
		end := start + executeBatchSize
		if end > len(plans) {
			end = len(plans)
		}
		var wg sync.WaitGroup
		for _, plan := range plans[start:end] {
			wg.Add(1)
			go func(plan store.PurchasePlan) {
				defer wg.Done()
				ok, err := b.executeOne(ctx, plan)
				if err != nil {
					b.log.Error("bot purchase failed",
						"company_id", plan.CompanyID,
						"product_id", plan.ProductID,
						"err", err)
					return
				}
				if !ok {
					return
				}
				mu.Lock()
				executed = append(executed, store.BotPurchase{
					ProductID:  plan.ProductID,
					CompanyID:  plan.CompanyID,
					Quantity:   plan.Quantity,
					TotalCents: plan.TotalCents,
				})
				mu.Unlock()
			}(plan)
		}
		wg.Wait()
	}
	return executed
}

func (b *BotSimulator) executeOne(ctx context.Context, plan store.PurchasePlan) (bool, error) {
	// Planning data may be stale: the company can vanish between phases.
	_, found, err := b.store.GetCompany(ctx, plan.CompanyID)
	if err != nil {
		return false, err
	}
	if !found {
		b.log.Debug("bot purchase skipped, company gone", "company_id", plan.CompanyID)
		return false, nil
	}

	if err := b.store.RecordProductSale(ctx, plan.ProductID, plan.Quantity, plan.TotalCents, plan.NewStock); err != nil {
		return false, err
	}
	if err := b.store.CreditCompany(ctx, plan.CompanyID, plan.TotalCents); err != nil {
		return false, err
	}
	sale := store.Sale{
		ID:            uuid.NewString(),
		CompanyID:     plan.CompanyID,
		ProductID:     plan.ProductID,
		Quantity:      plan.Quantity,
		TotalCents:    plan.TotalCents,
		PurchaserType: store.PurchaserTypeBot,
		CreatedAt:     b.now(),
	}
	if err := b.store.InsertSale(ctx, sale); err != nil {
		return false, err
	}
	return true, nil
}
