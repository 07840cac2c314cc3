package tick

import (
	"context"
	"errors"
	"testing"

	"quickbuck/internal/store"
)

func int64Ptr(v int64) *int64 { return &v }

func TestPlanCompanyPurchasesSplitsBudgetEvenly(t *testing.T) {
	products := []store.Product{
		{ID: 1, CompanyID: 7, PriceCents: 100},
		{ID: 2, CompanyID: 7, PriceCents: 300},
	}
	plans := planCompanyPurchases(7, products, 500_000)
	if len(plans) != 2 {
		t.Fatalf("plans = %d, want 2", len(plans))
	}
	// 250,000 per product: 2500 units at 100, 833 units at 300.
	if plans[0].Quantity != 2500 || plans[0].TotalCents != 250_000 {
		t.Fatalf("plan[0] = qty %d total %d, want 2500/250000", plans[0].Quantity, plans[0].TotalCents)
	}
	if plans[1].Quantity != 833 || plans[1].TotalCents != 249_900 {
		t.Fatalf("plan[1] = qty %d total %d, want 833/249900", plans[1].Quantity, plans[1].TotalCents)
	}
}

func TestPlanCompanyPurchasesNeverExceedsBudget(t *testing.T) {
	cases := []struct {
		name     string
		budget   int64
		products []store.Product
	}{
		{"two cheap", 500_000, []store.Product{{ID: 1, PriceCents: 100}, {ID: 2, PriceCents: 300}}},
		{"many uneven", 500_000, []store.Product{
			{ID: 1, PriceCents: 7}, {ID: 2, PriceCents: 1999}, {ID: 3, PriceCents: 55_555},
			{ID: 4, PriceCents: 123_456}, {ID: 5, PriceCents: 3},
		}},
		{"single expensive", 1_000, []store.Product{{ID: 1, PriceCents: 999}}},
		{"tiny budget", 5, []store.Product{{ID: 1, PriceCents: 2}, {ID: 2, PriceCents: 3}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			plans := planCompanyPurchases(1, tc.products, tc.budget)
			var spent int64
			for _, p := range plans {
				if p.TotalCents != p.Quantity*p.Product.PriceCents {
					t.Fatalf("plan total %d != qty %d * price %d", p.TotalCents, p.Quantity, p.Product.PriceCents)
				}
				spent += p.TotalCents
			}
			if spent > tc.budget {
				t.Fatalf("spent %d exceeds budget %d", spent, tc.budget)
			}
		})
	}
}

func TestPlanCompanyPurchasesFiltersPrices(t *testing.T) {
	products := []store.Product{
		{ID: 1, PriceCents: 0},
		{ID: 2, PriceCents: 5_000_001},
		{ID: 3, PriceCents: 500},
	}
	plans := planCompanyPurchases(1, products, 500_000)
	if len(plans) != 1 || plans[0].ProductID != 3 {
		t.Fatalf("plans = %+v, want only product 3", plans)
	}
	// The single valid product receives the whole budget.
	if plans[0].Quantity != 1000 {
		t.Fatalf("qty = %d, want 1000", plans[0].Quantity)
	}
}

func TestPlanCompanyPurchasesRespectsStock(t *testing.T) {
	products := []store.Product{
		{ID: 1, PriceCents: 100, Stock: int64Ptr(5)},
		{ID: 2, PriceCents: 100, Stock: int64Ptr(0)},
		{ID: 3, PriceCents: 100},
	}
	plans := planCompanyPurchases(1, products, 30_000)
	if len(plans) != 2 {
		t.Fatalf("plans = %d, want 2 (zero-stock product skipped)", len(plans))
	}
	if plans[0].ProductID != 1 || plans[0].Quantity != 5 {
		t.Fatalf("plan[0] = %+v, want product 1 clamped to 5", plans[0])
	}
	if plans[0].NewStock == nil || *plans[0].NewStock != 0 {
		t.Fatalf("NewStock = %v, want 0", plans[0].NewStock)
	}
	if plans[1].ProductID != 3 || plans[1].NewStock != nil {
		t.Fatalf("untracked product carried a stock patch: %+v", plans[1])
	}
}

func TestPlanCompanyPurchasesRespectsMaxPerOrder(t *testing.T) {
	products := []store.Product{{ID: 1, PriceCents: 100, MaxPerOrder: int64Ptr(3)}}
	plans := planCompanyPurchases(1, products, 500_000)
	if len(plans) != 1 || plans[0].Quantity != 3 || plans[0].TotalCents != 300 {
		t.Fatalf("plans = %+v, want one purchase of 3 units", plans)
	}
}

func TestBotRunExecutesAndTouchesAll(t *testing.T) {
	fs := &fakeBotStore{
		companies: []store.Company{
			{ID: 1, Name: "widgets"},
			{ID: 2, Name: "empty shelf"},
		},
		products: map[int64][]store.Product{
			1: {{ID: 10, CompanyID: 1, PriceCents: 100}, {ID: 11, CompanyID: 1, PriceCents: 300}},
		},
	}
	b := NewBotSimulator(fs, 0, discardLogger())

	purchases, total, err := b.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(purchases) != 2 {
		t.Fatalf("purchases = %d, want 2", len(purchases))
	}
	if total != 499_900 {
		t.Fatalf("total = %d, want 499900", total)
	}
	if fs.credits[1] != 499_900 {
		t.Fatalf("company credit = %d, want 499900", fs.credits[1])
	}
	if len(fs.sales) != 2 {
		t.Fatalf("sales = %d, want 2", len(fs.sales))
	}
	for _, s := range fs.sales {
		if s.PurchaserType != store.PurchaserTypeBot {
			t.Fatalf("sale purchaser = %q, want %q", s.PurchaserType, store.PurchaserTypeBot)
		}
		if s.ID == "" {
			t.Fatalf("sale inserted without id")
		}
	}
	if len(fs.touchedIDs) != 2 {
		t.Fatalf("touched %d companies, want every company including idle ones", len(fs.touchedIDs))
	}
}

func TestBotRunSkipsVanishedCompany(t *testing.T) {
	fs := &fakeBotStore{
		companies: []store.Company{{ID: 1}},
		products:  map[int64][]store.Product{1: {{ID: 10, CompanyID: 1, PriceCents: 100}}},
		gone:      map[int64]bool{1: true},
	}
	b := NewBotSimulator(fs, 0, discardLogger())

	purchases, total, err := b.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(purchases) != 0 || total != 0 {
		t.Fatalf("purchases = %d total = %d, want none for a vanished company", len(purchases), total)
	}
	if len(fs.recorded) != 0 || len(fs.sales) != 0 {
		t.Fatalf("writes happened for a vanished company")
	}
}

func TestBotRunContinuesPastProductFetchError(t *testing.T) {
	fs := &fakeBotStore{
		companies: []store.Company{{ID: 1}, {ID: 2}},
		products: map[int64][]store.Product{
			2: {{ID: 20, CompanyID: 2, PriceCents: 250}},
		},
		productsErr: map[int64]error{1: errors.New("boom")},
	}
	b := NewBotSimulator(fs, 0, discardLogger())

	purchases, _, err := b.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(purchases) != 1 || purchases[0].CompanyID != 2 {
		t.Fatalf("purchases = %+v, want one purchase for company 2", purchases)
	}
}

func TestBotRunListFailurePropagates(t *testing.T) {
	fs := &fakeBotStore{listErr: errors.New("db down")}
	b := NewBotSimulator(fs, 0, discardLogger())
	if _, _, err := b.Run(context.Background()); err == nil {
		t.Fatalf("Run succeeded, want company list error")
	}
}
