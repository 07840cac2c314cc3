package tick

import (
	"context"
	"errors"
	"testing"

	"quickbuck/internal/store"
)

var errAuditDown = errors.New("audit sink unavailable")

func TestPayrollDeductsOperatingCost(t *testing.T) {
	fs := &fakePayrollStore{
		companies: []store.Company{{
			ID:           1,
			OwnerID:      "owner-1",
			Name:         "Nova Widgets",
			BalanceCents: 100_000,
			Employees: []store.Employee{
				{ID: 1, CompanyID: 1, TickCostPct: 5},
				{ID: 2, CompanyID: 1, TickCostPct: 2.5},
			},
		}},
		income:  map[int64]int64{1: 10_000},
		players: map[string]bool{"owner-1": true},
	}
	auditLog := &fakeAuditLogger{}
	p := NewPayrollSettler(fs, auditLog, 10, discardLogger())

	visited, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if visited != 1 {
		t.Fatalf("visited = %d, want 1", visited)
	}
	// 7.5% of 10,000 cents of recent income.
	if fs.debits[1] != 750 {
		t.Fatalf("debit = %d, want 750", fs.debits[1])
	}
	if len(fs.touched) != 1 || fs.touched[0] != 1 {
		t.Fatalf("touched = %v, want [1]", fs.touched)
	}
	if len(auditLog.actions) != 1 {
		t.Fatalf("audit actions = %d, want 1", len(auditLog.actions))
	}
	a := auditLog.actions[0]
	if a.ActionType != "employee_cost" || a.Category != "company" || a.ActorID != "owner-1" {
		t.Fatalf("audit action = %+v", a)
	}
}

func TestPayrollSkipsWithoutDeduction(t *testing.T) {
	cases := []struct {
		name    string
		company store.Company
		income  int64
		owner   bool
	}{
		{
			name:    "no employees",
			company: store.Company{ID: 1, OwnerID: "o", BalanceCents: 1000},
			income:  10_000,
			owner:   true,
		},
		{
			name: "zero cost percentage",
			company: store.Company{ID: 1, OwnerID: "o", BalanceCents: 1000,
				Employees: []store.Employee{{TickCostPct: 0}}},
			income: 10_000,
			owner:  true,
		},
		{
			name: "no recent income",
			company: store.Company{ID: 1, OwnerID: "o", BalanceCents: 1000,
				Employees: []store.Employee{{TickCostPct: 5}}},
			income: 0,
			owner:  true,
		},
		{
			name: "cost exceeds balance",
			company: store.Company{ID: 1, OwnerID: "o", BalanceCents: 100,
				Employees: []store.Employee{{TickCostPct: 5}}},
			income: 10_000,
			owner:  true,
		},
		{
			name: "cost rounds to zero",
			company: store.Company{ID: 1, OwnerID: "o", BalanceCents: 1000,
				Employees: []store.Employee{{TickCostPct: 0.5}}},
			income: 100,
			owner:  true,
		},
		{
			name: "owner unresolvable",
			company: store.Company{ID: 1, OwnerID: "ghost", BalanceCents: 1000,
				Employees: []store.Employee{{TickCostPct: 5}}},
			income: 10_000,
			owner:  false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fs := &fakePayrollStore{
				companies: []store.Company{tc.company},
				income:    map[int64]int64{tc.company.ID: tc.income},
				players:   map[string]bool{tc.company.OwnerID: tc.owner},
			}
			p := NewPayrollSettler(fs, &fakeAuditLogger{}, 10, discardLogger())

			if _, err := p.Run(context.Background()); err != nil {
				t.Fatalf("Run: %v", err)
			}
			if len(fs.debits) != 0 {
				t.Fatalf("debits = %v, want none", fs.debits)
			}
			// Skipped or not, the company must leave the head of the rotation.
			if len(fs.touched) != 1 {
				t.Fatalf("touched = %v, want the visited company", fs.touched)
			}
		})
	}
}

func TestPayrollAuditFailureDoesNotUndoDebit(t *testing.T) {
	fs := &fakePayrollStore{
		companies: []store.Company{{
			ID: 1, OwnerID: "o", BalanceCents: 100_000,
			Employees: []store.Employee{{TickCostPct: 10}},
		}},
		income:  map[int64]int64{1: 5_000},
		players: map[string]bool{"o": true},
	}
	auditLog := &fakeAuditLogger{err: errAuditDown}
	p := NewPayrollSettler(fs, auditLog, 10, discardLogger())

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if fs.debits[1] != 500 {
		t.Fatalf("debit = %d, want 500 despite audit failure", fs.debits[1])
	}
}
