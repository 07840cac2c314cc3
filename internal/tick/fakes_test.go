package tick

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"quickbuck/internal/audit"
	"quickbuck/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeLockStore struct {
	lock    *store.TickLock
	getErr  error
	creates int
	updates int
}

func (f *fakeLockStore) GetTickLock(ctx context.Context) (store.TickLock, bool, error) {
	if f.getErr != nil {
		return store.TickLock{}, false, f.getErr
	}
	if f.lock == nil {
		return store.TickLock{}, false, nil
	}
	return *f.lock, true, nil
}

func (f *fakeLockStore) CreateTickLock(ctx context.Context, l store.TickLock) error {
	f.creates++
	cp := l
	f.lock = &cp
	return nil
}

func (f *fakeLockStore) UpdateTickLock(ctx context.Context, l store.TickLock) error {
	f.updates++
	cp := l
	f.lock = &cp
	return nil
}

type recordedSale struct {
	productID  int64
	quantity   int64
	totalCents int64
	newStock   *int64
}

type fakeBotStore struct {
	mu          sync.Mutex
	companies   []store.Company
	products    map[int64][]store.Product
	productsErr map[int64]error
	listErr     error
	gone        map[int64]bool

	recorded   []recordedSale
	credits    map[int64]int64
	sales      []store.Sale
	touchedIDs []int64
	touchedAt  time.Time
}

func (f *fakeBotStore) ListCompanies(ctx context.Context) ([]store.Company, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.companies, nil
}

func (f *fakeBotStore) ProductsByCompany(ctx context.Context, companyID int64, limit int) ([]store.Product, error) {
	if err := f.productsErr[companyID]; err != nil {
		return nil, err
	}
	products := f.products[companyID]
	if len(products) > limit {
		products = products[:limit]
	}
	return products, nil
}

func (f *fakeBotStore) GetCompany(ctx context.Context, id int64) (store.Company, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gone[id] {
		return store.Company{}, false, nil
	}
	for _, c := range f.companies {
		if c.ID == id {
			return c, true, nil
		}
	}
	return store.Company{}, false, nil
}

func (f *fakeBotStore) RecordProductSale(ctx context.Context, productID, quantity, totalCents int64, newStock *int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recorded = append(f.recorded, recordedSale{productID, quantity, totalCents, newStock})
	return nil
}

func (f *fakeBotStore) CreditCompany(ctx context.Context, companyID, amountCents int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.credits == nil {
		f.credits = make(map[int64]int64)
	}
	f.credits[companyID] += amountCents
	return nil
}

func (f *fakeBotStore) InsertSale(ctx context.Context, s store.Sale) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sales = append(f.sales, s)
	return nil
}

func (f *fakeBotStore) TouchCompanies(ctx context.Context, companyIDs []int64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touchedIDs = append(f.touchedIDs, companyIDs...)
	f.touchedAt = at
	return nil
}

type fakePayrollStore struct {
	companies []store.Company
	income    map[int64]int64
	players   map[string]bool

	debits  map[int64]int64
	touched []int64
}

func (f *fakePayrollStore) OldestCompanies(ctx context.Context, limit int) ([]store.Company, error) {
	companies := f.companies
	if len(companies) > limit {
		companies = companies[:limit]
	}
	return companies, nil
}

func (f *fakePayrollStore) SalesIncomeSince(ctx context.Context, companyID int64, since time.Time, limit int) (int64, error) {
	return f.income[companyID], nil
}

func (f *fakePayrollStore) PlayerExists(ctx context.Context, playerID string) (bool, error) {
	return f.players[playerID], nil
}

func (f *fakePayrollStore) DebitCompany(ctx context.Context, companyID, amountCents int64) error {
	if f.debits == nil {
		f.debits = make(map[int64]int64)
	}
	f.debits[companyID] += amountCents
	return nil
}

func (f *fakePayrollStore) TouchCompany(ctx context.Context, companyID int64, at time.Time) error {
	f.touched = append(f.touched, companyID)
	return nil
}

type fakeAuditLogger struct {
	actions []audit.Action
	err     error
}

func (f *fakeAuditLogger) LogAction(ctx context.Context, a audit.Action) error {
	if f.err != nil {
		return f.err
	}
	f.actions = append(f.actions, a)
	return nil
}

type appliedInterest struct {
	loanID    int64
	amount    int64
	appliedAt time.Time
}

type fakeLoanStore struct {
	loans []store.Loan

	lastLimit int
	applied   []appliedInterest
	debits    map[string]int64
	debitErr  error
}

func (f *fakeLoanStore) ActiveLoans(ctx context.Context, afterID int64, limit int) ([]store.Loan, error) {
	f.lastLimit = limit
	sorted := append([]store.Loan(nil), f.loans...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	var out []store.Loan
	for _, l := range sorted {
		if l.Status != store.LoanStatusActive || l.ID <= afterID {
			continue
		}
		out = append(out, l)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeLoanStore) ApplyLoanInterest(ctx context.Context, loanID, amountCents int64, appliedAt time.Time) error {
	f.applied = append(f.applied, appliedInterest{loanID, amountCents, appliedAt})
	return nil
}

func (f *fakeLoanStore) DebitPlayer(ctx context.Context, playerID string, amountCents int64) error {
	if f.debitErr != nil {
		return f.debitErr
	}
	if f.debits == nil {
		f.debits = make(map[string]int64)
	}
	f.debits[playerID] += amountCents
	return nil
}

type fakeNetWorthStore struct {
	players       []store.Player
	stocks        map[string][]store.StockHolding
	stocksErr     map[string]error
	cryptos       map[string][]store.CryptoHolding
	companies     map[string][]store.Company
	companyStocks map[int64]store.Stock
	loans         map[string][]store.Loan

	patched map[string]int64
	order   []string
}

func (f *fakeNetWorthStore) StalePlayers(ctx context.Context, after time.Time, afterID string, limit int) ([]store.Player, error) {
	sorted := append([]store.Player(nil), f.players...)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].LastNetWorthUpdate.Equal(sorted[j].LastNetWorthUpdate) {
			return sorted[i].LastNetWorthUpdate.Before(sorted[j].LastNetWorthUpdate)
		}
		return sorted[i].ID < sorted[j].ID
	})
	var out []store.Player
	for _, p := range sorted {
		if p.LastNetWorthUpdate.Before(after) {
			continue
		}
		if p.LastNetWorthUpdate.Equal(after) && p.ID <= afterID {
			continue
		}
		out = append(out, p)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeNetWorthStore) StockHoldings(ctx context.Context, playerID string, limit int) ([]store.StockHolding, error) {
	if err := f.stocksErr[playerID]; err != nil {
		return nil, err
	}
	holdings := f.stocks[playerID]
	if len(holdings) > limit {
		holdings = holdings[:limit]
	}
	return holdings, nil
}

func (f *fakeNetWorthStore) CryptoHoldings(ctx context.Context, playerID string, limit int) ([]store.CryptoHolding, error) {
	holdings := f.cryptos[playerID]
	if len(holdings) > limit {
		holdings = holdings[:limit]
	}
	return holdings, nil
}

func (f *fakeNetWorthStore) CompaniesOwnedBy(ctx context.Context, playerID string, limit int) ([]store.Company, error) {
	companies := f.companies[playerID]
	if len(companies) > limit {
		companies = companies[:limit]
	}
	return companies, nil
}

func (f *fakeNetWorthStore) StockForCompany(ctx context.Context, companyID int64) (store.Stock, bool, error) {
	s, ok := f.companyStocks[companyID]
	return s, ok, nil
}

func (f *fakeNetWorthStore) LoansByPlayer(ctx context.Context, playerID string, limit int) ([]store.Loan, error) {
	loans := f.loans[playerID]
	if len(loans) > limit {
		loans = loans[:limit]
	}
	return loans, nil
}

func (f *fakeNetWorthStore) SetNetWorth(ctx context.Context, playerID string, netWorthCents int64, at time.Time) error {
	if f.patched == nil {
		f.patched = make(map[string]int64)
	}
	f.patched[playerID] = netWorthCents
	f.order = append(f.order, playerID)
	for i := range f.players {
		if f.players[i].ID == playerID {
			f.players[i].NetWorthCents = netWorthCents
			f.players[i].LastNetWorthUpdate = at
		}
	}
	return nil
}

type fakeHistoryStore struct {
	last      int64
	lastErr   error
	insertErr error
	entries   []store.TickHistoryEntry
}

func (f *fakeHistoryStore) LastTickNumber(ctx context.Context) (int64, error) {
	if f.lastErr != nil {
		return 0, f.lastErr
	}
	if len(f.entries) > 0 {
		return f.entries[len(f.entries)-1].TickNumber, nil
	}
	return f.last, nil
}

func (f *fakeHistoryStore) InsertTickHistory(ctx context.Context, e store.TickHistoryEntry) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.entries = append(f.entries, e)
	return nil
}

type fakeStockPricer struct {
	updated int
	err     error
}

func (f *fakeStockPricer) UpdateStockPrices(ctx context.Context) (int, error) {
	return f.updated, f.err
}

type fakeCryptoPricer struct {
	updates []store.CryptoPriceUpdate
	err     error
}

func (f *fakeCryptoPricer) UpdateCryptoPrices(ctx context.Context) ([]store.CryptoPriceUpdate, error) {
	return f.updates, f.err
}
