package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Queries wraps the connection pool with the persistence operations the tick
// engine and API need. Every method is a single statement: the engine relies
// on per-row atomicity only and never spans entities in one transaction, so a
// crash between two patches is an accepted, logged partial-failure window.
type Queries struct {
	db *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Queries {
	return &Queries{db: db}
}

// --- tick lock ---

func (q *Queries) GetTickLock(ctx context.Context) (TickLock, bool, error) {
	var l TickLock
	err := q.db.QueryRow(ctx, `
		SELECT lock_id, is_locked, locked_at, locked_by
		FROM game.tick_lock
		WHERE lock_id = $1
	`, SingletonLockID).Scan(&l.LockID, &l.IsLocked, &l.LockedAt, &l.LockedBy)
	if err == pgx.ErrNoRows {
		return TickLock{}, false, nil
	}
	if err != nil {
		return TickLock{}, false, err
	}
	return l, true, nil
}

func (q *Queries) CreateTickLock(ctx context.Context, l TickLock) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO game.tick_lock (lock_id, is_locked, locked_at, locked_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (lock_id) DO NOTHING
	`, l.LockID, l.IsLocked, l.LockedAt, l.LockedBy)
	return err
}

func (q *Queries) UpdateTickLock(ctx context.Context, l TickLock) error {
	_, err := q.db.Exec(ctx, `
		UPDATE game.tick_lock
		SET is_locked = $2, locked_at = $3, locked_by = $4
		WHERE lock_id = $1
	`, l.LockID, l.IsLocked, l.LockedAt, l.LockedBy)
	return err
}

// --- tick history ---

func (q *Queries) LastTickNumber(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, `
		SELECT COALESCE(MAX(tick_number), 0)
		FROM game.tick_history
	`).Scan(&n)
	return n, err
}

func (q *Queries) InsertTickHistory(ctx context.Context, e TickHistoryEntry) error {
	purchases, err := json.Marshal(e.BotPurchases)
	if err != nil {
		return fmt.Errorf("marshal bot purchases: %w", err)
	}
	updates, err := json.Marshal(e.CryptoPriceUpdates)
	if err != nil {
		return fmt.Errorf("marshal crypto updates: %w", err)
	}
	_, err = q.db.Exec(ctx, `
		INSERT INTO game.tick_history
		    (tick_number, created_at, bot_purchases, crypto_price_updates, total_budget_spent_cents)
		VALUES ($1, $2, $3::jsonb, $4::jsonb, $5)
	`, e.TickNumber, e.Timestamp, string(purchases), string(updates), e.TotalBudgetSpentCents)
	return err
}

func (q *Queries) RecentTickHistory(ctx context.Context, limit int) ([]TickHistoryEntry, error) {
	rows, err := q.db.Query(ctx, `
		SELECT tick_number, created_at, bot_purchases, crypto_price_updates, total_budget_spent_cents
		FROM game.tick_history
		ORDER BY tick_number DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TickHistoryEntry
	for rows.Next() {
		var e TickHistoryEntry
		var purchases, updates []byte
		if err := rows.Scan(&e.TickNumber, &e.Timestamp, &purchases, &updates, &e.TotalBudgetSpentCents); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(purchases, &e.BotPurchases); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(updates, &e.CryptoPriceUpdates); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// --- companies and products ---

func (q *Queries) ListCompanies(ctx context.Context) ([]Company, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, owner_id, name, balance_cents, is_public, market_cap_cents, updated_at
		FROM game.companies
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Company
	for rows.Next() {
		var c Company
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Name, &c.BalanceCents, &c.IsPublic, &c.MarketCapCents, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (q *Queries) GetCompany(ctx context.Context, id int64) (Company, bool, error) {
	var c Company
	err := q.db.QueryRow(ctx, `
		SELECT id, owner_id, name, balance_cents, is_public, market_cap_cents, updated_at
		FROM game.companies
		WHERE id = $1
	`, id).Scan(&c.ID, &c.OwnerID, &c.Name, &c.BalanceCents, &c.IsPublic, &c.MarketCapCents, &c.UpdatedAt)
	if err == pgx.ErrNoRows {
		return Company{}, false, nil
	}
	if err != nil {
		return Company{}, false, err
	}
	return c, true, nil
}

func (q *Queries) ProductsByCompany(ctx context.Context, companyID int64, limit int) ([]Product, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, company_id, name, price_cents, stock, max_per_order, total_sold, total_revenue_cents, updated_at
		FROM game.products
		WHERE company_id = $1
		ORDER BY id
		LIMIT $2
	`, companyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.CompanyID, &p.Name, &p.PriceCents, &p.Stock, &p.MaxPerOrder, &p.TotalSold, &p.TotalRevenueCents, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (q *Queries) RecordProductSale(ctx context.Context, productID, quantity, totalCents int64, newStock *int64) error {
	if newStock != nil {
		_, err := q.db.Exec(ctx, `
			UPDATE game.products
			SET total_sold = total_sold + $2,
			    total_revenue_cents = total_revenue_cents + $3,
			    stock = $4,
			    updated_at = now()
			WHERE id = $1
		`, productID, quantity, totalCents, *newStock)
		return err
	}
	_, err := q.db.Exec(ctx, `
		UPDATE game.products
		SET total_sold = total_sold + $2,
		    total_revenue_cents = total_revenue_cents + $3,
		    updated_at = now()
		WHERE id = $1
	`, productID, quantity, totalCents)
	return err
}

func (q *Queries) CreditCompany(ctx context.Context, companyID, amountCents int64) error {
	_, err := q.db.Exec(ctx, `
		UPDATE game.companies
		SET balance_cents = balance_cents + $2
		WHERE id = $1
	`, companyID, amountCents)
	return err
}

func (q *Queries) DebitCompany(ctx context.Context, companyID, amountCents int64) error {
	_, err := q.db.Exec(ctx, `
		UPDATE game.companies
		SET balance_cents = balance_cents - $2
		WHERE id = $1
	`, companyID, amountCents)
	return err
}

func (q *Queries) InsertSale(ctx context.Context, s Sale) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO game.sales (id, company_id, product_id, quantity, total_cents, purchaser_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, s.ID, s.CompanyID, s.ProductID, s.Quantity, s.TotalCents, s.PurchaserType, s.CreatedAt)
	return err
}

func (q *Queries) TouchCompany(ctx context.Context, companyID int64, at time.Time) error {
	_, err := q.db.Exec(ctx, `
		UPDATE game.companies SET updated_at = $2 WHERE id = $1
	`, companyID, at)
	return err
}

func (q *Queries) TouchCompanies(ctx context.Context, companyIDs []int64, at time.Time) error {
	if len(companyIDs) == 0 {
		return nil
	}
	_, err := q.db.Exec(ctx, `
		UPDATE game.companies SET updated_at = $2 WHERE id = ANY($1)
	`, companyIDs, at)
	return err
}

// OldestCompanies returns the rotation batch for payroll: companies ordered
// oldest-updated-first, with their employee lists attached.
func (q *Queries) OldestCompanies(ctx context.Context, limit int) ([]Company, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, owner_id, name, balance_cents, is_public, market_cap_cents, updated_at
		FROM game.companies
		ORDER BY updated_at ASC, id ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Company
	var ids []int64
	for rows.Next() {
		var c Company
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Name, &c.BalanceCents, &c.IsPublic, &c.MarketCapCents, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
		ids = append(ids, c.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return out, nil
	}

	eRows, err := q.db.Query(ctx, `
		SELECT id, company_id, full_name, tick_cost_pct
		FROM game.company_employees
		WHERE company_id = ANY($1)
		ORDER BY id
	`, ids)
	if err != nil {
		return nil, err
	}
	defer eRows.Close()
	byCompany := make(map[int64][]Employee)
	for eRows.Next() {
		var e Employee
		if err := eRows.Scan(&e.ID, &e.CompanyID, &e.FullName, &e.TickCostPct); err != nil {
			return nil, err
		}
		byCompany[e.CompanyID] = append(byCompany[e.CompanyID], e)
	}
	if err := eRows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Employees = byCompany[out[i].ID]
	}
	return out, nil
}

func (q *Queries) SalesIncomeSince(ctx context.Context, companyID int64, since time.Time, limit int) (int64, error) {
	var total int64
	err := q.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(total_cents), 0)
		FROM (
			SELECT total_cents
			FROM game.sales
			WHERE company_id = $1 AND created_at >= $2
			ORDER BY created_at DESC
			LIMIT $3
		) recent
	`, companyID, since, limit).Scan(&total)
	return total, err
}

// --- players ---

func (q *Queries) PlayerExists(ctx context.Context, playerID string) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM game.players WHERE id = $1)
	`, playerID).Scan(&exists)
	return exists, err
}

func (q *Queries) DebitPlayer(ctx context.Context, playerID string, amountCents int64) error {
	// No floor: a player's balance may go negative and compound into
	// negative net worth; liquidation is handled elsewhere.
	_, err := q.db.Exec(ctx, `
		UPDATE game.players
		SET balance_cents = balance_cents - $2
		WHERE id = $1
	`, playerID, amountCents)
	return err
}

func (q *Queries) StalePlayers(ctx context.Context, after time.Time, afterID string, limit int) ([]Player, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, username, balance_cents, net_worth_cents, last_net_worth_update
		FROM game.players
		WHERE (last_net_worth_update, id) > ($1, $2)
		ORDER BY last_net_worth_update ASC, id ASC
		LIMIT $3
	`, after, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Player
	for rows.Next() {
		var p Player
		if err := rows.Scan(&p.ID, &p.Username, &p.BalanceCents, &p.NetWorthCents, &p.LastNetWorthUpdate); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (q *Queries) SetNetWorth(ctx context.Context, playerID string, netWorthCents int64, at time.Time) error {
	_, err := q.db.Exec(ctx, `
		UPDATE game.players
		SET net_worth_cents = $2, last_net_worth_update = $3
		WHERE id = $1
	`, playerID, netWorthCents, at)
	return err
}

func (q *Queries) Leaderboard(ctx context.Context, limit int) ([]LeaderboardRow, error) {
	rows, err := q.db.Query(ctx, `
		SELECT username, net_worth_cents
		FROM game.players
		ORDER BY net_worth_cents DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LeaderboardRow
	var rank int64 = 1
	for rows.Next() {
		var r LeaderboardRow
		if err := rows.Scan(&r.Username, &r.NetWorthCents); err != nil {
			return nil, err
		}
		r.Rank = rank
		rank++
		out = append(out, r)
	}
	return out, rows.Err()
}

// --- loans ---

func (q *Queries) ActiveLoans(ctx context.Context, afterID int64, limit int) ([]Loan, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, player_id, remaining_cents, accrued_interest_cents, interest_rate_daily, last_interest_applied, status
		FROM game.loans
		WHERE status = $1 AND id > $2
		ORDER BY id ASC
		LIMIT $3
	`, LoanStatusActive, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Loan
	for rows.Next() {
		var l Loan
		if err := rows.Scan(&l.ID, &l.PlayerID, &l.RemainingCents, &l.AccruedInterestCents, &l.InterestRateDaily, &l.LastInterestApplied, &l.Status); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (q *Queries) ApplyLoanInterest(ctx context.Context, loanID, amountCents int64, appliedAt time.Time) error {
	_, err := q.db.Exec(ctx, `
		UPDATE game.loans
		SET remaining_cents = remaining_cents + $2,
		    accrued_interest_cents = accrued_interest_cents + $2,
		    last_interest_applied = $3
		WHERE id = $1
	`, loanID, amountCents, appliedAt)
	return err
}

func (q *Queries) LoansByPlayer(ctx context.Context, playerID string, limit int) ([]Loan, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, player_id, remaining_cents, accrued_interest_cents, interest_rate_daily, last_interest_applied, status
		FROM game.loans
		WHERE player_id = $1 AND status = $2
		ORDER BY id ASC
		LIMIT $3
	`, playerID, LoanStatusActive, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Loan
	for rows.Next() {
		var l Loan
		if err := rows.Scan(&l.ID, &l.PlayerID, &l.RemainingCents, &l.AccruedInterestCents, &l.InterestRateDaily, &l.LastInterestApplied, &l.Status); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// --- holdings and valuations ---

func (q *Queries) StockHoldings(ctx context.Context, playerID string, limit int) ([]StockHolding, error) {
	rows, err := q.db.Query(ctx, `
		SELECT h.player_id, h.stock_id, h.shares, s.current_price_cents
		FROM game.stock_holdings h
		JOIN game.stocks s ON s.id = h.stock_id
		WHERE h.player_id = $1
		ORDER BY h.stock_id
		LIMIT $2
	`, playerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StockHolding
	for rows.Next() {
		var h StockHolding
		if err := rows.Scan(&h.PlayerID, &h.StockID, &h.Shares, &h.CurrentPriceCents); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (q *Queries) CryptoHoldings(ctx context.Context, playerID string, limit int) ([]CryptoHolding, error) {
	rows, err := q.db.Query(ctx, `
		SELECT h.player_id, h.crypto_id, h.balance, c.current_price_cents
		FROM game.crypto_holdings h
		JOIN game.crypto_assets c ON c.id = h.crypto_id
		WHERE h.player_id = $1
		ORDER BY h.crypto_id
		LIMIT $2
	`, playerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CryptoHolding
	for rows.Next() {
		var h CryptoHolding
		if err := rows.Scan(&h.PlayerID, &h.CryptoID, &h.Balance, &h.CurrentPriceCents); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (q *Queries) CompaniesOwnedBy(ctx context.Context, playerID string, limit int) ([]Company, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, owner_id, name, balance_cents, is_public, market_cap_cents, updated_at
		FROM game.companies
		WHERE owner_id = $1
		ORDER BY id
		LIMIT $2
	`, playerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Company
	for rows.Next() {
		var c Company
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Name, &c.BalanceCents, &c.IsPublic, &c.MarketCapCents, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (q *Queries) StockForCompany(ctx context.Context, companyID int64) (Stock, bool, error) {
	var s Stock
	err := q.db.QueryRow(ctx, `
		SELECT id, company_id, symbol, current_price_cents, anchor_price_cents, outstanding_shares
		FROM game.stocks
		WHERE company_id = $1
	`, companyID).Scan(&s.ID, &s.CompanyID, &s.Symbol, &s.CurrentPriceCents, &s.AnchorPriceCents, &s.OutstandingShares)
	if err == pgx.ErrNoRows {
		return Stock{}, false, nil
	}
	if err != nil {
		return Stock{}, false, err
	}
	return s, true, nil
}
