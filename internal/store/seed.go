package store

import (
	"context"
	"fmt"
	"time"
)

// SeedDefaults populates an empty database with a playable demo economy:
// players, their companies and catalogs, the stock and crypto boards, and a
// few open loans. No-op when players already exist.
func (q *Queries) SeedDefaults(ctx context.Context) error {
	var count int
	if err := q.db.QueryRow(ctx, `SELECT COUNT(1) FROM game.players`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	tx, err := q.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	players := []struct {
		ID       string
		Username string
		Balance  int64
	}{
		{"p_nova", "nova", 5_000_000},
		{"p_rook", "rook", 2_500_000},
		{"p_wisp", "wisp", 8_000_000},
		{"p_moss", "moss", 1_200_000},
		{"p_vex", "vex", 3_300_000},
	}
	for _, p := range players {
		if _, err := tx.Exec(ctx, `
			INSERT INTO game.players (id, username, balance_cents, net_worth_cents, last_net_worth_update)
			VALUES ($1, $2, $3, $3, $4)
		`, p.ID, p.Username, p.Balance, time.Unix(0, 0).UTC()); err != nil {
			return err
		}
	}

	companies := []struct {
		Owner    string
		Name     string
		Balance  int64
		IsPublic bool
		Cap      int64
	}{
		{"p_nova", "Nova Widgets", 900_000, true, 12_000_000},
		{"p_rook", "Rook Robotics", 450_000, false, 0},
		{"p_wisp", "Wisp Logistics", 2_100_000, true, 30_000_000},
		{"p_moss", "Moss Gardens", 120_000, false, 0},
	}
	companyIDs := make(map[string]int64, len(companies))
	for _, c := range companies {
		var id int64
		if err := tx.QueryRow(ctx, `
			INSERT INTO game.companies (owner_id, name, balance_cents, is_public, market_cap_cents, updated_at)
			VALUES ($1, $2, $3, $4, $5, now())
			RETURNING id
		`, c.Owner, c.Name, c.Balance, c.IsPublic, c.Cap).Scan(&id); err != nil {
			return err
		}
		companyIDs[c.Name] = id
	}

	employees := []struct {
		Company string
		Name    string
		Pct     float64
	}{
		{"Nova Widgets", "Iris Knox", 4},
		{"Nova Widgets", "Noah Pike", 3.5},
		{"Rook Robotics", "Tara Sol", 6},
		{"Wisp Logistics", "Kian Moss", 2.5},
		{"Wisp Logistics", "Maya Lee", 2.5},
		{"Wisp Logistics", "Arun Vale", 5},
	}
	for _, e := range employees {
		if _, err := tx.Exec(ctx, `
			INSERT INTO game.company_employees (company_id, full_name, tick_cost_pct)
			VALUES ($1, $2, $3)
		`, companyIDs[e.Company], e.Name, e.Pct); err != nil {
			return err
		}
	}

	limited := func(n int64) *int64 { return &n }
	products := []struct {
		Company     string
		Name        string
		Price       int64
		Stock       *int64
		MaxPerOrder *int64
	}{
		{"Nova Widgets", "Pocket Widget", 100, limited(10_000), nil},
		{"Nova Widgets", "Deluxe Widget", 300, limited(4_000), limited(500)},
		{"Rook Robotics", "Helper Drone", 45_000, limited(60), limited(5)},
		{"Wisp Logistics", "Same-Day Parcel", 900, nil, nil},
		{"Wisp Logistics", "Freight Slot", 120_000, limited(20), limited(2)},
		{"Moss Gardens", "Bonsai Kit", 2_500, limited(300), nil},
	}
	for _, p := range products {
		if _, err := tx.Exec(ctx, `
			INSERT INTO game.products (company_id, name, price_cents, stock, max_per_order)
			VALUES ($1, $2, $3, $4, $5)
		`, companyIDs[p.Company], p.Name, p.Price, p.Stock, p.MaxPerOrder); err != nil {
			return err
		}
	}

	stocks := []struct {
		Company string
		Symbol  string
		Price   int64
		Shares  int64
	}{
		{"Nova Widgets", "NOVAWX", 12_500, 1_000},
		{"Wisp Logistics", "WISPLG", 30_000, 1_000},
	}
	stockIDs := make(map[string]int64, len(stocks))
	for _, s := range stocks {
		var id int64
		if err := tx.QueryRow(ctx, `
			INSERT INTO game.stocks (company_id, symbol, current_price_cents, anchor_price_cents, outstanding_shares)
			VALUES ($1, $2, $3, $3, $4)
			RETURNING id
		`, companyIDs[s.Company], s.Symbol, s.Price, s.Shares).Scan(&id); err != nil {
			return err
		}
		stockIDs[s.Symbol] = id
	}

	cryptos := []struct {
		Symbol string
		Price  int64
	}{
		{"QBC", 420_000},
		{"DOGO", 35},
		{"PIXEL", 9_900},
	}
	cryptoIDs := make(map[string]int64, len(cryptos))
	for _, c := range cryptos {
		var id int64
		if err := tx.QueryRow(ctx, `
			INSERT INTO game.crypto_assets (symbol, current_price_cents, anchor_price_cents)
			VALUES ($1, $2, $2)
			RETURNING id
		`, c.Symbol, c.Price).Scan(&id); err != nil {
			return err
		}
		cryptoIDs[c.Symbol] = id
	}

	holdings := []struct {
		Player string
		Symbol string
		Shares int64
	}{
		{"p_vex", "NOVAWX", 40},
		{"p_vex", "WISPLG", 10},
		{"p_moss", "WISPLG", 3},
	}
	for _, h := range holdings {
		if _, err := tx.Exec(ctx, `
			INSERT INTO game.stock_holdings (player_id, stock_id, shares)
			VALUES ($1, $2, $3)
		`, h.Player, stockIDs[h.Symbol], h.Shares); err != nil {
			return err
		}
	}
	coins := []struct {
		Player  string
		Symbol  string
		Balance float64
	}{
		{"p_nova", "QBC", 0.5},
		{"p_rook", "DOGO", 20_000},
		{"p_wisp", "PIXEL", 12.25},
	}
	for _, c := range coins {
		if _, err := tx.Exec(ctx, `
			INSERT INTO game.crypto_holdings (player_id, crypto_id, balance)
			VALUES ($1, $2, $3)
		`, c.Player, cryptoIDs[c.Symbol], c.Balance); err != nil {
			return err
		}
	}

	loans := []struct {
		Player    string
		Remaining int64
		Rate      float64
	}{
		{"p_rook", 1_000_000, 5},
		{"p_moss", 250_000, 3.5},
	}
	for _, l := range loans {
		if _, err := tx.Exec(ctx, `
			INSERT INTO game.loans (player_id, remaining_cents, interest_rate_daily, last_interest_applied, status)
			VALUES ($1, $2, $3, $4, $5)
		`, l.Player, l.Remaining, l.Rate, time.Unix(0, 0).UTC(), LoanStatusActive); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("seed commit: %w", err)
	}
	return nil
}
