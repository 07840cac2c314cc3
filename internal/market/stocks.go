package market

import (
	"context"
	"log/slog"
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const stockMarketKey = "stocks"

// StockMarket updates every stock's price once per tick. It is a collaborator
// of the tick engine, not part of it, so it is free to use a transaction.
type StockMarket struct {
	db         *pgxpool.Pool
	log        *slog.Logger
	volatility string

	mu   sync.Mutex
	rand *mathrand.Rand
}

func NewStockMarket(db *pgxpool.Pool, volatility string, logger *slog.Logger) *StockMarket {
	if logger == nil {
		logger = slog.Default()
	}
	return &StockMarket{
		db:         db,
		log:        logger,
		volatility: volatility,
		rand:       mathrand.New(mathrand.NewSource(time.Now().UnixNano())),
	}
}

func (m *StockMarket) nextFloat() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rand.Float64()
}

// UpdateStockPrices advances all stock prices one step and returns how many
// rows were updated.
func (m *StockMarket) UpdateStockPrices(ctx context.Context) (int, error) {
	tx, err := m.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	params := dynamicsFor(m.volatility)
	regime, err := currentRegimeTx(ctx, tx, stockMarketKey)
	if err != nil {
		return 0, err
	}
	if m.nextFloat() < params.RegimeSwitch {
		regime = pickRegime(m.nextFloat())
		if _, err := tx.Exec(ctx, `
			INSERT INTO game.market_state (market, regime, updated_at)
			VALUES ($1, $2, now())
			ON CONFLICT (market) DO UPDATE SET regime = $2, updated_at = now()
		`, stockMarketKey, regime); err != nil {
			return 0, err
		}
	}

	rows, err := tx.Query(ctx, `
		SELECT id, current_price_cents, anchor_price_cents
		FROM game.stocks
		FOR UPDATE
	`)
	if err != nil {
		return 0, err
	}
	type stockRow struct {
		id     int64
		price  int64
		anchor int64
	}
	var stocks []stockRow
	for rows.Next() {
		var r stockRow
		if err := rows.Scan(&r.id, &r.price, &r.anchor); err != nil {
			rows.Close()
			return 0, err
		}
		stocks = append(stocks, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	drift := regimeDrift(regime)
	for _, st := range stocks {
		anchorRet := 0.30*drift + params.AnchorNoise*noiseFromSeed(m.nextFloat())
		if m.nextFloat() < params.ShockProb*0.20 {
			anchorRet += signedShock(m.nextFloat(), m.nextFloat(), params.ShockScale*0.40)
		}
		nextAnchor := stepPrice(st.anchor, anchorRet, params.MaxDrop)

		ret := drift + params.Noise*noiseFromSeed(m.nextFloat()) + meanReversion(st.price, st.anchor, params.MeanReversion)
		if m.nextFloat() < params.ShockProb {
			ret += signedShock(m.nextFloat(), m.nextFloat(), params.ShockScale)
		}
		if m.nextFloat() < params.ExtremeProb {
			ret += signedShock(m.nextFloat(), m.nextFloat(), params.ExtremeScale)
		}
		next := stepPrice(st.price, ret, params.MaxDrop)

		if _, err := tx.Exec(ctx, `
			UPDATE game.stocks
			SET current_price_cents = $1,
			    anchor_price_cents = $2,
			    updated_at = now()
			WHERE id = $3
		`, next, nextAnchor, st.id); err != nil {
			return 0, err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO game.stock_prices (stock_id, tick_at, price_cents)
			VALUES ($1, now(), $2)
		`, st.id, next); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return len(stocks), nil
}

func currentRegimeTx(ctx context.Context, tx pgx.Tx, market string) (string, error) {
	var regime string
	err := tx.QueryRow(ctx, `
		SELECT regime FROM game.market_state WHERE market = $1
	`, market).Scan(&regime)
	if err == nil {
		return regime, nil
	}
	if err != pgx.ErrNoRows {
		return "", err
	}
	regime = "neutral"
	_, err = tx.Exec(ctx, `
		INSERT INTO game.market_state (market, regime, updated_at)
		VALUES ($1, $2, now())
	`, market, regime)
	return regime, err
}
