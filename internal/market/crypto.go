package market

import (
	"context"
	"log/slog"
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"quickbuck/internal/store"
)

// CryptoMarket reprices crypto assets once per tick. Crypto trades on "wild"
// dynamics regardless of the configured stock volatility and carries no
// regime: it is all noise and shocks.
type CryptoMarket struct {
	db  *pgxpool.Pool
	log *slog.Logger

	mu   sync.Mutex
	rand *mathrand.Rand
}

func NewCryptoMarket(db *pgxpool.Pool, logger *slog.Logger) *CryptoMarket {
	if logger == nil {
		logger = slog.Default()
	}
	return &CryptoMarket{
		db:   db,
		log:  logger,
		rand: mathrand.New(mathrand.NewSource(time.Now().UnixNano())),
	}
}

func (m *CryptoMarket) nextFloat() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rand.Float64()
}

func (m *CryptoMarket) UpdateCryptoPrices(ctx context.Context) ([]store.CryptoPriceUpdate, error) {
	tx, err := m.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT id, symbol, current_price_cents, anchor_price_cents
		FROM game.crypto_assets
		FOR UPDATE
	`)
	if err != nil {
		return nil, err
	}
	type assetRow struct {
		id     int64
		symbol string
		price  int64
		anchor int64
	}
	var assets []assetRow
	for rows.Next() {
		var r assetRow
		if err := rows.Scan(&r.id, &r.symbol, &r.price, &r.anchor); err != nil {
			rows.Close()
			return nil, err
		}
		assets = append(assets, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	params := dynamicsFor("wild")
	updates := make([]store.CryptoPriceUpdate, 0, len(assets))
	for _, a := range assets {
		anchorRet := params.AnchorNoise * noiseFromSeed(m.nextFloat())
		nextAnchor := stepPrice(a.anchor, anchorRet, params.MaxDrop)

		ret := params.Noise*noiseFromSeed(m.nextFloat()) + meanReversion(a.price, a.anchor, params.MeanReversion)
		if m.nextFloat() < params.ShockProb {
			ret += signedShock(m.nextFloat(), m.nextFloat(), params.ShockScale)
		}
		if m.nextFloat() < params.ExtremeProb {
			ret += signedShock(m.nextFloat(), m.nextFloat(), params.ExtremeScale)
		}
		next := stepPrice(a.price, ret, params.MaxDrop)

		if _, err := tx.Exec(ctx, `
			UPDATE game.crypto_assets
			SET current_price_cents = $1,
			    anchor_price_cents = $2,
			    updated_at = now()
			WHERE id = $3
		`, next, nextAnchor, a.id); err != nil {
			return nil, err
		}
		updates = append(updates, store.CryptoPriceUpdate{
			CryptoID:   a.id,
			Symbol:     a.symbol,
			PriceCents: next,
		})
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return updates, nil
}
