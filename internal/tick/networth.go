package tick

import (
	"context"
	"log/slog"
	"math"
	"time"

	"quickbuck/internal/store"
)

type NetWorthStore interface {
	// StalePlayers returns players ordered by (last_net_worth_update, id)
	// ascending, strictly after the given keyset position.
	StalePlayers(ctx context.Context, after time.Time, afterID string, limit int) ([]store.Player, error)
	StockHoldings(ctx context.Context, playerID string, limit int) ([]store.StockHolding, error)
	CryptoHoldings(ctx context.Context, playerID string, limit int) ([]store.CryptoHolding, error)
	CompaniesOwnedBy(ctx context.Context, playerID string, limit int) ([]store.Company, error)
	StockForCompany(ctx context.Context, companyID int64) (store.Stock, bool, error)
	LoansByPlayer(ctx context.Context, playerID string, limit int) ([]store.Loan, error)
	SetNetWorth(ctx context.Context, playerID string, netWorthCents int64, at time.Time) error
}

const (
	DefaultNetWorthBatchSize = 6
	maxNetWorthBatchSize     = 25

	// Per-type valuation caps. Holdings beyond the cap are silently excluded
	// from that pass's valuation; an accepted undercount for whales in
	// exchange for a bounded per-player read cost.
	maxValuedStockHoldings  = 5
	maxValuedCryptoHoldings = 5
	maxValuedCompanies      = 3
	maxCountedLoans         = 3
)

// NetWorthAggregator recomputes a rotating batch of players' net worth:
// cash + stock holdings + crypto holdings + owned-company equity − loan
// balances. Every visited player is patched even when nothing changed, which
// advances the watermark and guarantees the rotation never starves anyone.
type NetWorthAggregator struct {
	store NetWorthStore
	log   *slog.Logger
	now   func() time.Time
}

func NewNetWorthAggregator(s NetWorthStore, logger *slog.Logger) *NetWorthAggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &NetWorthAggregator{store: s, log: logger, now: time.Now}
}

func (n *NetWorthAggregator) Apply(ctx context.Context, limit int, cursor string) (BatchResult, error) {
	if limit <= 0 {
		limit = DefaultNetWorthBatchSize
	}
	if limit > maxNetWorthBatchSize {
		limit = maxNetWorthBatchSize
	}
	cur, err := DecodeCursor(cursor)
	if err != nil {
		return BatchResult{}, err
	}

	players, err := n.store.StalePlayers(ctx, cur.Watermark, cur.LastID, limit)
	if err != nil {
		return BatchResult{}, err
	}

	now := n.now()
	var res BatchResult
	for _, p := range players {
		worth, err := n.valuePlayer(ctx, p)
		if err != nil {
			// Skip without patching; the player stays stale and is retried
			// on a later pass.
			n.log.Error("net worth valuation failed", "player_id", p.ID, "err", err)
			continue
		}
		if err := n.store.SetNetWorth(ctx, p.ID, worth, now); err != nil {
			n.log.Error("net worth patch failed", "player_id", p.ID, "err", err)
			continue
		}
		res.Processed++
	}

	if len(players) == limit {
		last := players[len(players)-1]
		res.Cursor = Cursor{LastID: last.ID, Watermark: last.LastNetWorthUpdate}.Encode()
	}
	return res, nil
}

func (n *NetWorthAggregator) valuePlayer(ctx context.Context, p store.Player) (int64, error) {
	worth := p.BalanceCents

	stocks, err := n.store.StockHoldings(ctx, p.ID, maxValuedStockHoldings)
	if err != nil {
		return 0, err
	}
	for _, h := range stocks {
		worth += h.Shares * h.CurrentPriceCents
	}

	cryptos, err := n.store.CryptoHoldings(ctx, p.ID, maxValuedCryptoHoldings)
	if err != nil {
		return 0, err
	}
	for _, h := range cryptos {
		worth += int64(math.Floor(h.Balance * float64(h.CurrentPriceCents)))
	}

	companies, err := n.store.CompaniesOwnedBy(ctx, p.ID, maxValuedCompanies)
	if err != nil {
		return 0, err
	}
	for _, c := range companies {
		if !c.IsPublic {
			worth += c.BalanceCents
			continue
		}
		stock, found, err := n.store.StockForCompany(ctx, c.ID)
		if err != nil {
			return 0, err
		}
		if found {
			worth += stock.CurrentPriceCents * stock.OutstandingShares
		} else {
			// Public company with no listed stock record: fall back to the
			// stored market cap.
			worth += c.MarketCapCents
		}
	}

	loans, err := n.store.LoansByPlayer(ctx, p.ID, maxCountedLoans)
	if err != nil {
		return 0, err
	}
	for _, l := range loans {
		worth -= l.RemainingCents
	}

	return worth, nil
}
