package store

import "time"

// All money values are int64 cents (smallest currency unit).
const CentsPerBuck = int64(100)

// TickLock is the singleton row guarding tick execution. At most one row
// exists with LockID = SingletonLockID; IsLocked implies LockedAt and
// LockedBy are set.
type TickLock struct {
	LockID   string
	IsLocked bool
	LockedAt *time.Time
	LockedBy *string
}

const SingletonLockID = "singleton"

type Company struct {
	ID           int64
	OwnerID      string
	Name         string
	BalanceCents int64
	IsPublic     bool
	// MarketCapCents is the fallback valuation for public companies with no
	// matching stock record.
	MarketCapCents int64
	Employees      []Employee
	UpdatedAt      time.Time
}

type Employee struct {
	ID          int64
	CompanyID   int64
	FullName    string
	TickCostPct float64
}

type Product struct {
	ID        int64
	CompanyID int64
	Name      string
	// PriceCents per unit. Stock nil means unlimited inventory.
	PriceCents        int64
	Stock             *int64
	MaxPerOrder       *int64
	TotalSold         int64
	TotalRevenueCents int64
	UpdatedAt         time.Time
}

type Loan struct {
	ID                   int64
	PlayerID             string
	RemainingCents       int64
	AccruedInterestCents int64
	// InterestRateDaily is a daily percentage, e.g. 5 means 5%/day.
	InterestRateDaily   float64
	LastInterestApplied time.Time
	Status              string
}

const LoanStatusActive = "active"

type Player struct {
	ID                 string
	Username           string
	BalanceCents       int64
	NetWorthCents      int64
	LastNetWorthUpdate time.Time
}

type Sale struct {
	ID            string
	CompanyID     int64
	ProductID     int64
	Quantity      int64
	TotalCents    int64
	PurchaserType string
	CreatedAt     time.Time
}

const PurchaserTypeBot = "bot"

type Stock struct {
	ID                int64
	CompanyID         *int64
	Symbol            string
	CurrentPriceCents int64
	AnchorPriceCents  int64
	OutstandingShares int64
}

type Crypto struct {
	ID                int64
	Symbol            string
	CurrentPriceCents int64
	AnchorPriceCents  int64
}

// StockHolding is a player's position joined with the stock's current price.
type StockHolding struct {
	PlayerID          string
	StockID           int64
	Shares            int64
	CurrentPriceCents int64
}

// CryptoHolding carries a coin balance; value is floor(Balance * price).
type CryptoHolding struct {
	PlayerID          string
	CryptoID          int64
	Balance           float64
	CurrentPriceCents int64
}

// PurchasePlan is the ephemeral output of bot demand planning. It is never
// persisted; only its executed effects are.
type PurchasePlan struct {
	ProductID  int64
	Product    Product
	CompanyID  int64
	Quantity   int64
	TotalCents int64
	NewStock   *int64
}

type BotPurchase struct {
	ProductID  int64 `json:"product_id"`
	CompanyID  int64 `json:"company_id"`
	Quantity   int64 `json:"quantity"`
	TotalCents int64 `json:"total_cents"`
}

type CryptoPriceUpdate struct {
	CryptoID   int64  `json:"crypto_id"`
	Symbol     string `json:"symbol"`
	PriceCents int64  `json:"price_cents"`
}

// TickHistoryEntry is append-only: created once per successful tick and never
// updated or deleted by the engine.
type TickHistoryEntry struct {
	TickNumber            int64               `json:"tick_number"`
	Timestamp             time.Time           `json:"timestamp"`
	BotPurchases          []BotPurchase       `json:"bot_purchases"`
	CryptoPriceUpdates    []CryptoPriceUpdate `json:"crypto_price_updates"`
	TotalBudgetSpentCents int64               `json:"total_budget_spent_cents"`
}

type LeaderboardRow struct {
	Rank          int64  `json:"rank"`
	Username      string `json:"username"`
	NetWorthCents int64  `json:"net_worth_cents"`
}
