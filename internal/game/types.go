package game

import "time"

type SubStat struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

type Artifact struct {
	ID              int       `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	Level           int       `json:"level"`
	BaseYield       int64     `json:"base_yield"`
	YieldMultiplier float64   `json:"yield_multiplier"`
	Rarity          Rarity    `json:"rarity"`
	SubStats        []SubStat `json:"sub_stats"`
	Locked          bool      `json:"is_locked"`
	CreatedAt       time.Time `json:"created_at"`
}

type Wallet struct {
	UserID       string           `json:"user_id"`
	Coins        int64            `json:"coins"`
	UpgradeItems int64            `json:"upgrade_items"`
	RerollItems  int64            `json:"reroll_items"`
	LastCheckin  string           `json:"last_checkin_date,omitempty"`
	Streak       int              `json:"streak"`
	Holdings     map[string]int64 `json:"holdings"`
	RegisteredAt time.Time        `json:"registered_at"`
}

type PricePoint struct {
	TickAt time.Time `json:"tick_at"`
	Price  float64   `json:"price"`
}

type Stock struct {
	Symbol    string                  `json:"symbol"`
	Name      string                  `json:"name"`
	Category  string                  `json:"category"`
	Price     float64                 `json:"price"`
	Weight    float64                 `json:"weight"`
	History   map[Period][]PricePoint `json:"history"`
	UpdatedAt time.Time               `json:"updated_at"`
}

type PriceUpdate struct {
	Symbol string    `json:"symbol"`
	Name   string    `json:"name"`
	Price  float64   `json:"price"`
	Prev   float64   `json:"prev"`
	Weight float64   `json:"weight"`
	TickAt time.Time `json:"tick_at"`
}

type DrawOutcome string

const (
	DrawArtifact DrawOutcome = "artifact"
	DrawReroll   DrawOutcome = "reroll"
	DrawUpgrade  DrawOutcome = "upgrade"
	DrawCoins    DrawOutcome = "coins"
)

type AddOutcome struct {
	Stored         bool      `json:"stored"`
	Evicted        *Artifact `json:"evicted,omitempty"`
	EvictedYield   int64     `json:"evicted_yield,omitempty"`
	ConvertedYield int64     `json:"converted_yield,omitempty"`
}

type DrawResult struct {
	Outcome      DrawOutcome `json:"outcome"`
	Roll         int         `json:"roll"`
	Cost         int64       `json:"cost"`
	CoinsWon     int64       `json:"coins_won,omitempty"`
	ItemsWon     int64       `json:"items_won,omitempty"`
	Artifact     *Artifact   `json:"artifact,omitempty"`
	Placement    *AddOutcome `json:"placement,omitempty"`
	Balance      int64       `json:"balance"`
	UpgradeItems int64       `json:"upgrade_items"`
	RerollItems  int64       `json:"reroll_items"`
	Message      string      `json:"message"`
}

type GrantResult struct {
	Artifact  Artifact   `json:"artifact"`
	Placement AddOutcome `json:"placement"`
	Message   string     `json:"message"`
}

type DisassembleResult struct {
	Artifact     Artifact `json:"artifact"`
	Yield        int64    `json:"yield"`
	UpgradeItems int64    `json:"upgrade_items"`
	Message      string   `json:"message"`
}

type EnhanceResult struct {
	Artifact     Artifact `json:"artifact"`
	ItemsSpent   int64    `json:"items_spent"`
	CoinsSpent   int64    `json:"coins_spent"`
	Balance      int64    `json:"balance"`
	UpgradeItems int64    `json:"upgrade_items"`
	Message      string   `json:"message"`
}

type LockResult struct {
	Artifact Artifact `json:"artifact"`
	Message  string   `json:"message"`
}

type StorageView struct {
	Artifacts []Artifact `json:"artifacts"`
	Capacity  int        `json:"capacity"`
	Message   string     `json:"message"`
}

type OrderInput struct {
	UserID         string
	Symbol         string
	Side           string
	Quantity       int64
	IdempotencyKey string
}

type OrderResult struct {
	Symbol   string  `json:"symbol"`
	Side     string  `json:"side"`
	Quantity int64   `json:"quantity"`
	Price    float64 `json:"price"`
	Total    int64   `json:"total"`
	Fee      int64   `json:"fee"`
	Balance  int64   `json:"balance"`
	Holding  int64   `json:"holding"`
	Weight   float64 `json:"weight"`
	Message  string  `json:"message"`
}

type StockView struct {
	Symbol   string  `json:"symbol"`
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Price    float64 `json:"price"`
	Change   float64 `json:"change"`
	Weight   float64 `json:"weight"`
}

type MarketView struct {
	Stocks     []StockView `json:"stocks"`
	NextUpdate time.Time   `json:"next_update"`
	Message    string      `json:"message"`
}

type HistoryView struct {
	Symbol  string       `json:"symbol"`
	Name    string       `json:"name"`
	Period  Period       `json:"period"`
	Points  []PricePoint `json:"points"`
	Message string       `json:"message"`
}

type HoldingView struct {
	Symbol   string  `json:"symbol"`
	Name     string  `json:"name"`
	Quantity int64   `json:"quantity"`
	Price    float64 `json:"price"`
	Value    int64   `json:"value"`
}

type Portfolio struct {
	UserID        string        `json:"user_id"`
	Coins         int64         `json:"coins"`
	UpgradeItems  int64         `json:"upgrade_items"`
	RerollItems   int64         `json:"reroll_items"`
	Streak        int           `json:"streak"`
	LastCheckin   string        `json:"last_checkin_date,omitempty"`
	Holdings      []HoldingView `json:"holdings"`
	HoldingsValue int64         `json:"holdings_value"`
	Artifacts     int           `json:"artifacts"`
	Message       string        `json:"message"`
}

type CheckinResult struct {
	Streak  int    `json:"streak"`
	Bonus   int64  `json:"bonus"`
	Reward  int64  `json:"reward"`
	Balance int64  `json:"balance"`
	Message string `json:"message"`
}

type BoomResult struct {
	Stake   int64  `json:"stake"`
	Payout  int64  `json:"payout"`
	Balance int64  `json:"balance"`
	Message string `json:"message"`
}

type LedgerInput struct {
	UserID         string
	Coins          int64
	UpgradeItems   int64
	RerollItems    int64
	IdempotencyKey string
}

type Ledger struct {
	UserID       string `json:"user_id"`
	Coins        int64  `json:"coins"`
	UpgradeItems int64  `json:"upgrade_items"`
	RerollItems  int64  `json:"reroll_items"`
}
