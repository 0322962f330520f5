package game

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

const (
	InventoryCapacity = 20
	DrawCost          = int64(100)
	StarterCoins      = int64(10)

	MinArtifactID = 1
	MaxArtifactID = 99999

	FeePercent      = int64(5)
	WeightStep      = 0.01
	WeightLimit     = 0.2
	MinStockPrice   = 1.0
	MinBoomStake    = int64(5)
	MaxCheckinBonus = 20

	// MaxCoins bounds every coin amount so totals, fees and balances stay
	// inside int64.
	MaxCoins = int64(math.MaxInt64 / 100)

	MarketOwner = "market"
)

var (
	ErrArtifactNotFound     = errors.New("artifact not found")
	ErrArtifactLocked       = errors.New("artifact is locked")
	ErrStockNotFound        = errors.New("stock not found")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInsufficientItems    = errors.New("insufficient enhancement items")
	ErrInsufficientHoldings = errors.New("insufficient holdings")
	ErrInvalidQuantity      = errors.New("quantity must be > 0")
	ErrInvalidSide          = errors.New("side must be buy or sell")
	ErrFeeExceedsProceeds   = errors.New("fee exceeds proceeds")
	ErrInvalidPeriod        = errors.New("period must be 6m, 1h or 1d")
	ErrIDSpaceExhausted     = errors.New("no free artifact id")
	ErrAlreadyCheckedIn     = errors.New("already checked in today")
	ErrStakeTooSmall        = errors.New("stake too small")
	ErrAmountTooLarge       = errors.New("amount too large")
	ErrDuplicateIdempotency = errors.New("duplicate idempotency key")
	ErrUnauthorized         = errors.New("unauthorized")
)

var domainErrors = []error{
	ErrArtifactNotFound,
	ErrArtifactLocked,
	ErrStockNotFound,
	ErrInsufficientFunds,
	ErrInsufficientItems,
	ErrInsufficientHoldings,
	ErrInvalidQuantity,
	ErrInvalidSide,
	ErrFeeExceedsProceeds,
	ErrInvalidPeriod,
	ErrIDSpaceExhausted,
	ErrAlreadyCheckedIn,
	ErrStakeTooSmall,
	ErrAmountTooLarge,
	ErrDuplicateIdempotency,
}

// IsDomainError reports whether err is a recoverable command failure rather
// than a storage or transport problem.
func IsDomainError(err error) bool {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

type Rarity int

const (
	Common Rarity = iota
	Uncommon
	Rare
	Epic
	Legendary
)

func (r Rarity) String() string {
	switch r {
	case Common:
		return "Common"
	case Uncommon:
		return "Uncommon"
	case Rare:
		return "Rare"
	case Epic:
		return "Epic"
	case Legendary:
		return "Legendary"
	default:
		return fmt.Sprintf("Rarity(%d)", int(r))
	}
}

func (r Rarity) Glyph() string {
	switch r {
	case Common:
		return "⚪"
	case Uncommon:
		return "🌿"
	case Rare:
		return "🔶"
	case Epic:
		return "💎"
	case Legendary:
		return "👑"
	default:
		return "?"
	}
}

// BaseYield is the enhancement item count a level 1 artifact disassembles into.
func (r Rarity) BaseYield() int64 {
	switch r {
	case Common:
		return 1
	case Uncommon:
		return 5
	case Rare:
		return 20
	case Epic:
		return 50
	case Legendary:
		return 100
	default:
		return 0
	}
}

func (r Rarity) Valid() bool {
	return r >= Common && r <= Legendary
}

func ParseRarity(s string) (Rarity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "common":
		return Common, nil
	case "uncommon":
		return Uncommon, nil
	case "rare":
		return Rare, nil
	case "epic":
		return Epic, nil
	case "legendary":
		return Legendary, nil
	default:
		return 0, fmt.Errorf("unknown rarity %q", s)
	}
}

func (r Rarity) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid rarity %d", int(r))
	}
	return []byte(strings.ToLower(r.String())), nil
}

func (r *Rarity) UnmarshalText(b []byte) error {
	v, err := ParseRarity(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// rarityForRoll maps a 1..100 roll onto the 50/30/15/4/1 tier split.
func rarityForRoll(roll int) Rarity {
	switch {
	case roll <= 50:
		return Common
	case roll <= 80:
		return Uncommon
	case roll <= 95:
		return Rare
	case roll <= 99:
		return Epic
	default:
		return Legendary
	}
}

type Period string

const (
	Period6m Period = "6m"
	Period1h Period = "1h"
	Period1d Period = "1d"
)

var Periods = []Period{Period6m, Period1h, Period1d}

func ParsePeriod(s string) (Period, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "6m", "m", "min":
		return Period6m, nil
	case "1h", "h", "hour":
		return Period1h, nil
	case "1d", "d", "day":
		return Period1d, nil
	default:
		return "", fmt.Errorf("%w: got %q", ErrInvalidPeriod, s)
	}
}

func (p Period) Retention() int {
	switch p {
	case Period6m:
		return 20
	case Period1h:
		return 24
	case Period1d:
		return 30
	default:
		return 0
	}
}

func (p Period) Label() string {
	switch p {
	case Period6m:
		return "recent ticks"
	case Period1h:
		return "hourly closes"
	case Period1d:
		return "daily closes"
	default:
		return string(p)
	}
}
