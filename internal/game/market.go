package game

import (
	"fmt"
	"math"
	"strings"
	"time"
)

type stockSeed struct {
	Symbol   string
	Name     string
	Category string
	Price    float64
}

var defaultStocks = []stockSeed{
	{"01", "Ember Foundry", "Industry", 120},
	{"02", "Tidewater Shipping", "Logistics", 85},
	{"03", "Lantern Biotech", "Health", 150},
	{"04", "Copperleaf Farms", "Agriculture", 60},
	{"05", "Nightjar Games", "Entertainment", 100},
}

type marketDynamics struct {
	WeightBias        float64
	NoiseScale        float64
	ShockProb         float64
	ShockScale        float64
	ExtremeShockProb  float64
	ExtremeShockScale float64
	MaxMovePerTick    float64
}

func NormalizeVolatility(mode string) string {
	switch v := strings.ToLower(strings.TrimSpace(mode)); v {
	case "calm", "mor", "wild":
		return v
	default:
		return "mor"
	}
}

func volatilityParams(mode string) marketDynamics {
	switch NormalizeVolatility(mode) {
	case "calm":
		return marketDynamics{
			WeightBias:        0.05,
			NoiseScale:        0.010,
			ShockProb:         0.04,
			ShockScale:        0.03,
			ExtremeShockProb:  0.005,
			ExtremeShockScale: 0.08,
			MaxMovePerTick:    0.06,
		}
	case "wild":
		return marketDynamics{
			WeightBias:        0.12,
			NoiseScale:        0.040,
			ShockProb:         0.15,
			ShockScale:        0.08,
			ExtremeShockProb:  0.040,
			ExtremeShockScale: 0.20,
			MaxMovePerTick:    0.25,
		}
	default:
		return marketDynamics{
			WeightBias:        0.08,
			NoiseScale:        0.020,
			ShockProb:         0.08,
			ShockScale:        0.05,
			ExtremeShockProb:  0.015,
			ExtremeShockScale: 0.12,
			MaxMovePerTick:    0.12,
		}
	}
}

func normalish(seed float64) float64 {
	return (seed + seed - 1)
}

func signedShock(magSeed, signSeed, base float64) float64 {
	mag := base * (0.35 + 2.8*magSeed*magSeed)
	if signSeed < 0.5 {
		return -mag
	}
	return mag
}

// tickReturn draws one log-return for a stock. Positive weight tilts it upward.
func tickReturn(p marketDynamics, weight float64, next func() float64) float64 {
	ret := weight*p.WeightBias + p.NoiseScale*normalish(next())
	if next() < p.ShockProb {
		ret += signedShock(next(), next(), p.ShockScale)
	}
	if next() < p.ExtremeShockProb {
		ret += signedShock(next(), next(), p.ExtremeShockScale)
	}
	return clampFloat(ret, -p.MaxMovePerTick, p.MaxMovePerTick)
}

func evolvePrice(price, ret float64) float64 {
	if price <= 0 {
		return MinStockPrice
	}
	next := roundTo(price*math.Exp(ret), 2)
	if next < MinStockPrice {
		next = MinStockPrice
	}
	return next
}

// tradeTotal reports false when the order is worth MaxCoins or more.
func tradeTotal(price float64, qty int64) (int64, bool) {
	v := math.RoundToEven(price * float64(qty))
	if math.IsNaN(v) || v >= float64(MaxCoins) {
		return 0, false
	}
	return int64(v), true
}

// tradeFee is ceil(5% of total), never below one coin.
func tradeFee(total int64) int64 {
	fee := (total*FeePercent + 99) / 100
	if fee < 1 {
		fee = 1
	}
	return fee
}

// sharesPerWeightUnit grows with |weight| so a skewed symbol takes more
// volume to push further.
func sharesPerWeightUnit(weight float64) int64 {
	n := int64(math.RoundToEven(10 * (1 + math.Abs(weight))))
	if n < 1 {
		n = 1
	}
	return n
}

func weightAfterTrade(weight float64, qty int64, side string) float64 {
	units := qty / sharesPerWeightUnit(weight)
	if units == 0 {
		return weight
	}
	delta := WeightStep * float64(units)
	if side == "buy" {
		delta = -delta
	}
	return clampWeight(weight + delta)
}

func clampWeight(w float64) float64 {
	return roundTo(clampFloat(w, -WeightLimit, WeightLimit), 4)
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func roundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}

func periodBucket(p Period, t time.Time) time.Time {
	t = t.UTC()
	switch p {
	case Period1h:
		return t.Truncate(time.Hour)
	case Period1d:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	default:
		return t
	}
}

// recordPrice appends a tick to the short buffer and rolls it into the
// hourly and daily closes, replacing the close of the current bucket.
func recordPrice(st *Stock, at time.Time, price float64) {
	if st.History == nil {
		st.History = make(map[Period][]PricePoint, len(Periods))
	}
	for _, p := range Periods {
		series := st.History[p]
		point := PricePoint{TickAt: periodBucket(p, at), Price: price}
		if p != Period6m && len(series) > 0 && series[len(series)-1].TickAt.Equal(point.TickAt) {
			series[len(series)-1] = point
		} else {
			series = append(series, point)
		}
		if keep := p.Retention(); len(series) > keep {
			series = append([]PricePoint(nil), series[len(series)-keep:]...)
		}
		st.History[p] = series
	}
}

func (st *Stock) clone() *Stock {
	out := *st
	out.History = make(map[Period][]PricePoint, len(st.History))
	for p, series := range st.History {
		out.History[p] = append([]PricePoint(nil), series...)
	}
	return &out
}

func (st *Stock) view() StockView {
	v := StockView{
		Symbol:   st.Symbol,
		Name:     st.Name,
		Category: st.Category,
		Price:    st.Price,
		Weight:   st.Weight,
	}
	if series := st.History[Period6m]; len(series) >= 2 {
		v.Change = roundTo(series[len(series)-1].Price-series[len(series)-2].Price, 2)
	}
	return v
}

func newStock(seed stockSeed, now time.Time) *Stock {
	st := &Stock{
		Symbol:    seed.Symbol,
		Name:      seed.Name,
		Category:  seed.Category,
		Price:     seed.Price,
		UpdatedAt: now.UTC(),
	}
	recordPrice(st, now, seed.Price)
	return st
}

func marketReport(stocks []StockView, next time.Time) string {
	var b strings.Builder
	b.WriteString("Market board:")
	for _, st := range stocks {
		fmt.Fprintf(&b, "\n[%s] %s %s  %.2f", st.Category, st.Symbol, st.Name, st.Price)
		switch {
		case st.Change > 0:
			fmt.Fprintf(&b, " (+%.2f)", st.Change)
		case st.Change < 0:
			fmt.Fprintf(&b, " (%.2f)", st.Change)
		}
	}
	if !next.IsZero() {
		fmt.Fprintf(&b, "\nNext update at %s", next.UTC().Format("15:04 MST"))
	}
	return b.String()
}

func historyReport(st *Stock, p Period, points []PricePoint) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s:", st.Symbol, st.Name, p.Label())
	if len(points) == 0 {
		b.WriteString("\nno data yet")
		return b.String()
	}
	layout := "01-02 15:04"
	if p == Period1d {
		layout = "2006-01-02"
	}
	for _, pt := range points {
		fmt.Fprintf(&b, "\n%s  %.2f", pt.TickAt.UTC().Format(layout), pt.Price)
	}
	return b.String()
}
