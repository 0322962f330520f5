package game

import (
	"math"
	"testing"
	"time"
)

func TestTradeFee(t *testing.T) {
	tests := []struct {
		total int64
		want  int64
	}{
		{total: 1, want: 1},
		{total: 20, want: 1},
		{total: 21, want: 2},
		{total: 1200, want: 60},
		{total: 1201, want: 61},
	}
	for _, tc := range tests {
		if got := tradeFee(tc.total); got != tc.want {
			t.Fatalf("total=%d got=%d want=%d", tc.total, got, tc.want)
		}
	}
}

func TestTradeTotalRoundsHalfEven(t *testing.T) {
	if got, ok := tradeTotal(2.5, 1); !ok || got != 2 {
		t.Fatalf("got %d ok=%v", got, ok)
	}
	if got, ok := tradeTotal(12.34, 10); !ok || got != 123 {
		t.Fatalf("got %d ok=%v", got, ok)
	}
}

func TestTradeTotalRejectsOverflow(t *testing.T) {
	tests := []struct {
		price float64
		qty   int64
		ok    bool
	}{
		{120, 1e17, false},
		{120, math.MaxInt64, false},
		{1, MaxCoins, false},
		{1, MaxCoins / 2, true},
	}
	for _, tc := range tests {
		got, ok := tradeTotal(tc.price, tc.qty)
		if ok != tc.ok {
			t.Fatalf("price=%v qty=%d ok=%v want %v", tc.price, tc.qty, ok, tc.ok)
		}
		if ok && (got < 0 || tradeFee(got) < 0 || got+tradeFee(got) < 0) {
			t.Fatalf("price=%v qty=%d wrapped: total=%d", tc.price, tc.qty, got)
		}
	}
}

func TestSharesPerWeightUnit(t *testing.T) {
	if got := sharesPerWeightUnit(0); got != 10 {
		t.Fatalf("got %d", got)
	}
	if got := sharesPerWeightUnit(-0.2); got != 12 {
		t.Fatalf("got %d", got)
	}
}

func TestWeightAfterTrade(t *testing.T) {
	tests := []struct {
		name   string
		weight float64
		qty    int64
		side   string
		want   float64
	}{
		{"small buy leaves weight", 0, 9, "buy", 0},
		{"buy pushes down", 0, 25, "buy", -0.02},
		{"sell pushes up", 0.04, 10, "sell", 0.05},
		{"clamped low", -0.19, 500, "buy", -WeightLimit},
		{"clamped high", 0.19, 500, "sell", WeightLimit},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := weightAfterTrade(tc.weight, tc.qty, tc.side)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("got %v want %v", got, tc.want)
			}
		})
	}
}

func TestTickReturnFollowsWeight(t *testing.T) {
	params := volatilityParams("mor")
	flat := func() float64 { return 0.5 }
	if got := tickReturn(params, 0.2, flat); got <= 0 {
		t.Fatalf("positive weight should drift up, got %v", got)
	}
	if got := tickReturn(params, -0.2, flat); got >= 0 {
		t.Fatalf("negative weight should drift down, got %v", got)
	}
	if got := tickReturn(params, 0, flat); got != 0 {
		t.Fatalf("neutral weight with centered noise should not move, got %v", got)
	}
}

func TestTickReturnBounded(t *testing.T) {
	params := volatilityParams("wild")
	seq := []float64{1, 0, 0.99, 0.9, 0, 0.99, 0.9}
	i := 0
	next := func() float64 {
		v := seq[i%len(seq)]
		i++
		return v
	}
	got := tickReturn(params, WeightLimit, next)
	if got > params.MaxMovePerTick {
		t.Fatalf("return %v exceeds bound %v", got, params.MaxMovePerTick)
	}
}

func TestEvolvePriceFloor(t *testing.T) {
	if got := evolvePrice(1.2, -5); got != MinStockPrice {
		t.Fatalf("got %v", got)
	}
	if got := evolvePrice(0, 0.1); got != MinStockPrice {
		t.Fatalf("got %v", got)
	}
	if got := evolvePrice(100, 0); got != 100 {
		t.Fatalf("got %v", got)
	}
}

func TestRecordPriceRollups(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	st := &Stock{Symbol: "01"}
	recordPrice(st, base, 100)
	recordPrice(st, base.Add(6*time.Minute), 101)
	recordPrice(st, base.Add(time.Hour), 102)

	if got := len(st.History[Period6m]); got != 3 {
		t.Fatalf("6m len=%d", got)
	}
	hourly := st.History[Period1h]
	if len(hourly) != 2 {
		t.Fatalf("1h len=%d", len(hourly))
	}
	if hourly[0].Price != 101 || !hourly[0].TickAt.Equal(base) {
		t.Fatalf("first hourly close %+v", hourly[0])
	}
	if daily := st.History[Period1d]; len(daily) != 1 || daily[0].Price != 102 {
		t.Fatalf("daily %+v", daily)
	}
}

func TestRecordPriceRetention(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	st := &Stock{Symbol: "01"}
	for i := 0; i < 40*24; i++ {
		recordPrice(st, base.Add(time.Duration(i)*time.Hour), float64(i+1))
	}
	for _, p := range Periods {
		if got := len(st.History[p]); got != p.Retention() {
			t.Fatalf("%s len=%d want=%d", p, got, p.Retention())
		}
	}
	last := st.History[Period6m]
	if last[len(last)-1].Price != float64(40*24) {
		t.Fatalf("newest point should be last, got %+v", last[len(last)-1])
	}
}

func TestStockCloneIsDeep(t *testing.T) {
	st := newStock(defaultStocks[0], time.Now())
	cp := st.clone()
	recordPrice(cp, time.Now().Add(time.Minute), 1)
	if len(st.History[Period6m]) != 1 {
		t.Fatalf("clone mutation leaked into original")
	}
}
