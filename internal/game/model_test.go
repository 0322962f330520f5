package game

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

func TestRarityForRoll(t *testing.T) {
	tests := []struct {
		roll int
		want Rarity
	}{
		{roll: 1, want: Common},
		{roll: 50, want: Common},
		{roll: 51, want: Uncommon},
		{roll: 80, want: Uncommon},
		{roll: 81, want: Rare},
		{roll: 95, want: Rare},
		{roll: 96, want: Epic},
		{roll: 99, want: Epic},
		{roll: 100, want: Legendary},
	}
	for _, tc := range tests {
		if got := rarityForRoll(tc.roll); got != tc.want {
			t.Fatalf("roll=%d got=%s want=%s", tc.roll, got, tc.want)
		}
	}
}

func TestRarityBaseYield(t *testing.T) {
	want := map[Rarity]int64{Common: 1, Uncommon: 5, Rare: 20, Epic: 50, Legendary: 100}
	for r, y := range want {
		if got := r.BaseYield(); got != y {
			t.Fatalf("%s base yield got=%d want=%d", r, got, y)
		}
	}
	if Rarity(9).Valid() {
		t.Fatalf("expected out of range rarity to be invalid")
	}
}

func TestRarityJSON(t *testing.T) {
	raw, err := json.Marshal(Artifact{ID: 3, Rarity: Epic})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var a Artifact
	if err := json.Unmarshal(raw, &a); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if a.Rarity != Epic {
		t.Fatalf("got rarity %s", a.Rarity)
	}
	if err := json.Unmarshal([]byte(`{"rarity":"mythic"}`), &a); err == nil {
		t.Fatalf("expected unknown rarity to fail")
	}
}

func TestParsePeriod(t *testing.T) {
	tests := map[string]Period{
		"":     Period6m,
		"6m":   Period6m,
		"min":  Period6m,
		"1H":   Period1h,
		"hour": Period1h,
		"d":    Period1d,
		"1d":   Period1d,
	}
	for in, want := range tests {
		got, err := ParsePeriod(in)
		if err != nil {
			t.Fatalf("period %q: %v", in, err)
		}
		if got != want {
			t.Fatalf("period %q got=%s want=%s", in, got, want)
		}
	}
	if _, err := ParsePeriod("1w"); !errors.Is(err, ErrInvalidPeriod) {
		t.Fatalf("expected ErrInvalidPeriod, got %v", err)
	}
}

func TestIsDomainError(t *testing.T) {
	if !IsDomainError(fmt.Errorf("%w: need 1", ErrInsufficientFunds)) {
		t.Fatalf("wrapped sentinel should be a domain error")
	}
	if IsDomainError(errors.New("disk full")) {
		t.Fatalf("arbitrary error should not be a domain error")
	}
}
