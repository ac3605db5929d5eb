package odds_test

import (
	"math"
	"testing"

	"github.com/GauravKarakoti/OddsSync/internal/odds"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestCalculate_NoStake(t *testing.T) {
	if _, ok := odds.Calculate(map[uint32]uint64{}, 0); ok {
		t.Error("expected no price for empty totals")
	}
	if _, ok := odds.Calculate(nil, 0); ok {
		t.Error("expected no price for nil totals")
	}
}

func TestCalculate_OptionWithoutStake(t *testing.T) {
	totals := map[uint32]uint64{0: 100}
	if _, ok := odds.Calculate(totals, 1); ok {
		t.Error("expected no price for option with zero stake")
	}
}

func TestCalculate_SingleOptionIsOne(t *testing.T) {
	totals := map[uint32]uint64{0: 100}
	price, ok := odds.Calculate(totals, 0)
	if !ok {
		t.Fatal("expected a price")
	}
	if price != 1.0 {
		t.Errorf("all stake on one option should price exactly 1.0, got %v", price)
	}
}

func TestCalculate_Ratio(t *testing.T) {
	// A=30, B=10 → grand total 40 → odds(A)=40/30≈1.333, odds(B)=4.0.
	totals := map[uint32]uint64{0: 30, 1: 10}

	a, ok := odds.Calculate(totals, 0)
	if !ok || !almostEqual(a, 40.0/30.0) {
		t.Errorf("odds(A) = %v, want %v", a, 40.0/30.0)
	}
	b, ok := odds.Calculate(totals, 1)
	if !ok || b != 4.0 {
		t.Errorf("odds(B) = %v, want 4.0", b)
	}
}

func TestGrandTotal(t *testing.T) {
	totals := map[uint32]uint64{0: 100, 1: 300, 2: 7}
	if got := odds.GrandTotal(totals); got != 407 {
		t.Errorf("grand total = %d, want 407", got)
	}
	if got := odds.GrandTotal(nil); got != 0 {
		t.Errorf("grand total of nil = %d, want 0", got)
	}
}

func TestBoard(t *testing.T) {
	totals := map[uint32]uint64{0: 100, 1: 300}
	board := odds.Board([]string{"Yes", "No", "Maybe"}, totals)

	if len(board) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(board))
	}
	if board[0].Label != "Yes" || board[0].Staked != 100 {
		t.Errorf("unexpected row 0: %+v", board[0])
	}
	if !board[0].Priced || !almostEqual(board[0].Odds, 4.0) {
		t.Errorf("odds(Yes) = %v, want 4.0", board[0].Odds)
	}
	if !board[1].Priced || !almostEqual(board[1].Odds, 400.0/300.0) {
		t.Errorf("odds(No) = %v, want %v", board[1].Odds, 400.0/300.0)
	}
	if board[2].Priced {
		t.Error("option with no stake should be unpriced")
	}
}
