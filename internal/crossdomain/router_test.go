package crossdomain_test

import (
	"context"
	"testing"
	"time"

	"github.com/GauravKarakoti/OddsSync/internal/crossdomain"
	"github.com/GauravKarakoti/OddsSync/internal/ledger"
	"github.com/GauravKarakoti/OddsSync/internal/model"
	"github.com/GauravKarakoti/OddsSync/internal/store"
)

func newFixture(t *testing.T) (*crossdomain.Router, *ledger.Ledger, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	err := st.InsertMarket(context.Background(), &model.Market{
		MarketID:   0,
		HomeDomain: "primary",
		Creator:    "alice",
		Options:    []string{"Yes", "No"},
		CreatedAt:  time.Now().UTC(),
		IsActive:   true,
	})
	if err != nil {
		t.Fatalf("InsertMarket: %v", err)
	}
	l := ledger.New(st, nil)
	return crossdomain.NewRouter(l), l, st
}

func message(seq uint64) model.CrossDomainBet {
	return model.CrossDomainBet{
		OriginDomain:   "dom-b",
		OriginSequence: seq,
		MarketID:       0,
		Bettor:         "bob",
		OptionIndex:    1,
		Amount:         250,
		Timestamp:      time.Now().UTC(),
	}
}

func TestApply(t *testing.T) {
	r, l, _ := newFixture(t)
	ctx := context.Background()

	receipt := r.Apply(ctx, message(0))
	if !receipt.Applied || receipt.Duplicate {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}
	if receipt.OriginDomain != "dom-b" || receipt.OriginSequence != 0 || receipt.MarketID != 0 {
		t.Errorf("receipt lost routing fields: %+v", receipt)
	}

	totals, _ := l.OptionTotals(ctx, 0)
	if totals[1] != 250 {
		t.Errorf("option total = %d, want 250", totals[1])
	}

	// The applied bet lands in the bettor's history like a local one.
	history, _ := l.BetsByUser(ctx, "bob")
	if len(history) != 1 || history[0].BetID != receipt.BetID {
		t.Errorf("unexpected history: %+v", history)
	}
}

func TestApplyRedelivery(t *testing.T) {
	r, l, st := newFixture(t)
	ctx := context.Background()

	first := r.Apply(ctx, message(0))
	if !first.Applied {
		t.Fatalf("first delivery rejected: %+v", first)
	}

	// At-least-once transport redelivers the same message.
	second := r.Apply(ctx, message(0))
	if !second.Applied || !second.Duplicate {
		t.Fatalf("redelivery should be acknowledged as a duplicate: %+v", second)
	}
	if second.BetID != 0 {
		t.Errorf("duplicate receipt carries bet id %d", second.BetID)
	}

	// Exactly one bet was recorded.
	totals, _ := l.OptionTotals(ctx, 0)
	if totals[1] != 250 {
		t.Errorf("option total = %d, want 250", totals[1])
	}
	m, _ := st.GetMarket(ctx, 0)
	if m.TotalBets != 250 {
		t.Errorf("market total = %d, want 250", m.TotalBets)
	}
	log, _ := l.BetsByMarket(ctx, 0)
	if len(log) != 1 {
		t.Errorf("bet log has %d entries, want 1", len(log))
	}
}

func TestApplyDistinctSequences(t *testing.T) {
	r, l, _ := newFixture(t)
	ctx := context.Background()

	if receipt := r.Apply(ctx, message(0)); !receipt.Applied {
		t.Fatalf("first message rejected: %+v", receipt)
	}
	if receipt := r.Apply(ctx, message(1)); !receipt.Applied || receipt.Duplicate {
		t.Fatalf("second message mishandled: %+v", receipt)
	}

	totals, _ := l.OptionTotals(ctx, 0)
	if totals[1] != 500 {
		t.Errorf("option total = %d, want 500", totals[1])
	}
}

func TestApplyRejectionsProduceReceipts(t *testing.T) {
	r, _, st := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		mutate   func(m *model.CrossDomainBet)
		wantCode string
	}{
		{"empty origin", func(m *model.CrossDomainBet) { m.OriginDomain = "" }, model.CodeInvalidParameters},
		{"unknown market", func(m *model.CrossDomainBet) { m.MarketID = 99 }, model.CodeMarketNotFound},
		{"option out of range", func(m *model.CrossDomainBet) { m.OptionIndex = 5 }, model.CodeInvalidParameters},
		{"zero amount", func(m *model.CrossDomainBet) { m.Amount = 0 }, model.CodeInvalidParameters},
		{"anonymous bettor", func(m *model.CrossDomainBet) { m.Bettor = "" }, model.CodeUnauthenticated},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := message(uint64(i))
			tt.mutate(&msg)

			receipt := r.Apply(ctx, msg)
			if receipt.Applied {
				t.Fatalf("expected rejection, got %+v", receipt)
			}
			if receipt.ErrorCode != tt.wantCode {
				t.Errorf("error code = %s, want %s", receipt.ErrorCode, tt.wantCode)
			}
			if receipt.ErrorMessage == "" {
				t.Error("rejection receipt has no message")
			}
		})
	}

	// None of the rejections recorded anything.
	m, _ := st.GetMarket(ctx, 0)
	if m.TotalBets != 0 {
		t.Errorf("market total = %d after rejections, want 0", m.TotalBets)
	}
}

func TestApplyOnResolvedMarket(t *testing.T) {
	r, _, st := newFixture(t)
	ctx := context.Background()

	m, _ := st.GetMarket(ctx, 0)
	now := time.Now().UTC()
	winning := uint32(0)
	m.IsActive = false
	m.WinningOption = &winning
	m.ResolvedAt = &now
	if err := st.UpdateMarket(ctx, m); err != nil {
		t.Fatalf("UpdateMarket: %v", err)
	}

	receipt := r.Apply(ctx, message(0))
	if receipt.Applied {
		t.Fatalf("bet applied to resolved market: %+v", receipt)
	}
	if receipt.ErrorCode != model.CodeBettingNotAllowed {
		t.Errorf("error code = %s, want %s", receipt.ErrorCode, model.CodeBettingNotAllowed)
	}
}
