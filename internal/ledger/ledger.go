// Package ledger owns bet lifecycle state: the append-only bet log, the
// per-market option totals, and the per-user bet history. PlaceBet is the
// only acceptance code path; local bets and inbound cross-domain bets both
// go through it, so the invariants cannot diverge.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/GauravKarakoti/OddsSync/internal/model"
	"github.com/GauravKarakoti/OddsSync/internal/store"
)

// BalanceSource supplies a principal's spendable balance on demand. The
// ledger only compares it against the requested stake; it never debits or
// transfers funds.
type BalanceSource interface {
	SpendableBalance(ctx context.Context, principal string) (uint64, error)
}

// UnlimitedBalance is the default BalanceSource when no custody collaborator
// is wired; every principal can stake any amount.
type UnlimitedBalance struct{}

func (UnlimitedBalance) SpendableBalance(context.Context, string) (uint64, error) {
	return ^uint64(0), nil
}

// Ledger validates and records bets against the backing store.
type Ledger struct {
	store    store.Store
	balances BalanceSource
}

// New creates a betting ledger. A nil balances falls back to
// UnlimitedBalance.
func New(st store.Store, balances BalanceSource) *Ledger {
	if balances == nil {
		balances = UnlimitedBalance{}
	}
	return &Ledger{store: st, balances: balances}
}

// PlaceBet validates and applies one bet. deliveryKey is empty for local
// bets; for cross-domain bets it is the message's dedup key, recorded
// atomically with the bet so a redelivered message can never apply twice.
//
// The four writes (option total, market grand total, bet log, user
// history) are one atomic unit: a failure mid-sequence leaves no
// observable effect. Returns the new bet id.
func (l *Ledger) PlaceBet(ctx context.Context, bettor string, marketID uint64, optionIndex uint32, amount uint64, now time.Time, deliveryKey string) (uint64, error) {
	if bettor == "" {
		return 0, model.ErrUnauthenticated
	}

	market, err := l.store.GetMarket(ctx, marketID)
	if err != nil {
		return 0, err
	}
	if market == nil {
		return 0, fmt.Errorf("%w: market %d", model.ErrMarketNotFound, marketID)
	}
	if !market.IsActive {
		return 0, fmt.Errorf("%w: market %d is resolved", model.ErrBettingNotAllowed, marketID)
	}
	if int(optionIndex) >= len(market.Options) {
		return 0, fmt.Errorf("%w: option %d out of range (market has %d options)",
			model.ErrInvalidParameters, optionIndex, len(market.Options))
	}
	if amount == 0 {
		return 0, fmt.Errorf("%w: amount must be positive", model.ErrInvalidParameters)
	}

	balance, err := l.balances.SpendableBalance(ctx, bettor)
	if err != nil {
		return 0, err
	}
	if balance < amount {
		return 0, fmt.Errorf("%w: stake %d exceeds spendable balance %d",
			model.ErrInvalidParameters, amount, balance)
	}

	totals, err := l.store.GetOptionTotals(ctx, marketID)
	if err != nil {
		return 0, err
	}

	// Both additions are overflow-checked; overflow is surfaced, never
	// silently saturated, and nothing has been written yet.
	optionTotal, err := model.AddAmount(totals[optionIndex], amount)
	if err != nil {
		return 0, err
	}
	marketTotal, err := model.AddAmount(market.TotalBets, amount)
	if err != nil {
		return 0, err
	}

	betID, err := l.store.NextBetID(ctx)
	if err != nil {
		return 0, err
	}

	bet := &model.Bet{
		BetID:       betID,
		MarketID:    marketID,
		Bettor:      bettor,
		OptionIndex: optionIndex,
		Amount:      amount,
		PlacedAt:    now,
	}

	if err := l.store.ApplyBet(ctx, bet, optionTotal, marketTotal, deliveryKey); err != nil {
		return 0, err
	}

	slog.Info("bet placed",
		"bet_id", betID,
		"market_id", marketID,
		"bettor", bettor,
		"option", optionIndex,
		"amount", amount,
		"market_total", marketTotal,
	)
	return betID, nil
}

// OptionTotals returns the per-option stake aggregates for a market.
func (l *Ledger) OptionTotals(ctx context.Context, marketID uint64) (map[uint32]uint64, error) {
	return l.store.GetOptionTotals(ctx, marketID)
}

// Bet returns one bet by id, or (nil, nil) if unknown.
func (l *Ledger) Bet(ctx context.Context, betID uint64) (*model.Bet, error) {
	return l.store.GetBet(ctx, betID)
}

// BetsByMarket returns a market's bet log in placement order.
func (l *Ledger) BetsByMarket(ctx context.Context, marketID uint64) ([]model.Bet, error) {
	return l.store.GetBetsByMarket(ctx, marketID)
}

// BetsByUser returns a principal's bet history in placement order.
func (l *Ledger) BetsByUser(ctx context.Context, bettor string) ([]model.Bet, error) {
	return l.store.GetBetsByUser(ctx, bettor)
}
