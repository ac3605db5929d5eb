// Package crossdomain applies bets that originated on a different execution
// domain than the market's home domain, exactly once per message, and
// produces a receipt the origin domain can route back to its caller.
package crossdomain

import (
	"context"
	"errors"
	"log/slog"

	"github.com/GauravKarakoti/OddsSync/internal/ledger"
	"github.com/GauravKarakoti/OddsSync/internal/model"
)

// Receipt is the result of one cross-domain delivery. It is always
// produced: a rejected bet must reach the origin domain, otherwise the
// caller's funds appear spent with no matching stake.
type Receipt struct {
	OriginDomain   string `json:"origin_domain"`
	OriginSequence uint64 `json:"origin_sequence"`
	MarketID       uint64 `json:"market_id"`
	Applied        bool   `json:"applied"`
	Duplicate      bool   `json:"duplicate,omitempty"`
	BetID          uint64 `json:"bet_id,omitempty"`
	ErrorCode      string `json:"error_code,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`
}

// Router handles inbound cross-domain bet messages for the home domain.
type Router struct {
	ledger *ledger.Ledger
}

// NewRouter creates a cross-domain bet router over the home domain's
// betting ledger.
func NewRouter(l *ledger.Ledger) *Router {
	return &Router{ledger: l}
}

// Apply re-validates the bet on the home domain (the origin domain's
// acceptance is advisory only) and applies it through the same PlaceBet
// path as a local bet, keyed by the message's dedup key so at-least-once
// delivery records at most one Bet. A redelivered message is acknowledged
// as applied without a second effect.
func (r *Router) Apply(ctx context.Context, msg model.CrossDomainBet) Receipt {
	receipt := Receipt{
		OriginDomain:   msg.OriginDomain,
		OriginSequence: msg.OriginSequence,
		MarketID:       msg.MarketID,
	}

	if msg.OriginDomain == "" {
		receipt.ErrorCode = model.CodeInvalidParameters
		receipt.ErrorMessage = "origin domain must not be empty"
		return receipt
	}

	betID, err := r.ledger.PlaceBet(ctx, msg.Bettor, msg.MarketID, msg.OptionIndex,
		msg.Amount, msg.Timestamp, msg.DeliveryKey())
	if errors.Is(err, model.ErrDuplicateDelivery) {
		slog.Info("duplicate cross-domain delivery acknowledged",
			"origin", msg.OriginDomain, "sequence", msg.OriginSequence)
		receipt.Applied = true
		receipt.Duplicate = true
		return receipt
	}
	if err != nil {
		slog.Warn("cross-domain bet rejected",
			"origin", msg.OriginDomain,
			"sequence", msg.OriginSequence,
			"market_id", msg.MarketID,
			"err", err,
		)
		receipt.ErrorCode = model.CodeOf(err)
		receipt.ErrorMessage = err.Error()
		return receipt
	}

	receipt.Applied = true
	receipt.BetID = betID
	return receipt
}
