// Package model defines the core domain types shared across the OddsSync
// ledger. Stake amounts are uint64 base units; additions on them must go
// through AddAmount so overflow surfaces as ErrAmountOverflow.
package model

import "time"

// Market is a proposition with a fixed set of mutually exclusive outcome
// options, hosted on exactly one execution domain and open for staking
// until resolved.
type Market struct {
	MarketID      uint64     `json:"market_id" db:"market_id"`
	HomeDomain    string     `json:"home_domain" db:"home_domain"`
	Description   string     `json:"description" db:"description"`
	Creator       string     `json:"creator" db:"creator"`
	Options       []string   `json:"options" db:"options"` // index-addressed, immutable, len >= 2
	Liquidity     uint64     `json:"liquidity" db:"liquidity"`
	TotalBets     uint64     `json:"total_bets" db:"total_bets"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`
	WinningOption *uint32    `json:"winning_option,omitempty" db:"winning_option"`
	IsActive      bool       `json:"is_active" db:"is_active"`
}

// Resolved reports whether the market has reached its terminal state.
// Invariant: WinningOption != nil ⟺ !IsActive ⟺ ResolvedAt != nil.
func (m *Market) Resolved() bool {
	return !m.IsActive
}

// Bet is an immutable record of a principal staking an amount on one
// option of one market. Once created it is never modified or deleted.
type Bet struct {
	BetID       uint64    `json:"bet_id" db:"bet_id"`
	MarketID    uint64    `json:"market_id" db:"market_id"`
	Bettor      string    `json:"bettor" db:"bettor"`
	OptionIndex uint32    `json:"option_index" db:"option_index"`
	Amount      uint64    `json:"amount" db:"amount"` // strictly positive
	PlacedAt    time.Time `json:"placed_at" db:"placed_at"`
}

// CrossDomainBet is a bet submitted from a domain other than the market's
// home domain. (OriginDomain, OriginSequence) is the dedup key under
// at-least-once delivery.
type CrossDomainBet struct {
	OriginDomain   string    `json:"origin_domain"`
	OriginSequence uint64    `json:"origin_sequence"`
	MarketID       uint64    `json:"market_id"`
	Bettor         string    `json:"bettor"`
	OptionIndex    uint32    `json:"option_index"`
	Amount         uint64    `json:"amount"`
	Timestamp      time.Time `json:"timestamp"`
}

// DeliveryKey returns the dedup key checked against the delivered-message
// log before the bet is applied.
func (b *CrossDomainBet) DeliveryKey() string {
	return DeliveryKey(b.OriginDomain, b.OriginSequence)
}
