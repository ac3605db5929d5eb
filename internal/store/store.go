// Package store defines the persistence interface for the OddsSync ledger.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"

	"github.com/GauravKarakoti/OddsSync/internal/model"
)

// Store is the persistence interface. An insert is visible to subsequent
// gets within the same domain and durable before the enclosing operation
// completes. PostgreSQL is the source of truth; Redis provides a
// read-through cache layer.
type Store interface {
	// --- Identifier counters ---

	// NextMarketID returns the next market identifier and persists the
	// advanced counter. Values are monotonic and never reused.
	NextMarketID(ctx context.Context) (uint64, error)

	// NextBetID returns the next bet identifier. Separate namespace from
	// market identifiers.
	NextBetID(ctx context.Context) (uint64, error)

	// NextOutboundSequence returns the next per-destination sequence number
	// for outbound cross-domain messages.
	NextOutboundSequence(ctx context.Context, destDomain string) (uint64, error)

	// --- Market directory ---

	// InsertMarket persists a new market, indexed both by market id and by
	// its home domain.
	InsertMarket(ctx context.Context, m *model.Market) error

	// GetMarketDomain resolves a market id to its home domain. A miss is a
	// normal outcome, reported via found=false, not an error.
	GetMarketDomain(ctx context.Context, marketID uint64) (domain string, found bool, err error)

	// GetMarket retrieves the market record by id. Returns (nil, nil) on a
	// miss.
	GetMarket(ctx context.Context, marketID uint64) (*model.Market, error)

	// UpdateMarket rewrites an existing market record (resolution only;
	// bet totals go through ApplyBet).
	UpdateMarket(ctx context.Context, m *model.Market) error

	// ListMarkets returns all markets hosted on this domain.
	ListMarkets(ctx context.Context) ([]model.Market, error)

	// --- Betting ledger ---

	// ApplyBet applies one accepted bet as a single atomic unit: the new
	// per-option total, the new market grand total, the bet-log append, and
	// the per-user history append become visible together or not at all.
	// When deliveryKey is non-empty it is recorded in the delivered-message
	// log inside the same unit; if the key already exists nothing is
	// applied and model.ErrDuplicateDelivery is returned.
	ApplyBet(ctx context.Context, bet *model.Bet, optionTotal, marketTotal uint64, deliveryKey string) error

	// GetOptionTotals returns the cumulative staked amount per option index
	// for a market. Missing market yields an empty map.
	GetOptionTotals(ctx context.Context, marketID uint64) (map[uint32]uint64, error)

	// GetBet retrieves one bet by id. Returns (nil, nil) on a miss.
	GetBet(ctx context.Context, betID uint64) (*model.Bet, error)

	// GetBetsByMarket returns the append-only bet log for a market in
	// placement order.
	GetBetsByMarket(ctx context.Context, marketID uint64) ([]model.Bet, error)

	// GetBetsByUser returns a principal's bet history in placement order.
	GetBetsByUser(ctx context.Context, bettor string) ([]model.Bet, error)
}
