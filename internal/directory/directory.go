// Package directory owns the market lifecycle: creation with identifier
// and home-domain assignment, the id → home-domain routing lookup, and the
// one-way Open → Resolved transition.
package directory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/GauravKarakoti/OddsSync/internal/model"
	"github.com/GauravKarakoti/OddsSync/internal/store"
)

// CreateMarketParams carries the caller-supplied fields for a new market.
type CreateMarketParams struct {
	Description      string
	Options          []string
	InitialLiquidity uint64
}

// Directory maps market identifiers to their hosting execution domain and
// exclusively owns Market records.
type Directory struct {
	store    store.Store
	assigner DomainAssigner
}

// New creates a market directory backed by the given store and domain
// assigner.
func New(st store.Store, assigner DomainAssigner) *Directory {
	return &Directory{store: st, assigner: assigner}
}

// CreateMarket validates the parameters, allocates a market id, asks the
// assigner for a home domain, and writes the new market indexed by both id
// and domain. Returns the id and domain so cross-domain routing works
// immediately.
func (d *Directory) CreateMarket(ctx context.Context, creator string, params CreateMarketParams, now time.Time) (uint64, string, error) {
	if creator == "" {
		return 0, "", model.ErrUnauthenticated
	}
	if params.Description == "" {
		return 0, "", fmt.Errorf("%w: description must not be empty", model.ErrInvalidParameters)
	}
	if len(params.Options) < 2 {
		return 0, "", fmt.Errorf("%w: a market needs at least 2 options, got %d",
			model.ErrInvalidParameters, len(params.Options))
	}

	marketID, err := d.store.NextMarketID(ctx)
	if err != nil {
		return 0, "", err
	}

	domain, err := d.assigner.AssignDomain(ctx, marketID)
	if err != nil {
		return 0, "", fmt.Errorf("assign domain for market %d: %w", marketID, err)
	}

	market := &model.Market{
		MarketID:    marketID,
		HomeDomain:  domain,
		Description: params.Description,
		Creator:     creator,
		Options:     append([]string(nil), params.Options...),
		Liquidity:   params.InitialLiquidity,
		TotalBets:   0,
		CreatedAt:   now,
		IsActive:    true,
	}

	if err := d.store.InsertMarket(ctx, market); err != nil {
		return 0, "", err
	}

	slog.Info("market created",
		"market_id", marketID,
		"home_domain", domain,
		"creator", creator,
		"options", len(params.Options),
	)
	return marketID, domain, nil
}

// GetMarket resolves a market id to its record. A miss returns (nil, nil);
// a miss is a normal outcome, not a failure.
func (d *Directory) GetMarket(ctx context.Context, marketID uint64) (*model.Market, error) {
	return d.store.GetMarket(ctx, marketID)
}

// ListMarkets returns all markets hosted on this domain.
func (d *Directory) ListMarkets(ctx context.Context) ([]model.Market, error) {
	return d.store.ListMarkets(ctx)
}

// Resolve transitions a market from Open to Resolved, recording the
// winning option. The transition is one-way: resolving an already-resolved
// market is an error, never a silent no-op, so callers can detect
// double-resolution attempts.
func (d *Directory) Resolve(ctx context.Context, resolver string, marketID uint64, winningOption uint32, now time.Time) error {
	if resolver == "" {
		return model.ErrUnauthenticated
	}

	market, err := d.GetMarket(ctx, marketID)
	if err != nil {
		return err
	}
	if market == nil {
		return fmt.Errorf("%w: market %d", model.ErrMarketNotFound, marketID)
	}
	if resolver != market.Creator {
		return fmt.Errorf("%w: only the creator may resolve market %d", model.ErrUnauthorized, marketID)
	}
	if int(winningOption) >= len(market.Options) {
		return fmt.Errorf("%w: winning option %d out of range (market has %d options)",
			model.ErrInvalidParameters, winningOption, len(market.Options))
	}
	if !market.IsActive {
		return fmt.Errorf("%w: market %d already resolved", model.ErrBettingNotAllowed, marketID)
	}

	market.IsActive = false
	market.WinningOption = &winningOption
	resolvedAt := now
	market.ResolvedAt = &resolvedAt

	if err := d.store.UpdateMarket(ctx, market); err != nil {
		return err
	}

	slog.Info("market resolved",
		"market_id", marketID,
		"winning_option", winningOption,
		"resolver", resolver,
	)
	return nil
}
