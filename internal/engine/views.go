package engine

import "net/http"

// Query and Mutator are two capability views over the same Service. The
// deployment entry point composes routes from whichever views it enables:
// a read-only deployment registers only the Query view instead of
// compiling the mutation surface out.

// Query is the read-only view. Its handlers never mutate core state.
type Query interface {
	GetMarket(w http.ResponseWriter, r *http.Request)
	ListMarkets(w http.ResponseWriter, r *http.Request)
	GetOdds(w http.ResponseWriter, r *http.Request)
	GetMarketBets(w http.ResponseWriter, r *http.Request)
	GetUserBets(w http.ResponseWriter, r *http.Request)
	GetBet(w http.ResponseWriter, r *http.Request)
}

// Mutator is the read-write view covering the four request intents.
type Mutator interface {
	CreateMarket(w http.ResponseWriter, r *http.Request)
	PlaceBet(w http.ResponseWriter, r *http.Request)
	ResolveMarket(w http.ResponseWriter, r *http.Request)
	HandleCrossDomainBet(w http.ResponseWriter, r *http.Request)
}

var (
	_ Query   = (*Service)(nil)
	_ Mutator = (*Service)(nil)
)
