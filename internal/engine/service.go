// Package engine provides the HTTP handlers and operation dispatch for
// creating markets, placing bets (local and cross-domain), resolving
// markets, and querying market, bet, and odds data.
package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/GauravKarakoti/OddsSync/internal/crossdomain"
	"github.com/GauravKarakoti/OddsSync/internal/directory"
	"github.com/GauravKarakoti/OddsSync/internal/ledger"
	"github.com/GauravKarakoti/OddsSync/internal/metrics"
	"github.com/GauravKarakoti/OddsSync/internal/model"
	"github.com/GauravKarakoti/OddsSync/internal/odds"
	"github.com/GauravKarakoti/OddsSync/internal/store"
)

// PrincipalHeader carries the already-authenticated caller identity. The
// authentication collaborator verifies it upstream; the engine trusts it
// completely and performs no signature verification itself.
const PrincipalHeader = "X-Oddsync-Principal"

// Service dispatches the four request intents against the core. A mutex
// serializes all mutation of this domain's ledger: execution within one
// domain is strictly sequential, which is what makes the four-write bet
// apply atomic without locking in the components themselves.
type Service struct {
	domainID  string
	dir       *directory.Directory
	ledger    *ledger.Ledger
	router    *crossdomain.Router
	forwarder crossdomain.Forwarder
	store     store.Store
	wsHub     *WSHub // optional, nil disables broadcasts
	mu        sync.Mutex
}

// NewService creates the engine for one execution domain. forwarder may be
// nil when no peer domains are configured; hub may be nil when WebSocket
// broadcasting is not needed.
func NewService(domainID string, dir *directory.Directory, l *ledger.Ledger, st store.Store, forwarder crossdomain.Forwarder, hub *WSHub) *Service {
	return &Service{
		domainID:  domainID,
		dir:       dir,
		ledger:    l,
		router:    crossdomain.NewRouter(l),
		forwarder: forwarder,
		store:     st,
		wsHub:     hub,
	}
}

// --- Request/Response types ---

// CreateMarketRequest is the JSON body for POST /markets.
type CreateMarketRequest struct {
	Description      string   `json:"description"`
	Options          []string `json:"options"`
	InitialLiquidity uint64   `json:"initial_liquidity"`
}

// MarketCreatedResponse is returned from POST /markets.
type MarketCreatedResponse struct {
	MarketID   uint64 `json:"market_id"`
	HomeDomain string `json:"home_domain"`
}

// PlaceBetRequest is the JSON body for POST /bets.
type PlaceBetRequest struct {
	MarketID    uint64 `json:"market_id"`
	OptionIndex uint32 `json:"option_index"`
	Amount      uint64 `json:"amount"`
}

// BetPlacedResponse is returned from POST /bets. Forwarded reports whether
// the bet was routed to the market's home domain rather than applied
// locally.
type BetPlacedResponse struct {
	BetID     uint64 `json:"bet_id"`
	MarketID  uint64 `json:"market_id"`
	Forwarded bool   `json:"forwarded,omitempty"`
}

// ResolveMarketRequest is the JSON body for POST /markets/{marketID}/resolve.
type ResolveMarketRequest struct {
	WinningOption uint32 `json:"winning_option"`
}

// MarketResolvedResponse is returned from POST /markets/{marketID}/resolve.
type MarketResolvedResponse struct {
	MarketID      uint64 `json:"market_id"`
	WinningOption uint32 `json:"winning_option"`
}

// --- Mutating handlers ---

// CreateMarket handles POST /api/v1/markets.
func (s *Service) CreateMarket(w http.ResponseWriter, r *http.Request) {
	creator := r.Header.Get(PrincipalHeader)
	if creator == "" {
		writeError(w, model.ErrUnauthenticated)
		return
	}

	var req CreateMarketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorCode(w, model.CodeInvalidParameters, "invalid request body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	marketID, domain, err := s.dir.CreateMarket(r.Context(), creator, directory.CreateMarketParams{
		Description:      req.Description,
		Options:          req.Options,
		InitialLiquidity: req.InitialLiquidity,
	}, time.Now().UTC())
	if err != nil {
		writeError(w, err)
		return
	}

	metrics.MarketsCreated.Inc()
	metrics.ActiveMarkets.Inc()

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:       "market_created",
			MarketID:   marketID,
			HomeDomain: domain,
		})
	}

	writeJSON(w, http.StatusCreated, MarketCreatedResponse{
		MarketID:   marketID,
		HomeDomain: domain,
	})
}

// PlaceBet handles POST /api/v1/bets. A bet on a market hosted by this
// domain is applied locally; a bet on a market homed elsewhere is forwarded
// as a cross-domain message and the home domain's receipt decides the
// response.
func (s *Service) PlaceBet(w http.ResponseWriter, r *http.Request) {
	bettor := r.Header.Get(PrincipalHeader)
	if bettor == "" {
		writeError(w, model.ErrUnauthenticated)
		return
	}

	var req PlaceBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorCode(w, model.CodeInvalidParameters, "invalid request body", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()

	s.mu.Lock()

	// Routing only needs the home domain, not the full record.
	domain, found, err := s.store.GetMarketDomain(ctx, req.MarketID)
	if err == nil && !found {
		err = model.ErrMarketNotFound
	}
	if err != nil {
		s.mu.Unlock()
		writeError(w, err)
		return
	}

	if domain == s.domainID {
		betID, err := s.ledger.PlaceBet(ctx, bettor, req.MarketID, req.OptionIndex, req.Amount, now, "")
		if err != nil {
			s.mu.Unlock()
			metrics.BetRejections.WithLabelValues(model.CodeOf(err)).Inc()
			writeError(w, err)
			return
		}
		metrics.BetsTotal.WithLabelValues("local").Inc()
		s.broadcastBet(ctx, betID, req.MarketID, req.OptionIndex, req.Amount)
		s.mu.Unlock()

		writeJSON(w, http.StatusOK, BetPlacedResponse{BetID: betID, MarketID: req.MarketID})
		return
	}

	// Remote market. Allocate the sequence number under the lock, then
	// release it before the network call: a slow peer must not stall this
	// domain's local execution.
	if s.forwarder == nil {
		s.mu.Unlock()
		writeErrorCode(w, model.CodeInternal,
			"market is hosted on domain "+domain+" and no route is configured",
			http.StatusBadGateway)
		return
	}
	seq, err := s.store.NextOutboundSequence(ctx, domain)
	s.mu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}

	s.forwardBet(ctx, w, domain, model.CrossDomainBet{
		OriginDomain:   s.domainID,
		OriginSequence: seq,
		MarketID:       req.MarketID,
		Bettor:         bettor,
		OptionIndex:    req.OptionIndex,
		Amount:         req.Amount,
		Timestamp:      now,
	})
}

// forwardBet delivers a prepared message to the market's home domain and
// maps the receipt to the caller's response. The message carries a fresh
// sequence number from this domain's persisted counter; the home domain's
// dedup log keys on it, so transport retries of the same message stay
// safe. Runs outside the service mutex.
func (s *Service) forwardBet(ctx context.Context, w http.ResponseWriter, homeDomain string, msg model.CrossDomainBet) {
	receipt, err := s.forwarder.Forward(ctx, homeDomain, msg)
	if err != nil {
		writeErrorCode(w, model.CodeInternal, "cross-domain delivery failed: "+err.Error(),
			http.StatusBadGateway)
		return
	}
	if !receipt.Applied {
		metrics.BetRejections.WithLabelValues(receipt.ErrorCode).Inc()
		writeErrorCode(w, receipt.ErrorCode, receipt.ErrorMessage, statusOfCode(receipt.ErrorCode))
		return
	}

	metrics.BetsTotal.WithLabelValues("forwarded").Inc()
	writeJSON(w, http.StatusOK, BetPlacedResponse{
		BetID:     receipt.BetID,
		MarketID:  msg.MarketID,
		Forwarded: true,
	})
}

// ResolveMarket handles POST /api/v1/markets/{marketID}/resolve.
func (s *Service) ResolveMarket(w http.ResponseWriter, r *http.Request) {
	resolver := r.Header.Get(PrincipalHeader)
	if resolver == "" {
		writeError(w, model.ErrUnauthenticated)
		return
	}

	marketID, err := strconv.ParseUint(chi.URLParam(r, "marketID"), 10, 64)
	if err != nil {
		writeErrorCode(w, model.CodeInvalidParameters, "invalid market id", http.StatusBadRequest)
		return
	}

	var req ResolveMarketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorCode(w, model.CodeInvalidParameters, "invalid request body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.dir.Resolve(r.Context(), resolver, marketID, req.WinningOption, time.Now().UTC()); err != nil {
		writeError(w, err)
		return
	}

	metrics.MarketsResolved.Inc()
	metrics.ActiveMarkets.Dec()

	if s.wsHub != nil {
		winning := req.WinningOption
		s.wsHub.Broadcast(WSMessage{
			Type:          "market_resolved",
			MarketID:      marketID,
			WinningOption: &winning,
		})
	}

	writeJSON(w, http.StatusOK, MarketResolvedResponse{
		MarketID:      marketID,
		WinningOption: req.WinningOption,
	})
}

// HandleCrossDomainBet handles POST /api/v1/crossdomain/bets, the inbound
// delivery endpoint. The response body is always a receipt, applied or
// rejected, so the origin domain learns the outcome; a rejected bet is
// never silently dropped.
func (s *Service) HandleCrossDomainBet(w http.ResponseWriter, r *http.Request) {
	var msg model.CrossDomainBet
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeErrorCode(w, model.CodeInvalidParameters, "invalid cross-domain message", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	receipt := s.router.Apply(r.Context(), msg)

	switch {
	case receipt.Duplicate:
		metrics.CrossDomainDeliveries.WithLabelValues("duplicate").Inc()
	case receipt.Applied:
		metrics.CrossDomainDeliveries.WithLabelValues("applied").Inc()
		metrics.BetsTotal.WithLabelValues("crossdomain").Inc()
		s.broadcastBet(r.Context(), receipt.BetID, msg.MarketID, msg.OptionIndex, msg.Amount)
	default:
		metrics.CrossDomainDeliveries.WithLabelValues("rejected").Inc()
		metrics.BetRejections.WithLabelValues(receipt.ErrorCode).Inc()
	}

	writeJSON(w, http.StatusOK, receipt)
}

// broadcastBet pushes a bet_placed event with the refreshed odds board.
func (s *Service) broadcastBet(ctx context.Context, betID uint64, marketID uint64, optionIndex uint32, amount uint64) {
	if s.wsHub == nil {
		return
	}

	market, err := s.dir.GetMarket(ctx, marketID)
	if err != nil || market == nil {
		return
	}
	totals, err := s.ledger.OptionTotals(ctx, marketID)
	if err != nil {
		return
	}

	idx := optionIndex
	id := betID
	s.wsHub.Broadcast(WSMessage{
		Type:        "bet_placed",
		MarketID:    marketID,
		HomeDomain:  market.HomeDomain,
		BetID:       &id,
		OptionIndex: &idx,
		Amount:      amount,
		TotalBets:   market.TotalBets,
		Odds:        odds.Board(market.Options, totals),
	})
}
