package engine

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/GauravKarakoti/OddsSync/internal/model"
	"github.com/GauravKarakoti/OddsSync/internal/odds"
)

// Read-only handlers. These serve the presentation layer and never mutate
// core state.

// GetMarket handles GET /api/v1/markets/{marketID}.
func (s *Service) GetMarket(w http.ResponseWriter, r *http.Request) {
	marketID, err := strconv.ParseUint(chi.URLParam(r, "marketID"), 10, 64)
	if err != nil {
		writeErrorCode(w, model.CodeInvalidParameters, "invalid market id", http.StatusBadRequest)
		return
	}

	market, err := s.dir.GetMarket(r.Context(), marketID)
	if err != nil {
		writeError(w, err)
		return
	}
	if market == nil {
		writeError(w, model.ErrMarketNotFound)
		return
	}

	writeJSON(w, http.StatusOK, market)
}

// ListMarkets handles GET /api/v1/markets.
func (s *Service) ListMarkets(w http.ResponseWriter, r *http.Request) {
	markets, err := s.dir.ListMarkets(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if markets == nil {
		markets = []model.Market{}
	}
	writeJSON(w, http.StatusOK, markets)
}

// oddsResponse is the body returned for a single-option odds query.
type oddsResponse struct {
	MarketID    uint64  `json:"market_id"`
	OptionIndex uint32  `json:"option_index"`
	Odds        float64 `json:"odds,omitempty"`
	Priced      bool    `json:"priced"`
}

// GetOdds handles GET /api/v1/markets/{marketID}/odds. Without a query
// parameter it returns the full odds board; with ?option=N it prices one
// option. An unpriceable option (no stake on it, or no stake at all) is
// reported as priced=false, not an error.
func (s *Service) GetOdds(w http.ResponseWriter, r *http.Request) {
	marketID, err := strconv.ParseUint(chi.URLParam(r, "marketID"), 10, 64)
	if err != nil {
		writeErrorCode(w, model.CodeInvalidParameters, "invalid market id", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	market, err := s.dir.GetMarket(ctx, marketID)
	if err != nil {
		writeError(w, err)
		return
	}
	if market == nil {
		writeError(w, model.ErrMarketNotFound)
		return
	}

	totals, err := s.ledger.OptionTotals(ctx, marketID)
	if err != nil {
		writeError(w, err)
		return
	}

	if optionS := r.URL.Query().Get("option"); optionS != "" {
		option, err := strconv.ParseUint(optionS, 10, 32)
		if err != nil || int(option) >= len(market.Options) {
			writeErrorCode(w, model.CodeInvalidParameters, "invalid option index", http.StatusBadRequest)
			return
		}
		resp := oddsResponse{MarketID: marketID, OptionIndex: uint32(option)}
		resp.Odds, resp.Priced = odds.Calculate(totals, uint32(option))
		writeJSON(w, http.StatusOK, resp)
		return
	}

	writeJSON(w, http.StatusOK, odds.Board(market.Options, totals))
}

// GetMarketBets handles GET /api/v1/markets/{marketID}/bets. Returns the
// append-only bet log in placement order.
func (s *Service) GetMarketBets(w http.ResponseWriter, r *http.Request) {
	marketID, err := strconv.ParseUint(chi.URLParam(r, "marketID"), 10, 64)
	if err != nil {
		writeErrorCode(w, model.CodeInvalidParameters, "invalid market id", http.StatusBadRequest)
		return
	}

	bets, err := s.ledger.BetsByMarket(r.Context(), marketID)
	if err != nil {
		writeError(w, err)
		return
	}
	if bets == nil {
		bets = []model.Bet{}
	}
	writeJSON(w, http.StatusOK, bets)
}

// GetUserBets handles GET /api/v1/users/{principal}/bets. Returns a
// principal's bet history in placement order.
func (s *Service) GetUserBets(w http.ResponseWriter, r *http.Request) {
	principal := chi.URLParam(r, "principal")

	bets, err := s.ledger.BetsByUser(r.Context(), principal)
	if err != nil {
		writeError(w, err)
		return
	}
	if bets == nil {
		bets = []model.Bet{}
	}
	writeJSON(w, http.StatusOK, bets)
}

// GetBet handles GET /api/v1/bets/{betID}.
func (s *Service) GetBet(w http.ResponseWriter, r *http.Request) {
	betID, err := strconv.ParseUint(chi.URLParam(r, "betID"), 10, 64)
	if err != nil {
		writeErrorCode(w, model.CodeInvalidParameters, "invalid bet id", http.StatusBadRequest)
		return
	}

	bet, err := s.ledger.Bet(r.Context(), betID)
	if err != nil {
		writeError(w, err)
		return
	}
	if bet == nil {
		writeErrorCode(w, "NOT_FOUND", "bet not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, bet)
}
