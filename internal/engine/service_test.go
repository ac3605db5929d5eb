package engine_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/GauravKarakoti/OddsSync/internal/crossdomain"
	"github.com/GauravKarakoti/OddsSync/internal/directory"
	"github.com/GauravKarakoti/OddsSync/internal/engine"
	"github.com/GauravKarakoti/OddsSync/internal/ledger"
	"github.com/GauravKarakoti/OddsSync/internal/model"
	"github.com/GauravKarakoti/OddsSync/internal/store"
)

// testEnv is one deployment under test: a service over an in-memory store
// behind the full route table.
type testEnv struct {
	store  *store.MemoryStore
	router *chi.Mux
}

func newTestEnv(domainID string, forwarder crossdomain.Forwarder) *testEnv {
	st := store.NewMemoryStore()
	dir := directory.New(st, directory.StaticAssigner{Domain: domainID})
	l := ledger.New(st, nil)
	svc := engine.NewService(domainID, dir, l, st, forwarder, nil)

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/markets", svc.ListMarkets)
		r.Get("/markets/{marketID}", svc.GetMarket)
		r.Get("/markets/{marketID}/odds", svc.GetOdds)
		r.Get("/markets/{marketID}/bets", svc.GetMarketBets)
		r.Get("/users/{principal}/bets", svc.GetUserBets)
		r.Get("/bets/{betID}", svc.GetBet)
		r.Post("/markets", svc.CreateMarket)
		r.Post("/markets/{marketID}/resolve", svc.ResolveMarket)
		r.Post("/bets", svc.PlaceBet)
		r.Post("/crossdomain/bets", svc.HandleCrossDomainBet)
	})
	return &testEnv{store: st, router: r}
}

func (e *testEnv) do(t *testing.T, method, path, principal string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if principal != "" {
		req.Header.Set(engine.PrincipalHeader, principal)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return v
}

func (e *testEnv) createMarket(t *testing.T, creator string, options ...string) uint64 {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/markets", creator, engine.CreateMarketRequest{
		Description: "Will it rain tomorrow?",
		Options:     options,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create market: status %d, body %s", w.Code, w.Body.String())
	}
	return decode[engine.MarketCreatedResponse](t, w).MarketID
}

type errorBody struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

func TestBettingScenario(t *testing.T) {
	env := newTestEnv("primary", nil)
	marketID := env.createMarket(t, "alice", "Yes", "No")

	// First bet: 100 on Yes.
	w := env.do(t, http.MethodPost, "/api/v1/bets", "bob", engine.PlaceBetRequest{
		MarketID: marketID, OptionIndex: 0, Amount: 100,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("place bet: status %d, body %s", w.Code, w.Body.String())
	}
	placed := decode[engine.BetPlacedResponse](t, w)
	if placed.BetID != 0 || placed.Forwarded {
		t.Errorf("unexpected response: %+v", placed)
	}

	// All stake on one option prices it at exactly 1.0; the other option
	// is unpriceable.
	w = env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/markets/%d/odds?option=0", marketID), "", nil)
	single := decode[struct {
		Odds   float64 `json:"odds"`
		Priced bool    `json:"priced"`
	}](t, w)
	if !single.Priced || single.Odds != 1.0 {
		t.Errorf("odds(Yes) = %+v, want 1.0", single)
	}
	w = env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/markets/%d/odds?option=1", marketID), "", nil)
	if other := decode[struct {
		Priced bool `json:"priced"`
	}](t, w); other.Priced {
		t.Error("odds(No) should be unpriceable with no stake")
	}

	// Second bet: 300 on No. Grand total 400.
	w = env.do(t, http.MethodPost, "/api/v1/bets", "carol", engine.PlaceBetRequest{
		MarketID: marketID, OptionIndex: 1, Amount: 300,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("place bet: status %d, body %s", w.Code, w.Body.String())
	}

	m, _ := env.store.GetMarket(context.Background(), marketID)
	if m.TotalBets != 400 {
		t.Errorf("market total = %d, want 400", m.TotalBets)
	}

	// Odds board: 400/100 = 4.0 on Yes, 400/300 ≈ 1.333 on No.
	w = env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/markets/%d/odds", marketID), "", nil)
	board := decode[[]struct {
		Label  string  `json:"label"`
		Staked uint64  `json:"staked"`
		Odds   float64 `json:"odds"`
		Priced bool    `json:"priced"`
	}](t, w)
	if len(board) != 2 {
		t.Fatalf("board has %d rows, want 2", len(board))
	}
	if !board[0].Priced || board[0].Odds != 4.0 {
		t.Errorf("odds(Yes) = %+v, want 4.0", board[0])
	}
	if !board[1].Priced || math.Abs(board[1].Odds-400.0/300.0) > 1e-9 {
		t.Errorf("odds(No) = %+v, want %v", board[1], 400.0/300.0)
	}

	// Resolve on Yes; further bets are rejected.
	w = env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/markets/%d/resolve", marketID), "alice",
		engine.ResolveMarketRequest{WinningOption: 0})
	if w.Code != http.StatusOK {
		t.Fatalf("resolve: status %d, body %s", w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodPost, "/api/v1/bets", "bob", engine.PlaceBetRequest{
		MarketID: marketID, OptionIndex: 0, Amount: 10,
	})
	if w.Code != http.StatusConflict {
		t.Errorf("bet after resolution: status %d, want 409", w.Code)
	}
	if body := decode[errorBody](t, w); body.Code != model.CodeBettingNotAllowed {
		t.Errorf("error code = %s, want %s", body.Code, model.CodeBettingNotAllowed)
	}

	// The resolved market still reports its final state.
	w = env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/markets/%d", marketID), "", nil)
	final := decode[model.Market](t, w)
	if final.IsActive || final.WinningOption == nil || *final.WinningOption != 0 {
		t.Errorf("unexpected final market: %+v", final)
	}
}

func TestUnauthenticatedRequests(t *testing.T) {
	env := newTestEnv("primary", nil)
	marketID := env.createMarket(t, "alice", "Yes", "No")

	paths := []struct {
		method, path string
		body         any
	}{
		{http.MethodPost, "/api/v1/markets", engine.CreateMarketRequest{Description: "d", Options: []string{"a", "b"}}},
		{http.MethodPost, "/api/v1/bets", engine.PlaceBetRequest{MarketID: marketID, OptionIndex: 0, Amount: 1}},
		{http.MethodPost, fmt.Sprintf("/api/v1/markets/%d/resolve", marketID), engine.ResolveMarketRequest{}},
	}
	for _, p := range paths {
		w := env.do(t, p.method, p.path, "", p.body)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s %s without principal: status %d, want 401", p.method, p.path, w.Code)
		}
	}
}

func TestErrorStatuses(t *testing.T) {
	env := newTestEnv("primary", nil)
	marketID := env.createMarket(t, "alice", "Yes", "No")

	tests := []struct {
		name         string
		method, path string
		principal    string
		body         any
		wantStatus   int
		wantCode     string
	}{
		{"unknown market bet", http.MethodPost, "/api/v1/bets", "bob",
			engine.PlaceBetRequest{MarketID: 99, OptionIndex: 0, Amount: 1},
			http.StatusNotFound, model.CodeMarketNotFound},
		{"option out of range", http.MethodPost, "/api/v1/bets", "bob",
			engine.PlaceBetRequest{MarketID: marketID, OptionIndex: 9, Amount: 1},
			http.StatusBadRequest, model.CodeInvalidParameters},
		{"zero amount", http.MethodPost, "/api/v1/bets", "bob",
			engine.PlaceBetRequest{MarketID: marketID, OptionIndex: 0, Amount: 0},
			http.StatusBadRequest, model.CodeInvalidParameters},
		{"single option market", http.MethodPost, "/api/v1/markets", "alice",
			engine.CreateMarketRequest{Description: "d", Options: []string{"only"}},
			http.StatusBadRequest, model.CodeInvalidParameters},
		{"non-creator resolve", http.MethodPost, fmt.Sprintf("/api/v1/markets/%d/resolve", marketID), "mallory",
			engine.ResolveMarketRequest{WinningOption: 0},
			http.StatusForbidden, model.CodeUnauthorized},
		{"unknown market get", http.MethodGet, "/api/v1/markets/99", "", nil,
			http.StatusNotFound, model.CodeMarketNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, tt.method, tt.path, tt.principal, tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if body := decode[errorBody](t, w); body.Code != tt.wantCode {
				t.Errorf("error code = %s, want %s", body.Code, tt.wantCode)
			}
		})
	}
}

func TestOverflowStatus(t *testing.T) {
	env := newTestEnv("primary", nil)
	marketID := env.createMarket(t, "alice", "Yes", "No")

	w := env.do(t, http.MethodPost, "/api/v1/bets", "bob", engine.PlaceBetRequest{
		MarketID: marketID, OptionIndex: 0, Amount: math.MaxUint64,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("bet at max: status %d, body %s", w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodPost, "/api/v1/bets", "carol", engine.PlaceBetRequest{
		MarketID: marketID, OptionIndex: 0, Amount: 1,
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("overflowing bet: status %d, want 422", w.Code)
	}
	if body := decode[errorBody](t, w); body.Code != model.CodeAmountOverflow {
		t.Errorf("error code = %s, want %s", body.Code, model.CodeAmountOverflow)
	}
}

func TestDoubleResolveIsConflict(t *testing.T) {
	env := newTestEnv("primary", nil)
	marketID := env.createMarket(t, "alice", "Yes", "No")

	w := env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/markets/%d/resolve", marketID), "alice",
		engine.ResolveMarketRequest{WinningOption: 1})
	if w.Code != http.StatusOK {
		t.Fatalf("resolve: status %d", w.Code)
	}

	w = env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/markets/%d/resolve", marketID), "alice",
		engine.ResolveMarketRequest{WinningOption: 0})
	if w.Code != http.StatusConflict {
		t.Errorf("double resolve: status %d, want 409", w.Code)
	}
}

func TestCrossDomainDeliveryEndpoint(t *testing.T) {
	env := newTestEnv("primary", nil)
	marketID := env.createMarket(t, "alice", "Yes", "No")

	msg := model.CrossDomainBet{
		OriginDomain:   "dom-b",
		OriginSequence: 0,
		MarketID:       marketID,
		Bettor:         "bob",
		OptionIndex:    1,
		Amount:         250,
		Timestamp:      time.Now().UTC(),
	}

	w := env.do(t, http.MethodPost, "/api/v1/crossdomain/bets", "", msg)
	if w.Code != http.StatusOK {
		t.Fatalf("delivery: status %d, body %s", w.Code, w.Body.String())
	}
	receipt := decode[crossdomain.Receipt](t, w)
	if !receipt.Applied || receipt.Duplicate {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}

	// Redelivery of the same message acknowledges without a second effect.
	w = env.do(t, http.MethodPost, "/api/v1/crossdomain/bets", "", msg)
	receipt = decode[crossdomain.Receipt](t, w)
	if !receipt.Applied || !receipt.Duplicate {
		t.Fatalf("redelivery receipt: %+v", receipt)
	}

	m, _ := env.store.GetMarket(context.Background(), marketID)
	if m.TotalBets != 250 {
		t.Errorf("market total = %d, want 250", m.TotalBets)
	}

	// A rejected delivery still returns 200 with a receipt so the origin
	// domain can route the outcome back to its caller.
	bad := msg
	bad.OriginSequence = 1
	bad.MarketID = 99
	w = env.do(t, http.MethodPost, "/api/v1/crossdomain/bets", "", bad)
	if w.Code != http.StatusOK {
		t.Fatalf("rejected delivery: status %d, want 200", w.Code)
	}
	receipt = decode[crossdomain.Receipt](t, w)
	if receipt.Applied || receipt.ErrorCode != model.CodeMarketNotFound {
		t.Errorf("rejection receipt: %+v", receipt)
	}
}

func TestForwardedBet(t *testing.T) {
	// dom-b hosts the market; primary forwards bets to it over HTTP.
	remote := newTestEnv("dom-b", nil)
	marketID := remote.createMarket(t, "alice", "Yes", "No")

	srv := httptest.NewServer(remote.router)
	defer srv.Close()

	local := newTestEnv("primary", crossdomain.NewHTTPForwarder(map[string]string{"dom-b": srv.URL}))

	// The local directory knows the market is homed on dom-b.
	remoteMarket, _ := remote.store.GetMarket(context.Background(), marketID)
	if err := local.store.InsertMarket(context.Background(), remoteMarket); err != nil {
		t.Fatalf("mirror market: %v", err)
	}

	w := local.do(t, http.MethodPost, "/api/v1/bets", "bob", engine.PlaceBetRequest{
		MarketID: marketID, OptionIndex: 0, Amount: 100,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("forwarded bet: status %d, body %s", w.Code, w.Body.String())
	}
	placed := decode[engine.BetPlacedResponse](t, w)
	if !placed.Forwarded {
		t.Error("response should report the bet as forwarded")
	}

	// The stake landed on dom-b, not locally.
	m, _ := remote.store.GetMarket(context.Background(), marketID)
	if m.TotalBets != 100 {
		t.Errorf("remote market total = %d, want 100", m.TotalBets)
	}
	totals, _ := local.store.GetOptionTotals(context.Background(), marketID)
	if len(totals) != 0 {
		t.Errorf("forwarded bet wrote local totals: %v", totals)
	}

	// A rejection on the home domain maps back to the caller's status.
	w = local.do(t, http.MethodPost, "/api/v1/bets", "bob", engine.PlaceBetRequest{
		MarketID: marketID, OptionIndex: 9, Amount: 100,
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("forwarded rejection: status %d, want 400", w.Code)
	}
}

// gatedForwarder blocks every delivery until released, simulating a slow
// peer deployment.
type gatedForwarder struct {
	entered chan struct{}
	release chan struct{}
}

func (f *gatedForwarder) Forward(_ context.Context, _ string, msg model.CrossDomainBet) (crossdomain.Receipt, error) {
	f.entered <- struct{}{}
	<-f.release
	return crossdomain.Receipt{
		OriginDomain:   msg.OriginDomain,
		OriginSequence: msg.OriginSequence,
		MarketID:       msg.MarketID,
		Applied:        true,
		BetID:          7,
	}, nil
}

func TestSlowForwardDoesNotBlockLocalBets(t *testing.T) {
	fwd := &gatedForwarder{entered: make(chan struct{}), release: make(chan struct{})}
	env := newTestEnv("primary", fwd)

	localID := env.createMarket(t, "alice", "Yes", "No")

	remoteID := localID + 1
	err := env.store.InsertMarket(context.Background(), &model.Market{
		MarketID:   remoteID,
		HomeDomain: "dom-b",
		Creator:    "alice",
		Options:    []string{"Yes", "No"},
		CreatedAt:  time.Now().UTC(),
		IsActive:   true,
	})
	if err != nil {
		t.Fatalf("insert remote market: %v", err)
	}

	forwardDone := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		forwardDone <- env.do(t, http.MethodPost, "/api/v1/bets", "bob", engine.PlaceBetRequest{
			MarketID: remoteID, OptionIndex: 0, Amount: 10,
		})
	}()

	select {
	case <-fwd.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("forward never started")
	}

	// While the delivery is in flight, local execution must proceed.
	localDone := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		localDone <- env.do(t, http.MethodPost, "/api/v1/bets", "carol", engine.PlaceBetRequest{
			MarketID: localID, OptionIndex: 0, Amount: 5,
		})
	}()

	select {
	case w := <-localDone:
		if w.Code != http.StatusOK {
			t.Fatalf("local bet during forward: status %d, body %s", w.Code, w.Body.String())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("local bet blocked behind an in-flight forward")
	}

	close(fwd.release)
	select {
	case w := <-forwardDone:
		if w.Code != http.StatusOK {
			t.Fatalf("forwarded bet: status %d, body %s", w.Code, w.Body.String())
		}
		if placed := decode[engine.BetPlacedResponse](t, w); !placed.Forwarded {
			t.Errorf("unexpected response: %+v", placed)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("forwarded bet never completed")
	}
}

func TestForwardedBetWithoutRoute(t *testing.T) {
	local := newTestEnv("primary", nil)

	// A market homed elsewhere with no forwarder configured.
	err := local.store.InsertMarket(context.Background(), &model.Market{
		MarketID:   0,
		HomeDomain: "dom-b",
		Creator:    "alice",
		Options:    []string{"Yes", "No"},
		CreatedAt:  time.Now().UTC(),
		IsActive:   true,
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	w := local.do(t, http.MethodPost, "/api/v1/bets", "bob", engine.PlaceBetRequest{
		MarketID: 0, OptionIndex: 0, Amount: 100,
	})
	if w.Code != http.StatusBadGateway {
		t.Errorf("status %d, want 502", w.Code)
	}
}

func TestListAndHistoryEndpoints(t *testing.T) {
	env := newTestEnv("primary", nil)
	m1 := env.createMarket(t, "alice", "Yes", "No")
	m2 := env.createMarket(t, "alice", "Red", "Blue")

	env.do(t, http.MethodPost, "/api/v1/bets", "bob", engine.PlaceBetRequest{MarketID: m1, OptionIndex: 0, Amount: 10})
	env.do(t, http.MethodPost, "/api/v1/bets", "bob", engine.PlaceBetRequest{MarketID: m2, OptionIndex: 1, Amount: 20})

	w := env.do(t, http.MethodGet, "/api/v1/markets", "", nil)
	markets := decode[[]model.Market](t, w)
	if len(markets) != 2 {
		t.Fatalf("listed %d markets, want 2", len(markets))
	}

	w = env.do(t, http.MethodGet, "/api/v1/users/bob/bets", "", nil)
	history := decode[[]model.Bet](t, w)
	if len(history) != 2 {
		t.Fatalf("history has %d entries, want 2", len(history))
	}
	if history[0].MarketID != m1 || history[1].MarketID != m2 {
		t.Errorf("history out of placement order: %+v", history)
	}

	w = env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/bets/%d", history[0].BetID), "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get bet: status %d", w.Code)
	}
	w = env.do(t, http.MethodGet, "/api/v1/bets/999", "", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown bet: status %d, want 404", w.Code)
	}
}
