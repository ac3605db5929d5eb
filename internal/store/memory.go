package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/GauravKarakoti/OddsSync/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing and
// development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu            sync.RWMutex
	counters      map[string]uint64
	markets       map[uint64]*model.Market // market id -> record
	marketDomains map[uint64]string        // market id -> home domain
	optionTotals  map[uint64]map[uint32]uint64
	betLog        []model.Bet
	betsByID      map[uint64]*model.Bet
	userBets      map[string][]model.Bet
	delivered     map[string]bool
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		counters:      make(map[string]uint64),
		markets:       make(map[uint64]*model.Market),
		marketDomains: make(map[uint64]string),
		optionTotals:  make(map[uint64]map[uint32]uint64),
		betsByID:      make(map[uint64]*model.Bet),
		userBets:      make(map[string][]model.Bet),
		delivered:     make(map[string]bool),
	}
}

func (s *MemoryStore) next(name string) uint64 {
	id := s.counters[name]
	s.counters[name] = id + 1
	return id
}

func (s *MemoryStore) NextMarketID(_ context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next("market"), nil
}

func (s *MemoryStore) NextBetID(_ context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next("bet"), nil
}

func (s *MemoryStore) NextOutboundSequence(_ context.Context, destDomain string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next("outbound:" + destDomain), nil
}

func (s *MemoryStore) InsertMarket(_ context.Context, m *model.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.marketDomains[m.MarketID]; exists {
		return fmt.Errorf("market %d already exists", m.MarketID)
	}

	// Store a copy to avoid external mutation.
	s.markets[m.MarketID] = cloneMarket(m)
	s.marketDomains[m.MarketID] = m.HomeDomain
	return nil
}

func (s *MemoryStore) GetMarketDomain(_ context.Context, marketID uint64) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	domain, ok := s.marketDomains[marketID]
	return domain, ok, nil
}

func (s *MemoryStore) GetMarket(_ context.Context, marketID uint64) (*model.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.markets[marketID]
	if !ok {
		return nil, nil
	}
	return cloneMarket(m), nil
}

func (s *MemoryStore) UpdateMarket(_ context.Context, m *model.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.markets[m.MarketID]; !ok {
		return fmt.Errorf("market %d not found", m.MarketID)
	}
	s.markets[m.MarketID] = cloneMarket(m)
	return nil
}

func (s *MemoryStore) ListMarkets(_ context.Context) ([]model.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	markets := make([]model.Market, 0, len(s.markets))
	for _, m := range s.markets {
		markets = append(markets, *cloneMarket(m))
	}
	sort.Slice(markets, func(i, j int) bool { return markets[i].MarketID < markets[j].MarketID })
	return markets, nil
}

// ApplyBet applies the four ledger writes plus the optional delivery-log
// insert under one lock, so readers observe all of them or none.
func (s *MemoryStore) ApplyBet(_ context.Context, bet *model.Bet, optionTotal, marketTotal uint64, deliveryKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if deliveryKey != "" && s.delivered[deliveryKey] {
		return model.ErrDuplicateDelivery
	}

	m, ok := s.markets[bet.MarketID]
	if !ok {
		return fmt.Errorf("market %d not found", bet.MarketID)
	}

	totals, ok := s.optionTotals[bet.MarketID]
	if !ok {
		totals = make(map[uint32]uint64)
		s.optionTotals[bet.MarketID] = totals
	}
	totals[bet.OptionIndex] = optionTotal
	m.TotalBets = marketTotal

	stored := *bet
	s.betLog = append(s.betLog, stored)
	s.betsByID[bet.BetID] = &stored
	s.userBets[bet.Bettor] = append(s.userBets[bet.Bettor], stored)

	if deliveryKey != "" {
		s.delivered[deliveryKey] = true
	}
	return nil
}

func (s *MemoryStore) GetOptionTotals(_ context.Context, marketID uint64) (map[uint32]uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	totals := make(map[uint32]uint64, len(s.optionTotals[marketID]))
	for idx, amt := range s.optionTotals[marketID] {
		totals[idx] = amt
	}
	return totals, nil
}

func (s *MemoryStore) GetBet(_ context.Context, betID uint64) (*model.Bet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.betsByID[betID]
	if !ok {
		return nil, nil
	}
	copy := *b
	return &copy, nil
}

func (s *MemoryStore) GetBetsByMarket(_ context.Context, marketID uint64) ([]model.Bet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Bet
	for _, b := range s.betLog {
		if b.MarketID == marketID {
			result = append(result, b)
		}
	}
	return result, nil
}

func (s *MemoryStore) GetBetsByUser(_ context.Context, bettor string) ([]model.Bet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bets := s.userBets[bettor]
	result := make([]model.Bet, len(bets))
	copy(result, bets)
	return result, nil
}

func cloneMarket(m *model.Market) *model.Market {
	c := *m
	c.Options = append([]string(nil), m.Options...)
	if m.ResolvedAt != nil {
		t := *m.ResolvedAt
		c.ResolvedAt = &t
	}
	if m.WinningOption != nil {
		w := *m.WinningOption
		c.WinningOption = &w
	}
	return &c
}
