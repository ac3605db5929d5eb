package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/GauravKarakoti/OddsSync/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// Stake amounts are stored as NUMERIC so the full uint64 range round-trips
// exactly.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// nextID advances a named counter and returns the pre-increment value.
func (s *PostgresStore) nextID(ctx context.Context, name string) (uint64, error) {
	var value int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO counters (name, value) VALUES ($1, 1)
		 ON CONFLICT (name) DO UPDATE SET value = counters.value + 1
		 RETURNING value - 1`, name).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("%w: counter %s: %v", model.ErrStorageFailure, name, err)
	}
	return uint64(value), nil
}

func (s *PostgresStore) NextMarketID(ctx context.Context) (uint64, error) {
	return s.nextID(ctx, "market")
}

func (s *PostgresStore) NextBetID(ctx context.Context) (uint64, error) {
	return s.nextID(ctx, "bet")
}

func (s *PostgresStore) NextOutboundSequence(ctx context.Context, destDomain string) (uint64, error) {
	return s.nextID(ctx, "outbound:"+destDomain)
}

func (s *PostgresStore) InsertMarket(ctx context.Context, m *model.Market) error {
	options, err := json.Marshal(m.Options)
	if err != nil {
		return fmt.Errorf("marshal options: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO markets
		   (market_id, home_domain, description, creator, options, liquidity, total_bets,
		    created_at, resolved_at, winning_option, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7::NUMERIC, $8, $9, $10, $11)`,
		int64(m.MarketID), m.HomeDomain, m.Description, m.Creator, options,
		strconv.FormatUint(m.Liquidity, 10), strconv.FormatUint(m.TotalBets, 10),
		m.CreatedAt, m.ResolvedAt, winningOptionArg(m.WinningOption), m.IsActive,
	)
	if err != nil {
		return fmt.Errorf("%w: insert market %d: %v", model.ErrStorageFailure, m.MarketID, err)
	}
	return nil
}

func (s *PostgresStore) GetMarketDomain(ctx context.Context, marketID uint64) (string, bool, error) {
	var domain string
	err := s.pool.QueryRow(ctx,
		`SELECT home_domain FROM markets WHERE market_id = $1`, int64(marketID)).Scan(&domain)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: market domain %d: %v", model.ErrStorageFailure, marketID, err)
	}
	return domain, true, nil
}

func (s *PostgresStore) GetMarket(ctx context.Context, marketID uint64) (*model.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT market_id, home_domain, description, creator, options,
		        liquidity::TEXT, total_bets::TEXT,
		        created_at, resolved_at, winning_option, is_active
		 FROM markets WHERE market_id = $1`, int64(marketID))

	m, err := scanMarket(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: market %d: %v", model.ErrStorageFailure, marketID, err)
	}
	return m, nil
}

func (s *PostgresStore) UpdateMarket(ctx context.Context, m *model.Market) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE markets
		 SET resolved_at = $2, winning_option = $3, is_active = $4
		 WHERE market_id = $1`,
		int64(m.MarketID), m.ResolvedAt, winningOptionArg(m.WinningOption), m.IsActive,
	)
	if err != nil {
		return fmt.Errorf("%w: update market %d: %v", model.ErrStorageFailure, m.MarketID, err)
	}
	return nil
}

func (s *PostgresStore) ListMarkets(ctx context.Context) ([]model.Market, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT market_id, home_domain, description, creator, options,
		        liquidity::TEXT, total_bets::TEXT,
		        created_at, resolved_at, winning_option, is_active
		 FROM markets ORDER BY market_id`)
	if err != nil {
		return nil, fmt.Errorf("%w: list markets: %v", model.ErrStorageFailure, err)
	}
	defer rows.Close()

	var markets []model.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: list markets: %v", model.ErrStorageFailure, err)
		}
		markets = append(markets, *m)
	}
	return markets, rows.Err()
}

// ApplyBet runs the four ledger writes and the delivery-log insert in one
// transaction, so a failure mid-sequence leaves no observable effect.
func (s *PostgresStore) ApplyBet(ctx context.Context, bet *model.Bet, optionTotal, marketTotal uint64, deliveryKey string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin apply bet: %v", model.ErrStorageFailure, err)
	}
	defer tx.Rollback(ctx)

	if deliveryKey != "" {
		tag, err := tx.Exec(ctx,
			`INSERT INTO cross_domain_deliveries (delivery_key, delivered_at)
			 VALUES ($1, $2) ON CONFLICT (delivery_key) DO NOTHING`,
			deliveryKey, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("%w: delivery log: %v", model.ErrStorageFailure, err)
		}
		if tag.RowsAffected() == 0 {
			return model.ErrDuplicateDelivery
		}
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO option_totals (market_id, option_index, total)
		 VALUES ($1, $2, $3::NUMERIC)
		 ON CONFLICT (market_id, option_index) DO UPDATE SET total = EXCLUDED.total`,
		int64(bet.MarketID), int32(bet.OptionIndex), strconv.FormatUint(optionTotal, 10)); err != nil {
		return fmt.Errorf("%w: option total: %v", model.ErrStorageFailure, err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE markets SET total_bets = $2::NUMERIC WHERE market_id = $1`,
		int64(bet.MarketID), strconv.FormatUint(marketTotal, 10)); err != nil {
		return fmt.Errorf("%w: market total: %v", model.ErrStorageFailure, err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO bets (bet_id, market_id, bettor, option_index, amount, placed_at)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6)`,
		int64(bet.BetID), int64(bet.MarketID), bet.Bettor, int32(bet.OptionIndex),
		strconv.FormatUint(bet.Amount, 10), bet.PlacedAt); err != nil {
		return fmt.Errorf("%w: insert bet %d: %v", model.ErrStorageFailure, bet.BetID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit apply bet: %v", model.ErrStorageFailure, err)
	}
	return nil
}

func (s *PostgresStore) GetOptionTotals(ctx context.Context, marketID uint64) (map[uint32]uint64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT option_index, total::TEXT FROM option_totals WHERE market_id = $1`,
		int64(marketID))
	if err != nil {
		return nil, fmt.Errorf("%w: option totals %d: %v", model.ErrStorageFailure, marketID, err)
	}
	defer rows.Close()

	totals := make(map[uint32]uint64)
	for rows.Next() {
		var idx int32
		var totalS string
		if err := rows.Scan(&idx, &totalS); err != nil {
			return nil, fmt.Errorf("%w: option totals %d: %v", model.ErrStorageFailure, marketID, err)
		}
		total, err := strconv.ParseUint(totalS, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: option totals %d: %v", model.ErrStorageFailure, marketID, err)
		}
		totals[uint32(idx)] = total
	}
	return totals, rows.Err()
}

func (s *PostgresStore) GetBet(ctx context.Context, betID uint64) (*model.Bet, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT bet_id, market_id, bettor, option_index, amount::TEXT, placed_at
		 FROM bets WHERE bet_id = $1`, int64(betID))

	b, err := scanBet(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: bet %d: %v", model.ErrStorageFailure, betID, err)
	}
	return b, nil
}

func (s *PostgresStore) GetBetsByMarket(ctx context.Context, marketID uint64) ([]model.Bet, error) {
	return s.queryBets(ctx,
		`SELECT bet_id, market_id, bettor, option_index, amount::TEXT, placed_at
		 FROM bets WHERE market_id = $1 ORDER BY bet_id`, int64(marketID))
}

func (s *PostgresStore) GetBetsByUser(ctx context.Context, bettor string) ([]model.Bet, error) {
	return s.queryBets(ctx,
		`SELECT bet_id, market_id, bettor, option_index, amount::TEXT, placed_at
		 FROM bets WHERE bettor = $1 ORDER BY bet_id`, bettor)
}

func (s *PostgresStore) queryBets(ctx context.Context, sql string, arg any) ([]model.Bet, error) {
	rows, err := s.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("%w: query bets: %v", model.ErrStorageFailure, err)
	}
	defer rows.Close()

	var bets []model.Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: query bets: %v", model.ErrStorageFailure, err)
		}
		bets = append(bets, *b)
	}
	return bets, rows.Err()
}

type pgxRow interface {
	Scan(dest ...any) error
}

func scanMarket(row pgxRow) (*model.Market, error) {
	var m model.Market
	var marketID int64
	var options []byte
	var liquidityS, totalBetsS string
	var winning *int32

	if err := row.Scan(&marketID, &m.HomeDomain, &m.Description, &m.Creator, &options,
		&liquidityS, &totalBetsS, &m.CreatedAt, &m.ResolvedAt, &winning, &m.IsActive); err != nil {
		return nil, err
	}

	m.MarketID = uint64(marketID)
	if err := json.Unmarshal(options, &m.Options); err != nil {
		return nil, err
	}
	var err error
	if m.Liquidity, err = strconv.ParseUint(liquidityS, 10, 64); err != nil {
		return nil, err
	}
	if m.TotalBets, err = strconv.ParseUint(totalBetsS, 10, 64); err != nil {
		return nil, err
	}
	if winning != nil {
		w := uint32(*winning)
		m.WinningOption = &w
	}
	return &m, nil
}

func scanBet(row pgxRow) (*model.Bet, error) {
	var b model.Bet
	var betID, marketID int64
	var idx int32
	var amountS string

	if err := row.Scan(&betID, &marketID, &b.Bettor, &idx, &amountS, &b.PlacedAt); err != nil {
		return nil, err
	}

	b.BetID = uint64(betID)
	b.MarketID = uint64(marketID)
	b.OptionIndex = uint32(idx)
	amount, err := strconv.ParseUint(amountS, 10, 64)
	if err != nil {
		return nil, err
	}
	b.Amount = amount
	return &b, nil
}

func winningOptionArg(w *uint32) *int32 {
	if w == nil {
		return nil
	}
	v := int32(*w)
	return &v
}
