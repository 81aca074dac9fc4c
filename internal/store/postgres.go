package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/harvestbet/pari-engine/internal/limits"
	"github.com/harvestbet/pari-engine/internal/model"
	"github.com/harvestbet/pari-engine/internal/parimutuel"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
// Multi-record writes (CommitStake, ApplySettlement) run in transactions
// with the market row locked FOR UPDATE.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const marketColumns = `id, proposition, title, description, city, province, condition, crop,
	yes_pool::TEXT, no_pool::TEXT, default_odds::TEXT,
	deadline, status, COALESCE(outcome, ''), created_at`

func scanMarket(row pgx.Row) (*model.Market, error) {
	var m model.Market
	var yesPool, noPool, defaultOdds string

	err := row.Scan(&m.ID, &m.Proposition, &m.Title, &m.Description,
		&m.City, &m.Province, &m.Condition, &m.Crop,
		&yesPool, &noPool, &defaultOdds,
		&m.Deadline, &m.Status, &m.Outcome, &m.CreatedAt)
	if err != nil {
		return nil, err
	}

	m.YesPool, _ = decimal.NewFromString(yesPool)
	m.NoPool, _ = decimal.NewFromString(noPool)
	m.DefaultOdds, _ = decimal.NewFromString(defaultOdds)
	return &m, nil
}

func (s *PostgresStore) CreateMarket(ctx context.Context, m *model.Market) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO markets (id, proposition, title, description, city, province, condition, crop,
		                      yes_pool, no_pool, default_odds, deadline, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8,
		         $9::NUMERIC, $10::NUMERIC, $11::NUMERIC, $12, $13, $14)`,
		m.ID, m.Proposition, m.Title, m.Description, m.City, m.Province, m.Condition, m.Crop,
		m.YesPool.String(), m.NoPool.String(), m.DefaultOdds.String(),
		m.Deadline, m.Status, m.CreatedAt,
	)
	return err
}

func (s *PostgresStore) GetMarket(ctx context.Context, id string) (*model.Market, error) {
	m, err := scanMarket(s.pool.QueryRow(ctx,
		`SELECT `+marketColumns+` FROM markets WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get market %s: %w", id, err)
	}
	return m, nil
}

func (s *PostgresStore) GetMarketByProposition(ctx context.Context, ticker string) (*model.Market, error) {
	m, err := scanMarket(s.pool.QueryRow(ctx,
		`SELECT `+marketColumns+` FROM markets WHERE proposition = $1`, ticker))
	if err != nil {
		return nil, fmt.Errorf("get market by proposition %s: %w", ticker, err)
	}
	return m, nil
}

func (s *PostgresStore) ListMarkets(ctx context.Context) ([]model.Market, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+marketColumns+` FROM markets ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var markets []model.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, err
		}
		markets = append(markets, *m)
	}
	return markets, rows.Err()
}

func (s *PostgresStore) UpdateMarketStatus(ctx context.Context, id, status string, outcome model.Side) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE markets SET status = $2, outcome = NULLIF($3, '') WHERE id = $1`,
		id, status, string(outcome),
	)
	return err
}

func (s *PostgresStore) CommitStake(ctx context.Context, stake *model.Stake, yesPool, noPool decimal.Decimal) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// Lock the market row so concurrent commits serialize at the database.
	var status string
	err = tx.QueryRow(ctx,
		`SELECT status FROM markets WHERE id = $1 FOR UPDATE`, stake.MarketID).Scan(&status)
	if err != nil {
		return fmt.Errorf("lock market %s: %w", stake.MarketID, err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO stakes (id, market_id, bettor_id, side, amount, odds, potential_payout, status, placed_at)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC, $7::NUMERIC, $8, $9)`,
		stake.ID, stake.MarketID, stake.BettorID, string(stake.Side),
		stake.Amount.String(), stake.Odds.String(), stake.PotentialPayout.String(),
		stake.Status, stake.PlacedAt,
	)
	if err != nil {
		return fmt.Errorf("insert stake: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE markets SET yes_pool = $2::NUMERIC, no_pool = $3::NUMERIC WHERE id = $1`,
		stake.MarketID, yesPool.String(), noPool.String(),
	)
	if err != nil {
		return fmt.Errorf("update pools: %w", err)
	}

	return tx.Commit(ctx)
}

const stakeColumns = `id, market_id, bettor_id, side, amount::TEXT, odds::TEXT,
	potential_payout::TEXT, status, payout::TEXT, placed_at`

func scanStakes(rows pgx.Rows) ([]model.Stake, error) {
	var stakes []model.Stake
	for rows.Next() {
		var st model.Stake
		var amountS, oddsS, potentialS string
		var payoutS *string

		if err := rows.Scan(&st.ID, &st.MarketID, &st.BettorID, &st.Side,
			&amountS, &oddsS, &potentialS, &st.Status, &payoutS, &st.PlacedAt); err != nil {
			return nil, err
		}

		st.Amount, _ = decimal.NewFromString(amountS)
		st.Odds, _ = decimal.NewFromString(oddsS)
		st.PotentialPayout, _ = decimal.NewFromString(potentialS)
		if payoutS != nil {
			payout, _ := decimal.NewFromString(*payoutS)
			st.Payout = &payout
		}
		stakes = append(stakes, st)
	}
	return stakes, rows.Err()
}

func (s *PostgresStore) GetStakesByMarket(ctx context.Context, marketID string) ([]model.Stake, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+stakeColumns+` FROM stakes WHERE market_id = $1 ORDER BY placed_at`, marketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanStakes(rows)
}

func (s *PostgresStore) GetStakesByBettor(ctx context.Context, bettorID string) ([]model.Stake, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+stakeColumns+` FROM stakes WHERE bettor_id = $1 ORDER BY placed_at`, bettorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanStakes(rows)
}

func (s *PostgresStore) GetBettorExposures(ctx context.Context, bettorID string) ([]limits.Exposure, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT st.market_id, m.province, COALESCE(SUM(st.amount), 0)::TEXT
		 FROM stakes st
		 JOIN markets m ON m.id = st.market_id
		 WHERE st.bettor_id = $1 AND st.status = 'pending'
		 GROUP BY st.market_id, m.province`, bettorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exposures []limits.Exposure
	for rows.Next() {
		var e limits.Exposure
		var totalS string
		if err := rows.Scan(&e.MarketID, &e.Province, &totalS); err != nil {
			return nil, err
		}
		e.Total, _ = decimal.NewFromString(totalS)
		exposures = append(exposures, e)
	}
	return exposures, rows.Err()
}

func (s *PostgresStore) ApplySettlement(ctx context.Context, marketID, status string, outcome model.Side,
	payouts []parimutuel.StakePayout, entry *model.CharityLedgerEntry) error {

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var current string
	err = tx.QueryRow(ctx,
		`SELECT status FROM markets WHERE id = $1 FOR UPDATE`, marketID).Scan(&current)
	if err != nil {
		return fmt.Errorf("lock market %s: %w", marketID, err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE markets SET status = $2, outcome = NULLIF($3, '') WHERE id = $1`,
		marketID, status, string(outcome),
	)
	if err != nil {
		return fmt.Errorf("update market status: %w", err)
	}

	for _, p := range payouts {
		_, err = tx.Exec(ctx,
			`UPDATE stakes SET status = $2, payout = $3::NUMERIC WHERE id = $1`,
			p.StakeID, p.Status, p.Payout.String(),
		)
		if err != nil {
			return fmt.Errorf("update stake %s: %w", p.StakeID, err)
		}
	}

	if entry != nil {
		_, err = tx.Exec(ctx,
			`INSERT INTO charity_ledger (id, source_market_id, amount, status, created_at)
			 VALUES ($1, $2, $3::NUMERIC, $4, $5)`,
			entry.ID, entry.SourceMarketID, entry.Amount.String(), entry.Status, entry.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert charity entry: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) ListCharityEntries(ctx context.Context) ([]model.CharityLedgerEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, source_market_id, amount::TEXT, status,
		        COALESCE(recipient_name, ''), COALESCE(recipient_address, ''),
		        distributed_at, created_at
		 FROM charity_ledger ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.CharityLedgerEntry
	for rows.Next() {
		var e model.CharityLedgerEntry
		var amountS string
		if err := rows.Scan(&e.ID, &e.SourceMarketID, &amountS, &e.Status,
			&e.RecipientName, &e.RecipientAddress, &e.DistributedAt, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Amount, _ = decimal.NewFromString(amountS)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) CharityTotal(ctx context.Context) (decimal.Decimal, error) {
	var totalS string
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0)::TEXT FROM charity_ledger`).Scan(&totalS)
	if err != nil {
		return decimal.Zero, err
	}
	total, _ := decimal.NewFromString(totalS)
	return total, nil
}

func (s *PostgresStore) DistributeCharityEntry(ctx context.Context, id, recipientName, recipientAddress string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE charity_ledger
		 SET status = 'distributed', recipient_name = $2, recipient_address = $3, distributed_at = $4
		 WHERE id = $1 AND status = 'pending'`,
		id, recipientName, recipientAddress, at,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("charity entry %s not found or already distributed", id)
	}
	return nil
}
