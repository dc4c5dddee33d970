package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/you/snipebot/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a new TradeStore backed by the given connection pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

const tradeSelectCols = `id, request_id, position_id, token_address, symbol,
	side, action, quantity, price, amount_sol, tx_hash, executed_at`

func scanTradeRows(rows pgx.Rows) ([]domain.Trade, error) {
	var trades []domain.Trade
	for rows.Next() {
		var t domain.Trade
		var side, action string

		if err := rows.Scan(
			&t.ID, &t.RequestID, &t.PositionID, &t.TokenAddress, &t.Symbol,
			&side, &action,
			&t.Quantity, &t.Price, &t.AmountSOL,
			&t.TxHash, &t.ExecutedAt,
		); err != nil {
			return nil, err
		}
		t.Side = domain.TradeSide(side)
		t.Action = domain.Action(action)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// Insert records a completed fill.
func (s *TradeStore) Insert(ctx context.Context, t domain.Trade) error {
	const query = `
		INSERT INTO trades (
			request_id, position_id, token_address, symbol,
			side, action, quantity, price, amount_sol, tx_hash, executed_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9, $10, $11
		)`

	_, err := s.pool.Exec(ctx, query,
		t.RequestID, t.PositionID, t.TokenAddress, t.Symbol,
		string(t.Side), string(t.Action),
		t.Quantity, t.Price, t.AmountSOL,
		t.TxHash, t.ExecutedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert trade %s: %w", t.RequestID, err)
	}
	return nil
}

// ListByToken returns trades for a token with pagination.
func (s *TradeStore) ListByToken(ctx context.Context, tokenAddress string, opts domain.ListOpts) ([]domain.Trade, error) {
	query := `SELECT ` + tradeSelectCols + ` FROM trades WHERE token_address = $1`
	args := []any{tokenAddress}
	argIdx := 2

	if opts.Since != nil {
		query += fmt.Sprintf(" AND executed_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND executed_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY executed_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades by token: %w", err)
	}
	defer rows.Close()

	trades, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trades by token: %w", err)
	}
	return trades, nil
}

// ListRecent returns the most recent trades.
func (s *TradeStore) ListRecent(ctx context.Context, limit int) ([]domain.Trade, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+tradeSelectCols+` FROM trades
		 ORDER BY executed_at DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent trades: %w", err)
	}
	defer rows.Close()

	trades, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan recent trades: %w", err)
	}
	return trades, nil
}

// ListBefore returns all trades executed strictly before the cutoff.
func (s *TradeStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Trade, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+tradeSelectCols+` FROM trades
		 WHERE executed_at < $1
		 ORDER BY executed_at ASC`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades before cutoff: %w", err)
	}
	defer rows.Close()

	trades, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trades before cutoff: %w", err)
	}
	return trades, nil
}

// SumAmount returns the total SOL amount across trades on one side since the
// given time.
func (s *TradeStore) SumAmount(ctx context.Context, side domain.TradeSide, since time.Time) (float64, error) {
	var total float64
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount_sol), 0) FROM trades
		 WHERE side = $1 AND executed_at >= $2`,
		string(side), since,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("postgres: sum trade amount: %w", err)
	}
	return total, nil
}

// Compile-time interface check.
var _ domain.TradeStore = (*TradeStore)(nil)
