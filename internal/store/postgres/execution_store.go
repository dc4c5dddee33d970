package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/you/snipebot/internal/domain"
)

// ExecutionStore implements domain.ExecutionStore using PostgreSQL. Rows are
// written before the gateway call and resolved after; pending rows left by
// an interrupted run drive startup reconciliation.
type ExecutionStore struct {
	pool *pgxpool.Pool
}

// NewExecutionStore creates a new ExecutionStore backed by the given connection pool.
func NewExecutionStore(pool *pgxpool.Pool) *ExecutionStore {
	return &ExecutionStore{pool: pool}
}

const executionSelectCols = `id, token_address, symbol, side, action, quantity,
	amount_sol, status, created_at, resolved_at`

func scanExecutionRow(row pgx.Row) (domain.ExecutionRequest, error) {
	var e domain.ExecutionRequest
	var side, action, status string

	err := row.Scan(
		&e.ID, &e.TokenAddress, &e.Symbol, &side, &action,
		&e.Quantity, &e.AmountSOL,
		&status, &e.CreatedAt, &e.ResolvedAt,
	)
	if err != nil {
		return domain.ExecutionRequest{}, err
	}
	e.Side = domain.TradeSide(side)
	e.Action = domain.Action(action)
	e.Status = domain.ExecutionStatus(status)
	return e, nil
}

// Create journals a new pending execution request.
func (s *ExecutionStore) Create(ctx context.Context, req domain.ExecutionRequest) error {
	const query = `
		INSERT INTO executions (
			id, token_address, symbol, side, action, quantity,
			amount_sol, status, created_at, resolved_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10
		)`

	_, err := s.pool.Exec(ctx, query,
		req.ID, req.TokenAddress, req.Symbol, string(req.Side), string(req.Action),
		req.Quantity, req.AmountSOL,
		string(req.Status), req.CreatedAt, req.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create execution %s: %w", req.ID, err)
	}
	return nil
}

// Resolve marks a pending execution as settled or failed.
func (s *ExecutionStore) Resolve(ctx context.Context, id string, status domain.ExecutionStatus) error {
	const query = `
		UPDATE executions SET
			status      = $2,
			resolved_at = $3
		WHERE id = $1 AND status = 'pending'`

	tag, err := s.pool.Exec(ctx, query, id, string(status), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("postgres: resolve execution %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetByID retrieves a single execution request by its ID.
func (s *ExecutionStore) GetByID(ctx context.Context, id string) (domain.ExecutionRequest, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+executionSelectCols+` FROM executions WHERE id = $1`, id)

	e, err := scanExecutionRow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.ExecutionRequest{}, domain.ErrNotFound
		}
		return domain.ExecutionRequest{}, fmt.Errorf("postgres: get execution %s: %w", id, err)
	}
	return e, nil
}

// ListPending returns all unresolved execution requests, oldest first.
func (s *ExecutionStore) ListPending(ctx context.Context) ([]domain.ExecutionRequest, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+executionSelectCols+` FROM executions
		 WHERE status = 'pending'
		 ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list pending executions: %w", err)
	}
	defer rows.Close()

	var out []domain.ExecutionRequest
	for rows.Next() {
		e, err := scanExecutionRow(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan pending execution: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list pending executions rows: %w", err)
	}
	return out, nil
}

// Compile-time interface check.
var _ domain.ExecutionStore = (*ExecutionStore)(nil)
