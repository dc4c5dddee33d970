package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// PositionStore persists positions.
type PositionStore interface {
	Create(ctx context.Context, pos Position) error
	Update(ctx context.Context, pos Position) error
	GetByID(ctx context.Context, id string) (Position, error)
	GetOpenByToken(ctx context.Context, tokenAddress string) (Position, error)
	ListOpen(ctx context.Context) ([]Position, error)
	ListClosedBefore(ctx context.Context, before time.Time) ([]Position, error)
	ListHistory(ctx context.Context, opts ListOpts) ([]Position, error)
}

// ExecutionStore persists the pending-execution journal.
type ExecutionStore interface {
	Create(ctx context.Context, req ExecutionRequest) error
	Resolve(ctx context.Context, id string, status ExecutionStatus) error
	GetByID(ctx context.Context, id string) (ExecutionRequest, error)
	ListPending(ctx context.Context) ([]ExecutionRequest, error)
}

// TradeStore persists completed fills.
type TradeStore interface {
	Insert(ctx context.Context, trade Trade) error
	ListByToken(ctx context.Context, tokenAddress string, opts ListOpts) ([]Trade, error)
	ListRecent(ctx context.Context, limit int) ([]Trade, error)
	ListBefore(ctx context.Context, before time.Time) ([]Trade, error)
	SumAmount(ctx context.Context, side TradeSide, since time.Time) (float64, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
	ListBefore(ctx context.Context, before time.Time) ([]AuditEntry, error)
}
