package domain

import (
	"context"
	"time"
)

// TradeSide is the direction of a swap.
type TradeSide string

const (
	TradeSideBuy  TradeSide = "buy"
	TradeSideSell TradeSide = "sell"
)

// ExecutionStatus tracks a journaled execution request.
type ExecutionStatus string

const (
	ExecutionStatusPending ExecutionStatus = "pending"
	ExecutionStatusSettled ExecutionStatus = "settled"
	ExecutionStatusFailed  ExecutionStatus = "failed"
)

// TradeStatus is the gateway's answer to "what happened to this request".
type TradeStatus string

const (
	TradeStatusSettled TradeStatus = "settled"
	TradeStatusFailed  TradeStatus = "failed"
	TradeStatusUnknown TradeStatus = "unknown"
)

// ExecutionRequest is journaled before every gateway call so that an
// interrupted run can reconcile its outcome on restart.
type ExecutionRequest struct {
	ID           string // UUID, the reconciliation key
	TokenAddress string
	Symbol       string
	Side         TradeSide
	Action       Action
	Quantity     float64 // tokens to sell; zero for buys
	AmountSOL    float64 // SOL to spend; zero for sells
	Status       ExecutionStatus
	CreatedAt    time.Time
	ResolvedAt   *time.Time
}

// Fill is the confirmed result of an executed swap.
type Fill struct {
	RequestID    string
	TokenAddress string
	Side         TradeSide
	Quantity     float64 // tokens bought or sold
	Price        float64 // SOL per token
	AmountSOL    float64 // SOL spent or received
	TxHash       string
	ExecutedAt   time.Time
}

// ExecutionGateway submits swaps to the venue. Implementations must be safe
// for concurrent use. The dry-run gateway satisfies this interface with
// synthesized fills.
type ExecutionGateway interface {
	ExecuteBuy(ctx context.Context, req ExecutionRequest) (Fill, error)
	ExecuteSell(ctx context.Context, req ExecutionRequest) (Fill, error)
	// TradeStatus resolves the outcome of a previously submitted request.
	TradeStatus(ctx context.Context, requestID string) (TradeStatus, error)
}
