package domain

import "time"

// PositionStatus tracks the lifecycle of a position.
type PositionStatus string

const (
	PositionStatusOpen            PositionStatus = "open"
	PositionStatusPartiallyClosed PositionStatus = "partially_closed"
	PositionStatusClosed          PositionStatus = "closed"
)

// Position represents a live or historical holding of a single token.
// At most one open position may exist per token address.
type Position struct {
	ID           string
	TokenAddress string
	Symbol       string
	EntryPrice   float64 // SOL per token at fill
	Quantity     float64 // tokens acquired at entry
	SoldQuantity float64 // cumulative tokens sold
	CostSOL      float64 // SOL spent on entry
	RealizedSOL  float64 // cumulative SOL received from sells
	PartialSells int
	Status       PositionStatus
	OpenedAt     time.Time
	UpdatedAt    time.Time
	ClosedAt     *time.Time
	ExitPrice    *float64
}

// Remaining returns the quantity still held.
func (p Position) Remaining() float64 {
	return p.Quantity - p.SoldQuantity
}

// ProfitMultiple returns price relative to the entry price.
func (p Position) ProfitMultiple(price float64) float64 {
	if p.EntryPrice <= 0 {
		return 0
	}
	return price / p.EntryPrice
}

// RealizedPnL returns realized proceeds minus entry cost, in SOL. Only
// meaningful once the position is closed.
func (p Position) RealizedPnL() float64 {
	return p.RealizedSOL - p.CostSOL
}
