package domain

import "time"

// Trade is a completed, recorded fill.
type Trade struct {
	ID           int64
	RequestID    string
	PositionID   string
	TokenAddress string
	Symbol       string
	Side         TradeSide
	Action       Action
	Quantity     float64
	Price        float64
	AmountSOL    float64
	TxHash       string
	ExecutedAt   time.Time
}
