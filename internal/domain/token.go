package domain

import "time"

// Token identifies a tradeable asset by its mint address.
type Token struct {
	Address    string
	Symbol     string
	Name       string
	LaunchedAt time.Time
}

// Quote is a point-in-time market snapshot for a token.
type Quote struct {
	TokenAddress string
	Price        float64 // SOL per token
	VolumeUSD    float64
	LiquidityUSD float64
	TxCount      int64
	TrendScore   float64 // 0..1
	FetchedAt    time.Time
}

// Age reports how old the snapshot is relative to now.
func (q Quote) Age(now time.Time) time.Duration {
	return now.Sub(q.FetchedAt)
}

// RiskReport is a point-in-time risk classification for a token.
type RiskReport struct {
	TokenAddress string
	ScamRisk     float64 // 0..1, higher is worse
	Flags        []string
	FetchedAt    time.Time
}
