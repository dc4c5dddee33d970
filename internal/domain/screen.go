package domain

import (
	"fmt"
	"time"
)

// ScreenCondition names one of the tradeability thresholds.
type ScreenCondition string

const (
	ConditionVolume    ScreenCondition = "volume"
	ConditionLiquidity ScreenCondition = "liquidity"
	ConditionTxCount   ScreenCondition = "tx_count"
	ConditionTrend     ScreenCondition = "trend"
	ConditionScamRisk  ScreenCondition = "scam_risk"
)

// ScreenFailure records one threshold a token failed to meet.
type ScreenFailure struct {
	Condition ScreenCondition
	Actual    float64
	Threshold float64
}

func (f ScreenFailure) String() string {
	switch f.Condition {
	case ConditionScamRisk:
		return fmt.Sprintf("%s %.4g above max %.4g", f.Condition, f.Actual, f.Threshold)
	default:
		return fmt.Sprintf("%s %.4g below min %.4g", f.Condition, f.Actual, f.Threshold)
	}
}

// ScreenResult is the outcome of evaluating a token against every
// tradeability condition. Tradeable is true only when Failures is empty.
type ScreenResult struct {
	TokenAddress string
	Tradeable    bool
	Failures     []ScreenFailure
	EvaluatedAt  time.Time
}

// Reasons returns the human-readable failure descriptions.
func (r ScreenResult) Reasons() []string {
	out := make([]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		out = append(out, f.String())
	}
	return out
}
