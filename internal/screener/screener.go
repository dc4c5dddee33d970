// Package screener decides whether a token is tradeable by checking its
// market snapshot and risk report against configured thresholds.
package screener

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/you/snipebot/internal/domain"
)

// Thresholds holds the five tradeability conditions. A token is tradeable
// only when every condition passes.
type Thresholds struct {
	VolumeMinUSD    float64
	LiquidityMinUSD float64
	TxCountMin      int64
	TrendMin        float64
	ScamRiskMax     float64
}

// Screener evaluates tokens against Thresholds using data from a
// domain.QuoteSource. Data unavailability is an error, never an implicit
// pass: a token is only tradeable on affirmative evidence.
type Screener struct {
	source domain.QuoteSource
	th     Thresholds
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Screener.
func New(source domain.QuoteSource, th Thresholds, logger *slog.Logger) *Screener {
	return &Screener{
		source: source,
		th:     th,
		logger: logger.With(slog.String("component", "screener")),
		now:    time.Now,
	}
}

// Screen evaluates all conditions for the token. It returns an error when
// quote or risk data cannot be obtained; the caller must not treat that as
// tradeable. A failed result carries one entry per violated condition, and
// a later re-evaluation starts from scratch.
func (s *Screener) Screen(ctx context.Context, tokenAddress string) (domain.ScreenResult, error) {
	q, err := s.source.Quote(ctx, tokenAddress)
	if err != nil {
		return domain.ScreenResult{}, fmt.Errorf("screener: %s: %w", tokenAddress, err)
	}

	r, err := s.source.Risk(ctx, tokenAddress)
	if err != nil {
		return domain.ScreenResult{}, fmt.Errorf("screener: %s: %w", tokenAddress, err)
	}

	var failures []domain.ScreenFailure

	if q.VolumeUSD < s.th.VolumeMinUSD {
		failures = append(failures, domain.ScreenFailure{
			Condition: domain.ConditionVolume,
			Actual:    q.VolumeUSD,
			Threshold: s.th.VolumeMinUSD,
		})
	}
	if q.LiquidityUSD < s.th.LiquidityMinUSD {
		failures = append(failures, domain.ScreenFailure{
			Condition: domain.ConditionLiquidity,
			Actual:    q.LiquidityUSD,
			Threshold: s.th.LiquidityMinUSD,
		})
	}
	if q.TxCount < s.th.TxCountMin {
		failures = append(failures, domain.ScreenFailure{
			Condition: domain.ConditionTxCount,
			Actual:    float64(q.TxCount),
			Threshold: float64(s.th.TxCountMin),
		})
	}
	if q.TrendScore < s.th.TrendMin {
		failures = append(failures, domain.ScreenFailure{
			Condition: domain.ConditionTrend,
			Actual:    q.TrendScore,
			Threshold: s.th.TrendMin,
		})
	}
	if r.ScamRisk > s.th.ScamRiskMax {
		failures = append(failures, domain.ScreenFailure{
			Condition: domain.ConditionScamRisk,
			Actual:    r.ScamRisk,
			Threshold: s.th.ScamRiskMax,
		})
	}

	result := domain.ScreenResult{
		TokenAddress: tokenAddress,
		Tradeable:    len(failures) == 0,
		Failures:     failures,
		EvaluatedAt:  s.now().UTC(),
	}

	if !result.Tradeable {
		s.logger.Debug("token rejected",
			slog.String("token", tokenAddress),
			slog.Any("reasons", result.Reasons()))
	}

	return result, nil
}
