package quote

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/you/snipebot/internal/domain"
	"github.com/you/snipebot/internal/platform/gmgn"
	"github.com/you/snipebot/internal/platform/rugcheck"
)

// Weighted risk factors. Sniper and insider activity add risk above their
// thresholds; thin liquidity and low transaction counts add risk below half
// the screening minimums.
const (
	sniperActivityMax    = 50.0
	sniperActivityWeight = 0.3

	insiderTradesMax    = int64(10)
	insiderTradesWeight = 0.2

	thinLiquidityWeight = 0.4
	lowTxCountWeight    = 0.1
)

// StatsSource supplies per-token analytics for risk scoring.
type StatsSource interface {
	TokenStats(ctx context.Context, tokenAddress string) (gmgn.APITokenStats, error)
}

// ReportSource supplies external risk classifications.
type ReportSource interface {
	TokenReport(ctx context.Context, tokenAddress string) (rugcheck.APIReport, error)
}

// RiskScorer implements domain.RiskFetcher by blending on-chain activity
// heuristics with the external RugCheck classification. A token RugCheck
// does not rate as clean is assigned maximum risk regardless of heuristics.
type RiskScorer struct {
	stats   StatsSource
	reports ReportSource

	liquidityMinUSD float64
	txCountMin      int64
	now             func() time.Time
}

// NewRiskScorer creates a RiskScorer. liquidityMinUSD and txCountMin are the
// screening thresholds; the scorer flags tokens below half of each.
func NewRiskScorer(stats StatsSource, reports ReportSource, liquidityMinUSD float64, txCountMin int64) *RiskScorer {
	return &RiskScorer{
		stats:           stats,
		reports:         reports,
		liquidityMinUSD: liquidityMinUSD,
		txCountMin:      txCountMin,
		now:             time.Now,
	}
}

// FetchRisk computes a fresh risk report for the token.
func (s *RiskScorer) FetchRisk(ctx context.Context, tokenAddress string) (domain.RiskReport, error) {
	stats, err := s.stats.TokenStats(ctx, tokenAddress)
	if err != nil {
		return domain.RiskReport{}, fmt.Errorf("quote: risk stats %s: %w", tokenAddress, err)
	}

	report, err := s.reports.TokenReport(ctx, tokenAddress)
	if err != nil {
		return domain.RiskReport{}, fmt.Errorf("quote: risk report %s: %w", tokenAddress, err)
	}

	var risk float64
	var flags []string

	if stats.SniperActivity > sniperActivityMax {
		risk += sniperActivityWeight
		flags = append(flags, "sniper_activity")
	}
	if stats.InsiderTrades > insiderTradesMax {
		risk += insiderTradesWeight
		flags = append(flags, "insider_trades")
	}
	if stats.Liquidity < s.liquidityMinUSD/2 {
		risk += thinLiquidityWeight
		flags = append(flags, "thin_liquidity")
	}
	if stats.TxCount24h < s.txCountMin/2 {
		risk += lowTxCountWeight
		flags = append(flags, "low_tx_count")
	}

	if !report.Good() {
		risk = 1.0
		flags = append(flags, "rugcheck:"+strings.ToLower(report.Status))
	}
	for _, r := range report.Risks {
		if strings.EqualFold(r.Level, "danger") {
			flags = append(flags, "rugcheck_risk:"+r.Name)
		}
	}

	return domain.RiskReport{
		TokenAddress: tokenAddress,
		ScamRisk:     risk,
		Flags:        flags,
		FetchedAt:    s.now().UTC(),
	}, nil
}

// Compile-time interface check.
var _ domain.RiskFetcher = (*RiskScorer)(nil)
