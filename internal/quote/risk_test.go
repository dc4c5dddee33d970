package quote

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/you/snipebot/internal/platform/gmgn"
	"github.com/you/snipebot/internal/platform/rugcheck"
)

type fakeStats struct {
	stats gmgn.APITokenStats
	err   error
}

func (f *fakeStats) TokenStats(ctx context.Context, token string) (gmgn.APITokenStats, error) {
	return f.stats, f.err
}

type fakeReports struct {
	report rugcheck.APIReport
	err    error
}

func (f *fakeReports) TokenReport(ctx context.Context, token string) (rugcheck.APIReport, error) {
	return f.report, f.err
}

func cleanStats() gmgn.APITokenStats {
	return gmgn.APITokenStats{
		Liquidity:      10_000,
		TxCount24h:     500,
		SniperActivity: 10,
		InsiderTrades:  2,
	}
}

func TestCleanTokenScoresZero(t *testing.T) {
	s := NewRiskScorer(&fakeStats{stats: cleanStats()}, &fakeReports{report: rugcheck.APIReport{Status: "GOOD"}}, 500, 100)

	r, err := s.FetchRisk(context.Background(), "tok1")
	require.NoError(t, err)
	assert.Equal(t, 0.0, r.ScamRisk)
	assert.Empty(t, r.Flags)
	assert.False(t, r.FetchedAt.IsZero())
}

func TestHeuristicWeightsAccumulate(t *testing.T) {
	stats := gmgn.APITokenStats{
		SniperActivity: 80, // +0.3
		InsiderTrades:  20, // +0.2
		Liquidity:      100, // below half of 500, +0.4
		TxCount24h:     10,  // below half of 100, +0.1
	}
	s := NewRiskScorer(&fakeStats{stats: stats}, &fakeReports{report: rugcheck.APIReport{Status: "GOOD"}}, 500, 100)

	r, err := s.FetchRisk(context.Background(), "tok1")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, r.ScamRisk, 1e-9)
	assert.ElementsMatch(t, []string{"sniper_activity", "insider_trades", "thin_liquidity", "low_tx_count"}, r.Flags)
}

func TestSniperActivityAlone(t *testing.T) {
	stats := cleanStats()
	stats.SniperActivity = 80
	s := NewRiskScorer(&fakeStats{stats: stats}, &fakeReports{report: rugcheck.APIReport{Status: "GOOD"}}, 500, 100)

	r, err := s.FetchRisk(context.Background(), "tok1")
	require.NoError(t, err)
	assert.InDelta(t, 0.3, r.ScamRisk, 1e-9)
	assert.Equal(t, []string{"sniper_activity"}, r.Flags)
}

func TestRugcheckNotGoodMeansMaxRisk(t *testing.T) {
	report := rugcheck.APIReport{
		Status: "DANGER",
		Risks:  []rugcheck.APIRisk{{Name: "mint authority enabled", Level: "danger"}},
	}
	s := NewRiskScorer(&fakeStats{stats: cleanStats()}, &fakeReports{report: report}, 500, 100)

	r, err := s.FetchRisk(context.Background(), "tok1")
	require.NoError(t, err)
	assert.Equal(t, 1.0, r.ScamRisk)
	assert.Contains(t, r.Flags, "rugcheck:danger")
	assert.Contains(t, r.Flags, "rugcheck_risk:mint authority enabled")
}

func TestStatsErrorPropagates(t *testing.T) {
	s := NewRiskScorer(&fakeStats{err: errors.New("rate limited")}, &fakeReports{}, 500, 100)

	_, err := s.FetchRisk(context.Background(), "tok1")
	assert.Error(t, err)
}

func TestReportErrorPropagates(t *testing.T) {
	s := NewRiskScorer(&fakeStats{stats: cleanStats()}, &fakeReports{err: errors.New("unauthorized")}, 500, 100)

	_, err := s.FetchRisk(context.Background(), "tok1")
	assert.Error(t, err)
}
