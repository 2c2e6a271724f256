package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Mesteriis/crypto-inspector-sub001/internal/model"
)

func TestClassifyPhaseDecisionTable(t *testing.T) {
	rsi := func(v float64) *float64 { return &v }

	cases := []struct {
		name  string
		price float64
		ath   float64
		days  int
		rsi   *float64
		want  model.Phase
	}{
		{"at the high", 109000, 109000, 400, nil, model.PhaseEuphoria},
		{"within 3 pct", 106000, 109000, 900, nil, model.PhaseEuphoria},
		{"near high early cycle", 109000 * 0.85, 109000, 400, nil, model.PhaseBullRun},
		{"near high late cycle", 109000 * 0.85, 109000, 800, nil, model.PhaseDistribution},
		{"deep drawdown oversold late", 30000, 109000, 600, rsi(25), model.PhaseCapitulation},
		{"same without rsi", 30000, 109000, 600, nil, model.PhaseEarlyBear},
		{"first year pullback", 70000, 109000, 200, nil, model.PhaseEarlyBull},
		{"long grind down", 40000, 109000, 800, nil, model.PhaseBearMarket},
		{"late cycle drawdown", 60000, 109000, 650, nil, model.PhaseEarlyBear},
		{"deep discount off-cycle", 50000, 109000, 100, nil, model.PhaseAccumulation},
		{"no rule matches", 75000, 109000, 450, nil, model.PhaseUnknown},
		{"bad ath", 100, 0, 100, nil, model.PhaseUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ClassifyPhase(tc.price, tc.ath, 15500, tc.days, tc.rsi)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestClassifyPhaseOrderMatters(t *testing.T) {
	// 15% below ATH matches both the bull-run and distribution
	// conditions; days-since-halving breaks the tie.
	price := 109000 * 0.85
	assert.Equal(t, model.PhaseBullRun, ClassifyPhase(price, 109000, 15500, 400, nil))
	assert.Equal(t, model.PhaseDistribution, ClassifyPhase(price, 109000, 15500, 800, nil))
}

func TestAnalyzeCycle(t *testing.T) {
	now := LastHalving.AddDate(0, 0, 400)
	rsi := 55.0

	info := AnalyzeCycle(92650, 109000, 15500, &rsi, now)

	assert.Equal(t, 400, info.DaysSinceHalving)
	assert.Equal(t, LastHalving.Format("2006-01-02"), info.LastHalvingDate)
	assert.Equal(t, LastHalving.AddDate(0, 0, cycleDays).Format("2006-01-02"), info.NextHalvingDate)
	assert.Equal(t, 1060, info.DaysToNextHalving)
	assert.Equal(t, model.PhaseBullRun, info.Phase)
	assert.Equal(t, model.RiskMedium, info.RiskLevel)
	assert.InDelta(t, 15.0, info.DistanceFromATHPct, 0.01)
	assert.InDelta(t, 497.74, info.DistanceFromATLPct, 0.01)
	assert.InDelta(t, 27.4, info.CyclePosition, 0.01)
	assert.Equal(t, 70.0, info.Confidence)

	noRSI := AnalyzeCycle(92650, 109000, 15500, nil, now)
	assert.Equal(t, 50.0, noRSI.Confidence)
}

func TestAnalyzeCycleBeforeHalvingClamps(t *testing.T) {
	info := AnalyzeCycle(50000, 109000, 15500, nil, LastHalving.Add(-24*time.Hour))
	assert.Equal(t, 0, info.DaysSinceHalving)
	assert.Equal(t, 0.0, info.CyclePosition)
}

func TestPhaseRiskTable(t *testing.T) {
	assert.Equal(t, model.RiskLow, phaseRisk[model.PhaseAccumulation])
	assert.Equal(t, model.RiskLow, phaseRisk[model.PhaseEarlyBull])
	assert.Equal(t, model.RiskLow, phaseRisk[model.PhaseCapitulation])
	assert.Equal(t, model.RiskMedium, phaseRisk[model.PhaseBullRun])
	assert.Equal(t, model.RiskMedium, phaseRisk[model.PhaseDistribution])
	assert.Equal(t, model.RiskMedium, phaseRisk[model.PhaseEarlyBear])
	assert.Equal(t, model.RiskMedium, phaseRisk[model.PhaseBearMarket])
	assert.Equal(t, model.RiskHigh, phaseRisk[model.PhaseEuphoria])
}
