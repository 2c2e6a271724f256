package analytics

import (
	"math"
	"time"

	"github.com/Mesteriis/crypto-inspector-sub001/internal/model"
)

// cycleDays is the assumed halving cadence. The real cadence drifts with
// block times; a fixed four years is the working assumption.
const cycleDays = 1460

// LastHalving is the most recent Bitcoin halving.
var LastHalving = time.Date(2024, time.April, 20, 0, 0, 0, 0, time.UTC)

var phaseRisk = map[model.Phase]model.RiskLevel{
	model.PhaseAccumulation: model.RiskLow,
	model.PhaseEarlyBull:    model.RiskLow,
	model.PhaseCapitulation: model.RiskLow,
	model.PhaseBullRun:      model.RiskMedium,
	model.PhaseDistribution: model.RiskMedium,
	model.PhaseEarlyBear:    model.RiskMedium,
	model.PhaseBearMarket:   model.RiskMedium,
	model.PhaseEuphoria:     model.RiskHigh,
	model.PhaseUnknown:      model.RiskMedium,
}

// ClassifyPhase walks the ordered phase decision table; the first
// matching rule wins. rsi may be nil.
func ClassifyPhase(currentPrice, ath, atl float64, daysSinceHalving int, rsi *float64) model.Phase {
	if ath <= 0 {
		return model.PhaseUnknown
	}
	fromATH := (ath - currentPrice) / ath * 100
	days := float64(daysSinceHalving)

	switch {
	case fromATH <= 3:
		return model.PhaseEuphoria
	case fromATH <= 20 && days <= 730:
		return model.PhaseBullRun
	case fromATH <= 20:
		return model.PhaseDistribution
	case rsi != nil && *rsi < 30 && fromATH >= 60 && days >= 540:
		return model.PhaseCapitulation
	case days >= 180 && days <= 365 && fromATH >= 30:
		return model.PhaseEarlyBull
	case days >= 720 && fromATH >= 50:
		return model.PhaseBearMarket
	case days >= 540 && days <= 730 && fromATH >= 40:
		return model.PhaseEarlyBear
	case fromATH >= 50:
		return model.PhaseAccumulation
	default:
		return model.PhaseUnknown
	}
}

// AnalyzeCycle classifies the phase and fills in the derived cycle
// metrics. now anchors the halving arithmetic so callers can pin it in
// tests.
func AnalyzeCycle(currentPrice, ath, atl float64, rsi *float64, now time.Time) model.CycleInfo {
	days := int(now.Sub(LastHalving).Hours() / 24)
	if days < 0 {
		days = 0
	}
	next := LastHalving.AddDate(0, 0, cycleDays)

	phase := ClassifyPhase(currentPrice, ath, atl, days, rsi)

	var fromATH, fromATL float64
	if ath > 0 {
		fromATH = (ath - currentPrice) / ath * 100
	}
	if atl > 0 {
		fromATL = (currentPrice - atl) / atl * 100
	}

	confidence := 50.0
	if rsi != nil {
		confidence = 70.0
	}

	return model.CycleInfo{
		Phase:              phase,
		LastHalvingDate:    LastHalving.Format("2006-01-02"),
		NextHalvingDate:    next.Format("2006-01-02"),
		DaysSinceHalving:   days,
		DaysToNextHalving:  cycleDays - days%cycleDays,
		CurrentPrice:       currentPrice,
		ATH:                ath,
		ATL:                atl,
		DistanceFromATHPct: round2(fromATH),
		DistanceFromATLPct: round2(fromATL),
		CyclePosition:      round2(float64(days%cycleDays) / cycleDays * 100),
		Confidence:         confidence,
		RiskLevel:          phaseRisk[phase],
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
