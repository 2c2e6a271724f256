package analytics

import (
	"time"

	"github.com/Mesteriis/crypto-inspector-sub001/internal/model"
)

// Default component weights; they sum to 1.0.
const (
	WeightTechnical   = 0.30
	WeightPatterns    = 0.20
	WeightCycle       = 0.15
	WeightDerivatives = 0.15
	WeightFearGreed   = 0.10
	WeightOnChain     = 0.10
)

const (
	fundingCrowdedLong  = 0.0005
	fundingCrowdedShort = -0.0002
)

var cycleScores = map[model.Phase]float64{
	model.PhaseCapitulation: 85,
	model.PhaseAccumulation: 75,
	model.PhaseEarlyBull:    70,
	model.PhaseBullRun:      60,
	model.PhaseEuphoria:     30,
	model.PhaseDistribution: 35,
	model.PhaseEarlyBear:    40,
	model.PhaseBearMarket:   45,
	model.PhaseUnknown:      50,
}

// ScoreInputs gathers everything the composite consumes. Any field may be
// missing; the corresponding component scores neutral.
type ScoreInputs struct {
	Symbol      model.Symbol
	Timestamp   int64
	Technical   *model.TechnicalIndicators
	Patterns    *model.PatternSummary
	Cycle       *model.CycleInfo
	Derivatives *model.DerivativesInput
	FearGreed   *int
	OnChain     *model.OnChainInput
}

// Scorer fuses the six component scores into one composite. Weights are
// fixed at construction; overrides come from the config overlay.
type Scorer struct {
	weights map[string]float64
}

func NewScorer(overrides map[string]float64) *Scorer {
	w := map[string]float64{
		"technical":   WeightTechnical,
		"patterns":    WeightPatterns,
		"cycle":       WeightCycle,
		"derivatives": WeightDerivatives,
		"fear_greed":  WeightFearGreed,
		"onchain":     WeightOnChain,
	}
	for name, v := range overrides {
		if _, ok := w[name]; ok && v >= 0 && v <= 1 {
			w[name] = v
		}
	}
	return &Scorer{weights: w}
}

// Compute builds the composite score. Deterministic: identical inputs
// always produce identical output.
func (s *Scorer) Compute(in ScoreInputs) model.CompositeScore {
	techScore, techDet := scoreTechnical(in.Technical)
	patScore, patDet := scorePatterns(in.Patterns)
	cycScore, cycDet := scoreCycle(in.Cycle)
	derScore, derDet := scoreDerivatives(in.Derivatives)
	fgScore, fgDet := scoreFearGreed(in.FearGreed)
	ocScore, ocDet := scoreOnChain(in.OnChain)

	components := []model.ComponentScore{
		s.component("technical", techScore, techDet),
		s.component("patterns", patScore, patDet),
		s.component("cycle", cycScore, cycDet),
		s.component("derivatives", derScore, derDet),
		s.component("fear_greed", fgScore, fgDet),
		s.component("onchain", ocScore, ocDet),
	}

	var weighted, weightSum float64
	for _, c := range components {
		weighted += c.WeightedScore
		weightSum += c.Weight
	}
	total := 50.0
	if weightSum > 0 {
		total = weighted / weightSum
	}
	total = clamp(total, 0, 100)

	signal, action := classifyTotal(total)
	riskScore := 100 - total

	ts := in.Timestamp
	if ts == 0 {
		ts = time.Now().UnixMilli()
	}

	return model.CompositeScore{
		Symbol:     in.Symbol,
		Timestamp:  ts,
		TotalScore: round2(total),
		Signal:     signal,
		Action:     action,
		RiskScore:  round2(riskScore),
		RiskLevel:  riskLevelFor(riskScore),
		Confidence: round2(confidence(components)),
		Components: components,
	}
}

func (s *Scorer) component(name string, score float64, details map[string]any) model.ComponentScore {
	score = clamp(score, 0, 100)
	weight := s.weights[name]
	return model.ComponentScore{
		Name:          name,
		Score:         round2(score),
		Weight:        weight,
		WeightedScore: round2(score) * weight,
		Signal:        componentSignal(score),
		Details:       details,
	}
}

func componentSignal(score float64) model.Signal {
	switch {
	case score >= 60:
		return model.SignalBullish
	case score <= 40:
		return model.SignalBearish
	default:
		return model.SignalNeutral
	}
}

func classifyTotal(total float64) (model.Signal, model.Action) {
	switch {
	case total >= 75:
		return model.SignalStrongBullish, model.ActionStrongBuy
	case total >= 60:
		return model.SignalBullish, model.ActionBuy
	case total >= 55:
		return model.SignalSlightlyBullish, model.ActionBuy
	case total <= 25:
		return model.SignalStrongBearish, model.ActionStrongSell
	case total <= 40:
		return model.SignalBearish, model.ActionSell
	case total <= 45:
		return model.SignalSlightlyBearish, model.ActionSell
	default:
		return model.SignalNeutral, model.ActionHold
	}
}

func riskLevelFor(riskScore float64) model.RiskLevel {
	switch {
	case riskScore > 70:
		return model.RiskHigh
	case riskScore > 40:
		return model.RiskMedium
	default:
		return model.RiskLow
	}
}

// confidence is the share of non-neutral components agreeing with the
// majority direction, or 50 when every component is neutral.
func confidence(components []model.ComponentScore) float64 {
	var bull, bear int
	for _, c := range components {
		switch c.Signal {
		case model.SignalBullish:
			bull++
		case model.SignalBearish:
			bear++
		}
	}
	nonNeutral := bull + bear
	if nonNeutral == 0 {
		return 50
	}
	return float64(max(bull, bear)) / float64(nonNeutral) * 100
}

func scoreTechnical(ti *model.TechnicalIndicators) (float64, map[string]any) {
	if ti == nil {
		return 50, map[string]any{"available": false}
	}
	score := 50.0
	if ti.RSI != nil {
		switch rsi := *ti.RSI; {
		case rsi < 30:
			score += 12.5
		case rsi < 45:
			score += 6
		case rsi > 70:
			score -= 12.5
		case rsi > 55:
			score -= 6
		}
	}
	if ti.SMA200 != nil {
		if ti.Price > *ti.SMA200 {
			score += 12.5
		} else {
			score -= 12.5
		}
	}
	if ti.SMA50 != nil && ti.SMA200 != nil {
		if *ti.SMA50 > *ti.SMA200 {
			score += 10
		} else {
			score -= 10
		}
	}
	if ti.MACDHistogram != nil {
		if *ti.MACDHistogram > 0 {
			score += 7.5
		} else {
			score -= 7.5
		}
	}
	if ti.BBPosition != nil {
		switch bb := *ti.BBPosition; {
		case bb < 20:
			score += 7.5
		case bb > 80:
			score -= 7.5
		}
	}
	return score, map[string]any{"price": ti.Price, "rsi": ti.RSI}
}

func scorePatterns(ps *model.PatternSummary) (float64, map[string]any) {
	if ps == nil {
		return 50, map[string]any{"available": false}
	}
	return ps.Score, map[string]any{
		"bullish_count": ps.BullishCount,
		"bearish_count": ps.BearishCount,
		"total":         ps.Total,
	}
}

func scoreCycle(ci *model.CycleInfo) (float64, map[string]any) {
	if ci == nil {
		return 50, map[string]any{"available": false}
	}
	score, ok := cycleScores[ci.Phase]
	if !ok {
		score = 50
	}
	return score, map[string]any{
		"phase":          string(ci.Phase),
		"cycle_position": ci.CyclePosition,
	}
}

func scoreDerivatives(d *model.DerivativesInput) (float64, map[string]any) {
	if d == nil {
		return 50, map[string]any{"available": false}
	}
	score := 50.0
	details := map[string]any{}
	if d.FundingRate != nil {
		details["funding_rate"] = *d.FundingRate
		if *d.FundingRate > fundingCrowdedLong {
			score -= 15
		} else if *d.FundingRate < fundingCrowdedShort {
			score += 15
		}
	}
	if d.LongShortRatio != nil {
		details["long_short_ratio"] = *d.LongShortRatio
		if *d.LongShortRatio > 1.5 {
			score -= 10
		} else if *d.LongShortRatio < 0.67 {
			score += 10
		}
	}
	if d.OIChange24h != nil {
		details["oi_change_24h"] = *d.OIChange24h
	}
	return score, details
}

// scoreFearGreed is contrarian: extreme fear scores bullish.
func scoreFearGreed(v *int) (float64, map[string]any) {
	if v == nil {
		return 50, map[string]any{"available": false}
	}
	details := map[string]any{"value": *v}
	switch {
	case *v < 25:
		return 80, details
	case *v < 45:
		return 65, details
	case *v > 75:
		return 20, details
	case *v > 55:
		return 35, details
	default:
		return 50, details
	}
}

func scoreOnChain(oc *model.OnChainInput) (float64, map[string]any) {
	if oc == nil {
		return 50, map[string]any{"available": false}
	}
	score := 50.0
	details := map[string]any{}
	if oc.MVRV != nil {
		details["mvrv"] = *oc.MVRV
		if *oc.MVRV < 1.0 {
			score += 15
		} else if *oc.MVRV > 3.5 {
			score -= 15
		}
	}
	if oc.ExchangeReservesChange != nil {
		details["exchange_reserves_change"] = *oc.ExchangeReservesChange
		if *oc.ExchangeReservesChange < -5 {
			score += 10
		} else if *oc.ExchangeReservesChange > 5 {
			score -= 10
		}
	}
	return score, details
}
