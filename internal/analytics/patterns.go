package analytics

import (
	"math"

	"github.com/Mesteriis/crypto-inspector-sub001/internal/model"
)

const (
	patternWindow      = 50
	doubleExtremeTol   = 0.02 // extrema within 2% count as a retest
	doubleExtremeGap   = 5    // bars apart, minimum
	doubleExtremeScan  = 30   // most recent bars scanned
	minStreak          = 5
	minHighLowSequence = 3
	patternScoreScale  = 0.5 // score units per net strength point
)

// DetectPatterns scans the most recent window for chart patterns. Fewer
// than patternWindow candles yields an empty summary.
func DetectPatterns(candles []model.Candle) (model.PatternSummary, []model.DetectedPattern) {
	if len(candles) < patternWindow {
		return summarize(nil), nil
	}
	window := candles[len(candles)-patternWindow:]

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.CloseF()
	}

	var patterns []model.DetectedPattern
	add := func(p *model.DetectedPattern) {
		if p != nil {
			p.Strength = clamp(p.Strength, 0, 100)
			patterns = append(patterns, *p)
		}
	}

	add(detectMACross(closes))
	add(detectRSIExtreme(closes))
	add(detectBollingerBreakout(closes))
	add(detectStreak(window))
	add(detectHighLowSequence(window))
	add(detectDoubleExtreme(window, true))
	add(detectDoubleExtreme(window, false))

	return summarize(patterns), patterns
}

func summarize(patterns []model.DetectedPattern) model.PatternSummary {
	s := model.PatternSummary{
		Total:           len(patterns),
		BullishPatterns: []string{},
		BearishPatterns: []string{},
	}
	var bullStrength, bearStrength float64
	for _, p := range patterns {
		if p.Bullish {
			s.BullishCount++
			s.BullishPatterns = append(s.BullishPatterns, p.Name)
			bullStrength += p.Strength
		} else {
			s.BearishCount++
			s.BearishPatterns = append(s.BearishPatterns, p.Name)
			bearStrength += p.Strength
		}
	}
	s.Score = clamp(50+patternScoreScale*(bullStrength-bearStrength), 0, 100)
	return s
}

// detectMACross reports a golden or death cross on the last bar-to-bar
// transition of SMA50 vs SMA200.
func detectMACross(closes []float64) *model.DetectedPattern {
	if len(closes) < 201 {
		return nil
	}
	fastNow := SMA(closes, 50)
	slowNow := SMA(closes, 200)
	prev := closes[:len(closes)-1]
	fastPrev := SMA(prev, 50)
	slowPrev := SMA(prev, 200)
	if fastNow == nil || slowNow == nil || fastPrev == nil || slowPrev == nil {
		return nil
	}
	if *fastPrev <= *slowPrev && *fastNow > *slowNow {
		return &model.DetectedPattern{Name: "golden_cross", Bullish: true, Strength: 80}
	}
	if *fastPrev >= *slowPrev && *fastNow < *slowNow {
		return &model.DetectedPattern{Name: "death_cross", Bullish: false, Strength: 80}
	}
	return nil
}

// detectRSIExtreme flags oversold/overbought with strength growing as RSI
// moves past the boundary.
func detectRSIExtreme(closes []float64) *model.DetectedPattern {
	rsi := RSI(closes, 14)
	if rsi == nil {
		return nil
	}
	switch {
	case *rsi < 30:
		return &model.DetectedPattern{Name: "rsi_oversold", Bullish: true, Strength: 50 + (30-*rsi)/30*50}
	case *rsi > 70:
		return &model.DetectedPattern{Name: "rsi_overbought", Bullish: false, Strength: 50 + (*rsi-70)/30*50}
	}
	return nil
}

func detectBollingerBreakout(closes []float64) *model.DetectedPattern {
	price := closes[len(closes)-1]
	upper, _, lower, _ := Bollinger(closes, 20, 2, price)
	if upper == nil {
		return nil
	}
	if price > *upper {
		return &model.DetectedPattern{Name: "bb_breakout_up", Bullish: true, Strength: 60}
	}
	if price < *lower {
		return &model.DetectedPattern{Name: "bb_breakout_down", Bullish: false, Strength: 60}
	}
	return nil
}

// detectStreak counts consecutive up or down closes ending at the last
// bar.
func detectStreak(window []model.Candle) *model.DetectedPattern {
	if len(window) < 2 {
		return nil
	}
	up, down := 0, 0
	for i := len(window) - 1; i > 0; i-- {
		d := window[i].CloseF() - window[i-1].CloseF()
		if d > 0 && down == 0 {
			up++
		} else if d < 0 && up == 0 {
			down++
		} else {
			break
		}
	}
	if up >= minStreak {
		return &model.DetectedPattern{Name: "up_streak", Bullish: true, Strength: float64(up) * 12}
	}
	if down >= minStreak {
		return &model.DetectedPattern{Name: "down_streak", Bullish: false, Strength: float64(down) * 12}
	}
	return nil
}

// detectHighLowSequence looks for runs of higher highs or lower lows at
// the tail of the window.
func detectHighLowSequence(window []model.Candle) *model.DetectedPattern {
	higher, lower := 0, 0
	for i := len(window) - 1; i > 0; i-- {
		h0, _ := window[i-1].High.Float64()
		h1, _ := window[i].High.Float64()
		if h1 > h0 {
			higher++
		} else {
			break
		}
	}
	for i := len(window) - 1; i > 0; i-- {
		l0, _ := window[i-1].Low.Float64()
		l1, _ := window[i].Low.Float64()
		if l1 < l0 {
			lower++
		} else {
			break
		}
	}
	if higher >= minHighLowSequence {
		return &model.DetectedPattern{Name: "higher_highs", Bullish: true, Strength: float64(higher) * 15}
	}
	if lower >= minHighLowSequence {
		return &model.DetectedPattern{Name: "lower_lows", Bullish: false, Strength: float64(lower) * 15}
	}
	return nil
}

// detectDoubleExtreme finds double tops (bearish) or double bottoms
// (bullish): two local extrema within tolerance of each other, at least
// doubleExtremeGap bars apart, inside the most recent scan range.
func detectDoubleExtreme(window []model.Candle, bottom bool) *model.DetectedPattern {
	scan := window
	if len(scan) > doubleExtremeScan {
		scan = scan[len(scan)-doubleExtremeScan:]
	}
	var extrema []int
	for i := 1; i < len(scan)-1; i++ {
		v := extremeValue(scan[i], bottom)
		prev := extremeValue(scan[i-1], bottom)
		next := extremeValue(scan[i+1], bottom)
		if bottom {
			if v < prev && v < next {
				extrema = append(extrema, i)
			}
		} else {
			if v > prev && v > next {
				extrema = append(extrema, i)
			}
		}
	}
	for a := 0; a < len(extrema); a++ {
		for b := a + 1; b < len(extrema); b++ {
			if extrema[b]-extrema[a] < doubleExtremeGap {
				continue
			}
			va := extremeValue(scan[extrema[a]], bottom)
			vb := extremeValue(scan[extrema[b]], bottom)
			if va == 0 {
				continue
			}
			if math.Abs(vb-va)/va <= doubleExtremeTol {
				if bottom {
					return &model.DetectedPattern{Name: "double_bottom", Bullish: true, Strength: 70}
				}
				return &model.DetectedPattern{Name: "double_top", Bullish: false, Strength: 70}
			}
		}
	}
	return nil
}

func extremeValue(c model.Candle, bottom bool) float64 {
	if bottom {
		v, _ := c.Low.Float64()
		return v
	}
	v, _ := c.High.Float64()
	return v
}
