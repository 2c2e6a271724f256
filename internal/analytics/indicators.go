// Package analytics holds the pure computation layer: indicators, chart
// patterns, the halving-cycle classifier, and the composite scoring
// engine. Nothing here performs I/O; every function is deterministic over
// its inputs.
package analytics

import (
	"math"

	"github.com/Mesteriis/crypto-inspector-sub001/internal/model"
)

// SMA is the arithmetic mean of the last n values. Nil when the window is
// short.
func SMA(series []float64, n int) *float64 {
	if n <= 0 || len(series) < n {
		return nil
	}
	var sum float64
	for _, v := range series[len(series)-n:] {
		sum += v
	}
	return ptr(sum / float64(n))
}

// EMA returns the last value of the exponential moving average with
// smoothing 2/(n+1), seeded with SMA(n) at position n-1.
func EMA(series []float64, n int) *float64 {
	s := emaSeries(series, n)
	if len(s) == 0 {
		return nil
	}
	return ptr(s[len(s)-1])
}

// emaSeries computes the EMA for every position from n-1 onward. The
// returned slice starts at input index n-1.
func emaSeries(series []float64, n int) []float64 {
	if n <= 0 || len(series) < n {
		return nil
	}
	out := make([]float64, 0, len(series)-n+1)
	var seed float64
	for _, v := range series[:n] {
		seed += v
	}
	seed /= float64(n)
	out = append(out, seed)
	alpha := 2.0 / (float64(n) + 1)
	prev := seed
	for _, v := range series[n:] {
		prev = (v-prev)*alpha + prev
		out = append(out, prev)
	}
	return out
}

// RSI computes Wilder's relative strength index. Defined only when at
// least period+1 closes are available.
func RSI(series []float64, period int) *float64 {
	if period <= 0 || len(series) < period+1 {
		return nil
	}
	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		d := series[i] - series[i-1]
		if d > 0 {
			avgGain += d
		} else {
			avgLoss -= d
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	for i := period + 1; i < len(series); i++ {
		d := series[i] - series[i-1]
		var gain, loss float64
		if d > 0 {
			gain = d
		} else {
			loss = -d
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}
	if avgLoss == 0 {
		return ptr(100.0)
	}
	rs := avgGain / avgLoss
	return ptr(100 - 100/(1+rs))
}

// MACD returns the 12/26 line, its 9-period signal, and the histogram.
// The signal needs 26+9-1 closes; before that the corresponding outputs
// are nil.
func MACD(series []float64) (line, signal, histogram *float64) {
	fast := emaSeries(series, 12)
	slow := emaSeries(series, 26)
	if len(slow) == 0 {
		return nil, nil, nil
	}
	// Align the fast series to where the slow one starts.
	fast = fast[len(fast)-len(slow):]
	diffs := make([]float64, len(slow))
	for i := range slow {
		diffs[i] = fast[i] - slow[i]
	}
	line = ptr(diffs[len(diffs)-1])
	sig := emaSeries(diffs, 9)
	if len(sig) == 0 {
		return line, nil, nil
	}
	signal = ptr(sig[len(sig)-1])
	histogram = ptr(*line - *signal)
	return line, signal, histogram
}

// Bollinger computes the 20/2 bands and the position of price inside
// them, 0 at the lower band and 100 at the upper, clamped.
func Bollinger(series []float64, n int, k float64, price float64) (upper, middle, lower, position *float64) {
	mid := SMA(series, n)
	if mid == nil {
		return nil, nil, nil, nil
	}
	window := series[len(series)-n:]
	var sq float64
	for _, v := range window {
		d := v - *mid
		sq += d * d
	}
	// Sample standard deviation.
	std := math.Sqrt(sq / float64(n-1))
	up := *mid + k*std
	lo := *mid - k*std
	pos := 50.0
	if up > lo {
		pos = clamp((price-lo)/(up-lo)*100, 0, 100)
	}
	return ptr(up), mid, ptr(lo), ptr(pos)
}

// VolumeRatio compares the last bar's volume to the n-bar average.
func VolumeRatio(volumes []float64, n int) *float64 {
	avg := SMA(volumes, n)
	if avg == nil || *avg == 0 {
		return nil
	}
	return ptr(volumes[len(volumes)-1] / *avg)
}

// ComputeIndicators assembles the full indicator bundle for one candle
// window. Fields whose lookback exceeds the window come back nil.
func ComputeIndicators(symbol model.Symbol, timeframe model.Interval, candles []model.Candle) model.TechnicalIndicators {
	out := model.TechnicalIndicators{Symbol: symbol, Timeframe: timeframe}
	if len(candles) == 0 {
		return out
	}
	last := candles[len(candles)-1]
	out.Timestamp = last.Timestamp
	out.Price = last.CloseF()

	closes := make([]float64, len(candles))
	volumes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.CloseF()
		volumes[i], _ = c.Volume.Float64()
	}

	out.SMA50 = SMA(closes, 50)
	out.SMA200 = SMA(closes, 200)
	out.EMA12 = EMA(closes, 12)
	out.EMA26 = EMA(closes, 26)
	out.RSI = RSI(closes, 14)
	out.MACD, out.MACDSignal, out.MACDHistogram = MACD(closes)
	out.BBUpper, out.BBMiddle, out.BBLower, out.BBPosition = Bollinger(closes, 20, 2, out.Price)
	out.VolumeRatio = VolumeRatio(volumes, 20)
	return out
}

func ptr(v float64) *float64 { return &v }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
