package model

// Signal classifies a score's direction. Components use the plain three;
// the composite adds the strong/slight gradations.
type Signal string

const (
	SignalStrongBullish   Signal = "strong_bullish"
	SignalBullish         Signal = "bullish"
	SignalSlightlyBullish Signal = "slightly_bullish"
	SignalNeutral         Signal = "neutral"
	SignalSlightlyBearish Signal = "slightly_bearish"
	SignalBearish         Signal = "bearish"
	SignalStrongBearish   Signal = "strong_bearish"
)

// Action is the trading stance derived from the composite score.
type Action string

const (
	ActionStrongBuy  Action = "strong_buy"
	ActionBuy        Action = "buy"
	ActionHold       Action = "hold"
	ActionSell       Action = "sell"
	ActionStrongSell Action = "strong_sell"
)

// RiskLevel buckets risk for consumers that only want a traffic light.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Phase is a halving-anchored market cycle phase.
type Phase string

const (
	PhaseAccumulation Phase = "accumulation"
	PhaseEarlyBull    Phase = "early_bull"
	PhaseBullRun      Phase = "bull_run"
	PhaseEuphoria     Phase = "euphoria"
	PhaseDistribution Phase = "distribution"
	PhaseEarlyBear    Phase = "early_bear"
	PhaseBearMarket   Phase = "bear_market"
	PhaseCapitulation Phase = "capitulation"
	PhaseUnknown      Phase = "unknown"
)

// TechnicalIndicators is the indicator bundle for one (symbol, timeframe,
// timestamp). Nil fields mean the underlying window was unavailable; they
// are serialized as explicit nulls so consumers can type-check.
type TechnicalIndicators struct {
	Symbol        Symbol   `json:"symbol"`
	Timeframe     Interval `json:"timeframe"`
	Timestamp     int64    `json:"timestamp"`
	Price         float64  `json:"price"`
	SMA50         *float64 `json:"sma_50"`
	SMA200        *float64 `json:"sma_200"`
	EMA12         *float64 `json:"ema_12"`
	EMA26         *float64 `json:"ema_26"`
	RSI           *float64 `json:"rsi"`
	MACD          *float64 `json:"macd"`
	MACDSignal    *float64 `json:"macd_signal"`
	MACDHistogram *float64 `json:"macd_histogram"`
	BBUpper       *float64 `json:"bb_upper"`
	BBMiddle      *float64 `json:"bb_middle"`
	BBLower       *float64 `json:"bb_lower"`
	BBPosition    *float64 `json:"bb_position"`
	VolumeRatio   *float64 `json:"volume_ratio"`
}

// DetectedPattern is one chart pattern hit inside the analysis window.
type DetectedPattern struct {
	Name     string  `json:"name"`
	Bullish  bool    `json:"bullish"`
	Strength float64 `json:"strength"`
}

// PatternSummary aggregates detected patterns into counts and a 0..100
// score centered at 50.
type PatternSummary struct {
	BullishCount    int      `json:"bullish_count"`
	BearishCount    int      `json:"bearish_count"`
	Total           int      `json:"total"`
	Score           float64  `json:"score"`
	BullishPatterns []string `json:"bullish_patterns"`
	BearishPatterns []string `json:"bearish_patterns"`
}

// Signal reports the summary direction by majority count.
func (p PatternSummary) Signal() Signal {
	switch {
	case p.BullishCount > p.BearishCount:
		return SignalBullish
	case p.BearishCount > p.BullishCount:
		return SignalBearish
	default:
		return SignalNeutral
	}
}

// CycleInfo describes where the market sits in the halving cycle.
type CycleInfo struct {
	Phase               Phase     `json:"phase"`
	LastHalvingDate     string    `json:"last_halving_date"`
	NextHalvingDate     string    `json:"next_halving_date"`
	DaysSinceHalving    int       `json:"days_since_halving"`
	DaysToNextHalving   int       `json:"days_to_next_halving"`
	CurrentPrice        float64   `json:"current_price"`
	ATH                 float64   `json:"ath"`
	ATL                 float64   `json:"atl"`
	DistanceFromATHPct  float64   `json:"distance_from_ath_pct"`
	DistanceFromATLPct  float64   `json:"distance_from_atl_pct"`
	CyclePosition       float64   `json:"cycle_position"`
	Confidence          float64   `json:"confidence"`
	RiskLevel           RiskLevel `json:"risk_level"`
}

// ComponentScore is one weighted input to the composite.
// WeightedScore is always Score*Weight.
type ComponentScore struct {
	Name          string         `json:"name"`
	Score         float64        `json:"score"`
	Weight        float64        `json:"weight"`
	WeightedScore float64        `json:"weighted_score"`
	Signal        Signal         `json:"signal"`
	Details       map[string]any `json:"details"`
}

// CompositeScore is the fused market view handed to the sensor publisher.
type CompositeScore struct {
	Symbol     Symbol           `json:"symbol"`
	Timestamp  int64            `json:"timestamp"`
	TotalScore float64          `json:"total_score"`
	Signal     Signal           `json:"signal"`
	Action     Action           `json:"action"`
	RiskScore  float64          `json:"risk_score"`
	RiskLevel  RiskLevel        `json:"risk_level"`
	Confidence float64          `json:"confidence"`
	Components []ComponentScore `json:"components"`
}

// DerivativesInput carries the optional perp-market inputs. Nil means the
// feed had nothing; scoring treats absence as neutral.
type DerivativesInput struct {
	FundingRate    *float64 `json:"funding_rate"`
	LongShortRatio *float64 `json:"long_short_ratio"`
	OIChange24h    *float64 `json:"oi_change_24h"`
}

// OnChainInput carries the optional on-chain valuation inputs.
type OnChainInput struct {
	MVRV                   *float64 `json:"mvrv"`
	ExchangeReservesChange *float64 `json:"exchange_reserves_change"`
}
