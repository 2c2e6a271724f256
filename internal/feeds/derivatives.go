package feeds

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Mesteriis/crypto-inspector-sub001/internal/model"
)

const binanceFuturesBase = "https://fapi.binance.com"

// DerivativesFeed reads funding, positioning, and open-interest data from
// the Binance perp market.
type DerivativesFeed struct {
	baseURL string
	client  *http.Client
}

func NewDerivativesFeed(timeout time.Duration) *DerivativesFeed {
	return &DerivativesFeed{
		baseURL: binanceFuturesBase,
		client:  newFeedClient(timeout),
	}
}

type premiumIndex struct {
	LastFundingRate string `json:"lastFundingRate"`
}

type longShortRow struct {
	LongShortRatio string `json:"longShortRatio"`
}

type openInterestRow struct {
	SumOpenInterest string `json:"sumOpenInterest"`
	Timestamp       int64  `json:"timestamp"`
}

// Fetch gathers the three derivatives inputs for one symbol. Each input
// fails independently; a provider hiccup leaves the field nil rather than
// failing the batch.
func (f *DerivativesFeed) Fetch(ctx context.Context, symbol model.Symbol) model.DerivativesInput {
	perp := symbol.Join("")
	var in model.DerivativesInput

	if v, err := f.fundingRate(ctx, perp); err != nil {
		log.Warn().Err(err).Stringer("symbol", symbol).Msg("funding rate unavailable")
	} else {
		in.FundingRate = v
	}
	if v, err := f.longShortRatio(ctx, perp); err != nil {
		log.Warn().Err(err).Stringer("symbol", symbol).Msg("long/short ratio unavailable")
	} else {
		in.LongShortRatio = v
	}
	if v, err := f.oiChange24h(ctx, perp); err != nil {
		log.Warn().Err(err).Stringer("symbol", symbol).Msg("open interest unavailable")
	} else {
		in.OIChange24h = v
	}
	return in
}

func (f *DerivativesFeed) fundingRate(ctx context.Context, perp string) (*float64, error) {
	var idx premiumIndex
	url := fmt.Sprintf("%s/fapi/v1/premiumIndex?symbol=%s", f.baseURL, perp)
	if err := getFeedJSON(ctx, f.client, url, &idx); err != nil {
		return nil, err
	}
	v, err := strconv.ParseFloat(idx.LastFundingRate, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: funding rate %q", model.ErrParse, idx.LastFundingRate)
	}
	return &v, nil
}

func (f *DerivativesFeed) longShortRatio(ctx context.Context, perp string) (*float64, error) {
	var rows []longShortRow
	url := fmt.Sprintf("%s/futures/data/globalLongShortAccountRatio?symbol=%s&period=1h&limit=1", f.baseURL, perp)
	if err := getFeedJSON(ctx, f.client, url, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: empty long/short response", model.ErrParse)
	}
	v, err := strconv.ParseFloat(rows[0].LongShortRatio, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: long/short ratio %q", model.ErrParse, rows[0].LongShortRatio)
	}
	return &v, nil
}

// oiChange24h compares the two most recent daily open-interest points and
// returns the percentage change.
func (f *DerivativesFeed) oiChange24h(ctx context.Context, perp string) (*float64, error) {
	var rows []openInterestRow
	url := fmt.Sprintf("%s/futures/data/openInterestHist?symbol=%s&period=1d&limit=2", f.baseURL, perp)
	if err := getFeedJSON(ctx, f.client, url, &rows); err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("%w: need two open-interest points, got %d", model.ErrParse, len(rows))
	}
	prev, err := strconv.ParseFloat(rows[0].SumOpenInterest, 64)
	if err != nil || prev == 0 {
		return nil, fmt.Errorf("%w: open interest %q", model.ErrParse, rows[0].SumOpenInterest)
	}
	cur, err := strconv.ParseFloat(rows[1].SumOpenInterest, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: open interest %q", model.ErrParse, rows[1].SumOpenInterest)
	}
	change := (cur - prev) / prev * 100
	return &change, nil
}
