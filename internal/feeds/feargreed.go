package feeds

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Mesteriis/crypto-inspector-sub001/internal/model"
)

const fearGreedBase = "https://api.alternative.me"

// FearGreedFeed reads the alternative.me crypto fear & greed index.
type FearGreedFeed struct {
	baseURL string
	client  *http.Client
}

func NewFearGreedFeed(timeout time.Duration) *FearGreedFeed {
	return &FearGreedFeed{
		baseURL: fearGreedBase,
		client:  newFeedClient(timeout),
	}
}

type fngResponse struct {
	Data []struct {
		Value          string `json:"value"`
		Classification string `json:"value_classification"`
	} `json:"data"`
}

// Fetch returns the current index value, 0..100.
func (f *FearGreedFeed) Fetch(ctx context.Context) (*int, error) {
	var resp fngResponse
	if err := getFeedJSON(ctx, f.client, f.baseURL+"/fng/?limit=1", &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: empty fear & greed response", model.ErrParse)
	}
	v, err := strconv.Atoi(resp.Data[0].Value)
	if err != nil || v < 0 || v > 100 {
		return nil, fmt.Errorf("%w: fear & greed value %q", model.ErrParse, resp.Data[0].Value)
	}
	return &v, nil
}
