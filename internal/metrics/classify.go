package metrics

import (
	"errors"

	"github.com/Mesteriis/crypto-inspector-sub001/internal/model"
)

func classify(err error) string {
	switch {
	case errors.Is(err, model.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, model.ErrUnsupportedInterval):
		return "unsupported_interval"
	case errors.Is(err, model.ErrParse):
		return "parse"
	case errors.Is(err, model.ErrTransport):
		return "transport"
	default:
		return "other"
	}
}
