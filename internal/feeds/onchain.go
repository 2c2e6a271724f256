package feeds

import (
	"context"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/Mesteriis/crypto-inspector-sub001/internal/model"
)

// OnChainFeed sources the optional valuation inputs. No free public API
// serves MVRV or exchange reserve flows, so values arrive through the
// environment, refreshed by whatever tooling the operator runs:
//
//	ONCHAIN_MVRV                     market-value-to-realized-value ratio
//	ONCHAIN_EXCHANGE_RESERVES_CHANGE percent change of exchange reserves
//
// Unset or malformed values leave the field nil and the component neutral.
type OnChainFeed struct {
	lookup func(string) (string, bool)
}

func NewOnChainFeed() *OnChainFeed {
	return &OnChainFeed{lookup: os.LookupEnv}
}

func (f *OnChainFeed) Fetch(_ context.Context, _ model.Symbol) model.OnChainInput {
	return model.OnChainInput{
		MVRV:                   f.float("ONCHAIN_MVRV"),
		ExchangeReservesChange: f.float("ONCHAIN_EXCHANGE_RESERVES_CHANGE"),
	}
}

func (f *OnChainFeed) float(key string) *float64 {
	raw, ok := f.lookup(key)
	if !ok || raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Warn().Str("key", key).Str("value", raw).Msg("ignoring unparseable on-chain input")
		return nil
	}
	return &v
}
