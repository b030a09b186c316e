package dydx

import (
	"errors"
	"strings"
	"time"

	"dydx-broker/internal/entity"
)

var (
	ErrCancelMissingBlock = errors.New("short-term cancel requires good_til_block")
	ErrCancelBadTime      = errors.New("good_til_block_time is not a valid RFC 3339 timestamp")
)

// BuildCancel reconstructs an order identifier and pairs it with the expiry
// bound the chain expects: long-term orders (flags 64) are cancelled with a
// time bound, short-term orders with a block bound. The order flags select
// the expiry kind unambiguously; the corresponding field must be present or
// defaultable.
func (b *Builder) BuildCancel(req entity.CancelRequest) (*entity.OrderCancel, error) {
	cancel := &entity.OrderCancel{
		ID: entity.OrderID{
			Address:          b.address,
			SubaccountNumber: req.SubaccountNumber,
			ClientID:         req.ClientID,
			ClobPairID:       req.ClobPairID,
			OrderFlags:       req.OrderFlags,
		},
	}

	if req.OrderFlags == entity.OrderFlagsLongTerm {
		raw := strings.TrimSpace(req.GoodTilBlockTime)
		if raw == "" {
			cancel.GoodTilBlockTime = b.now().Unix() + entity.LongTermExpiry
			return cancel, nil
		}

		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, ErrCancelBadTime
		}
		cancel.GoodTilBlockTime = parsed.Unix()
		return cancel, nil
	}

	if req.GoodTilBlock == 0 {
		return nil, ErrCancelMissingBlock
	}
	cancel.GoodTilBlock = req.GoodTilBlock

	return cancel, nil
}
