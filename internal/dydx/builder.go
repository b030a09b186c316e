package dydx

import (
	"math/rand"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"dydx-broker/internal/entity"
)

var decimalOne = decimal.NewFromInt(1)

// Builder assembles and validates order descriptors for a single wallet.
// It holds no state about open orders; every call is independent.
type Builder struct {
	address string

	now      func() time.Time
	clientID func() uint32
}

func NewBuilder(address string) *Builder {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	return &Builder{
		address: address,
		now:     time.Now,
		clientID: func() uint32 {
			// Int63n draws uniformly from [0, MaxClientID] inclusive.
			return uint32(rng.Int63n(int64(entity.MaxClientID) + 1))
		},
	}
}

// BuildOrder computes the effective price, expiry and identifier for the
// requested order against a fresh market snapshot. Validation failures are
// returned before any network call; the only external reading the caller
// must supply is currentBlock, needed for short-term expiry.
func (b *Builder) BuildOrder(req entity.OrderRequest, snapshot entity.MarketSnapshot, currentBlock uint32) (*entity.OrderDescriptor, error) {
	if !req.Size.GreaterThan(decimal.Zero) {
		return nil, ErrInvalidSize
	}

	slippage := decimal.Zero
	if req.Slippage != nil {
		slippage = *req.Slippage
	}
	if slippage.IsNegative() {
		return nil, ErrInvalidSlippage
	}

	side := entity.OrderSide(strings.ToUpper(string(req.Side)))
	if side != entity.OrderSideBuy && side != entity.OrderSideSell {
		return nil, &InvalidSideError{Side: string(req.Side)}
	}

	orderType := entity.OrderTypeMarket
	if req.Price != nil && !req.Price.IsZero() {
		orderType = entity.OrderTypeLimit
	}

	var price decimal.Decimal
	switch orderType {
	case entity.OrderTypeMarket:
		// The slippage factor is applied in exact decimal arithmetic; the
		// result is the worst acceptable fill price for the taker.
		if side == entity.OrderSideBuy {
			price = snapshot.OraclePrice.Mul(decimalOne.Add(slippage))
		} else {
			price = snapshot.OraclePrice.Mul(decimalOne.Sub(slippage))
		}
	case entity.OrderTypeLimit:
		price = *req.Price

		// Sanity guard against crossing the market further than intended.
		// The exchange does not enforce this; we do, before broadcast.
		if side == entity.OrderSideBuy && price.GreaterThan(snapshot.OraclePrice) {
			return nil, &InvalidPriceError{
				Market:      req.MarketID,
				Side:        side,
				Price:       price,
				OraclePrice: snapshot.OraclePrice,
			}
		}
		if side == entity.OrderSideSell && price.LessThan(snapshot.OraclePrice) {
			return nil, &InvalidPriceError{
				Market:      req.MarketID,
				Side:        side,
				Price:       price,
				OraclePrice: snapshot.OraclePrice,
			}
		}
	}

	orderFlags := entity.OrderFlagsShortTerm
	if orderType == entity.OrderTypeLimit {
		orderFlags = entity.OrderFlagsLongTerm
	}

	descriptor := &entity.OrderDescriptor{
		ID: entity.OrderID{
			Address:          b.address,
			SubaccountNumber: req.SubaccountNumber,
			ClientID:         b.clientID(),
			ClobPairID:       snapshot.ClobPairID,
			OrderFlags:       orderFlags,
		},
		Type:       orderType,
		Side:       side,
		Size:       req.Size,
		Price:      price,
		ReduceOnly: req.ReduceOnly,
	}

	switch orderType {
	case entity.OrderTypeMarket:
		descriptor.GoodTilBlock = currentBlock + entity.MarketBlockWindow
		descriptor.TimeInForce = entity.TimeInForceIOC
	case entity.OrderTypeLimit:
		descriptor.GoodTilBlockTime = b.now().Unix() + entity.LongTermExpiry
		descriptor.TimeInForce = entity.TimeInForcePostOnly
	}

	return descriptor, nil
}

// InterpretTxResponse maps a broadcast response to a receipt or to the
// named failure kinds. Codes 2001 and 9003 both mean the order was marked
// reduce-only but could not be honored as such.
func InterpretTxResponse(orderID entity.OrderID, tx entity.TxResponse) (*entity.OrderReceipt, error) {
	switch tx.Code {
	case TxCodeSuccess:
		return &entity.OrderReceipt{OrderID: orderID, Tx: tx}, nil
	case TxCodeReduceOnlyViolation, TxCodeReduceOnlyUnfillable:
		return nil, &ReduceOnlyOrderError{
			TxHash: tx.TxHash,
			Code:   tx.Code,
			RawLog: tx.RawLog,
		}
	default:
		return nil, &OrderRejectedError{Response: tx}
	}
}
