package entity

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type OrderType string
type OrderSide string
type TimeInForce string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"

	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeMarket OrderType = "MARKET"

	TimeInForceUnspecified TimeInForce = "UNSPECIFIED"
	TimeInForceIOC         TimeInForce = "IOC"
	TimeInForcePostOnly    TimeInForce = "POST_ONLY"
)

// Order flags select the order lifetime on chain: short-term orders expire at
// a block height, long-term (stateful) orders at a wall-clock time.
const (
	OrderFlagsShortTerm   uint32 = 0
	OrderFlagsConditional uint32 = 32
	OrderFlagsLongTerm    uint32 = 64
)

// MaxClientID is the protocol upper bound for client-chosen order ids.
const MaxClientID = uint32(4294967295)

// MarketBlockWindow is how many blocks ahead a short-term order stays live.
const MarketBlockWindow = uint32(10)

// LongTermExpiry is the resting lifetime of a stateful order in seconds (30 days).
const LongTermExpiry = int64(30 * 24 * 60 * 60)

// OrderRequest is the caller's intent. A nil Price means a market order; a
// nil Slippage means the default applies, while an explicit zero is honored.
type OrderRequest struct {
	RequestID        string
	MarketID         string
	Side             OrderSide
	Size             decimal.Decimal
	Price            *decimal.Decimal
	Slippage         *decimal.Decimal
	ReduceOnly       bool
	SubaccountNumber uint32
}

type OrderRequestEvent struct {
	RetryCount int          `json:"retry"`
	Data       OrderRequest `json:"data"`
}

// OrderID is the client-assigned identifier the chain uses to address an order.
type OrderID struct {
	Address          string `json:"address"`
	SubaccountNumber uint32 `json:"subaccount_number"`
	ClientID         uint32 `json:"client_id"`
	ClobPairID       uint32 `json:"clob_pair_id"`
	OrderFlags       uint32 `json:"order_flags"`
}

func (id OrderID) String() string {
	return fmt.Sprintf("%s/%d/%d/%d/%d", id.Address, id.SubaccountNumber, id.ClientID, id.ClobPairID, id.OrderFlags)
}

// OrderDescriptor is a fully assembled order, ready to be signed and
// broadcast. Exactly one of GoodTilBlock / GoodTilBlockTime is set,
// determined by the order type.
type OrderDescriptor struct {
	ID               OrderID         `json:"id"`
	Type             OrderType       `json:"type"`
	Side             OrderSide       `json:"side"`
	Size             decimal.Decimal `json:"size"`
	Price            decimal.Decimal `json:"price"`
	TimeInForce      TimeInForce     `json:"time_in_force"`
	GoodTilBlock     uint32          `json:"good_til_block,omitempty"`
	GoodTilBlockTime int64           `json:"good_til_block_time,omitempty"`
	ReduceOnly       bool            `json:"reduce_only"`
}

// CancelRequest identifies an order to cancel. GoodTilBlockTime accepts an
// RFC 3339 timestamp as returned by the indexer; it may be empty for
// long-term orders, in which case a default expiry is applied.
type CancelRequest struct {
	ClientID         uint32
	OrderFlags       uint32
	ClobPairID       uint32
	SubaccountNumber uint32
	GoodTilBlock     uint32
	GoodTilBlockTime string
}

// OrderCancel is the assembled cancellation, ready for signing.
type OrderCancel struct {
	ID               OrderID `json:"id"`
	GoodTilBlock     uint32  `json:"good_til_block,omitempty"`
	GoodTilBlockTime int64   `json:"good_til_block_time,omitempty"`
}

// TxResponse is the broadcast result returned by the transaction submitter.
type TxResponse struct {
	TxHash string `json:"txhash"`
	Code   uint32 `json:"code"`
	RawLog string `json:"raw_log"`
}

// OrderReceipt pairs the client-assigned order id with the broadcast receipt.
type OrderReceipt struct {
	OrderID OrderID    `json:"order_id"`
	Tx      TxResponse `json:"tx"`
}
