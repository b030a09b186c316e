package dydx

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"dydx-broker/internal/entity"
)

// Reduce-only rejections come back from the chain under two distinct codes
// depending on which module refused the order.
const (
	TxCodeSuccess              uint32 = 0
	TxCodeReduceOnlyViolation  uint32 = 2001
	TxCodeReduceOnlyUnfillable uint32 = 9003
)

var (
	ErrInvalidSize     = errors.New("order size must be greater than zero")
	ErrInvalidSlippage = errors.New("slippage must not be negative")
)

// InvalidWalletError is raised at session construction when the wallet
// address is absent or malformed.
type InvalidWalletError struct {
	Address string
}

func (e *InvalidWalletError) Error() string {
	return fmt.Sprintf("invalid wallet: wallet address %q is not valid", e.Address)
}

// InvalidMnemonicError is raised at session construction when the mnemonic
// phrase is absent or malformed.
type InvalidMnemonicError struct {
	WordCount int
}

func (e *InvalidMnemonicError) Error() string {
	if e.WordCount == 0 {
		return "invalid mnemonic: mnemonic phrase is empty"
	}
	return fmt.Sprintf("invalid mnemonic: mnemonic phrase has %d words", e.WordCount)
}

// InvalidSideError is raised when the order side is neither BUY nor SELL.
type InvalidSideError struct {
	Side string
}

func (e *InvalidSideError) Error() string {
	return fmt.Sprintf("invalid side: %q is neither BUY nor SELL", e.Side)
}

// InvalidPriceError is raised before any network call when a limit price
// crosses the oracle-price sanity bound.
type InvalidPriceError struct {
	Market      string
	Side        entity.OrderSide
	Price       decimal.Decimal
	OraclePrice decimal.Decimal
}

func (e *InvalidPriceError) Error() string {
	return fmt.Sprintf("invalid price: %s order on %s at price %s (oracle price: %s)",
		e.Side, e.Market, e.Price.String(), e.OraclePrice.String())
}

// ReduceOnlyOrderError is raised after broadcast when the chain rejected an
// order for violating its reduce-only constraint.
type ReduceOnlyOrderError struct {
	TxHash string
	Code   uint32
	RawLog string
}

func (e *ReduceOnlyOrderError) Error() string {
	return fmt.Sprintf("reduce-only order failed: %s (code: %d) [tx: %s]", e.RawLog, e.Code, e.TxHash)
}

// OrderRejectedError is raised for any other non-success broadcast response,
// with the raw response attached for the caller's retry decision.
type OrderRejectedError struct {
	Response entity.TxResponse
}

func (e *OrderRejectedError) Error() string {
	return fmt.Sprintf("order was rejected: code=%d raw_log=%s [tx: %s]",
		e.Response.Code, e.Response.RawLog, e.Response.TxHash)
}

// NetworkError wraps transport failures from collaborators.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// AuthenticationError wraps auth failures from collaborators.
type AuthenticationError struct {
	Op     string
	Detail string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed during %s: %s", e.Op, e.Detail)
}
