package entity

import "context"

// MarketDataProvider supplies the per-order market view and the chain head.
type MarketDataProvider interface {
	GetMarketSnapshot(ctx context.Context, marketID string) (MarketSnapshot, error)
	CurrentBlockHeight(ctx context.Context) (uint32, error)
}

// TransactionSubmitter signs and broadcasts assembled orders. Wallet key
// handling and wire framing live behind this interface, not in the core.
type TransactionSubmitter interface {
	Name() string
	SubmitOrder(ctx context.Context, descriptor *OrderDescriptor) (TxResponse, error)
	SubmitCancel(ctx context.Context, cancel *OrderCancel) (TxResponse, error)
}

// AccountQueryService reads order and position state from the indexer.
type AccountQueryService interface {
	ListOrders(ctx context.Context, address string, subaccountNumber uint32, limit int) ([]OrderRecord, error)
	ListPositions(ctx context.Context, address string, subaccountNumber uint32) ([]PositionRecord, error)
	GetOrder(ctx context.Context, orderID string) (*OrderRecord, error)
	FindOrderByComponents(ctx context.Context, address string, subaccountNumber uint32, clientID, orderFlags, clobPairID uint32) (*OrderRecord, error)
}
