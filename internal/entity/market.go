package entity

import "github.com/shopspring/decimal"

// MarketSnapshot is a point-in-time view of a perpetual market, obtained
// fresh per order. Caching is a collaborator concern, not the core's.
type MarketSnapshot struct {
	MarketID                  string          `json:"market_id"`
	ClobPairID                uint32          `json:"clob_pair_id"`
	Status                    string          `json:"status"`
	OraclePrice               decimal.Decimal `json:"oracle_price"`
	TickSize                  decimal.Decimal `json:"tick_size"`
	StepSize                  decimal.Decimal `json:"step_size"`
	InitialMarginFraction     decimal.Decimal `json:"initial_margin_fraction"`
	MaintenanceMarginFraction decimal.Decimal `json:"maintenance_margin_fraction"`
}

// OrderRecord is an order as reported by the indexer.
type OrderRecord struct {
	ID               string `json:"id"`
	ClientID         string `json:"clientId"`
	ClobPairID       string `json:"clobPairId"`
	OrderFlags       string `json:"orderFlags"`
	Ticker           string `json:"ticker"`
	Side             string `json:"side"`
	Size             string `json:"size"`
	TotalFilled      string `json:"totalFilled"`
	Price            string `json:"price"`
	Type             string `json:"type"`
	Status           string `json:"status"`
	TimeInForce      string `json:"timeInForce"`
	PostOnly         bool   `json:"postOnly"`
	ReduceOnly       bool   `json:"reduceOnly"`
	GoodTilBlock     string `json:"goodTilBlock,omitempty"`
	GoodTilBlockTime string `json:"goodTilBlockTime,omitempty"`
	SubaccountNumber uint32 `json:"subaccountNumber"`
	CreatedAtHeight  string `json:"createdAtHeight"`
	UpdatedAt        string `json:"updatedAt"`
}

// PositionRecord is a perpetual position as reported by the indexer.
type PositionRecord struct {
	Market           string `json:"market"`
	Side             string `json:"side"`
	Status           string `json:"status"`
	Size             string `json:"size"`
	MaxSize          string `json:"maxSize"`
	EntryPrice       string `json:"entryPrice"`
	ExitPrice        string `json:"exitPrice,omitempty"`
	RealizedPnl      string `json:"realizedPnl"`
	UnrealizedPnl    string `json:"unrealizedPnl"`
	NetFunding       string `json:"netFunding"`
	SumOpen          string `json:"sumOpen"`
	SumClose         string `json:"sumClose"`
	SubaccountNumber uint32 `json:"subaccountNumber"`
	CreatedAt        string `json:"createdAt"`
	ClosedAt         string `json:"closedAt,omitempty"`
}
