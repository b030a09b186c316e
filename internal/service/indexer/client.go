package indexer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"dydx-broker/internal/dydx"
	"dydx-broker/internal/entity"
)

const defaultListLimit = 100

// Client talks to the indexer REST API. It implements both the market data
// provider and the account query service; the indexer serves both surfaces.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type marketPayload struct {
	Ticker                    string `json:"ticker"`
	ClobPairID                string `json:"clobPairId"`
	Status                    string `json:"status"`
	OraclePrice               string `json:"oraclePrice"`
	TickSize                  string `json:"tickSize"`
	StepSize                  string `json:"stepSize"`
	InitialMarginFraction     string `json:"initialMarginFraction"`
	MaintenanceMarginFraction string `json:"maintenanceMarginFraction"`
}

func (c *Client) GetMarketSnapshot(ctx context.Context, marketID string) (entity.MarketSnapshot, error) {
	marketID = strings.ToUpper(strings.TrimSpace(marketID))
	if marketID == "" {
		return entity.MarketSnapshot{}, fmt.Errorf("market id is required")
	}

	endpoint := c.baseURL + "/v4/perpetualMarkets?ticker=" + url.QueryEscape(marketID)

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return entity.MarketSnapshot{}, err
	}

	var payload struct {
		Markets map[string]marketPayload `json:"markets"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return entity.MarketSnapshot{}, fmt.Errorf("parse perpetual markets: %w", err)
	}

	market, ok := payload.Markets[marketID]
	if !ok {
		return entity.MarketSnapshot{}, fmt.Errorf("market not found: %s", marketID)
	}

	return mapMarketPayload(market)
}

func mapMarketPayload(market marketPayload) (entity.MarketSnapshot, error) {
	clobPairID, err := strconv.ParseUint(market.ClobPairID, 10, 32)
	if err != nil {
		return entity.MarketSnapshot{}, fmt.Errorf("invalid clob pair id %q: %w", market.ClobPairID, err)
	}

	oraclePrice, err := decimal.NewFromString(market.OraclePrice)
	if err != nil {
		return entity.MarketSnapshot{}, fmt.Errorf("invalid oracle price %q: %w", market.OraclePrice, err)
	}

	tickSize, err := decimal.NewFromString(market.TickSize)
	if err != nil {
		return entity.MarketSnapshot{}, fmt.Errorf("invalid tick size %q: %w", market.TickSize, err)
	}

	stepSize, err := decimal.NewFromString(market.StepSize)
	if err != nil {
		return entity.MarketSnapshot{}, fmt.Errorf("invalid step size %q: %w", market.StepSize, err)
	}

	imf, err := decimalOrZero(market.InitialMarginFraction)
	if err != nil {
		return entity.MarketSnapshot{}, fmt.Errorf("invalid initial margin fraction: %w", err)
	}

	mmf, err := decimalOrZero(market.MaintenanceMarginFraction)
	if err != nil {
		return entity.MarketSnapshot{}, fmt.Errorf("invalid maintenance margin fraction: %w", err)
	}

	return entity.MarketSnapshot{
		MarketID:                  market.Ticker,
		ClobPairID:                uint32(clobPairID),
		Status:                    market.Status,
		OraclePrice:               oraclePrice,
		TickSize:                  tickSize,
		StepSize:                  stepSize,
		InitialMarginFraction:     imf,
		MaintenanceMarginFraction: mmf,
	}, nil
}

func (c *Client) CurrentBlockHeight(ctx context.Context) (uint32, error) {
	body, err := c.get(ctx, c.baseURL+"/v4/height")
	if err != nil {
		return 0, err
	}

	var payload struct {
		Height string `json:"height"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, fmt.Errorf("parse height: %w", err)
	}

	height, err := strconv.ParseUint(payload.Height, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid block height %q: %w", payload.Height, err)
	}

	return uint32(height), nil
}

func (c *Client) ListOrders(ctx context.Context, address string, subaccountNumber uint32, limit int) ([]entity.OrderRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	endpoint := fmt.Sprintf("%s/v4/orders?address=%s&subaccountNumber=%d&limit=%d",
		c.baseURL, url.QueryEscape(address), subaccountNumber, limit)

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var orders []entity.OrderRecord
	if err := json.Unmarshal(body, &orders); err != nil {
		return nil, fmt.Errorf("parse orders: %w", err)
	}

	return orders, nil
}

func (c *Client) GetOrder(ctx context.Context, orderID string) (*entity.OrderRecord, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, fmt.Errorf("order id is required")
	}

	body, err := c.get(ctx, c.baseURL+"/v4/orders/"+url.PathEscape(orderID))
	if err != nil {
		return nil, err
	}

	var order entity.OrderRecord
	if err := json.Unmarshal(body, &order); err != nil {
		return nil, fmt.Errorf("parse order: %w", err)
	}

	return &order, nil
}

// FindOrderByComponents scans recent orders for one matching the
// client-assigned identifier components. Returns nil when no order matches.
func (c *Client) FindOrderByComponents(ctx context.Context, address string, subaccountNumber uint32, clientID, orderFlags, clobPairID uint32) (*entity.OrderRecord, error) {
	orders, err := c.ListOrders(ctx, address, subaccountNumber, defaultListLimit)
	if err != nil {
		return nil, err
	}

	wantClient := strconv.FormatUint(uint64(clientID), 10)
	wantFlags := strconv.FormatUint(uint64(orderFlags), 10)
	wantPair := strconv.FormatUint(uint64(clobPairID), 10)

	for i := range orders {
		order := &orders[i]
		if order.ClientID == wantClient && order.OrderFlags == wantFlags && order.ClobPairID == wantPair {
			return order, nil
		}
	}

	return nil, nil
}

func (c *Client) ListPositions(ctx context.Context, address string, subaccountNumber uint32) ([]entity.PositionRecord, error) {
	endpoint := fmt.Sprintf("%s/v4/perpetualPositions?address=%s&subaccountNumber=%d",
		c.baseURL, url.QueryEscape(address), subaccountNumber)

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Positions []entity.PositionRecord `json:"positions"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parse positions: %w", err)
	}

	return payload.Positions, nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &dydx.NetworkError{Op: "indexer get", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &dydx.NetworkError{Op: "indexer read", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("indexer request failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	return body, nil
}

func decimalOrZero(raw string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(trimmed)
}
