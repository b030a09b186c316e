package http

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"dydx-broker/internal/config"
	"dydx-broker/internal/dydx"
	"dydx-broker/internal/entity"
	"dydx-broker/internal/service/broker"
)

const testMnemonic = "merge fiber bulb rough mention balcony mercy little fat viable powder flat"

type stubMarketData struct{}

func (stubMarketData) GetMarketSnapshot(ctx context.Context, marketID string) (entity.MarketSnapshot, error) {
	return entity.MarketSnapshot{
		MarketID:    "ETH-USD",
		ClobPairID:  1,
		Status:      "ACTIVE",
		OraclePrice: decimal.RequireFromString("1750"),
	}, nil
}

func (stubMarketData) CurrentBlockHeight(ctx context.Context) (uint32, error) {
	return 1000, nil
}

type stubSubmitter struct {
	tx entity.TxResponse
}

func (stubSubmitter) Name() string { return "stub" }

func (s stubSubmitter) SubmitOrder(ctx context.Context, descriptor *entity.OrderDescriptor) (entity.TxResponse, error) {
	return s.tx, nil
}

func (s stubSubmitter) SubmitCancel(ctx context.Context, cancel *entity.OrderCancel) (entity.TxResponse, error) {
	return s.tx, nil
}

type stubAccountQuery struct{}

func (stubAccountQuery) ListOrders(ctx context.Context, address string, subaccountNumber uint32, limit int) ([]entity.OrderRecord, error) {
	return []entity.OrderRecord{{ID: "abc", Ticker: "ETH-USD"}}, nil
}

func (stubAccountQuery) ListPositions(ctx context.Context, address string, subaccountNumber uint32) ([]entity.PositionRecord, error) {
	return []entity.PositionRecord{{Market: "ETH-USD", Side: "LONG"}}, nil
}

func (stubAccountQuery) GetOrder(ctx context.Context, orderID string) (*entity.OrderRecord, error) {
	return &entity.OrderRecord{ID: orderID}, nil
}

func (stubAccountQuery) FindOrderByComponents(ctx context.Context, address string, subaccountNumber uint32, clientID, orderFlags, clobPairID uint32) (*entity.OrderRecord, error) {
	if clientID != 42 {
		return nil, nil
	}
	return &entity.OrderRecord{ID: "found", ClientID: "42"}, nil
}

func newTestMux(t *testing.T, tx entity.TxResponse) *http.ServeMux {
	t.Helper()

	config.Env = &config.EnvConfig{
		APIKeys: []config.APIKeyConfig{
			{Name: "test", Key: "valid-key", Active: true},
		},
	}

	session, err := dydx.NewSession("dydx1testaddress", testMnemonic, 0, nil)
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}

	svc := broker.NewService(session, stubMarketData{}, stubSubmitter{tx: tx}, stubAccountQuery{}, dydx.NewParamsClient("http://127.0.0.1:1"), nil)

	mux := http.NewServeMux()
	NewBrokerHTTPHandler(svc).Register(mux)
	return mux
}

func doJSON(mux *http.ServeMux, method, target, apiKey string, payload any) *httptest.ResponseRecorder {
	var body bytes.Buffer
	if payload != nil {
		_ = json.NewEncoder(&body).Encode(payload)
	}

	req := httptest.NewRequest(method, target, &body)
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestPlaceOrderEndpoint(t *testing.T) {
	mux := newTestMux(t, entity.TxResponse{TxHash: "ABC123", Code: 0})

	t.Run("market order accepted", func(t *testing.T) {
		rec := doJSON(mux, http.MethodPost, "/broker/v1/orders", "valid-key", PlaceOrderRequest{
			MarketID: "ETH-USD",
			Side:     "BUY",
			Size:     "0.1",
			Slippage: "0.01",
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}

		var resp PlaceOrderResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if resp.TxHash != "ABC123" {
			t.Errorf("tx hash = %q, want ABC123", resp.TxHash)
		}
		if resp.OrderID.Address != "dydx1testaddress" {
			t.Errorf("address = %q, want session wallet", resp.OrderID.Address)
		}
		if resp.OrderID.OrderFlags != entity.OrderFlagsShortTerm {
			t.Errorf("order flags = %d, want short-term", resp.OrderID.OrderFlags)
		}
	})

	t.Run("missing api key", func(t *testing.T) {
		rec := doJSON(mux, http.MethodPost, "/broker/v1/orders", "", PlaceOrderRequest{
			MarketID: "ETH-USD", Side: "BUY", Size: "0.1",
		})
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("wrong api key", func(t *testing.T) {
		rec := doJSON(mux, http.MethodPost, "/broker/v1/orders", "nope", PlaceOrderRequest{
			MarketID: "ETH-USD", Side: "BUY", Size: "0.1",
		})
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("missing fields", func(t *testing.T) {
		rec := doJSON(mux, http.MethodPost, "/broker/v1/orders", "valid-key", PlaceOrderRequest{
			MarketID: "ETH-USD",
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("limit price past oracle", func(t *testing.T) {
		rec := doJSON(mux, http.MethodPost, "/broker/v1/orders", "valid-key", PlaceOrderRequest{
			MarketID: "ETH-USD",
			Side:     "BUY",
			Size:     "0.1",
			Price:    "1800",
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400, body = %s", rec.Code, rec.Body.String())
		}
	})
}

func TestPlaceOrderEndpoint_ReduceOnlyRejection(t *testing.T) {
	mux := newTestMux(t, entity.TxResponse{TxHash: "DEF456", Code: 2001, RawLog: "reduce-only violation"})

	rec := doJSON(mux, http.MethodPost, "/broker/v1/orders", "valid-key", PlaceOrderRequest{
		MarketID:   "ETH-USD",
		Side:       "SELL",
		Size:       "0.1",
		ReduceOnly: true,
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422, body = %s", rec.Code, rec.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["tx_hash"] != "DEF456" {
		t.Errorf("tx_hash = %v, want DEF456", resp["tx_hash"])
	}
}

func TestCancelOrderEndpoint(t *testing.T) {
	mux := newTestMux(t, entity.TxResponse{TxHash: "GHI789", Code: 0})

	t.Run("short-term cancel", func(t *testing.T) {
		rec := doJSON(mux, http.MethodPost, "/broker/v1/orders/cancel", "valid-key", CancelOrderRequest{
			ClientID:     42,
			OrderFlags:   entity.OrderFlagsShortTerm,
			ClobPairID:   1,
			GoodTilBlock: 5000,
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}

		var resp CancelOrderResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if resp.TxHash != "GHI789" {
			t.Errorf("tx hash = %q, want GHI789", resp.TxHash)
		}
	})

	t.Run("short-term cancel without block bound", func(t *testing.T) {
		rec := doJSON(mux, http.MethodPost, "/broker/v1/orders/cancel", "valid-key", CancelOrderRequest{
			ClientID:   42,
			OrderFlags: entity.OrderFlagsShortTerm,
			ClobPairID: 1,
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("get method rejected", func(t *testing.T) {
		rec := doJSON(mux, http.MethodGet, "/broker/v1/orders/cancel", "valid-key", nil)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("status = %d, want 405", rec.Code)
		}
	})
}

func TestAccountEndpoints(t *testing.T) {
	mux := newTestMux(t, entity.TxResponse{})

	t.Run("list orders", func(t *testing.T) {
		rec := doJSON(mux, http.MethodGet, "/broker/v1/orders?limit=10", "valid-key", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}

		var orders []entity.OrderRecord
		if err := json.Unmarshal(rec.Body.Bytes(), &orders); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if len(orders) != 1 || orders[0].Ticker != "ETH-USD" {
			t.Errorf("orders = %+v", orders)
		}
	})

	t.Run("get single order by id", func(t *testing.T) {
		rec := doJSON(mux, http.MethodGet, "/broker/v1/orders?id=abc", "valid-key", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}

		var order entity.OrderRecord
		if err := json.Unmarshal(rec.Body.Bytes(), &order); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if order.ID != "abc" {
			t.Errorf("order id = %q, want abc", order.ID)
		}
	})

	t.Run("find order by components", func(t *testing.T) {
		rec := doJSON(mux, http.MethodGet, "/broker/v1/orders?client_id=42&order_flags=0&clob_pair_id=1", "valid-key", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}

		var order entity.OrderRecord
		if err := json.Unmarshal(rec.Body.Bytes(), &order); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if order.ID != "found" {
			t.Errorf("order id = %q, want found", order.ID)
		}
	})

	t.Run("find order with no match", func(t *testing.T) {
		rec := doJSON(mux, http.MethodGet, "/broker/v1/orders?client_id=99&order_flags=0&clob_pair_id=1", "valid-key", nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("find order with bad component", func(t *testing.T) {
		rec := doJSON(mux, http.MethodGet, "/broker/v1/orders?client_id=42&order_flags=x", "valid-key", nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("list positions", func(t *testing.T) {
		rec := doJSON(mux, http.MethodGet, "/broker/v1/positions", "valid-key", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("invalid subaccount number", func(t *testing.T) {
		rec := doJSON(mux, http.MethodGet, "/broker/v1/positions?subaccount_number=x", "valid-key", nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestParamsEndpoints_SoftFailure(t *testing.T) {
	// chain REST is unreachable in this setup; the advisory endpoints must
	// answer with a clean 502 instead of breaking the gateway
	mux := newTestMux(t, entity.TxResponse{})

	for _, target := range []string{
		"/broker/v1/params/fee-tiers",
		"/broker/v1/params/equity-tiers",
		"/broker/v1/params/block-rate-limit",
	} {
		rec := doJSON(mux, http.MethodGet, target, "valid-key", nil)
		if rec.Code != http.StatusBadGateway {
			t.Errorf("%s: status = %d, want 502", target, rec.Code)
		}
	}
}

func TestValidateAPIKey(t *testing.T) {
	config.Env = &config.EnvConfig{
		APIKeys: []config.APIKeyConfig{
			{Name: "active", Key: "key-active", Active: true},
			{Name: "inactive", Key: "key-inactive", Active: false},
			{Name: "expired", Key: "key-expired", Active: true, ExpiredAt: "2020-01-01"},
			{Name: "future", Key: "key-future", Active: true, ExpiredAt: time.Now().UTC().Add(24 * time.Hour).Format(time.RFC3339)},
		},
	}

	tests := []struct {
		name    string
		key     string
		wantErr error
	}{
		{"valid key", "key-active", nil},
		{"empty key", "", errAPIKeyMissing},
		{"unknown key", "key-unknown", errAPIKeyInvalid},
		{"inactive key", "key-inactive", errAPIKeyInactive},
		{"expired key", "key-expired", errAPIKeyExpired},
		{"key with future expiry", "key-future", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateAPIKey(tt.key)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("validateAPIKey(%q) = %v, want %v", tt.key, err, tt.wantErr)
			}
		})
	}
}

func TestMapHTTPRequestToOrderRequest(t *testing.T) {
	t.Run("market order has nil price", func(t *testing.T) {
		got, err := mapHTTPRequestToOrderRequest(&PlaceOrderRequest{
			MarketID: "eth-usd",
			Side:     "buy",
			Size:     "0.1",
		})
		if err != nil {
			t.Fatalf("error = %v", err)
		}
		if got.Price != nil {
			t.Errorf("price = %v, want nil", got.Price)
		}
		if got.MarketID != "ETH-USD" {
			t.Errorf("market id = %q, want ETH-USD", got.MarketID)
		}
		if got.Side != entity.OrderSideBuy {
			t.Errorf("side = %q, want BUY", got.Side)
		}
		if got.Slippage != nil {
			t.Errorf("slippage = %v, want nil", got.Slippage)
		}
	})

	t.Run("explicit zero slippage survives mapping", func(t *testing.T) {
		got, err := mapHTTPRequestToOrderRequest(&PlaceOrderRequest{
			MarketID: "ETH-USD",
			Side:     "BUY",
			Size:     "0.1",
			Slippage: "0",
		})
		if err != nil {
			t.Fatalf("error = %v", err)
		}
		if got.Slippage == nil || !got.Slippage.IsZero() {
			t.Errorf("slippage = %v, want explicit zero", got.Slippage)
		}
	})

	t.Run("limit order carries price", func(t *testing.T) {
		got, err := mapHTTPRequestToOrderRequest(&PlaceOrderRequest{
			MarketID: "ETH-USD",
			Side:     "SELL",
			Size:     "0.1",
			Price:    "1800.5",
		})
		if err != nil {
			t.Fatalf("error = %v", err)
		}
		if got.Price == nil || !got.Price.Equal(decimal.RequireFromString("1800.5")) {
			t.Errorf("price = %v, want 1800.5", got.Price)
		}
	})

	t.Run("invalid numbers rejected", func(t *testing.T) {
		cases := []PlaceOrderRequest{
			{MarketID: "ETH-USD", Side: "BUY", Size: "abc"},
			{MarketID: "ETH-USD", Side: "BUY", Size: "0.1", Price: "abc"},
			{MarketID: "ETH-USD", Side: "BUY", Size: "0.1", Slippage: "abc"},
		}
		for _, c := range cases {
			if _, err := mapHTTPRequestToOrderRequest(&c); err == nil {
				t.Errorf("expected error for %+v", c)
			}
		}
	})
}
