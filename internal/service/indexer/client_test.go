package indexer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"dydx-broker/internal/dydx"
)

const ethMarketBody = `{
	"markets": {
		"ETH-USD": {
			"ticker": "ETH-USD",
			"clobPairId": "1",
			"status": "ACTIVE",
			"oraclePrice": "1750.123456",
			"tickSize": "0.1",
			"stepSize": "0.001",
			"initialMarginFraction": "0.05",
			"maintenanceMarginFraction": "0.03"
		}
	}
}`

func TestClient_GetMarketSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v4/perpetualMarkets" {
			t.Errorf("path = %s, want /v4/perpetualMarkets", r.URL.Path)
		}
		if r.URL.Query().Get("ticker") != "ETH-USD" {
			t.Errorf("ticker = %s, want ETH-USD", r.URL.Query().Get("ticker"))
		}
		_, _ = w.Write([]byte(ethMarketBody))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	snapshot, err := client.GetMarketSnapshot(context.Background(), "eth-usd")
	if err != nil {
		t.Fatalf("GetMarketSnapshot() error = %v", err)
	}

	if snapshot.MarketID != "ETH-USD" {
		t.Errorf("market id = %s, want ETH-USD", snapshot.MarketID)
	}
	if snapshot.ClobPairID != 1 {
		t.Errorf("clob pair id = %d, want 1", snapshot.ClobPairID)
	}
	if !snapshot.OraclePrice.Equal(decimal.RequireFromString("1750.123456")) {
		t.Errorf("oracle price = %s, want 1750.123456", snapshot.OraclePrice)
	}
	if !snapshot.StepSize.Equal(decimal.RequireFromString("0.001")) {
		t.Errorf("step size = %s, want 0.001", snapshot.StepSize)
	}
}

func TestClient_GetMarketSnapshotNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"markets":{}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.GetMarketSnapshot(context.Background(), "NOPE-USD")
	if err == nil {
		t.Fatal("expected error for unknown market")
	}
}

func TestClient_GetMarketSnapshotTransportError(t *testing.T) {
	client := NewClient("http://127.0.0.1:1")
	_, err := client.GetMarketSnapshot(context.Background(), "ETH-USD")

	var netErr *dydx.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("error = %v, want NetworkError", err)
	}
}

func TestClient_CurrentBlockHeight(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v4/height" {
			t.Errorf("path = %s, want /v4/height", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"height":"12345678","time":"2026-08-29T00:00:00.000Z"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	height, err := client.CurrentBlockHeight(context.Background())
	if err != nil {
		t.Fatalf("CurrentBlockHeight() error = %v", err)
	}
	if height != 12345678 {
		t.Errorf("height = %d, want 12345678", height)
	}
}

func TestClient_FindOrderByComponents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"id":"aaa","clientId":"11","orderFlags":"64","clobPairId":"1","ticker":"ETH-USD"},
			{"id":"bbb","clientId":"22","orderFlags":"0","clobPairId":"1","ticker":"ETH-USD"}
		]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)

	t.Run("match", func(t *testing.T) {
		order, err := client.FindOrderByComponents(context.Background(), "dydx1abc", 0, 22, 0, 1)
		if err != nil {
			t.Fatalf("FindOrderByComponents() error = %v", err)
		}
		if order == nil || order.ID != "bbb" {
			t.Errorf("order = %+v, want id bbb", order)
		}
	})

	t.Run("no match returns nil without error", func(t *testing.T) {
		order, err := client.FindOrderByComponents(context.Background(), "dydx1abc", 0, 99, 0, 1)
		if err != nil {
			t.Fatalf("FindOrderByComponents() error = %v", err)
		}
		if order != nil {
			t.Errorf("order = %+v, want nil", order)
		}
	})
}

func TestClient_ListPositions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v4/perpetualPositions" {
			t.Errorf("path = %s, want /v4/perpetualPositions", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"positions":[{"market":"ETH-USD","side":"LONG","size":"0.5","status":"OPEN"}]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	positions, err := client.ListPositions(context.Background(), "dydx1abc", 0)
	if err != nil {
		t.Fatalf("ListPositions() error = %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("got %d positions, want 1", len(positions))
	}
	if positions[0].Market != "ETH-USD" || positions[0].Side != "LONG" {
		t.Errorf("position = %+v", positions[0])
	}
}
