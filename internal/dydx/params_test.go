package dydx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParamsClient_FetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != feeTiersEndpoint {
			t.Errorf("path = %s, want %s", r.URL.Path, feeTiersEndpoint)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"params":{"tiers":[{"name":"1","maker_fee_ppm":-110}]}}`))
	}))
	defer srv.Close()

	client := NewParamsClient(srv.URL)
	result := client.FeeTiers(context.Background())

	if !result.OK() {
		t.Fatalf("FeeTiers() err = %v", result.Err)
	}
	if len(result.Doc) == 0 {
		t.Error("doc is empty")
	}
}

func TestParamsClient_SoftFailures(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantStatus int
	}{
		{
			"http error is carried in the result",
			func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			http.StatusBadGateway,
		},
		{
			"not found is carried in the result",
			func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
			http.StatusNotFound,
		},
		{
			"invalid json is carried in the result",
			func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("<html>not json</html>"))
			},
			0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			client := NewParamsClient(srv.URL)
			result := client.EquityTiers(context.Background())

			if result.OK() {
				t.Fatal("result.OK() = true, want soft failure")
			}
			if result.Doc != nil {
				t.Error("doc should be nil on failure")
			}
			if tt.wantStatus != 0 && result.Err.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", result.Err.StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestParamsClient_UnreachableHost(t *testing.T) {
	client := NewParamsClient("http://127.0.0.1:1")
	result := client.BlockRateLimit(context.Background())

	if result.OK() {
		t.Fatal("result.OK() = true, want soft failure")
	}
	if result.Err.Err == nil {
		t.Error("transport error should be wrapped in the result")
	}
}
