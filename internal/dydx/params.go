package dydx

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
)

const (
	feeTiersEndpoint       = "/dydxprotocol/v4/feetiers/perpetual_fee_params"
	equityTiersEndpoint    = "/dydxprotocol/clob/equity_tier"
	blockRateLimitEndpoint = "/dydxprotocol/clob/block_rate"
)

// FetchError describes a soft parameter-fetch failure: the query is
// advisory, so the error is carried in the result instead of aborting the
// caller's workflow.
type FetchError struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v", e.Endpoint, e.Err)
	}
	return fmt.Sprintf("fetch %s: http %d", e.Endpoint, e.StatusCode)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ParamsResult is an explicit soft-failure value: either Doc holds the JSON
// document, or Err holds the reason it could not be fetched. Callers cannot
// mistake "no data" for "not yet fetched".
type ParamsResult struct {
	Doc json.RawMessage
	Err *FetchError
}

func (r ParamsResult) OK() bool {
	return r.Err == nil
}

// ParamsClient reads protocol parameters from the chain REST gateway. All
// fetches are best effort: failures are logged and returned as soft results.
type ParamsClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewParamsClient(baseURL string) *ParamsClient {
	return &ParamsClient{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *ParamsClient) FeeTiers(ctx context.Context) ParamsResult {
	return c.fetch(ctx, feeTiersEndpoint)
}

func (c *ParamsClient) EquityTiers(ctx context.Context) ParamsResult {
	return c.fetch(ctx, equityTiersEndpoint)
}

func (c *ParamsClient) BlockRateLimit(ctx context.Context) ParamsResult {
	return c.fetch(ctx, blockRateLimitEndpoint)
}

func (c *ParamsClient) fetch(ctx context.Context, endpoint string) ParamsResult {
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}

	result := ParamsResult{}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		result.Err = &FetchError{Endpoint: endpoint, Err: err}
		logrus.Warnf("protocol parameter fetch failed: %v", result.Err)
		return result
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		result.Err = &FetchError{Endpoint: endpoint, Err: err}
		logrus.Warnf("protocol parameter fetch failed: %v", result.Err)
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		result.Err = &FetchError{Endpoint: endpoint, StatusCode: resp.StatusCode}
		logrus.Warnf("protocol parameter fetch failed: %v", result.Err)
		return result
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		result.Err = &FetchError{Endpoint: endpoint, Err: err}
		logrus.Warnf("protocol parameter fetch failed: %v", result.Err)
		return result
	}

	if !json.Valid(body) {
		result.Err = &FetchError{Endpoint: endpoint, Err: fmt.Errorf("invalid json document")}
		logrus.Warnf("protocol parameter fetch failed: %v", result.Err)
		return result
	}

	result.Doc = json.RawMessage(body)
	return result
}
