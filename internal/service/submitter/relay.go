package submitter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"dydx-broker/internal/dydx"
	"dydx-broker/internal/entity"
)

const RelaySubmitterName = "relay"

// RelaySubmitter hands assembled orders to an external signing sidecar,
// which derives the wallet key, signs the transaction and broadcasts it.
// Key material never passes through this process.
type RelaySubmitter struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewRelaySubmitter(baseURL, apiKey string) *RelaySubmitter {
	return &RelaySubmitter{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *RelaySubmitter) Name() string {
	return RelaySubmitterName
}

func (s *RelaySubmitter) SubmitOrder(ctx context.Context, descriptor *entity.OrderDescriptor) (entity.TxResponse, error) {
	return s.post(ctx, "/v1/orders", descriptor)
}

func (s *RelaySubmitter) SubmitCancel(ctx context.Context, cancel *entity.OrderCancel) (entity.TxResponse, error) {
	return s.post(ctx, "/v1/cancels", cancel)
}

func (s *RelaySubmitter) post(ctx context.Context, endpoint string, payload any) (entity.TxResponse, error) {
	if s.baseURL == "" {
		return entity.TxResponse{}, fmt.Errorf("relay url is not configured")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return entity.TxResponse{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return entity.TxResponse{}, err
	}

	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("X-API-Key", s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return entity.TxResponse{}, &dydx.NetworkError{Op: "relay " + endpoint, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return entity.TxResponse{}, &dydx.NetworkError{Op: "relay read", Err: err}
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return entity.TxResponse{}, &dydx.AuthenticationError{
			Op:     "relay " + endpoint,
			Detail: strings.TrimSpace(string(respBody)),
		}
	}

	if resp.StatusCode != http.StatusOK {
		return entity.TxResponse{}, fmt.Errorf("relay request failed: status=%d body=%s", resp.StatusCode, string(respBody))
	}

	var tx entity.TxResponse
	if err := json.Unmarshal(respBody, &tx); err != nil {
		return entity.TxResponse{}, fmt.Errorf("relay response parse failed: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"endpoint": endpoint,
		"tx_hash":  tx.TxHash,
		"code":     tx.Code,
	}).Debug("relay broadcast complete")

	return tx, nil
}
