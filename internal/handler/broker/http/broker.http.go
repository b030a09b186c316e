package http

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"

	"dydx-broker/internal/config"
	"dydx-broker/internal/dydx"
	"dydx-broker/internal/entity"
	"dydx-broker/internal/service/broker"
)

var (
	errAPIKeyMissing  = errors.New("api key is required")
	errAPIKeyInvalid  = errors.New("invalid api key")
	errAPIKeyInactive = errors.New("api key is inactive")
	errAPIKeyExpired  = errors.New("api key is expired")
)

type PlaceOrderRequest struct {
	ApiKey           string `json:"api_key"`
	RequestID        string `json:"request_id"`
	MarketID         string `json:"market_id"`
	Side             string `json:"side"`
	Size             string `json:"size"`
	Price            string `json:"price"`
	Slippage         string `json:"slippage"`
	ReduceOnly       bool   `json:"reduce_only"`
	SubaccountNumber uint32 `json:"subaccount_number"`
}

type PlaceOrderResponse struct {
	OrderID OrderIDPayload `json:"order_id"`
	TxHash  string         `json:"tx_hash"`
	Code    uint32         `json:"code"`
	RawLog  *string        `json:"raw_log,omitempty"`
}

type OrderIDPayload struct {
	Address          string `json:"address"`
	SubaccountNumber uint32 `json:"subaccount_number"`
	ClientID         uint32 `json:"client_id"`
	ClobPairID       uint32 `json:"clob_pair_id"`
	OrderFlags       uint32 `json:"order_flags"`
}

type PlaceOrderAsyncResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
}

type CancelOrderRequest struct {
	ApiKey           string `json:"api_key"`
	ClientID         uint32 `json:"client_id"`
	OrderFlags       uint32 `json:"order_flags"`
	ClobPairID       uint32 `json:"clob_pair_id"`
	SubaccountNumber uint32 `json:"subaccount_number"`
	GoodTilBlock     uint32 `json:"good_til_block"`
	GoodTilBlockTime string `json:"good_til_block_time"`
}

type CancelOrderResponse struct {
	TxHash string `json:"tx_hash"`
	Code   uint32 `json:"code"`
	RawLog string `json:"raw_log"`
}

type Handler struct {
	brokerService *broker.Service
}

func NewBrokerHTTPHandler(brokerService *broker.Service) *Handler {
	return &Handler{brokerService: brokerService}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/broker/v1/orders", h.Orders)
	mux.HandleFunc("/broker/v1/orders/async", h.PlaceOrderAsync)
	mux.HandleFunc("/broker/v1/orders/cancel", h.CancelOrder)
	mux.HandleFunc("/broker/v1/positions", h.ListPositions)
	mux.HandleFunc("/broker/v1/params/fee-tiers", h.paramsHandler(h.brokerService.FeeTiers))
	mux.HandleFunc("/broker/v1/params/equity-tiers", h.paramsHandler(h.brokerService.EquityTiers))
	mux.HandleFunc("/broker/v1/params/block-rate-limit", h.paramsHandler(h.brokerService.BlockRateLimit))
}

// Orders dispatches on method: POST places an order, GET lists or fetches
// one (with ?id=).
func (h *Handler) Orders(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.PlaceOrder(w, r)
	case http.MethodGet:
		h.GetOrders(w, r)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
	}
}

func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json body"})
		return
	}

	if err := validateAPIKey(resolveAPIKey(r, req.ApiKey)); err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": err.Error()})
		return
	}

	if strings.TrimSpace(req.MarketID) == "" || strings.TrimSpace(req.Side) == "" || strings.TrimSpace(req.Size) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "missing required fields"})
		return
	}

	orderReq, err := mapHTTPRequestToOrderRequest(&req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	receipt, err := h.brokerService.PlaceOrder(r.Context(), orderReq)
	if err != nil {
		writeOrderError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, mapReceiptToHTTPResponse(receipt))
}

func (h *Handler) PlaceOrderAsync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
		return
	}

	defer r.Body.Close()

	var req PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json body"})
		return
	}

	if err := validateAPIKey(resolveAPIKey(r, req.ApiKey)); err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": err.Error()})
		return
	}

	if strings.TrimSpace(req.MarketID) == "" || strings.TrimSpace(req.Side) == "" || strings.TrimSpace(req.Size) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "missing required fields"})
		return
	}

	orderReq, err := mapHTTPRequestToOrderRequest(&req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	requestID, err := h.brokerService.PlaceOrderAsync(r.Context(), orderReq)
	if err != nil {
		switch {
		case errors.Is(err, broker.ErrPublishOrderEventFailed):
			writeJSON(w, http.StatusBadGateway, map[string]any{"error": err.Error()})
		default:
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		}
		return
	}

	writeJSON(w, http.StatusAccepted, PlaceOrderAsyncResponse{
		RequestID: requestID,
		Status:    "queued",
	})
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
		return
	}

	defer r.Body.Close()

	var req CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json body"})
		return
	}

	if err := validateAPIKey(resolveAPIKey(r, req.ApiKey)); err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": err.Error()})
		return
	}

	tx, err := h.brokerService.CancelOrder(r.Context(), entity.CancelRequest{
		ClientID:         req.ClientID,
		OrderFlags:       req.OrderFlags,
		ClobPairID:       req.ClobPairID,
		SubaccountNumber: req.SubaccountNumber,
		GoodTilBlock:     req.GoodTilBlock,
		GoodTilBlockTime: req.GoodTilBlockTime,
	})
	if err != nil {
		switch {
		case errors.Is(err, dydx.ErrCancelMissingBlock), errors.Is(err, dydx.ErrCancelBadTime):
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		default:
			writeJSON(w, http.StatusBadGateway, map[string]any{"error": err.Error()})
		}
		return
	}

	writeJSON(w, http.StatusOK, CancelOrderResponse{
		TxHash: tx.TxHash,
		Code:   tx.Code,
		RawLog: tx.RawLog,
	})
}

func (h *Handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	if err := validateAPIKey(resolveAPIKey(r, "")); err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": err.Error()})
		return
	}

	query := r.URL.Query()

	if orderID := strings.TrimSpace(query.Get("id")); orderID != "" {
		order, err := h.brokerService.GetOrder(r.Context(), orderID)
		if err != nil {
			writeJSON(w, http.StatusBadGateway, map[string]any{"error": err.Error()})
			return
		}

		writeJSON(w, http.StatusOK, order)
		return
	}

	if strings.TrimSpace(query.Get("client_id")) != "" {
		h.findOrder(w, r)
		return
	}

	subaccountNumber, err := parseSubaccountNumber(query.Get("subaccount_number"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	limit := 0
	if rawLimit := strings.TrimSpace(query.Get("limit")); rawLimit != "" {
		limit, err = strconv.Atoi(rawLimit)
		if err != nil || limit < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid limit"})
			return
		}
	}

	orders, err := h.brokerService.ListOrders(r.Context(), subaccountNumber, limit)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, orders)
}

// findOrder resolves an order by its client-assigned identifier components
// (?client_id=&order_flags=&clob_pair_id=).
func (h *Handler) findOrder(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	clientID, err := parseUint32Param(query.Get("client_id"), "client_id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	orderFlags, err := parseUint32Param(query.Get("order_flags"), "order_flags")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	clobPairID, err := parseUint32Param(query.Get("clob_pair_id"), "clob_pair_id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	subaccountNumber, err := parseSubaccountNumber(query.Get("subaccount_number"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	order, err := h.brokerService.FindOrder(r.Context(), subaccountNumber, clientID, orderFlags, clobPairID)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": err.Error()})
		return
	}
	if order == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "order not found"})
		return
	}

	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) ListPositions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
		return
	}

	if err := validateAPIKey(resolveAPIKey(r, "")); err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": err.Error()})
		return
	}

	subaccountNumber, err := parseSubaccountNumber(r.URL.Query().Get("subaccount_number"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	positions, err := h.brokerService.ListPositions(r.Context(), subaccountNumber)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, positions)
}

// paramsHandler serves a best-effort protocol parameter fetch. Soft failures
// come back as 502 with the reason attached; they never panic the gateway.
func (h *Handler) paramsHandler(fetch func(ctx context.Context) dydx.ParamsResult) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
			return
		}

		if err := validateAPIKey(resolveAPIKey(r, "")); err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": err.Error()})
			return
		}

		result := fetch(r.Context())
		if !result.OK() {
			writeJSON(w, http.StatusBadGateway, map[string]any{"error": result.Err.Error()})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(result.Doc)
	}
}

func mapHTTPRequestToOrderRequest(req *PlaceOrderRequest) (entity.OrderRequest, error) {
	size, err := decimal.NewFromString(req.Size)
	if err != nil {
		return entity.OrderRequest{}, errors.New("invalid size")
	}

	var price *decimal.Decimal
	if strings.TrimSpace(req.Price) != "" {
		parsed, err := decimal.NewFromString(req.Price)
		if err != nil {
			return entity.OrderRequest{}, errors.New("invalid price")
		}
		price = &parsed
	}

	var slippage *decimal.Decimal
	if strings.TrimSpace(req.Slippage) != "" {
		parsed, err := decimal.NewFromString(req.Slippage)
		if err != nil {
			return entity.OrderRequest{}, errors.New("invalid slippage")
		}
		slippage = &parsed
	}

	return entity.OrderRequest{
		RequestID:        null.NewString(req.RequestID, req.RequestID != "").ValueOrZero(),
		MarketID:         strings.ToUpper(strings.TrimSpace(req.MarketID)),
		Side:             entity.OrderSide(strings.ToUpper(req.Side)),
		Size:             size,
		Price:            price,
		Slippage:         slippage,
		ReduceOnly:       req.ReduceOnly,
		SubaccountNumber: req.SubaccountNumber,
	}, nil
}

func mapReceiptToHTTPResponse(receipt *entity.OrderReceipt) *PlaceOrderResponse {
	return &PlaceOrderResponse{
		OrderID: OrderIDPayload{
			Address:          receipt.OrderID.Address,
			SubaccountNumber: receipt.OrderID.SubaccountNumber,
			ClientID:         receipt.OrderID.ClientID,
			ClobPairID:       receipt.OrderID.ClobPairID,
			OrderFlags:       receipt.OrderID.OrderFlags,
		},
		TxHash: receipt.Tx.TxHash,
		Code:   receipt.Tx.Code,
		RawLog: null.NewString(receipt.Tx.RawLog, receipt.Tx.RawLog != "").Ptr(),
	}
}

func writeOrderError(w http.ResponseWriter, err error) {
	var (
		invalidSide  *dydx.InvalidSideError
		invalidPrice *dydx.InvalidPriceError
		reduceOnly   *dydx.ReduceOnlyOrderError
		rejected     *dydx.OrderRejectedError
		authErr      *dydx.AuthenticationError
	)

	switch {
	case errors.Is(err, dydx.ErrInvalidSize), errors.Is(err, dydx.ErrInvalidSlippage),
		errors.As(err, &invalidSide), errors.As(err, &invalidPrice):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
	case errors.As(err, &reduceOnly):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":   err.Error(),
			"tx_hash": reduceOnly.TxHash,
			"code":    reduceOnly.Code,
			"raw_log": reduceOnly.RawLog,
		})
	case errors.As(err, &rejected):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":   err.Error(),
			"tx_hash": rejected.Response.TxHash,
			"code":    rejected.Response.Code,
			"raw_log": rejected.Response.RawLog,
		})
	case errors.As(err, &authErr):
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": err.Error()})
	default:
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": err.Error()})
	}
}

func parseUint32Param(raw, name string) (uint32, error) {
	parsed, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 32)
	if err != nil {
		return 0, errors.New("invalid " + name)
	}

	return uint32(parsed), nil
}

func parseSubaccountNumber(raw string) (uint32, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}

	parsed, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, errors.New("invalid subaccount_number")
	}

	return uint32(parsed), nil
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func resolveAPIKey(r *http.Request, bodyKey string) string {
	if headerKey := strings.TrimSpace(r.Header.Get("X-API-Key")); headerKey != "" {
		return headerKey
	}

	return strings.TrimSpace(bodyKey)
}

func validateAPIKey(rawAPIKey string) error {
	apiKey := strings.TrimSpace(rawAPIKey)
	if apiKey == "" {
		return errAPIKeyMissing
	}

	if config.Env == nil || len(config.Env.APIKeys) == 0 {
		return errAPIKeyInvalid
	}

	now := time.Now().UTC()
	for _, candidate := range config.Env.APIKeys {
		storedKey := strings.TrimSpace(candidate.Key)
		if storedKey == "" {
			continue
		}

		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(storedKey)) != 1 {
			continue
		}

		if !candidate.Active {
			return errAPIKeyInactive
		}

		expiredAt, hasExpiry, err := parseExpiry(candidate.ExpiredAt)
		if err != nil {
			return errAPIKeyInvalid
		}
		if !hasExpiry {
			return nil
		}

		if !now.Before(expiredAt) {
			return errAPIKeyExpired
		}

		return nil
	}

	return errAPIKeyInvalid
}

func parseExpiry(value any) (time.Time, bool, error) {
	if value == nil {
		return time.Time{}, false, nil
	}

	switch v := value.(type) {
	case time.Time:
		if v.IsZero() {
			return time.Time{}, false, nil
		}
		return v.UTC(), true, nil
	case string:
		raw := strings.TrimSpace(v)
		if raw == "" {
			return time.Time{}, false, nil
		}

		if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
			return parsed.UTC(), true, nil
		}

		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return time.Time{}, false, err
		}

		return parsed.UTC().Add(24 * time.Hour), true, nil
	default:
		return time.Time{}, false, errors.New("unsupported expiry type")
	}
}
