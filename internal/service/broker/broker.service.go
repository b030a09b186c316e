package broker

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"dydx-broker/internal/config"
	"dydx-broker/internal/dydx"
	"dydx-broker/internal/entity"
)

// defaultSlippage applies to market orders that state none, unless the
// config overrides it.
var defaultSlippage = decimal.New(1, -2)

var (
	ErrMarketDataUnavailable   = errors.New("failed to fetch market data")
	ErrBlockHeightUnavailable  = errors.New("failed to fetch current block height")
	ErrPublishOrderEventFailed = errors.New("failed to publish order event")
)

// Service orchestrates the order flow: fetch a fresh market snapshot, build
// and validate the descriptor, hand it to the submitter, interpret the
// broadcast result. It holds no persistent state about open orders.
type Service struct {
	session      *dydx.Session
	builder      *dydx.Builder
	marketData   entity.MarketDataProvider
	submitter    entity.TransactionSubmitter
	accountQuery entity.AccountQueryService
	params       *dydx.ParamsClient
	js           nats.JetStreamContext
}

func NewService(
	session *dydx.Session,
	marketData entity.MarketDataProvider,
	submitter entity.TransactionSubmitter,
	accountQuery entity.AccountQueryService,
	params *dydx.ParamsClient,
	js nats.JetStreamContext,
) *Service {
	return &Service{
		session:      session,
		builder:      dydx.NewBuilder(session.Address()),
		marketData:   marketData,
		submitter:    submitter,
		accountQuery: accountQuery,
		params:       params,
		js:           js,
	}
}

// PlaceOrder runs the full synchronous flow. Validation failures surface
// before any network call; submission failures carry the full broadcast
// diagnostics. The service never retries on its own.
func (s *Service) PlaceOrder(ctx context.Context, req entity.OrderRequest) (*entity.OrderReceipt, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	if err := s.session.EnsureReady(ctx); err != nil {
		return nil, err
	}

	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	if req.Slippage == nil {
		slippage := defaultSlippage
		if !config.Env.Broker.DefaultSlippage.IsZero() {
			slippage = config.Env.Broker.DefaultSlippage
		}
		req.Slippage = &slippage
	}

	snapshot, err := s.marketData.GetMarketSnapshot(ctx, req.MarketID)
	if err != nil {
		logrus.Error(err)
		return nil, ErrMarketDataUnavailable
	}

	currentBlock, err := s.marketData.CurrentBlockHeight(ctx)
	if err != nil {
		logrus.Error(err)
		return nil, ErrBlockHeightUnavailable
	}

	descriptor, err := s.builder.BuildOrder(req, snapshot, currentBlock)
	if err != nil {
		return nil, err
	}

	tx, err := s.submitter.SubmitOrder(ctx, descriptor)
	if err != nil {
		return nil, err
	}

	sequence := s.session.IncrementSequence()

	receipt, err := dydx.InterpretTxResponse(descriptor.ID, tx)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"request_id":    req.RequestID,
		"market":        req.MarketID,
		"type":          descriptor.Type,
		"side":          descriptor.Side,
		"price":         descriptor.Price.String(),
		"size":          descriptor.Size.String(),
		"time_in_force": descriptor.TimeInForce,
		"client_id":     descriptor.ID.ClientID,
		"tx_hash":       tx.TxHash,
		"sequence":      sequence,
	}).Info("order placed")

	return receipt, nil
}

// CancelOrder assembles and broadcasts a cancellation for an order addressed
// by its client-assigned identifier components.
func (s *Service) CancelOrder(ctx context.Context, req entity.CancelRequest) (entity.TxResponse, error) {
	if ctx.Err() != nil {
		return entity.TxResponse{}, ctx.Err()
	}

	if err := s.session.EnsureReady(ctx); err != nil {
		return entity.TxResponse{}, err
	}

	cancel, err := s.builder.BuildCancel(req)
	if err != nil {
		return entity.TxResponse{}, err
	}

	tx, err := s.submitter.SubmitCancel(ctx, cancel)
	if err != nil {
		return entity.TxResponse{}, err
	}

	s.session.IncrementSequence()

	logrus.WithFields(logrus.Fields{
		"client_id": cancel.ID.ClientID,
		"flags":     cancel.ID.OrderFlags,
		"tx_hash":   tx.TxHash,
		"code":      tx.Code,
	}).Info("order cancelled")

	return tx, nil
}

func (s *Service) ListOrders(ctx context.Context, subaccountNumber uint32, limit int) ([]entity.OrderRecord, error) {
	if err := s.session.EnsureReady(ctx); err != nil {
		return nil, err
	}

	return s.accountQuery.ListOrders(ctx, s.session.Address(), subaccountNumber, limit)
}

func (s *Service) ListPositions(ctx context.Context, subaccountNumber uint32) ([]entity.PositionRecord, error) {
	if err := s.session.EnsureReady(ctx); err != nil {
		return nil, err
	}

	return s.accountQuery.ListPositions(ctx, s.session.Address(), subaccountNumber)
}

func (s *Service) GetOrder(ctx context.Context, orderID string) (*entity.OrderRecord, error) {
	if err := s.session.EnsureReady(ctx); err != nil {
		return nil, err
	}

	return s.accountQuery.GetOrder(ctx, orderID)
}

// FindOrder looks an order up by its client-assigned identifier components.
// Returns nil when no matching order is found.
func (s *Service) FindOrder(ctx context.Context, subaccountNumber uint32, clientID, orderFlags, clobPairID uint32) (*entity.OrderRecord, error) {
	if err := s.session.EnsureReady(ctx); err != nil {
		return nil, err
	}

	return s.accountQuery.FindOrderByComponents(ctx, s.session.Address(), subaccountNumber, clientID, orderFlags, clobPairID)
}

func (s *Service) FeeTiers(ctx context.Context) dydx.ParamsResult {
	return s.params.FeeTiers(ctx)
}

func (s *Service) EquityTiers(ctx context.Context) dydx.ParamsResult {
	return s.params.EquityTiers(ctx)
}

func (s *Service) BlockRateLimit(ctx context.Context) dydx.ParamsResult {
	return s.params.BlockRateLimit(ctx)
}

// MarketStatus is a convenience read over the market snapshot.
func (s *Service) MarketStatus(ctx context.Context, marketID string) (string, error) {
	snapshot, err := s.marketData.GetMarketSnapshot(ctx, marketID)
	if err != nil {
		return "", err
	}
	return snapshot.Status, nil
}

// MarketMarginFractions returns the initial and maintenance margin fractions
// for a market.
func (s *Service) MarketMarginFractions(ctx context.Context, marketID string) (decimal.Decimal, decimal.Decimal, error) {
	snapshot, err := s.marketData.GetMarketSnapshot(ctx, marketID)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return snapshot.InitialMarginFraction, snapshot.MaintenanceMarginFraction, nil
}

// MarketSizes returns the tick size and step size for a market.
func (s *Service) MarketSizes(ctx context.Context, marketID string) (decimal.Decimal, decimal.Decimal, error) {
	snapshot, err := s.marketData.GetMarketSnapshot(ctx, marketID)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return snapshot.TickSize, snapshot.StepSize, nil
}
