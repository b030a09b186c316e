package broker

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"dydx-broker/internal/config"
	"dydx-broker/internal/constant"
	"dydx-broker/internal/dydx"
	"dydx-broker/internal/entity"
	"dydx-broker/internal/util"
)

func (s *Service) JetstreamEventInit(ctx context.Context) error {
	streamConfig := &nats.StreamConfig{
		Name:      constant.BrokerStreamName,
		Subjects:  []string{constant.BrokerStreamSubjectAll},
		Retention: nats.WorkQueuePolicy,
		Storage:   nats.FileStorage,
		MaxAge:    24 * time.Hour,
	}

	stream, err := s.js.StreamInfo(constant.BrokerStreamName, nats.Context(ctx))
	if err != nil && !errors.Is(err, nats.ErrStreamNotFound) {
		logrus.Error(err)
		return err
	}

	if stream == nil {
		logrus.Infof("creating stream: %s", constant.BrokerStreamName)
		_, err = s.js.AddStream(streamConfig, nats.Context(ctx))
		return err
	}

	logrus.Infof("updating stream: %s", constant.BrokerStreamName)
	_, err = s.js.UpdateStream(streamConfig, nats.Context(ctx))
	if err != nil {
		logrus.Error(err)
		return err
	}

	return nil
}

func (s *Service) JetstreamEventSubscribe(ctx context.Context) error {
	err := s.JetstreamEventInit(ctx)
	if err != nil {
		logrus.Error(err)
		return err
	}

	_, err = s.js.QueueSubscribe(
		constant.BrokerStreamSubjectPlaceOrder,
		constant.BrokerQueueName,
		func(msg *nats.Msg) {
			err := util.ProcessWithTimeout(config.Env.NatsJetstream.TimeoutHandler["place_order"], msg, s.handlePlaceOrderEvent)
			if err != nil {
				logrus.Errorf("error processing message: %v", err)
				return
			}

			err = msg.Ack()
			if err != nil {
				logrus.Errorf("failed to acknowledge message: %v", err)
				return
			}
		},
		nats.ManualAck(),
		nats.Durable(constant.BrokerQueueGroup),
	)
	util.ContinueOrFatal(err)

	return nil
}

func (s *Service) handlePlaceOrderEvent(ctx context.Context, msg *nats.Msg) (err error) {
	logger := logrus.WithFields(logrus.Fields{
		"req": string(msg.Data),
	})

	var req *entity.OrderRequestEvent
	err = json.Unmarshal(msg.Data, &req)
	if err != nil {
		logger.Error(err)
		return err
	}
	if req == nil {
		// a literal null decodes without error; nothing to run or requeue
		logger.Warn("dropping empty order event")
		return nil
	}

	defer func() {
		if err != nil {
			logger.Error(err)
			req.RetryCount++
			if req.RetryCount >= config.Env.NatsJetstream.MaxRetries {
				return
			}

			err := util.PublishEvent(s.js, constant.BrokerStreamSubjectPlaceOrder, req)
			if err != nil {
				logger.Error(err)
				return
			}
		}
	}()

	_, err = s.PlaceOrder(ctx, req.Data)
	if err != nil {
		// Validation and named rejection failures are terminal; re-running
		// them produces the same outcome.
		if isTerminalOrderError(err) {
			req.RetryCount = config.Env.NatsJetstream.MaxRetries
			logger.Warnf("dropping unretriable order event: %v", err)
			return nil
		}
		return err
	}

	return nil
}

func isTerminalOrderError(err error) bool {
	var (
		invalidSide  *dydx.InvalidSideError
		invalidPrice *dydx.InvalidPriceError
		reduceOnly   *dydx.ReduceOnlyOrderError
		rejected     *dydx.OrderRejectedError
	)

	return errors.Is(err, dydx.ErrInvalidSize) ||
		errors.Is(err, dydx.ErrInvalidSlippage) ||
		errors.As(err, &invalidSide) ||
		errors.As(err, &invalidPrice) ||
		errors.As(err, &reduceOnly) ||
		errors.As(err, &rejected)
}

// PlaceOrderAsync enqueues the request on the broker work queue and returns
// immediately. The queue worker performs the actual submission.
func (s *Service) PlaceOrderAsync(ctx context.Context, req entity.OrderRequest) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	event := entity.OrderRequestEvent{
		RetryCount: 0,
		Data:       req,
	}

	err := util.PublishEvent(s.js, constant.BrokerStreamSubjectPlaceOrder, event)
	if err != nil {
		logrus.Error(err)
		return "", ErrPublishOrderEventFailed
	}

	return req.RequestID, nil
}
