package submitter

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"github.com/sirupsen/logrus"

	"dydx-broker/internal/entity"
)

const PaperSubmitterName = "paper"

// PaperSubmitter accepts every order without touching the chain. It exists
// for dry runs and for exercising the full place/interpret flow in tests.
type PaperSubmitter struct{}

func NewPaperSubmitter() *PaperSubmitter {
	return &PaperSubmitter{}
}

func (s *PaperSubmitter) Name() string {
	return PaperSubmitterName
}

func (s *PaperSubmitter) SubmitOrder(ctx context.Context, descriptor *entity.OrderDescriptor) (entity.TxResponse, error) {
	if ctx.Err() != nil {
		return entity.TxResponse{}, ctx.Err()
	}

	tx := entity.TxResponse{TxHash: paperTxHash(), Code: 0, RawLog: "paper order accepted"}

	logrus.WithFields(logrus.Fields{
		"market":        descriptor.ID.ClobPairID,
		"type":          descriptor.Type,
		"side":          descriptor.Side,
		"price":         descriptor.Price.String(),
		"size":          descriptor.Size.String(),
		"time_in_force": descriptor.TimeInForce,
		"tx_hash":       tx.TxHash,
	}).Info("paper order accepted")

	return tx, nil
}

func (s *PaperSubmitter) SubmitCancel(ctx context.Context, cancel *entity.OrderCancel) (entity.TxResponse, error) {
	if ctx.Err() != nil {
		return entity.TxResponse{}, ctx.Err()
	}

	tx := entity.TxResponse{TxHash: paperTxHash(), Code: 0, RawLog: "paper cancel accepted"}

	logrus.WithFields(logrus.Fields{
		"client_id": cancel.ID.ClientID,
		"flags":     cancel.ID.OrderFlags,
		"tx_hash":   tx.TxHash,
	}).Info("paper cancel accepted")

	return tx, nil
}

func paperTxHash() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "0000000000000000000000000000000000000000000000000000000000000000"
	}
	return hex.EncodeToString(b)
}
