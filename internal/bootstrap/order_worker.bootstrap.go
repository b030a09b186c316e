package bootstrap

import (
	"context"

	"github.com/spf13/cobra"

	"dydx-broker/internal/config"
	"dydx-broker/internal/dydx"
	"dydx-broker/internal/entity"
	"dydx-broker/internal/infrastructure"
	"dydx-broker/internal/service/broker"
	"dydx-broker/internal/service/indexer"
	"dydx-broker/internal/service/submitter"
	"dydx-broker/internal/util"
)

func StartOrderWorker(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb, err := infrastructure.NewRedisConnection(ctx, config.Env.Redis)
	util.ContinueOrFatal(err)

	nc, js, err := infrastructure.NewJetstream()
	util.ContinueOrFatal(err)

	indexerClient := indexer.NewClient(config.Env.Network.RestIndexer)
	marketData := indexer.NewCachedMarketData(indexerClient, rdb, config.Env.Broker.SnapshotTTL)

	session, err := dydx.NewSession(
		config.Env.Wallet.Address,
		config.Env.Wallet.Mnemonic,
		config.Env.Wallet.SubaccountNumber,
		func(ctx context.Context) error {
			_, err := indexerClient.CurrentBlockHeight(ctx)
			return err
		},
	)
	util.ContinueOrFatal(err)

	submitter.Register(submitter.NewPaperSubmitter())
	if config.Env.Broker.RelayURL != "" {
		submitter.Register(submitter.NewRelaySubmitter(config.Env.Broker.RelayURL, config.Env.Broker.RelayAPIKey))
	}

	activeSubmitter, err := submitter.Get(config.Env.Broker.Submitter)
	util.ContinueOrFatal(err)

	paramsClient := dydx.NewParamsClient(config.Env.Network.ChainRest)

	brokerService := broker.NewService(session, marketData, activeSubmitter, indexerClient, paramsClient, js)

	subscribers := make([]entity.Subscriber, 0)
	subscribers = append(subscribers, brokerService)
	for _, v := range subscribers {
		err = v.JetstreamEventSubscribe(ctx)
		util.ContinueOrFatal(err)
	}

	wait := gracefulShutdown(ctx, config.Env.GracefulShutdownTimeout, map[string]operation{
		"redis": func(ctx context.Context) error {
			cancel()
			return rdb.Close()
		},
		"nats connection": func(ctx context.Context) error {
			return infrastructure.CloseJetstream(nc)
		},
	})

	<-wait
}
