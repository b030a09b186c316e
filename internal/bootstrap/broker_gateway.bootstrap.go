package bootstrap

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"dydx-broker/internal/config"
	"dydx-broker/internal/dydx"
	"dydx-broker/internal/entity"
	httpHandler "dydx-broker/internal/handler/broker/http"
	"dydx-broker/internal/infrastructure"
	"dydx-broker/internal/service/broker"
	"dydx-broker/internal/service/indexer"
	"dydx-broker/internal/service/submitter"
	"dydx-broker/internal/util"
)

func StartBrokerGateway(cmd *cobra.Command, args []string) {
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
	logrus.Info("using submitter: ", activeSubmitter.Name())

	paramsClient := dydx.NewParamsClient(config.Env.Network.ChainRest)

	brokerService := broker.NewService(session, marketData, activeSubmitter, indexerClient, paramsClient, js)

	publishers := make([]entity.Publisher, 0)
	publishers = append(publishers, brokerService)
	for _, v := range publishers {
		err = v.JetstreamEventInit(ctx)
		util.ContinueOrFatal(err)
	}

	brokerHTTPHandler := httpHandler.NewBrokerHTTPHandler(brokerService)
	httpMux := http.NewServeMux()
	brokerHTTPHandler.Register(httpMux)

	httpPort := fmt.Sprintf(":%s", config.Env.Port["broker_gateway_http"])
	httpServer := infrastructure.NewHTTPServerWithConfig(infrastructure.HTTPServerConfig{
		Addr:            httpPort,
		ShutdownTimeout: config.Env.GracefulShutdownTimeout,
	}, httpMux)

	go func() {
		err := httpServer.Start()
		if err != nil {
			logrus.Error(err)
		}
	}()
	logrus.Info(fmt.Sprintf("http server started on %s", httpPort))

	wait := gracefulShutdown(ctx, config.Env.GracefulShutdownTimeout, map[string]operation{
		"http": func(ctx context.Context) error {
			return httpServer.Shutdown(ctx)
		},
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
