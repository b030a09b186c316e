package bootstrap

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"dydx-broker/internal/config"
	"dydx-broker/internal/infrastructure"
	"dydx-broker/internal/service/indexer"
	"dydx-broker/internal/util"
)

func StartMarketFeedWorker(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb, err := infrastructure.NewRedisConnection(ctx, config.Env.Redis)
	util.ContinueOrFatal(err)

	indexerClient := indexer.NewClient(config.Env.Network.RestIndexer)
	cache := indexer.NewCachedMarketData(indexerClient, rdb, config.Env.Broker.SnapshotTTL)

	feed := indexer.NewFeed(config.Env.Network.WebsocketIndexer, indexerClient, cache)

	go func() {
		err := feed.Run(ctx)
		if err != nil {
			logrus.Error(err)
		}
	}()

	wait := gracefulShutdown(ctx, config.Env.GracefulShutdownTimeout, map[string]operation{
		"market feed": func(ctx context.Context) error {
			cancel()
			return nil
		},
		"redis": func(ctx context.Context) error {
			return rdb.Close()
		},
	})

	<-wait
}
