/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"dydx-broker/internal/config"
	"dydx-broker/internal/dydx"
	"dydx-broker/internal/service/indexer"
)

// playgroundCmd represents the playground command
var playgroundCmd = &cobra.Command{
	Use:   "playground",
	Short: "Poke the configured network endpoints",
	Long: `Fetches a market snapshot, the current block height, account orders and
positions, and the protocol parameter documents from the configured
network, then logs everything. Useful for checking connectivity and
credentials before starting the gateway.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		client := indexer.NewClient(config.Env.Network.RestIndexer)

		snapshot, err := client.GetMarketSnapshot(ctx, "ETH-USD")
		if err != nil {
			logrus.Error(err)
		} else {
			logrus.WithFields(logrus.Fields{
				"market":      snapshot.MarketID,
				"oraclePrice": snapshot.OraclePrice.String(),
				"status":      snapshot.Status,
			}).Info("market snapshot")
		}

		height, err := client.CurrentBlockHeight(ctx)
		if err != nil {
			logrus.Error(err)
		} else {
			logrus.Info("current block height: ", height)
		}

		address := config.Env.Wallet.Address
		subaccount := config.Env.Wallet.SubaccountNumber

		orders, err := client.ListOrders(ctx, address, subaccount, 10)
		if err != nil {
			logrus.Error(err)
		} else {
			logrus.Info("open orders: ", len(orders))
		}

		positions, err := client.ListPositions(ctx, address, subaccount)
		if err != nil {
			logrus.Error(err)
		} else {
			logrus.Info("positions: ", len(positions))
		}

		params := dydx.NewParamsClient(config.Env.Network.ChainRest)
		for name, result := range map[string]dydx.ParamsResult{
			"fee tiers":        params.FeeTiers(ctx),
			"equity tiers":     params.EquityTiers(ctx),
			"block rate limit": params.BlockRateLimit(ctx),
		} {
			if !result.OK() {
				logrus.Warn(name, " unavailable: ", result.Err)
				continue
			}
			logrus.Info(name, ": ", len(result.Doc), " bytes")
		}
	},
}

func init() {
	rootCmd.AddCommand(playgroundCmd)
}
