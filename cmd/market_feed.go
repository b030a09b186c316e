/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"github.com/spf13/cobra"

	"dydx-broker/internal/bootstrap"
)

// marketFeedCmd represents the marketFeed command
var marketFeedCmd = &cobra.Command{
	Use:   "market-feed-worker",
	Short: "Start the Market Feed worker",
	Long: `The Market Feed worker subscribes to the indexer markets websocket
channel and keeps the shared snapshot cache warm, so order flows read
oracle prices from redis instead of hitting the indexer REST API on
every placement.`,
	Run: bootstrap.StartMarketFeedWorker,
}

func init() {
	rootCmd.AddCommand(marketFeedCmd)
}
