/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"github.com/spf13/cobra"

	"dydx-broker/internal/bootstrap"
)

// brokerGatewayCmd represents the brokerGateway command
var brokerGatewayCmd = &cobra.Command{
	Use:   "broker-gateway",
	Short: "Start the Broker Gateway service",
	Long: `The Broker Gateway exposes the order placement surface over HTTP. It
builds and validates order descriptors against fresh market data, routes
them through the configured submitter, and serves account queries and
protocol parameter lookups from the indexer and chain endpoints.`,
	Run: bootstrap.StartBrokerGateway,
}

func init() {
	rootCmd.AddCommand(brokerGatewayCmd)
}
