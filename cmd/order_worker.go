/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"github.com/spf13/cobra"

	"dydx-broker/internal/bootstrap"
)

// orderWorkerCmd represents the orderWorker command
var orderWorkerCmd = &cobra.Command{
	Use:   "order-worker",
	Short: "Start the Order Worker service",
	Long: `The Order Worker consumes queued order placement events from jetstream
and runs them through the same build, validate and submit flow the
gateway uses. Transient failures are requeued with a retry counter,
validation and rejection failures are dropped after logging.`,
	Run: bootstrap.StartOrderWorker,
}

func init() {
	rootCmd.AddCommand(orderWorkerCmd)
}
