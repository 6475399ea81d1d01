// Package cli implements the relayctl operator commands.
package cli

import (
	"github.com/spf13/cobra"
)

var natsURL string

var rootCmd = &cobra.Command{
	Use:   "relayctl",
	Short: "Relay service operator CLI",
	Long: `relayctl is the operator command-line interface for the relay service.

Inspect and drain the manual-fulfillment dead letter queue, and sign
payloads for testing the Ghost webhook endpoint.`,
	Version: "0.1.0",
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&natsURL, "nats-url", "nats://localhost:4222", "NATS server URL")
}
