// Command webhook-tool is a local development helper for the webhook
// service: it signs payloads, sends simulated catalog item webhooks and
// seeds the institution table.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "webhook-tool",
	Short: "Development utilities for the item webhook service",
	PersistentPreRun: func(*cobra.Command, []string) {
		_ = godotenv.Load()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(signCmd, sendCmd, seedCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
