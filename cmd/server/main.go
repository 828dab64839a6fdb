/*
main.go - Application entry point

PURPOSE:
  Command-line entry point of the payment ledger.

COMMANDS:
  serve      Start the HTTP API over a SQLite store
  simulate   Replay a benefit schedule (and optional changes) in memory and
             print the resulting timeline

STARTUP SEQUENCE (serve):
  1. Load config (--config), apply flag overrides
  2. Build zap logger
  3. Initialize SQLite store and snowflake node
  4. Create service, handler, router
  5. Start server with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  payment-ledger serve --config=./config.yaml
  payment-ledger serve --db=":memory:" --port=3000
  payment-ledger simulate --schedule=./schedule.yaml --today=2025-03-15 --pause

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Configuration keys
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "payment-ledger",
		Short:   "Payment-instruction ledger for benefit cases",
		Version: Version,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(simulateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
