package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	outputFormat string
	export       bool
	verbose      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "nse",
	Short: "NSE India market data client",
	Long: `nsefeed Unified CLI

Downloads, normalizes and caches market data from the National Stock Exchange
of India. Every resource is read from the local data directory when a stored
copy is still current.

Usage:
  go run ./cmd/nse [command]

Examples:
  go run ./cmd/nse status
  go run ./cmd/nse bhavcopy --date 2024-06-14
  go run ./cmd/nse hist SBIN --from 2024-01-01 --to 2024-06-30 -o csv
  go run ./cmd/nse option-chain NIFTY --export
  go run ./cmd/nse api`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// Ctrl+C cancels the command context, which stops paced downloads between requests.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", string(FormatTable), "output format (table|json|csv)")
	rootCmd.PersistentFlags().BoolVar(&export, "export", false, "also write result tables to the warehouse (needs DATABASE_URL)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
