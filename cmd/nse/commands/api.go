package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/nsefeed/internal/api"
	"github.com/wonny/nsefeed/internal/api/handlers"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the HTTP API server",
	Long: `Start the REST API server.

Every client operation is exposed as a GET endpoint; tables are returned as
{"index":[...],"columns":[...],"rows":[...]}.

Endpoints:
  GET  /health
  GET  /api/market-status
  GET  /api/quote/{symbol}?segment=&expiry=&type=&strike=
  GET  /api/option-chain/{symbol}?date=
  GET  /api/bhavcopy?date=&series=
  GET  /api/history/{symbol}?from=&to=
  ...

Example:
  go run ./cmd/nse api
  go run ./cmd/nse api --port 8080 --scheduler`,
	Args: cobra.NoArgs,
	RunE: runAPIServer,
}

var (
	apiPort      string
	apiScheduler bool
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (default PORT)")
	apiCmd.Flags().BoolVar(&apiScheduler, "scheduler", false, "also run the scheduled jobs")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(a *app) error {
		// Override port if flag is set
		if apiPort != "" {
			a.cfg.Port = apiPort
		}

		a.log.WithFields(map[string]interface{}{
			"port":      a.cfg.Port,
			"env":       a.cfg.Env,
			"warehouse": a.db != nil,
		}).Info("Initializing API server")

		// Handlers and router
		var health handlers.HealthChecker
		if a.db != nil {
			health = a.db
		}
		router := api.NewRouter(
			handlers.NewNSEHandler(a.client, a.log),
			handlers.NewHealthHandler(health),
			a.log,
		)
		server := api.New(a.cfg, a.log, router)

		// Optional scheduler
		if apiScheduler {
			sched, err := initScheduler(a)
			if err != nil {
				return fmt.Errorf("init scheduler: %w", err)
			}
			sched.Start()
			defer sched.Stop()
		}

		// Start server with graceful shutdown
		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start()
		}()

		fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
		fmt.Println("\nPress Ctrl+C to stop")

		select {
		case err := <-errCh:
			return err
		case <-cmd.Context().Done():
		}

		a.log.Info("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		a.log.Info("Server stopped")
		return nil
	})
}
