package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"market-dashboard/internal/server"
)

func newServeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard JSON API",
		Long: `Serve the dashboard API under /api and Prometheus metrics under
/metrics. The server shuts down gracefully on SIGINT or SIGTERM.`,
		Example: `  dashboard serve
  dashboard serve --addr :9000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			rt, err := app.Runtime()
			if err != nil {
				output.Error("Failed to start: %v", err)
				return err
			}

			cfg := app.Config.Server
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				cfg.Addr = addr
			}

			handler := server.NewHandler(rt.Dashboard, app.Logger)
			router := server.NewRouter(handler, cfg, rt.Metrics, rt.Registry)
			srv := server.New(cfg, router, app.Logger)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			output.Info("Serving on %s (provider: %s)", cfg.Addr, rt.Dashboard.ProviderName())
			return srv.Run(ctx)
		},
	}

	cmd.Flags().String("addr", "", "listen address (overrides config)")

	return cmd
}
