// Package cli provides the command-line interface for the market dashboard.
package cli

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"market-dashboard/internal/config"
	"market-dashboard/internal/logging"
	"market-dashboard/internal/service"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2024-06-01"
)

// commandTimeout bounds one-shot analysis commands.
const commandTimeout = 60 * time.Second

// App holds the application dependencies. The runtime is opened on first
// use so that commands like version and config never touch the store.
type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	runtime *service.Runtime
	open    func(*config.Config, zerolog.Logger) (*service.Runtime, error)
}

// Runtime opens the dashboard runtime once.
func (a *App) Runtime() (*service.Runtime, error) {
	if a.runtime != nil {
		return a.runtime, nil
	}
	rt, err := a.open(a.Config, a.Logger)
	if err != nil {
		return nil, err
	}
	a.runtime = rt
	return rt, nil
}

// Dashboard returns the dashboard of the runtime.
func (a *App) Dashboard() (*service.Dashboard, error) {
	rt, err := a.Runtime()
	if err != nil {
		return nil, err
	}
	return rt.Dashboard, nil
}

// Close releases the runtime if it was opened.
func (a *App) Close() error {
	if a.runtime == nil {
		return nil
	}
	return a.runtime.Close()
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
		open:   service.Open,
	}

	rootCmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Market dashboard - technical analysis and multi-timeframe trends",
		Long: `Market dashboard computes technical indicators, pivot levels, trend
verdicts across five timeframes and trading signals for stocks, crypto,
indices, forex and commodities.

Run 'dashboard serve' for the JSON API, or use the analysis commands
directly from the terminal.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.Close()
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/market-dashboard)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	addCoreCommands(rootCmd, app)
	addAnalysisCommands(rootCmd, app)
	addMarketCommands(rootCmd, app)
	rootCmd.AddCommand(newExportCmd(app))
	rootCmd.AddCommand(newServeCmd(app))

	return rootCmd
}

// commandContext returns the context for a one-shot command with the app
// logger attached.
func commandContext(app *App) (context.Context, context.CancelFunc) {
	ctx := logging.WithLogger(context.Background(), app.Logger)
	return context.WithTimeout(ctx, commandTimeout)
}

// addCoreCommands adds core utility commands.
func addCoreCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	addHelpCommands(rootCmd)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			}
			output.Printf("Market Dashboard v%s\n", Version)
			output.Dim("Build date: %s", BuildDate)
			return nil
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config.Redacted())
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			dir := app.Config.Dir
			if dir == "" {
				dir = config.DefaultConfigDir()
			}
			if output.IsJSON() {
				return output.JSON(map[string]string{"path": dir})
			}
			output.Println(dir)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("✓ Configuration is valid")
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Server")
	output.Printf("  Address:         %s\n", cfg.Server.Addr)
	output.Printf("  Request Timeout: %s\n", FormatDuration(cfg.Server.RequestTimeout))
	output.Println()

	output.Bold("Market Data")
	output.Printf("  Provider:        %s\n", cfg.Data.Provider)
	output.Printf("  Mock Fallback:   %v\n", cfg.Data.Fallback)
	output.Printf("  Database:        %s\n", cfg.Data.DBPath)
	output.Printf("  Cache TTL:       %s\n", FormatDuration(cfg.Data.CacheTTL))
	output.Printf("  Alpaca Keys:     %s\n", configured(cfg.HasAlpacaCredentials()))
	output.Println()

	output.Bold("Language Model")
	output.Printf("  Model:           %s\n", cfg.LLM.Model)
	output.Printf("  API Key:         %s\n", configured(cfg.HasLLM()))
	output.Printf("  Rate Limit:      %.0f/min\n", cfg.LLM.RequestsPerMinute)
	output.Println()

	output.Bold("Analysis")
	output.Printf("  Default Period:  %s\n", cfg.Analysis.DefaultPeriod)
	output.Printf("  RSI Levels:      %.0f / %.0f\n", cfg.Analysis.RSIOversold, cfg.Analysis.RSIOverbought)
	output.Printf("  ADX Trend:       %.0f\n", cfg.Analysis.ADXTrend)
}

func configured(ok bool) string {
	if ok {
		return "configured"
	}
	return "not set"
}
