// Command dashboard runs the market dashboard CLI and API server.
package main

import (
	"os"
	"strings"

	"github.com/fatih/color"

	"market-dashboard/internal/cli"
	"market-dashboard/internal/config"
	"market-dashboard/internal/logging"
)

func main() {
	cfg, err := config.Load(configDir(os.Args[1:]))
	if err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLoggerWithConfig(logging.LogConfig{
		Level:      cfg.Logging.Level,
		Console:    true,
		File:       cfg.Logging.File,
		FilePath:   cfg.Logging.FilePath,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
	})
	for _, path := range cfg.Created {
		logger.Info().Str("path", path).Msg("Wrote configuration template")
	}

	if err := cli.NewRootCmd(cfg, logger).Execute(); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// configDir finds the --config flag before cobra parses the command line,
// since the configuration is needed to build the commands.
func configDir(args []string) string {
	for i, arg := range args {
		if arg == "--" {
			break
		}
		if v, ok := strings.CutPrefix(arg, "--config="); ok {
			return v
		}
		if arg == "--config" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}
