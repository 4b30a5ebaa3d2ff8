package cli

import (
	"github.com/spf13/cobra"
)

type commandRef struct {
	cmd  string
	desc string
}

type commandGroup struct {
	name     string
	commands []commandRef
}

var commandGroups = []commandGroup{
	{
		name: "Market Data",
		commands: []commandRef{
			{"categories", "List market categories"},
			{"tickers <category>", "Instruments of a category"},
			{"chart <symbol>", "Price bars for a period"},
			{"summary", "Indices, stocks and crypto overview"},
			{"status", "Market session and component health"},
		},
	},
	{
		name: "Analysis",
		commands: []commandRef{
			{"analyze <symbol>", "Full technical report"},
			{"signal <symbol>", "Signals and overall vote"},
			{"mtf <symbol>", "Trend on 5m, 15m, 1h, 1d and 1mo"},
			{"pivots <symbol>", "Pivot points and strategies"},
			{"indicator <symbol> [name]", "One indicator series"},
			{"reports <symbol>", "Stored reports"},
		},
	},
	{
		name: "Narrative",
		commands: []commandRef{
			{"ask <question>", "Market copilot"},
			{"catalyst <symbol>", "Catalyst outlook"},
		},
	},
	{
		name: "Utilities",
		commands: []commandRef{
			{"serve", "JSON API and metrics"},
			{"export bars/indicators", "Data export"},
			{"config show/path/validate", "Configuration"},
			{"version", "Version information"},
		},
	},
}

// addHelpCommands adds help and documentation commands.
func addHelpCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newCommandsCmd())
	rootCmd.AddCommand(newQuickstartCmd())
}

func newCommandsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "commands",
		Short: "List all commands by category",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			if output.IsJSON() {
				grouped := make(map[string][]string, len(commandGroups))
				for _, g := range commandGroups {
					for _, c := range g.commands {
						grouped[g.name] = append(grouped[g.name], c.cmd)
					}
				}
				return output.JSON(grouped)
			}

			output.Bold("Market Dashboard Commands")
			output.Println()
			for _, g := range commandGroups {
				output.Bold(g.name)
				for _, c := range g.commands {
					output.Printf("  %s %s\n", PadRight(output.Cyan(c.cmd), 28), c.desc)
				}
				output.Println()
			}
			output.Dim("Use 'dashboard help <command>' for detailed help on any command")
			return nil
		},
	}
}

func newQuickstartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quickstart",
		Short: "New user guide",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			output.Bold("Market Dashboard - Quick Start Guide")
			output.Println()

			steps := []struct {
				title string
				desc  string
				cmd   string
			}{
				{"Configure credentials", "Put your Alpaca and OpenAI keys in credentials.toml or .env.", "dashboard config path"},
				{"Check the setup", "Without Alpaca keys the synthetic provider is used.", "dashboard status"},
				{"Look at the market", "Latest moves of indices, stocks and crypto.", "dashboard summary"},
				{"Analyze a symbol", "Indicators, signals, pivots and timeframe trends.", "dashboard analyze AAPL"},
				{"Ask a question", "Needs OPENAI_API_KEY.", "dashboard ask \"is BTC trending up this week?\""},
				{"Run the API", "Serves /api and /metrics.", "dashboard serve"},
			}

			for i, s := range steps {
				output.Printf("%s Step %d: %s\n", output.Cyan("→"), i+1, output.BoldText(s.title))
				output.Printf("  %s\n", s.desc)
				output.Printf("  %s\n\n", output.DimText(s.cmd))
			}

			output.Bold("Configuration Files")
			output.Printf("  %s - Server, data, model, logging and analysis settings\n", output.Cyan("config.toml"))
			output.Printf("  %s - API keys\n", output.Cyan("credentials.toml"))
			output.Println()
			output.Printf("  %s Signals are informational, not trading advice\n", output.Yellow("⚠"))
			return nil
		},
	}
}
