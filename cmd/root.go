package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/CosmoTheDev/hubwatch/internal/config"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	cfgFile string
	verbose bool
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "hubwatch",
	Short: "Turn inventory hub notifications into resolved, deduplicated records",
	Long: `hubwatch polls an inventory/policy hub for notifications (policy
violations, policy overrides, vulnerability updates and version updates),
resolves every reference they carry and merges notifications that describe
the same component version into a single record.

Get started:
  hubwatch onboard       Interactive setup wizard
  hubwatch config init   Write a default config file
  hubwatch doctor        Verify hub, database and cache connectivity
  hubwatch poll          Process notifications since the last poll
  hubwatch watch         Poll on a cron schedule
  hubwatch failures      Inspect notifications that could not be processed`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initLogging)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: ~/.hubwatch/config.json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable verbose/debug output")

	rootCmd.Version = Version
	rootCmd.AddCommand(
		pollCmd,
		watchCmd,
		runsCmd,
		failuresCmd,
		cursorCmd,
		configCmd,
		doctorCmd,
		onboardCmd,
		uiCmd,
	)
}

func initLogging() {
	if verbose {
		slog.SetLogLoggerLevel(slog.LevelDebug)
		slog.Debug("Verbose logging enabled")
	}
}

// loadConfig loads and validates the configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config (run 'hubwatch config path' to locate it):\n%w", err)
	}
	return cfg, nil
}
