package gauntlet

import (
	"fmt"
	"log/slog"
	"os"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	flagConfig        string
	flagSet           []string
	flagJSON          bool
	flagNoColor       bool
	flagVerbose       bool
	flagNoUpdateCheck bool
	flagSelfUpdate    bool

	version = "0.1.0"
)

// rootCmd is the base Cobra command for the Gauntlet CLI.
var rootCmd = &cobra.Command{
	Use:           "gauntlet",
	Short:         "Run security scan plugins against a target",
	Long:          "Gauntlet orchestrates security scan plugins (WAF fingerprinting, TLS analysis, active scanning) against a target, resolving each plugin's configuration from schema defaults, config files and CLI overrides.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		setupLogging()
	},
}

// Execute runs the Gauntlet CLI. It should be called by the main package.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}
}

func setupLogging() {
	level := charmlog.WarnLevel
	if flagVerbose {
		level = charmlog.DebugLevel
	}
	logger := charmlog.NewWithOptions(os.Stderr, charmlog.Options{
		Prefix:          "gauntlet",
		Level:           level,
		ReportTimestamp: flagVerbose,
	})
	slog.SetDefault(slog.New(logger))
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: .gauntlet.yml, then XDG global)")
	rootCmd.PersistentFlags().StringArrayVar(&flagSet, "set", nil, "override a config value as plugin.dotted.key=value (repeatable)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "emit JSON")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "disable colorized output")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "verbose logging")
	rootCmd.PersistentFlags().BoolVar(&flagNoUpdateCheck, "no-update-check", false, "disable update check")
	rootCmd.PersistentFlags().BoolVar(&flagSelfUpdate, "self-update", false, "update gauntlet to the latest release")
}
