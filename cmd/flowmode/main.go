// Package main is the CLI entry point for flowmode.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/focusd/flowmode/internal/config"
	"github.com/eliteGoblin/focusd/flowmode/internal/infra"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds what every command needs. It is built once per invocation in
// the root PersistentPreRunE and handed to each command explicitly.
type app struct {
	dataDir string
	verbose bool

	paths  *infra.Paths
	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "flowmode",
		Short: "Desktop focus tracker",
		Long: `flowmode watches which application has keyboard focus and records
time spent per application into a local SQLite ledger.

Run 'flowmode start --detach' to begin tracking in the background and
'flowmode stats' to see where today went.`,
		Version:      Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}

	root.PersistentFlags().StringVar(&a.dataDir, "data-dir", "", "Directory for config, ledger and logs (default: XDG dirs)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		a.daemonCmd(),
		a.startCmd(),
		a.stopCmd(),
		a.pauseCmd(),
		a.resumeCmd(),
		a.statusCmd(),
		a.statsCmd(),
		a.detailedCmd(),
		a.hourlyCmd(),
		a.weekCmd(),
		a.historyCmd(),
		a.appsCmd(),
		a.resetCmd(),
		a.initCmd(),
		versionCmd(),
	)
	return root
}

func (a *app) setup() error {
	if a.dataDir != "" {
		a.paths = infra.PathsAt(a.dataDir)
	} else {
		paths, err := infra.DetectPaths()
		if err != nil {
			return err
		}
		a.paths = paths
	}

	a.logger = newCLILogger(a.verbose)
	a.cfg = config.Load(a.paths.ConfigFile(), a.logger)
	return nil
}

// forwardedFlags are the root flags a detached daemon must inherit.
func (a *app) forwardedFlags() []string {
	var args []string
	if a.dataDir != "" {
		args = append(args, "--data-dir", a.dataDir)
	}
	if a.verbose {
		args = append(args, "--verbose")
	}
	return args
}

// newCLILogger logs warnings to stderr, or everything with --verbose.
func newCLILogger(verbose bool) *zap.Logger {
	config := zap.NewDevelopmentConfig()
	if !verbose {
		config.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	config.DisableStacktrace = true

	logger, err := config.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// createLogger builds the daemon logger writing JSON lines to logPath.
func createLogger(logPath string, verbose bool) *zap.Logger {
	config := zap.NewProductionConfig()
	config.OutputPaths = []string{logPath}
	config.ErrorOutputPaths = []string{logPath}
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		config.OutputPaths = append(config.OutputPaths, "stderr")
	}
	config.EncoderConfig.TimeKey = "time"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		// Fallback to stderr if file logging fails
		logger, _ = zap.NewProduction()
	}
	return logger
}

func versionCmd() *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			if jsonOutput {
				fmt.Fprintf(out, `{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
					Version, Commit, BuildTime)
			} else {
				fmt.Fprintf(out, "flowmode %s (commit: %s, built: %s)\n",
					Version, Commit, BuildTime)
			}
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")
	return cmd
}
