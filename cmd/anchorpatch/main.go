package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Mavwarf/anchorpatch/internal/config"
	"github.com/Mavwarf/anchorpatch/internal/patch"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// Exit codes.
const (
	exitError        = 1
	exitPrecondition = 2
)

// app carries state shared by all subcommands for one invocation.
type app struct {
	configPath string
	verbose    bool

	cfg    config.Config
	logger *zap.Logger
	stdout io.Writer
	stderr io.Writer
}

func main() {
	a := &app{stdout: os.Stdout, stderr: os.Stderr}
	if err := a.rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps an error to the process exit status: 2 when an anchor was
// missing, 1 for everything else.
func exitCode(err error) int {
	if errors.Is(err, patch.ErrPreconditionNotMet) {
		return exitPrecondition
	}
	return exitError
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "anchorpatch",
		Short: "Apply anchor-checked literal edits to a source file",
		Long: `anchorpatch edits one text file by replacing exact literal anchors.

Every anchor is checked against the file as left by the previous edits.
If any required anchor is missing nothing is written; otherwise the
result is written back in a single atomic rename.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (default: next to binary or ~/.config/anchorpatch)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		a.applyCmd(),
		a.checkCmd(),
		a.invertCmd(),
		a.historyCmd(),
		a.versionCmd(),
	)
	return root
}

// init loads the config and builds the logger.
func (a *app) init() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	zc := zap.NewProductionConfig()
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.DisableStacktrace = true
	zc.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if a.verbose {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := zc.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.logger = logger
	if cfg.Source != "" {
		a.logger.Debug("config loaded", zap.String("path", cfg.Source))
	}
	return nil
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(a.stdout, "anchorpatch %s (built %s)\n", version, buildDate)
			return nil
		},
	}
}
