// Package cmd implements the CLI commands using Cobra.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"dzactions/internal/config"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Global flags
var (
	flagDebug     bool
	flagUI        string
	flagHandshake bool
	flagProxy     string
)

// cfg holds the loaded configuration (merged: defaults < config file < flags).
var cfg *config.Config

// env holds the variables Dropzone exported for this run.
var env *config.Env

var logger = zap.NewNop()

var rootCmd = &cobra.Command{
	Use:   "dzactions",
	Short: "Dropzone actions for uploading, shortening and downloading",
	Long: `dzactions bundles Dropzone actions in one binary.
Each action is run once per drop or click and reports its progress to Dropzone
on stdout, or to the terminal when run by hand.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// Execute runs the root command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagDebug, "debug", "x", false, "Debug logging to stderr")
	rootCmd.PersistentFlags().StringVar(&flagUI, "ui", "auto", "Progress output: auto | protocol | tui")
	rootCmd.PersistentFlags().BoolVar(&flagHandshake, "handshake", false, "Wait for an acknowledgement line on stdin after each protocol line")
	rootCmd.PersistentFlags().StringVar(&flagProxy, "proxy", "", "HTTP or SOCKS5 proxy URL")

	rootCmd.AddCommand(instagramCmd)
	rootCmd.AddCommand(qiniuCmd)
	rootCmd.AddCommand(shortioCmd)
	rootCmd.AddCommand(tinifyCmd)
	rootCmd.AddCommand(wetransferCmd)
	rootCmd.AddCommand(youtubeCmd)
	rootCmd.AddCommand(ftpesCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig loads and merges configuration: defaults < config file < CLI flags,
// then builds the logger.
func loadConfig(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	env = config.LoadEnv(os.LookupEnv)

	// CLI flags override config file values
	if flagDebug {
		cfg.Debug = true
	}
	if flagHandshake {
		cfg.Handshake = true
	}
	if flagProxy != "" {
		cfg.Proxy = flagProxy
	}
	switch flagUI {
	case "auto", "protocol", "tui":
	default:
		return fmt.Errorf("unsupported --ui %q (valid: auto, protocol, tui)", flagUI)
	}

	// Re-validate after flag overrides
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err = newLogger(cfg.Debug)
	if err != nil {
		return err
	}
	return nil
}

// newLogger returns a production logger on stderr; stdout belongs to the protocol.
func newLogger(debug bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	if debug {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	l, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	return l, nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "dzactions", Version)
	},
}
