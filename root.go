package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mvasconcellos/driveup/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagJSON       bool
	flagVerbose    bool
	flagQuiet      bool
	flagLogLevel   string
)

// resolvedCfg holds the effective configuration loaded by
// PersistentPreRunE. Available to all subcommands after the root
// pre-run phase; commands in skipConfigCommands handle config (or its
// absence) themselves.
var resolvedCfg *config.Config

// httpClientTimeout bounds metadata requests so a hung connection never
// wedges a CLI command. Upload chunk requests use the Drive client's
// own longer timeout.
const httpClientTimeout = 30 * time.Second

// defaultHTTPClient returns an HTTP client with a sensible timeout.
func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: httpClientTimeout}
}

// skipConfigCommands lists commands that must work before a valid
// config exists. Keyed by CommandPath() for explicit matching.
var skipConfigCommands = map[string]bool{
	"driveup login":       true,
	"driveup logout":      true,
	"driveup status":      true,
	"driveup config":      true,
	"driveup config path": true,
	"driveup config show": true,
	"driveup config init": true,
	"driveup version":     true,
}

// newRootCmd builds the fully-assembled root command. Called once from
// main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "driveup",
		Short:   "Replicate a local directory tree to Google Drive",
		Long:    "driveup mirrors local directories into Google Drive folders with resumable uploads, progress reporting, and clean cancellation.",
		Version: version,
		// Silence cobra's default error/usage printing; exitOnError handles it.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if skipConfigCommands[cmd.CommandPath()] {
				return nil
			}

			return loadConfig(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")
	cmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level (error, warn, info, debug)")

	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newPushCmd())
	cmd.AddCommand(newScanCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newLsCmd())
	cmd.AddCommand(newMkdirCmd())
	cmd.AddCommand(newDuCmd())
	cmd.AddCommand(newRmCmd())
	cmd.AddCommand(newAboutCmd())
	cmd.AddCommand(newHistoryCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// newVersionCmd prints the build version.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the driveup version",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Println("driveup " + version)
		},
	}
}

// loadConfig resolves the effective configuration from the four-layer
// override chain and stores it in resolvedCfg for subcommands.
func loadConfig(cmd *cobra.Command) error {
	cli := config.CLIOverrides{
		ConfigPath: flagConfigPath,
	}

	// Pointer overrides only when the user actually set the flag; an
	// untouched flag must not shadow config-file values.
	bindStringFlag(cmd, "chunk-size", &cli.ChunkSize)
	bindStringFlag(cmd, "bandwidth-limit", &cli.BandwidthLimit)
	bindStringFlag(cmd, "journal-path", &cli.JournalPath)
	bindBoolFlag(cmd, "verify", &cli.Verify)
	bindBoolFlag(cmd, "no-journal", &cli.NoJournal)

	if cmd.Flags().Changed("log-level") {
		cli.LogLevel = &flagLogLevel
	}

	env := config.ReadEnvOverrides()

	cfg, err := config.Resolve(env, cli)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	resolvedCfg = cfg

	return nil
}

// bindStringFlag copies a string flag into a CLIOverrides pointer field
// when the user set it on this command.
func bindStringFlag(cmd *cobra.Command, name string, dst **string) {
	if flag := cmd.Flags().Lookup(name); flag != nil && flag.Changed {
		value := flag.Value.String()
		*dst = &value
	}
}

// bindBoolFlag copies a bool flag into a CLIOverrides pointer field
// when the user set it on this command.
func bindBoolFlag(cmd *cobra.Command, name string, dst **bool) {
	if flag := cmd.Flags().Lookup(name); flag != nil && flag.Changed {
		value := flag.Value.String() == "true"
		*dst = &value
	}
}

// buildLogger creates an slog.Logger from the resolved config and CLI
// flags. The config file sets the baseline; --verbose and --quiet win
// because CLI flags always win.
func buildLogger() *slog.Logger {
	level := slog.LevelInfo

	if resolvedCfg != nil {
		switch resolvedCfg.Log.Level {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}

	if flagVerbose {
		level = slog.LevelDebug
	}

	if flagQuiet {
		level = slog.LevelError
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
