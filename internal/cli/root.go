// Package cli implements the avatars command-line interface.
//
// This package uses global variables to manage CLI state, which is the standard
// pattern for Cobra-based CLI applications. The globals are initialized in
// PersistentPreRunE and cleaned up in PersistentPostRun.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level state
package cli

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/pharos-avatars/internal/config"
	"github.com/mrz1836/pharos-avatars/internal/metrics"
	"github.com/mrz1836/pharos-avatars/internal/output"
	avatarerr "github.com/mrz1836/pharos-avatars/pkg/errors"
)

var (
	// Global flags
	homeDir      string
	outputFormat string
	verbose      bool
	assumeYes    bool

	timeoutOverride time.Duration

	// Global state initialized in PersistentPreRunE
	cfg       *config.Config
	logger    *config.Logger
	formatter *output.Formatter
	collector *metrics.Metrics

	buildInfo BuildInfo
	helpOnce  sync.Once
)

// BuildInfo is stamped into the binary at link time.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "avatars",
	Short: "Mint and browse Pharos Avatars from the terminal",
	Long: `avatars is a terminal client for the Pharos Avatars NFT collection.

It connects a local keystore wallet, moves it to the Pharos network,
shows which avatars are minted or still available, and mints new ones
at the fixed price.

Example:
  avatars account create
  avatars connect
  avatars gallery
  avatars mint 7`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return initGlobals()
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		cleanup()
	},
}

// versionCmd prints build information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if formatter.IsJSON() {
			return writeJSON(cmd.OutOrStdout(), buildInfo.normalized())
		}
		outln(cmd.OutOrStdout(), "avatars", formatVersion(buildInfo))
		return nil
	},
}

// SetBuildInfo records version details for the version command.
func SetBuildInfo(info BuildInfo) {
	buildInfo = info
	rootCmd.Version = formatVersion(info)
}

func (b BuildInfo) normalized() BuildInfo {
	if b.Version == "" {
		b.Version = "dev"
	}
	if b.Commit == "" {
		b.Commit = "unknown"
	}
	if b.Date == "" {
		b.Date = "unknown"
	}
	return b
}

func formatVersion(info BuildInfo) string {
	n := info.normalized()
	return fmt.Sprintf("%s (commit: %s, built: %s)", n.Version, n.Commit, n.Date)
}

// Execute runs the root command.
func Execute() error {
	helpOnce.Do(func() { walkCommands(rootCmd, enrichParentLong) })

	err := rootCmd.Execute()
	if err != nil {
		if formatter != nil {
			_ = output.FormatError(os.Stderr, err, formatter.Format())
		} else {
			_ = output.FormatError(os.Stderr, err, output.FormatText)
		}
		return err
	}
	return nil
}

// ExitCode returns the appropriate exit code for an error.
func ExitCode(err error) int {
	return avatarerr.ExitCode(err)
}

// initGlobals initializes global configuration, logger, and formatter.
func initGlobals() error {
	home := homeDir
	if home == "" {
		home = os.Getenv(config.EnvHome)
	}
	if home == "" {
		home = config.DefaultHome()
	}

	var err error
	cfg, err = config.Load(config.Path(home))
	if err != nil {
		if avatarerr.Is(err, avatarerr.ErrConfigInvalid) {
			return err
		}
		cfg = config.Defaults()
		cfg.Home = home
	}

	config.ApplyEnvironment(cfg)

	if homeDir != "" {
		cfg.Home = homeDir
	}
	if verbose {
		cfg.Output.Verbose = true
		cfg.Logging.Level = "debug"
	}
	if outputFormat != "" && outputFormat != "auto" {
		cfg.Output.DefaultFormat = outputFormat
	}

	logger, err = config.NewLogger(config.ParseLogLevel(cfg.Logging.Level), cfg.Logging.File)
	if err != nil {
		logger = config.NullLogger()
	}

	explicitFormat := output.ParseFormat(cfg.Output.DefaultFormat)
	formatter = output.NewFormatter(output.DetectFormat(os.Stdout, explicitFormat), os.Stdout)
	formatter.SetColor(colorEnabled(cfg.Output.Color))

	collector = metrics.New()
	return nil
}

func colorEnabled(mode string) bool {
	switch strings.ToLower(mode) {
	case "always":
		return true
	case "never":
		return false
	default:
		return output.IsTerminal(os.Stdout)
	}
}

// cleanup releases resources.
func cleanup() {
	if logger != nil {
		_ = logger.Close()
	}
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for flag registration
func init() {
	rootCmd.PersistentFlags().StringVar(&homeDir, "home", "", "avatars data directory (default: ~/.avatars)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "auto", "output format: text, json, auto")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "approve wallet confirmation prompts")
	rootCmd.PersistentFlags().DurationVar(&timeoutOverride, "timeout", 0, "override the command timeout (e.g. 30s, 5m)")

	rootCmd.AddCommand(versionCmd)
}
