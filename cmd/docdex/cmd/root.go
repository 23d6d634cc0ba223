// Package cmd provides the CLI commands for docdex.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/gmickel/docdex/internal/config"
	"github.com/gmickel/docdex/internal/logging"
	"github.com/gmickel/docdex/pkg/version"
)

var (
	debugMode      bool
	noColor        bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the docdex CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docdex",
		Short: "Local-first document index with hybrid search",
		Long: `Docdex indexes collections of markdown and text documents into a
local store and answers queries with hybrid retrieval: expanded
keyword search plus semantic search, with line-accurate citations.

Run 'docdex init' in a project directory to get started.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("docdex version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.docdex/logs/")
	cmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newExpandCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startLogging configures slog from the project config's logging
// section. The --debug flag forces debug level plus a log file.
func startLogging(_ *cobra.Command, _ []string) error {
	lcfg := logging.Config{Level: "info"}
	// A broken config falls back to defaults here; the command itself
	// surfaces the load error.
	if cfg, err := config.Load(projectRoot()); err == nil {
		lcfg.Level = cfg.Logging.Level
		lcfg.FilePath = cfg.Logging.File
	}
	if debugMode {
		lcfg.Level = "debug"
		if lcfg.FilePath == "" {
			lcfg.FilePath = logging.DefaultLogPath()
		}
		lcfg.WriteToStderr = true
	}

	cleanup, err := logging.SetupDefault(lcfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	loggingCleanup = cleanup

	if debugMode {
		slog.Info("debug_logging_enabled",
			slog.String("log_file", lcfg.FilePath),
			slog.String("version", version.Version))
	}

	return nil
}

// stopLogging closes the debug log file.
func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
