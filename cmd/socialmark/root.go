package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/socialmark/internal/config"
	"github.com/nao1215/socialmark/internal/database"
	"github.com/nao1215/socialmark/internal/log"
	"github.com/nao1215/socialmark/internal/report"
)

// NewRootCmd creates the root command for socialmark.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "socialmark",
		Short: "Record which pages you shared to Facebook, Pocket and Twitter",
		Long: `socialmark observes HTTP traffic and detects page shares to Facebook,
Pocket and Twitter. For every shared page it records a "saved to" annotation
on the page's history entry, so you can later list what went where.

Traffic reaches socialmark either through its capture endpoint
(POST /v1/events) or through its forward proxy.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .socialmark in current or home directory)")
	cmd.PersistentFlags().String("db-dir", "",
		"Directory holding places.db (default: XDG data directory)")
	cmd.PersistentFlags().String("log-format", "",
		"Log format: text or json")

	// Add subcommands
	cmd.AddCommand(NewWatchCmd())
	cmd.AddCommand(NewReplayCmd())
	cmd.AddCommand(NewListCmd())
	cmd.AddCommand(NewShowCmd())
	cmd.AddCommand(NewRecordCmd())
	cmd.AddCommand(NewForgetCmd())
	cmd.AddCommand(NewServicesCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig builds the configuration from the config file, the
// environment and the global flags, in that order of precedence.
// Only flags the user actually set override earlier layers.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()

	configPath, err := flags.GetString("config")
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(configPath, "")
	if err != nil {
		return nil, err
	}

	if flags.Changed("verbose") {
		if cfg.Verbose, err = flags.GetBool("verbose"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("db-dir") {
		if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("log-format") {
		if cfg.LogFormat, err = flags.GetString("log-format"); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// setupLogger creates the secure logger for cfg and installs it as the
// slog default.
func setupLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	logger := log.NewLogger(cmd.ErrOrStderr(), cfg.LogFormat, cfg.Verbose)
	slog.SetDefault(logger)
	return logger
}

// openDatabase opens places.db in cfg.DBDir, creating it when missing.
func openDatabase(cfg *config.Config) (*database.PlacesDB, error) {
	if err := cfg.ValidateStorage(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	db, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// addReportFlags registers the report format and output flags.
func addReportFlags(cmd *cobra.Command) {
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
}

// applyReportFlags copies the report flags onto cfg and validates them.
func applyReportFlags(cmd *cobra.Command, cfg *config.Config) error {
	var err error
	if cfg.JSONReport, err = cmd.Flags().GetBool("json"); err != nil {
		return err
	}
	if cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown"); err != nil {
		return err
	}
	if cfg.ReportFile, err = cmd.Flags().GetString("output"); err != nil {
		return err
	}
	if err := cfg.ValidateOutput(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	return nil
}

// openReportWriter returns the report writer selected by cfg and a close
// function for the output file, if any.
func openReportWriter(cmd *cobra.Command, cfg *config.Config) (report.Writer, func() error, error) {
	var output io.Writer = cmd.OutOrStdout()
	closeFn := func() error { return nil }

	if cfg.ReportFile != "" {
		// Create directories if they don't exist
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		// Reports list browsing history, so only the owner may read them
		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create output file: %w", err)
		}
		output = f
		closeFn = f.Close
	}

	switch {
	case cfg.JSONReport:
		return report.NewVersionedJSONWriter(output, getVersion(), report.WithPrettyPrint()), closeFn, nil
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output), closeFn, nil
	default:
		return report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose)), closeFn, nil
	}
}
