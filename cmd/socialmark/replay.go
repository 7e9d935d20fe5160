package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/socialmark/internal/capture"
)

// NewReplayCmd creates the replay command.
func NewReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay FILE...",
		Short: "Replay recorded events through the share pipeline",
		Long: `Replay reads events from JSON lines files, as written by
'socialmark watch --record', and runs them through the share pipeline as if
they had just been observed. Files ending in .gz are decompressed.

Lines that are blank or malformed are skipped and counted.

Examples:
  socialmark replay events.jsonl
  socialmark replay --concurrency 1 monday.jsonl.gz tuesday.jsonl.gz`,
		Args: cobra.MinimumNArgs(1),
		RunE: runReplayCmd,
	}

	cmd.Flags().IntP("concurrency", "n", 0,
		"Maximum number of shares processed at once (default from config)")

	return cmd
}

// runReplayCmd executes the replay command.
func runReplayCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("concurrency") {
		if cfg.Concurrency, err = cmd.Flags().GetInt("concurrency"); err != nil {
			return err
		}
	}
	if cfg.Concurrency <= 0 {
		return fmt.Errorf("configuration error: invalid concurrency %d", cfg.Concurrency)
	}
	// Replaying into the recording would append to the file being read.
	cfg.RecordFile = ""

	logger := setupLogger(cmd, cfg)

	e, err := newEngine(cfg, logger)
	if err != nil {
		return err
	}

	replayer := capture.NewReplayer(e.hub, capture.WithReplayLogger(logger))
	var runErr error
	for _, path := range args {
		result, err := replayer.ReplayFile(cmd.Context(), path)
		if err != nil {
			runErr = err
			break
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d published, %d skipped\n",
			path, result.Published, result.Skipped)
	}

	closeErr := e.Close()
	e.printStats(cmd.OutOrStdout())

	if runErr != nil {
		return runErr
	}
	return closeErr
}
