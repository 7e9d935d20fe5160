package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/socialmark/internal/annotation"
	"github.com/nao1215/socialmark/internal/report"
	"github.com/nao1215/socialmark/internal/signature"
)

// NewRecordCmd creates the record command.
func NewRecordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "record URL SERVICE",
		Short: "Record a share by hand",
		Long: `Record adds SERVICE to the saved-to list of URL, exactly as if the share
had been observed. Recording the same share twice has no effect.

Example:
  socialmark record https://example.com/article twitter`,
		Args: cobra.ExactArgs(2),
		RunE: runRecordCmd,
	}
}

// runRecordCmd executes the record command.
func runRecordCmd(cmd *cobra.Command, args []string) error {
	rawURL, service := args[0], args[1]

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := setupLogger(cmd, cfg)

	if !knownService(service) {
		return fmt.Errorf("unknown service %q (see 'socialmark services')", service)
	}
	if err := signature.ValidateSharedURL(rawURL); err != nil {
		return fmt.Errorf("cannot record %q: %w", rawURL, err)
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	merger := annotation.NewMerger(db, annotation.WithLogger(logger))
	savedTo, err := merger.RecordShare(cmd.Context(), rawURL, service)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", rawURL,
		strings.Join(displayNames(savedTo), ", "))
	return nil
}

func displayNames(services []string) []string {
	out := make([]string, len(services))
	for i, s := range services {
		out[i] = report.DisplayName(s)
	}
	return out
}
