package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewShowCmd creates the show command.
func NewShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show URL",
		Short: "Show the saved-to services and visits of a page",
		Args:  cobra.ExactArgs(1),
		RunE:  runShowCmd,
	}

	addReportFlags(cmd)

	return cmd
}

// runShowCmd executes the show command.
func runShowCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyReportFlags(cmd, cfg); err != nil {
		return err
	}
	setupLogger(cmd, cfg)

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	page, err := db.Page(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if page == nil {
		return fmt.Errorf("no history entry for %s", args[0])
	}

	w, closeFn, err := openReportWriter(cmd, cfg)
	if err != nil {
		return err
	}
	defer closeFn() //nolint:errcheck // Report already written or failed

	_, err = w.WritePage(page)
	return err
}
