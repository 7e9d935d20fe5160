package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewForgetCmd creates the forget command.
func NewForgetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forget URL",
		Short: "Remove a page's history entry and its annotations",
		Long: `Forget deletes the history entry of URL together with its visits and
its saved-to annotation. Annotations never outlive their history entry.`,
		Args: cobra.ExactArgs(1),
		RunE: runForgetCmd,
	}
}

// runForgetCmd executes the forget command.
func runForgetCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	setupLogger(cmd, cfg)

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	removed, err := db.Forget(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("no history entry for %s", args[0])
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Forgot %s\n", args[0])
	return nil
}
