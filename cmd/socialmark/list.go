package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/socialmark/internal/model"
	"github.com/nao1215/socialmark/internal/signature"
)

// NewListCmd creates the list command.
func NewListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pages with their saved-to services",
		Long: `List prints every page that has been shared, with the services it was
saved to, ordered by URL.

Examples:
  # All shared pages
  socialmark list

  # Only pages shared to Pocket
  socialmark list --service pocket

  # Markdown report with a chart of shares per service
  socialmark list --markdown -o shares.md`,
		Args: cobra.NoArgs,
		RunE: runListCmd,
	}

	cmd.Flags().StringP("service", "s", "",
		"Only list pages saved to this service (facebook, pocket, twitter)")
	addReportFlags(cmd)

	return cmd
}

// runListCmd executes the list command.
func runListCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyReportFlags(cmd, cfg); err != nil {
		return err
	}
	setupLogger(cmd, cfg)

	service, err := cmd.Flags().GetString("service")
	if err != nil {
		return err
	}
	if service != "" && !knownService(service) {
		return fmt.Errorf("unknown service %q (see 'socialmark services')", service)
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	pages, err := db.ListAnnotated(cmd.Context(), service)
	if err != nil {
		return err
	}

	w, closeFn, err := openReportWriter(cmd, cfg)
	if err != nil {
		return err
	}
	defer closeFn() //nolint:errcheck // Report already written or failed

	_, err = w.Write(model.NewShareReport(pages, service, time.Now()))
	return err
}

// knownService reports whether name is a service in the default table.
func knownService(name string) bool {
	for _, s := range signature.Default().Services() {
		if s.Name == name {
			return true
		}
	}
	return false
}
