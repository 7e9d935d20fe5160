package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/socialmark/internal/report"
	"github.com/nao1215/socialmark/internal/signature"
)

// NewServicesCmd creates the services command.
func NewServicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "services",
		Short: "List the watched sharing endpoints",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			for _, s := range signature.Default().Services() {
				fmt.Fprintf(out, "%-10s %-10s %s\n", s.Name, report.DisplayName(s.Name), s.Prefix)
			}
		},
	}
}
