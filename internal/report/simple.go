package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/socialmark/internal/model"
)

// SimpleWriter outputs human-readable text reports.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors so the output can be piped to files or other tools.
type SimpleWriter struct {
	baseWriter

	// verbose adds visit information to each page.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.ShareReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeSummary(&sb, report)
	w.writePages(&sb, report)

	return io.WriteString(w.output, sb.String())
}

// WritePage outputs a single page as "URL: service, service".
func (w *SimpleWriter) WritePage(page *model.AnnotatedPage) (int, error) {
	var sb strings.Builder
	w.writePage(&sb, page)
	return io.WriteString(w.output, sb.String())
}

// writeHeader writes the report header.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.ShareReport) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                        SOCIALMARK SHARES\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Generated:  %s\n", formatTime(report.GeneratedAt))
	if report.Filter != "" {
		fmt.Fprintf(sb, "Service:    %s\n", DisplayName(report.Filter))
	}
	fmt.Fprintf(sb, "Pages:      %d\n", len(report.Pages))
	fmt.Fprintf(sb, "Shares:     %d\n\n", report.TotalShares())
}

// writeSummary writes shares per service.
func (w *SimpleWriter) writeSummary(sb *strings.Builder, report *model.ShareReport) {
	if report.IsEmpty() {
		return
	}

	sb.WriteString("SHARES PER SERVICE\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	for _, s := range report.Services() {
		fmt.Fprintf(sb, "  %-12s %d\n", DisplayName(s), report.ServiceCounts[s])
	}
	sb.WriteString("\n")
}

// writePages writes one block per page.
func (w *SimpleWriter) writePages(sb *strings.Builder, report *model.ShareReport) {
	if report.IsEmpty() {
		sb.WriteString("No shared pages recorded.\n")
		return
	}

	sb.WriteString("PAGES\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	for i := range report.Pages {
		w.writePage(sb, &report.Pages[i])
	}
}

func (w *SimpleWriter) writePage(sb *strings.Builder, page *model.AnnotatedPage) {
	saved := "-"
	if len(page.SavedTo) > 0 {
		saved = strings.Join(displayNames(page.SavedTo), ", ")
	}
	fmt.Fprintf(sb, "%s: %s\n", page.URL, saved)

	if w.verbose {
		fmt.Fprintf(sb, "    last visit: %s, visits: %d\n", formatTime(page.LastVisit), page.VisitCount)
	}
}
