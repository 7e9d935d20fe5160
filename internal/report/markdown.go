package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/socialmark/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.ShareReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSummary(md, report)
	w.writePages(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WritePage outputs a single page in Markdown format.
func (w *MarkdownWriter) WritePage(page *model.AnnotatedPage) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H2(page.URL)
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Saved To", savedToCell(page.SavedTo)},
			{"Last Visit", formatTime(page.LastVisit)},
			{"Visits", strconv.Itoa(page.VisitCount)},
		},
	})

	return len(md.String()), md.Build()
}

// writeHeader writes the report header.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.ShareReport) {
	md.H1("Socialmark Shares")
	md.PlainText("")

	rows := [][]string{
		{"Generated", formatTime(report.GeneratedAt)},
		{"Pages", strconv.Itoa(len(report.Pages))},
		{"Shares", strconv.Itoa(report.TotalShares())},
	}
	if report.Filter != "" {
		rows = append(rows, []string{"Service", DisplayName(report.Filter)})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeSummary writes shares per service with a pie chart.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.ShareReport) {
	md.H2("Shares per Service")
	md.PlainText("")

	if report.IsEmpty() {
		md.Note("No shared pages recorded yet.")
		md.PlainText("")
		return
	}

	services := report.Services()
	rows := make([][]string, len(services))
	for i, s := range services {
		rows[i] = []string{DisplayName(s), strconv.Itoa(report.ServiceCounts[s])}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Service", "Pages"},
		Rows:   rows,
	})
	md.PlainText("")

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Shares per Service"),
		piechart.WithShowData(true),
	)
	for _, s := range services {
		chart.LabelAndIntValue(DisplayName(s), uint64(report.ServiceCounts[s])) //nolint:gosec // counts are never negative
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writePages writes the table of annotated pages.
func (w *MarkdownWriter) writePages(md *markdown.Markdown, report *model.ShareReport) {
	if report.IsEmpty() {
		return
	}

	md.H2("Pages")
	md.PlainText("")

	rows := make([][]string, len(report.Pages))
	for i, p := range report.Pages {
		rows[i] = []string{
			truncateString(p.URL, 80),
			savedToCell(p.SavedTo),
			formatTime(p.LastVisit),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"URL", "Saved To", "Last Visit"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [socialmark](https://github.com/nao1215/socialmark)*")
}

// savedToCell renders a saved-to list for a table cell.
func savedToCell(savedTo model.SavedTo) string {
	if len(savedTo) == 0 {
		return "-"
	}
	return strings.Join(displayNames(savedTo), ", ")
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
