package report

import (
	"io"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/socialmark/internal/model"
)

// Writer defines the interface for report output.
type Writer interface {
	// Write outputs the share report to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.ShareReport) (int, error)

	// WritePage outputs a single annotated page.
	WritePage(page *model.AnnotatedPage) (int, error)
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for outputting to both terminal and file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(report *model.ShareReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WritePage outputs the page to all configured Writers.
func (m *MultiWriter) WritePage(page *model.AnnotatedPage) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WritePage(page)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// DisplayName returns the human-readable name of a service,
// e.g. "twitter" becomes "Twitter".
// A cases.Caser is stateful, so a new one is created per call.
func DisplayName(service string) string {
	return cases.Title(language.English).String(service)
}

// displayNames maps DisplayName over services.
func displayNames(services []string) []string {
	out := make([]string, len(services))
	for i, s := range services {
		out[i] = DisplayName(s)
	}
	return out
}

// formatTime formats a time for report output, or "-" when unset.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05 MST")
}
