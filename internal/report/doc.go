// Package report provides report generation and output functionality.
//
// This package contains writers for different output formats:
//   - SimpleWriter: Human-readable text output for terminal display
//   - JSONWriter: Structured JSON output for tool integration
//   - MarkdownWriter: Markdown with a table of pages and a mermaid pie
//     chart of shares per service
//
// Design decision: We separate report writing from report data structures
// (which are in the model package) so new output formats never touch the
// store or the pipeline.
//
// Writers implement the Writer interface, allowing them to be used
// interchangeably and composed for multi-format output.
package report
