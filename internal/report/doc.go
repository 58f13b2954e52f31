// Package report renders verification runs.
//
// This package contains writers for different output formats:
//   - TableWriter: terminal table, optionally decorated with status glyphs
//   - CSVWriter: the simple or rich CSV export
//   - MarkdownWriter: a shareable report with a verdict pie chart
//   - JSONWriter: structured output for tool integration
//
// Writers implement the Writer interface, allowing them to be used
// interchangeably and composed with MultiWriter. ProgressBar draws
// verification progress while a run is in flight.
package report
