package report

import (
	"io"
	"strings"

	"github.com/nao1215/bulkverify/internal/config"
	"github.com/nao1215/bulkverify/internal/model"
)

// CSVWriter exports results as CSV text.
//
// Two layouts exist:
//   - simple: "Email,Status" header, unquoted fields, status glyphs stripped
//   - rich: "Email,Status,Reason" header, every row field double-quoted
//
// Rows are joined with "\n" and the output has no trailing newline.
type CSVWriter struct {
	baseWriter

	// format is config.FormatSimple or config.FormatRich.
	format string

	// stripGlyphs removes ✅/❌ from statuses in the simple layout.
	stripGlyphs bool
}

// CSVWriterOption configures a CSVWriter.
type CSVWriterOption func(*CSVWriter)

// WithStripGlyphs controls glyph stripping in the simple layout.
func WithStripGlyphs(strip bool) CSVWriterOption {
	return func(w *CSVWriter) {
		w.stripGlyphs = strip
	}
}

// NewCSVWriter creates a CSVWriter for format. Any format other than
// config.FormatRich produces the simple layout.
func NewCSVWriter(output io.Writer, format string, opts ...CSVWriterOption) *CSVWriter {
	w := &CSVWriter{
		baseWriter:  newBaseWriter(output),
		format:      format,
		stripGlyphs: true,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write exports the results of run.
func (w *CSVWriter) Write(run *model.Run) (int, error) {
	return io.WriteString(w.output, w.Encode(run.Results))
}

// Encode renders results as CSV text.
func (w *CSVWriter) Encode(results []model.Result) string {
	lines := make([]string, 0, len(results)+1)
	lines = append(lines, strings.Join(Columns(w.format), ","))

	for _, r := range results {
		if w.format == config.FormatRich {
			lines = append(lines, strings.Join([]string{
				quote(r.Email),
				quote(r.Status),
				quote(r.Reason),
			}, ","))
			continue
		}

		status := r.Status
		if w.stripGlyphs {
			status = model.StripGlyphs(status)
		}
		lines = append(lines, r.Email+","+status)
	}

	return strings.Join(lines, "\n")
}

// Columns returns the column names of format, shared by the CSV export and
// the rendered table so their headers always agree.
func Columns(format string) []string {
	if format == config.FormatRich {
		return []string{"Email", "Status", "Reason"}
	}
	return []string{"Email", "Status"}
}

// quote wraps s in double quotes, doubling embedded quotes.
func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
