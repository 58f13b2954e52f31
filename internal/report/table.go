package report

import (
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/bulkverify/internal/config"
	"github.com/nao1215/bulkverify/internal/model"
)

// Status glyphs used when decorating the table.
const (
	GlyphValid   = "✅"
	GlyphInvalid = "❌"
	GlyphRisky   = "⚠️"
)

// TableWriter renders results as a terminal table, one row per result.
// Columns follow the export format so the table and the CSV agree.
type TableWriter struct {
	baseWriter

	// format selects the columns (simple or rich).
	format string

	// decorate prefixes statuses with a glyph and title-cases them.
	decorate bool

	// colorize paints decorated statuses by verdict.
	colorize bool
}

// TableWriterOption configures a TableWriter.
type TableWriterOption func(*TableWriter)

// WithDecorate enables status glyphs and title-casing.
func WithDecorate(decorate bool) TableWriterOption {
	return func(w *TableWriter) {
		w.decorate = decorate
	}
}

// WithColor enables colored statuses. Colors are still suppressed when the
// output is not a terminal.
func WithColor(enabled bool) TableWriterOption {
	return func(w *TableWriter) {
		w.colorize = enabled
	}
}

// NewTableWriter creates a TableWriter for format.
func NewTableWriter(output io.Writer, format string, opts ...TableWriterOption) *TableWriter {
	w := &TableWriter{
		baseWriter: newBaseWriter(output),
		format:     format,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write renders the results of run.
func (w *TableWriter) Write(run *model.Run) (int, error) {
	cw := &countingWriter{w: w.output}

	header := Columns(w.format)
	headerCells := make([]any, len(header))
	for i, h := range header {
		headerCells[i] = h
	}

	table := tablewriter.NewWriter(cw)
	table.Header(headerCells...)

	for _, r := range run.Results {
		row := []string{r.Email, w.status(r)}
		if w.format == config.FormatRich {
			row = append(row, r.Reason)
		}
		if err := table.Append(row); err != nil {
			return cw.n, err
		}
	}

	if err := table.Render(); err != nil {
		return cw.n, err
	}
	return cw.n, nil
}

// status returns the status cell of r.
func (w *TableWriter) status(r model.Result) string {
	if !w.decorate {
		return r.Status
	}

	text := Decorate(r)
	if !w.colorize {
		return text
	}

	c := verdictColor(r.Verdict())
	if c == nil {
		return text
	}
	return c.Sprint(text)
}

// Decorate returns the status of r title-cased and prefixed with the glyph
// of its verdict. Existing ✅/❌ glyphs are replaced, not duplicated.
func Decorate(r model.Result) string {
	// A Caser keeps state, so each call gets its own.
	word := cases.Title(language.English).String(model.StripGlyphs(r.Status))

	switch r.Verdict() {
	case model.VerdictValid:
		return GlyphValid + " " + word
	case model.VerdictInvalid:
		return GlyphInvalid + " " + word
	case model.VerdictRisky:
		return GlyphRisky + " " + strings.TrimSpace(strings.TrimPrefix(word, GlyphRisky))
	default:
		return word
	}
}

// verdictColor returns the color of a verdict, or nil for unknown ones.
func verdictColor(v model.Verdict) *color.Color {
	switch v {
	case model.VerdictValid:
		return color.New(color.FgGreen)
	case model.VerdictInvalid:
		return color.New(color.FgRed)
	case model.VerdictRisky:
		return color.New(color.FgYellow)
	default:
		return nil
	}
}
