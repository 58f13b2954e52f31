package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/bulkverify/internal/model"
)

// MarkdownWriter outputs run reports in Markdown format.
// The nao1215/markdown builder gives tables, GitHub alerts and a mermaid
// pie chart of the verdict distribution.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the run report in Markdown format.
func (w *MarkdownWriter) Write(run *model.Run) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, run)
	w.writeSummary(md, run.Summary)
	w.writeResults(md, run.Results)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report title and run information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, run *model.Run) {
	md.H1("Email Verification Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Run ID", "`" + run.ID + "`"},
			{"Input File", "`" + run.InputFile + "`"},
			{"Mode", run.Mode},
			{"Endpoint", run.Endpoint},
			{"Started", run.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", run.Duration().Round(time.Millisecond).String()},
			{"Fingerprint", "`" + truncateString(run.Fingerprint, 16) + "`"},
		},
	})
	md.PlainText("")
}

// writeSummary writes the verdict counts, the pie chart and an alert.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, s model.Summary) {
	md.H2("Summary")
	md.PlainText("")

	rows := [][]string{
		{GlyphValid + " Valid", strconv.Itoa(s.ValidCount)},
		{GlyphRisky + " Risky", strconv.Itoa(s.RiskyCount)},
		{GlyphInvalid + " Invalid", strconv.Itoa(s.InvalidCount)},
		{"❔ Unknown", strconv.Itoa(s.UnknownCount)},
		{"**Total**", "**" + strconv.Itoa(s.Total) + "**"},
	}
	if s.Scored > 0 {
		rows = append(rows, []string{"Average Score", strconv.FormatFloat(s.AverageScore, 'f', 1, 64)})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Verdict", "Count"},
		Rows:   rows,
	})
	md.PlainText("")

	if s.Total > 0 {
		w.writePieChart(md, s)
	}

	w.writeAlert(md, s)
}

// writePieChart writes a mermaid pie chart of the verdict distribution.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, s model.Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Verdict Distribution"),
		piechart.WithShowData(true),
	)

	if s.ValidCount > 0 {
		chart.LabelAndIntValue("Valid", uint64(s.ValidCount))
	}
	if s.RiskyCount > 0 {
		chart.LabelAndIntValue("Risky", uint64(s.RiskyCount))
	}
	if s.InvalidCount > 0 {
		chart.LabelAndIntValue("Invalid", uint64(s.InvalidCount))
	}
	if s.UnknownCount > 0 {
		chart.LabelAndIntValue("Unknown", uint64(s.UnknownCount))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an alert matching the worst verdict present.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, s model.Summary) {
	switch {
	case s.Total == 0:
		md.Note("The input list contained no addresses.")
	case s.InvalidCount > 0:
		md.Warningf(
			"%d of %d address(es) are invalid and should be removed from the list.",
			s.InvalidCount, s.Total,
		)
	case s.RiskyCount > 0:
		md.Importantf(
			"%d address(es) are risky. Delivery to them may bounce or hit a catch-all.",
			s.RiskyCount,
		)
	case s.UnknownCount > 0:
		md.Note(fmt.Sprintf("%d address(es) could not be classified.", s.UnknownCount))
	default:
		md.Tip("All addresses are valid.")
	}
	md.PlainText("")
}

// writeResults writes one table row per result.
func (w *MarkdownWriter) writeResults(md *markdown.Markdown, results []model.Result) {
	md.H2("Results")
	md.PlainText("")

	if len(results) == 0 {
		md.PlainText("No results.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(results))
	for i, r := range results {
		reason := r.Reason
		if reason == "" {
			reason = "-"
		}
		score := "-"
		if r.Score != nil {
			score = strconv.Itoa(*r.Score)
		}
		rows[i] = []string{
			"`" + r.Email + "`",
			Decorate(r),
			truncateString(reason, 60),
			score,
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Email", "Status", "Reason", "Score"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [bulkverify](https://github.com/nao1215/bulkverify)*")
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
