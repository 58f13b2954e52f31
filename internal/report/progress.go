package report

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"

	"github.com/nao1215/bulkverify/internal/model"
)

// defaultBarWidth is the number of cells in the progress bar.
const defaultBarWidth = 30

// ProgressBar draws verification progress as a bar whose filled width is
// proportional to the percentage, followed by "<percent>%".
//
// On a terminal the bar is redrawn in place. Elsewhere each change is
// written on its own line. Repeated percentages are not redrawn.
type ProgressBar struct {
	output   io.Writer
	width    int
	terminal bool

	mu   sync.Mutex
	last int
}

// ProgressBarOption configures a ProgressBar.
type ProgressBarOption func(*ProgressBar)

// WithBarWidth sets the number of cells in the bar.
func WithBarWidth(width int) ProgressBarOption {
	return func(p *ProgressBar) {
		if width > 0 {
			p.width = width
		}
	}
}

// WithTerminal overrides terminal detection.
func WithTerminal(terminal bool) ProgressBarOption {
	return func(p *ProgressBar) {
		p.terminal = terminal
	}
}

// NewProgressBar creates a ProgressBar writing to output.
func NewProgressBar(output io.Writer, opts ...ProgressBarOption) *ProgressBar {
	p := &ProgressBar{
		output:   output,
		width:    defaultBarWidth,
		terminal: IsTerminal(output),
		last:     -1,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Update redraws the bar for progress. It matches verifier.ProgressFunc.
func (p *ProgressBar) Update(progress model.Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if progress.Percent == p.last {
		return
	}
	p.last = progress.Percent

	line := p.Render(progress.Percent)
	if p.terminal {
		_, _ = fmt.Fprintf(p.output, "\r%s", line)
		if progress.Done() {
			_, _ = fmt.Fprintln(p.output)
		}
		return
	}
	_, _ = fmt.Fprintln(p.output, line)
}

// Render returns the bar for percent, for example "[#####-----] 50%".
func (p *ProgressBar) Render(percent int) string {
	percent = max(0, min(percent, 100))
	filled := p.width * percent / 100
	return fmt.Sprintf("[%s%s] %d%%",
		strings.Repeat("#", filled),
		strings.Repeat("-", p.width-filled),
		percent,
	)
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
