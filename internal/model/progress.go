package model

// Progress reports how much of a verification run has completed.
type Progress struct {
	// Completed is the number of finished units of work.
	Completed int

	// Total is the number of units in the run.
	Total int

	// Percent is floor(Completed*100/Total), clamped to 0..100.
	Percent int
}

// NewProgress computes the progress for completed out of total units.
// A run with no work is complete, so a zero total yields 100%.
func NewProgress(completed, total int) Progress {
	p := Progress{Completed: completed, Total: total}
	switch {
	case total <= 0:
		p.Percent = 100
	case completed <= 0:
		p.Percent = 0
	case completed >= total:
		p.Percent = 100
	default:
		p.Percent = completed * 100 / total
	}
	return p
}

// Done reports whether the run has finished.
func (p Progress) Done() bool {
	return p.Percent >= 100
}
