package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nao1215/bulkverify/internal/emaillist"
	"github.com/nao1215/bulkverify/internal/model"
	"github.com/nao1215/bulkverify/internal/report"
	"github.com/nao1215/bulkverify/internal/verifier"
)

var (
	// ErrBusy is returned when Verify is called while a run is in flight.
	ErrBusy = errors.New("a verification is already in progress")

	// ErrNoResults is returned by Export before a run has succeeded.
	ErrNoResults = errors.New("no results to export: verify a file first")
)

// State is where a Session is in the verify-then-export cycle.
type State int

const (
	StateIdle State = iota
	StateFileSelected
	StateParsing
	StateVerifying
	StateResultsDisplayed
	StateExported
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFileSelected:
		return "file-selected"
	case StateParsing:
		return "parsing"
	case StateVerifying:
		return "verifying"
	case StateResultsDisplayed:
		return "results-displayed"
	case StateExported:
		return "exported"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Session runs one verify-then-export cycle at a time and keeps the last
// successful run in memory.
type Session struct {
	strategy verifier.Strategy
	endpoint string
	precheck bool
	progress verifier.ProgressFunc
	logger   *slog.Logger

	mu    sync.Mutex
	busy  bool
	state State
	run   *model.Run
}

// Option configures a Session.
type Option func(*Session)

// WithPrecheck enables the local syntax check before submission.
func WithPrecheck(enabled bool) Option {
	return func(s *Session) {
		s.precheck = enabled
	}
}

// WithProgress sets the callback receiving verification progress.
func WithProgress(fn verifier.ProgressFunc) Option {
	return func(s *Session) {
		s.progress = fn
	}
}

// WithEndpoint records the backend URL on each run.
func WithEndpoint(endpoint string) Option {
	return func(s *Session) {
		s.endpoint = endpoint
	}
}

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// New creates an idle Session that verifies with strategy.
func New(strategy verifier.Strategy, opts ...Option) *Session {
	s := &Session{
		strategy: strategy,
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Run returns the last successful run, or nil.
func (s *Session) Run() *model.Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run
}

// Results returns a copy of the last successful run's results.
func (s *Session) Results() []model.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run == nil {
		return nil
	}
	return append([]model.Result(nil), s.run.Results...)
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// acquire marks the session busy. It fails when a run is in flight.
func (s *Session) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return false
	}
	s.busy = true
	return true
}

// finish releases the guard and records the outcome. A failed run clears
// the previous results.
func (s *Session) finish(run *model.Run, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	if err != nil {
		s.state = StateFailed
		s.run = nil
		return
	}
	s.state = StateResultsDisplayed
	s.run = run
}

// Verify loads the email list at path and verifies it.
// A call made while another is in flight returns ErrBusy without touching
// the file or the network. An empty path returns emaillist.ErrNoFile.
func (s *Session) Verify(ctx context.Context, path string) (run *model.Run, err error) {
	if !s.acquire() {
		return nil, ErrBusy
	}
	defer func() {
		s.finish(run, err)
		if err != nil {
			s.logger.Error("verification failed", "file", path, "error", err)
			run = nil
		}
	}()

	if path == "" {
		return nil, emaillist.ErrNoFile
	}
	s.setState(StateFileSelected)

	s.setState(StateParsing)
	emails, err := emaillist.Load(path)
	if err != nil {
		return nil, err
	}
	s.logger.Info("email list loaded", "file", path, "count", len(emails))

	s.setState(StateVerifying)
	run = model.NewRun(path, s.strategy.Name(), s.endpoint, emails)

	results, err := s.submit(ctx, emails)
	if err != nil {
		return nil, err
	}

	run.Complete(results)
	s.logger.Info("verification completed",
		"run", run.ID,
		"results", len(results),
		"duration", run.Duration(),
	)
	return run, nil
}

// submit sends emails to the strategy, optionally after the local check.
func (s *Session) submit(ctx context.Context, emails []string) ([]model.Result, error) {
	if !s.precheck {
		return s.strategy.Verify(ctx, emails, s.progress)
	}

	checked := emaillist.Precheck(emails)
	if n := len(checked.Rejected); n > 0 {
		s.logger.Info("addresses rejected by syntax check", "count", n)
	}

	results, err := s.strategy.Verify(ctx, checked.Accepted, s.scaleProgress(len(checked.Rejected), len(emails)))
	if err != nil {
		return nil, err
	}
	return checked.Merge(results)
}

// scaleProgress maps progress over the submitted subset onto the whole
// list, counting locally rejected addresses as already done.
func (s *Session) scaleProgress(done, total int) verifier.ProgressFunc {
	if s.progress == nil {
		return nil
	}
	return func(p model.Progress) {
		s.progress(model.NewProgress(done+p.Completed, total))
	}
}

// Export writes the in-memory results of the last run with w.
func (s *Session) Export(w report.Writer) error {
	s.mu.Lock()
	run := s.run
	busy := s.busy
	s.mu.Unlock()

	if busy {
		return ErrBusy
	}
	if run == nil {
		return ErrNoResults
	}

	if _, err := w.Write(run); err != nil {
		return fmt.Errorf("failed to export results: %w", err)
	}

	s.setState(StateExported)
	return nil
}
