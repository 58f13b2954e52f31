package verifier

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nao1215/bulkverify/internal/config"
	"github.com/nao1215/bulkverify/internal/model"
)

// ProgressFunc receives progress after each completed unit of work.
type ProgressFunc func(model.Progress)

// Verifier sends verification requests. Client implements it.
type Verifier interface {
	// VerifyBatch verifies all emails with one request.
	VerifyBatch(ctx context.Context, emails []string) ([]model.Result, error)

	// VerifyOne verifies a single email.
	VerifyOne(ctx context.Context, email string) (model.Result, error)
}

// Strategy turns an email list into results.
// Implementations return results in input order.
type Strategy interface {
	// Name returns the mode name of the strategy.
	Name() string

	// Verify verifies emails, calling progress as work completes.
	// progress may be nil.
	Verify(ctx context.Context, emails []string, progress ProgressFunc) ([]model.Result, error)
}

// NewStrategy returns the Strategy for mode.
// workers is only used by the concurrent mode.
func NewStrategy(mode string, v Verifier, workers int, logger *slog.Logger) (Strategy, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch mode {
	case config.ModeBatch:
		return &Batch{verifier: v, logger: logger}, nil
	case config.ModeSequential:
		return &Sequential{verifier: v, logger: logger}, nil
	case config.ModeConcurrent:
		return NewConcurrent(v, workers, logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
}

// report calls progress when it is set.
func report(progress ProgressFunc, completed, total int) {
	if progress != nil {
		progress(model.NewProgress(completed, total))
	}
}

// Batch verifies the whole list with a single upload.
//
// An empty list is answered locally without posting an empty file, unlike a
// browser form that would upload it anyway. The result is the same empty
// table and header-only export, minus a round-trip.
type Batch struct {
	verifier Verifier
	logger   *slog.Logger
}

// Name implements Strategy.
func (b *Batch) Name() string {
	return config.ModeBatch
}

// Verify implements Strategy. Progress is reported once, at 100%.
// An empty list sends nothing. A response with fewer or more results than
// uploaded addresses fails with ErrResultCount.
func (b *Batch) Verify(ctx context.Context, emails []string, progress ProgressFunc) ([]model.Result, error) {
	if len(emails) == 0 {
		report(progress, 0, 0)
		return []model.Result{}, nil
	}

	results, err := b.verifier.VerifyBatch(ctx, emails)
	if err != nil {
		b.logger.Error("batch verification failed", "count", len(emails), "error", err)
		return nil, err
	}

	if len(results) != len(emails) {
		b.logger.Error("batch result count mismatch", "sent", len(emails), "received", len(results))
		return nil, fmt.Errorf("%w: sent %d, received %d", ErrResultCount, len(emails), len(results))
	}

	b.logger.Info("batch verification completed", "sent", len(emails), "received", len(results))
	report(progress, len(emails), len(emails))
	return results, nil
}

// Sequential verifies one email at a time in list order.
// Request i+1 is issued only after response i was received.
type Sequential struct {
	verifier Verifier
	logger   *slog.Logger
}

// Name implements Strategy.
func (s *Sequential) Name() string {
	return config.ModeSequential
}

// Verify implements Strategy. Progress is reported after every response.
func (s *Sequential) Verify(ctx context.Context, emails []string, progress ProgressFunc) ([]model.Result, error) {
	total := len(emails)
	results := make([]model.Result, 0, total)

	if total == 0 {
		report(progress, 0, 0)
		return results, nil
	}

	for i, email := range emails {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := s.verifier.VerifyOne(ctx, email)
		if err != nil {
			s.logger.Error("verification failed", "email", email, "index", i+1, "total", total, "error", err)
			return nil, fmt.Errorf("verify %s: %w", email, err)
		}

		results = append(results, result)
		report(progress, i+1, total)
	}

	s.logger.Info("sequential verification completed", "count", total)
	return results, nil
}
