package verifier

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/bulkverify/internal/config"
	"github.com/nao1215/bulkverify/internal/model"
)

// invalidDomain is the group key of entries without an '@'.
const invalidDomain = "invalid"

// Concurrent verifies emails grouped by domain. Each group is processed in
// order, and up to workers groups run at the same time. Spreading requests
// across domains keeps any one mail server from seeing a burst.
type Concurrent struct {
	verifier Verifier
	workers  int
	logger   *slog.Logger
}

// NewConcurrent creates a Concurrent strategy. A non-positive workers value
// falls back to config.DefaultWorkers.
func NewConcurrent(v Verifier, workers int, logger *slog.Logger) *Concurrent {
	if workers <= 0 {
		workers = config.DefaultWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Concurrent{verifier: v, workers: workers, logger: logger}
}

// Name implements Strategy.
func (c *Concurrent) Name() string {
	return config.ModeConcurrent
}

// domainGroup is the input positions of one domain, in input order.
type domainGroup struct {
	domain    string
	positions []int
}

// groupByDomain groups positions of emails by lowercased domain.
// Groups are ordered by first appearance.
func groupByDomain(emails []string) []domainGroup {
	index := make(map[string]int)
	groups := make([]domainGroup, 0)

	for i, email := range emails {
		domain := invalidDomain
		if at := strings.LastIndex(email, "@"); at >= 0 {
			domain = strings.ToLower(email[at+1:])
		}

		g, ok := index[domain]
		if !ok {
			g = len(groups)
			index[domain] = g
			groups = append(groups, domainGroup{domain: domain})
		}
		groups[g].positions = append(groups[g].positions, i)
	}
	return groups
}

// Verify implements Strategy. The first failing request cancels the others
// and its error is returned.
func (c *Concurrent) Verify(ctx context.Context, emails []string, progress ProgressFunc) ([]model.Result, error) {
	total := len(emails)
	if total == 0 {
		report(progress, 0, 0)
		return []model.Result{}, nil
	}

	groups := groupByDomain(emails)
	c.logger.Info("starting concurrent verification",
		"total", total,
		"domains", len(groups),
		"workers", c.workers,
	)

	startTime := time.Now()

	// Results are written by position, so input order survives.
	results := make([]model.Result, total)

	var (
		mu        sync.Mutex
		completed int
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)

	for _, group := range groups {
		g.Go(func() error {
			for _, pos := range group.positions {
				if err := ctx.Err(); err != nil {
					return err
				}

				email := emails[pos]
				result, err := c.verifier.VerifyOne(ctx, email)
				if err != nil {
					c.logger.Warn("verification failed",
						"email", email,
						"domain", group.domain,
						"error", err,
					)
					return fmt.Errorf("verify %s: %w", email, err)
				}

				mu.Lock()
				results[pos] = result
				completed++
				report(progress, completed, total)
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	c.logger.Info("concurrent verification completed",
		"total", total,
		"duration", time.Since(startTime),
	)
	return results, nil
}
