package model

import (
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/sha3"
)

// Run is one verify-then-export cycle.
type Run struct {
	// ID uniquely identifies the run in history.
	ID string `json:"id"`

	// InputFile is the path of the email list that was verified.
	InputFile string `json:"input_file"`

	// Mode is the verification strategy name (batch, sequential, concurrent).
	Mode string `json:"mode"`

	// Endpoint is the backend URL the run talked to.
	Endpoint string `json:"endpoint"`

	// Fingerprint is a SHA3-256 digest of the submitted email list.
	// Two runs over the same list share a fingerprint.
	Fingerprint string `json:"fingerprint"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Results []Result `json:"results"`
	Summary Summary  `json:"summary"`
}

// NewRun creates a run with a fresh ID for the given email list.
func NewRun(inputFile, mode, endpoint string, emails []string) *Run {
	return &Run{
		ID:          uuid.NewString(),
		InputFile:   inputFile,
		Mode:        mode,
		Endpoint:    endpoint,
		Fingerprint: Fingerprint(emails),
		StartedAt:   time.Now(),
	}
}

// Complete attaches results to the run and stamps the finish time.
func (r *Run) Complete(results []Result) {
	r.Results = results
	r.Summary = NewSummary(results)
	r.FinishedAt = time.Now()
}

// Duration returns how long the run took. It is zero for unfinished runs.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Fingerprint returns the hex SHA3-256 digest of the newline-joined emails.
func Fingerprint(emails []string) string {
	sum := sha3.Sum256([]byte(strings.Join(emails, "\n")))
	return hex.EncodeToString(sum[:])
}
