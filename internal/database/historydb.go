package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/bulkverify/internal/model"
)

// FileName is the database file created inside the data directory.
const FileName = "bulkverify.db"

var (
	// ErrNotFound is returned when no database file or run matches.
	ErrNotFound = errors.New("not found")

	// ErrAmbiguousID is returned when a run ID prefix matches several runs.
	ErrAmbiguousID = errors.New("run ID prefix matches more than one run")
)

// HistoryDB provides SQLite-based storage of verification runs.
// Every run is stored whole as JSON, and each result is also indexed per
// address so past verdicts of one address can be looked up.
type HistoryDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a HistoryDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error
// wrapping ErrNotFound is returned.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database %s: %w", dbPath, ErrNotFound)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file, mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Path returns the database file path.
func (h *HistoryDB) Path() string {
	return h.dbPath
}

// Close closes the database connection.
func (h *HistoryDB) Close() error {
	return h.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (h *HistoryDB) createTables() error {
	schema := `
	-- One row per verify-then-export cycle
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		input_file TEXT NOT NULL,
		mode TEXT NOT NULL,
		endpoint TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		total INTEGER NOT NULL DEFAULT 0,
		valid_count INTEGER NOT NULL DEFAULT 0,
		risky_count INTEGER NOT NULL DEFAULT 0,
		invalid_count INTEGER NOT NULL DEFAULT 0,
		unknown_count INTEGER NOT NULL DEFAULT 0,
		run_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_runs_fingerprint ON runs(fingerprint);

	-- Individual verdicts, for per-address lookups
	CREATE TABLE IF NOT EXISTS results (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		email TEXT NOT NULL,
		status TEXT NOT NULL,
		reason TEXT,
		score INTEGER,
		PRIMARY KEY (run_id, position)
	);

	CREATE INDEX IF NOT EXISTS idx_results_email ON results(email COLLATE NOCASE);
	`

	_, err := h.db.ExecContext(context.Background(), schema)
	return err
}

// SaveRun stores a completed run and its results in one transaction.
func (h *HistoryDB) SaveRun(ctx context.Context, run *model.Run) (err error) {
	runJSON, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to serialize run: %w", err)
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO runs (id, input_file, mode, endpoint, fingerprint, started_at, finished_at,
		total, valid_count, risky_count, invalid_count, unknown_count, run_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.InputFile,
		run.Mode,
		run.Endpoint,
		run.Fingerprint,
		formatTimestamp(run.StartedAt),
		formatTimestamp(run.FinishedAt),
		run.Summary.Total,
		run.Summary.ValidCount,
		run.Summary.RiskyCount,
		run.Summary.InvalidCount,
		run.Summary.UnknownCount,
		string(runJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO results (run_id, position, email, status, reason, score)
	VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare result insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range run.Results {
		var score sql.NullInt64
		if r.Score != nil {
			score = sql.NullInt64{Int64: int64(*r.Score), Valid: true}
		}
		if _, err = stmt.ExecContext(ctx, run.ID, i, r.Email, r.Status, r.Reason, score); err != nil {
			return fmt.Errorf("failed to save result %d: %w", i, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// RunMetadata contains summary information about a stored run.
// This is used for listing history without loading the results.
type RunMetadata struct {
	ID          string
	InputFile   string
	Mode        string
	Endpoint    string
	Fingerprint string
	StartedAt   time.Time
	FinishedAt  time.Time
	Summary     model.Summary
}

// ListRuns returns run metadata, newest first. A positive limit caps the count.
func (h *HistoryDB) ListRuns(ctx context.Context, limit int) ([]RunMetadata, error) {
	query := `
	SELECT id, input_file, mode, endpoint, fingerprint, started_at, finished_at,
		total, valid_count, risky_count, invalid_count, unknown_count
	FROM runs
	ORDER BY started_at DESC
	`
	args := make([]any, 0, 1)
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	return h.queryMetadata(ctx, query, args...)
}

// FindByFingerprint returns metadata of earlier runs over the same email
// list, newest first.
func (h *HistoryDB) FindByFingerprint(ctx context.Context, fingerprint string) ([]RunMetadata, error) {
	query := `
	SELECT id, input_file, mode, endpoint, fingerprint, started_at, finished_at,
		total, valid_count, risky_count, invalid_count, unknown_count
	FROM runs
	WHERE fingerprint = ?
	ORDER BY started_at DESC
	`
	return h.queryMetadata(ctx, query, fingerprint)
}

// queryMetadata scans RunMetadata rows.
func (h *HistoryDB) queryMetadata(ctx context.Context, query string, args ...any) ([]RunMetadata, error) {
	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunMetadata
	for rows.Next() {
		var (
			meta              RunMetadata
			started, finished string
		)
		if err := rows.Scan(
			&meta.ID,
			&meta.InputFile,
			&meta.Mode,
			&meta.Endpoint,
			&meta.Fingerprint,
			&started,
			&finished,
			&meta.Summary.Total,
			&meta.Summary.ValidCount,
			&meta.Summary.RiskyCount,
			&meta.Summary.InvalidCount,
			&meta.Summary.UnknownCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		meta.StartedAt = parseTimestamp(started)
		meta.FinishedAt = parseTimestamp(finished)
		runs = append(runs, meta)
	}

	return runs, rows.Err()
}

// GetRun retrieves a run by its ID or by a unique ID prefix.
func (h *HistoryDB) GetRun(ctx context.Context, idOrPrefix string) (*model.Run, error) {
	if idOrPrefix == "" {
		return nil, fmt.Errorf("run %q: %w", idOrPrefix, ErrNotFound)
	}

	rows, err := h.db.QueryContext(ctx, `
	SELECT run_json FROM runs
	WHERE id = ? OR id LIKE ? || '%'
	LIMIT 2
	`, idOrPrefix, idOrPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	defer rows.Close()

	var matches []string
	for rows.Next() {
		var runJSON string
		if err := rows.Scan(&runJSON); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		matches = append(matches, runJSON)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("run %q: %w", idOrPrefix, ErrNotFound)
	case 1:
	default:
		return nil, fmt.Errorf("run %q: %w", idOrPrefix, ErrAmbiguousID)
	}

	var run model.Run
	if err := json.Unmarshal([]byte(matches[0]), &run); err != nil {
		return nil, fmt.Errorf("failed to parse run: %w", err)
	}
	return &run, nil
}

// ResultRecord is a past verdict of one address.
type ResultRecord struct {
	RunID     string
	StartedAt time.Time
	Result    model.Result
}

// EmailHistory returns past verdicts of email across all runs, newest first.
// The lookup ignores case.
func (h *HistoryDB) EmailHistory(ctx context.Context, email string) ([]ResultRecord, error) {
	rows, err := h.db.QueryContext(ctx, `
	SELECT r.run_id, runs.started_at, r.email, r.status, r.reason, r.score
	FROM results r
	JOIN runs ON runs.id = r.run_id
	WHERE r.email = ? COLLATE NOCASE
	ORDER BY runs.started_at DESC, r.position
	`, email)
	if err != nil {
		return nil, fmt.Errorf("failed to query address history: %w", err)
	}
	defer rows.Close()

	var records []ResultRecord
	for rows.Next() {
		var (
			rec     ResultRecord
			started string
			reason  sql.NullString
			score   sql.NullInt64
		)
		if err := rows.Scan(&rec.RunID, &started, &rec.Result.Email, &rec.Result.Status, &reason, &score); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}

		rec.StartedAt = parseTimestamp(started)
		rec.Result.Reason = reason.String
		if score.Valid {
			n := int(score.Int64)
			rec.Result.Score = &n
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// DeleteRun removes a run and its results.
func (h *HistoryDB) DeleteRun(ctx context.Context, id string) error {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM results WHERE run_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete results: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %q: %w", id, ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}
	return nil
}

// formatTimestamp stores times in UTC with nanoseconds so text ordering
// matches time ordering.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z07:00")
}

// timestampFormats contains the timestamp formats that may be stored.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,          // Format written by formatTimestamp
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
