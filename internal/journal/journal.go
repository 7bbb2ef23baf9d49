// Package journal records replication run history in a local SQLite
// database: one row per run, one row per file transfer. The journal is
// observational only — it feeds the history and status commands and is
// never consulted to decide what a run uploads.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Run is one replication run's journal row.
type Run struct {
	ID            string
	LocalRoot     string
	DestID        string
	StartedAt     time.Time
	FinishedAt    time.Time
	Success       bool
	ScanFiles     int
	ScanBytes     int64
	FilesUploaded int
	BytesUploaded int64
	Message       string
}

// Transfer is one file's terminal outcome within a run.
type Transfer struct {
	RunID      string
	Path       string
	Size       int64
	Outcome    string
	Error      string
	FinishedAt time.Time
}

// Journal is the sole writer to the journal database.
type Journal struct {
	db      *sql.DB
	logger  *slog.Logger
	nowFunc func() time.Time // injectable for deterministic tests
}

// Open opens (creating if necessary) the journal database at path and
// applies pending migrations.
func Open(path string, logger *slog.Logger) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("journal: creating directory for %s: %w", path, err)
	}

	// DSN parameters ensure pragmas apply to every connection from the pool.
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)",
		path,
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("journal: opening database %s: %w", path, err)
	}

	// Sole-writer pattern: one connection, no writer races.
	db.SetMaxOpenConns(1)

	if err := runMigrations(context.Background(), db, logger); err != nil {
		db.Close()
		return nil, err
	}

	return &Journal{db: db, logger: logger, nowFunc: time.Now}, nil
}

// Close releases the database handle.
func (j *Journal) Close() error {
	return j.db.Close()
}

// BeginRun inserts a new run row and returns its id.
func (j *Journal) BeginRun(ctx context.Context, localRoot, destID string) (string, error) {
	id := uuid.NewString()

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO runs (id, local_root, dest_id, started_at) VALUES (?, ?, ?, ?)`,
		id, localRoot, destID, j.nowFunc().UTC().Unix())
	if err != nil {
		return "", fmt.Errorf("journal: recording run start: %w", err)
	}

	return id, nil
}

// SetScanTotals records the pre-pass totals on an in-flight run.
func (j *Journal) SetScanTotals(ctx context.Context, runID string, files int, bytes int64) error {
	_, err := j.db.ExecContext(ctx,
		`UPDATE runs SET scan_files = ?, scan_bytes = ? WHERE id = ?`,
		files, bytes, runID)
	if err != nil {
		return fmt.Errorf("journal: recording scan totals: %w", err)
	}

	return nil
}

// FinishRun closes out a run row with its final totals and message.
func (j *Journal) FinishRun(ctx context.Context, runID string, success bool, filesUploaded int, bytesUploaded int64, message string) error {
	_, err := j.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, success = ?, files_uploaded = ?, bytes_uploaded = ?, message = ?
		 WHERE id = ?`,
		j.nowFunc().UTC().Unix(), boolToInt(success), filesUploaded, bytesUploaded, message, runID)
	if err != nil {
		return fmt.Errorf("journal: recording run finish: %w", err)
	}

	return nil
}

// RecordTransfer appends one file's terminal outcome to a run.
func (j *Journal) RecordTransfer(ctx context.Context, t Transfer) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO transfers (run_id, path, size, outcome, error, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.RunID, t.Path, t.Size, t.Outcome, t.Error, j.nowFunc().UTC().Unix())
	if err != nil {
		return fmt.Errorf("journal: recording transfer %s: %w", t.Path, err)
	}

	return nil
}

// ListRuns returns the most recent runs, newest first.
func (j *Journal) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, local_root, dest_id, started_at, COALESCE(finished_at, 0), success,
		        scan_files, scan_bytes, files_uploaded, bytes_uploaded, message
		 FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run

	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}

		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// LastRun returns the most recent run, or ok=false when the journal is
// empty.
func (j *Journal) LastRun(ctx context.Context) (Run, bool, error) {
	runs, err := j.ListRuns(ctx, 1)
	if err != nil {
		return Run{}, false, err
	}

	if len(runs) == 0 {
		return Run{}, false, nil
	}

	return runs[0], true, nil
}

// GetRun fetches one run by id prefix. A short unique prefix is enough,
// mirroring how the ids are displayed.
func (j *Journal) GetRun(ctx context.Context, idPrefix string) (Run, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, local_root, dest_id, started_at, COALESCE(finished_at, 0), success,
		        scan_files, scan_bytes, files_uploaded, bytes_uploaded, message
		 FROM runs WHERE id LIKE ? ORDER BY started_at DESC LIMIT 2`,
		idPrefix+"%")
	if err != nil {
		return Run{}, fmt.Errorf("journal: fetching run %s: %w", idPrefix, err)
	}
	defer rows.Close()

	var matches []Run

	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return Run{}, err
		}

		matches = append(matches, run)
	}

	if err := rows.Err(); err != nil {
		return Run{}, err
	}

	switch len(matches) {
	case 0:
		return Run{}, fmt.Errorf("journal: no run matches %q", idPrefix)
	case 1:
		return matches[0], nil
	default:
		return Run{}, fmt.Errorf("journal: run id %q is ambiguous", idPrefix)
	}
}

// Transfers returns a run's per-file outcomes in insertion order.
func (j *Journal) Transfers(ctx context.Context, runID string) ([]Transfer, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT run_id, path, size, outcome, error, finished_at
		 FROM transfers WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("journal: listing transfers for %s: %w", runID, err)
	}
	defer rows.Close()

	var transfers []Transfer

	for rows.Next() {
		var (
			t          Transfer
			finishedAt int64
		)

		if err := rows.Scan(&t.RunID, &t.Path, &t.Size, &t.Outcome, &t.Error, &finishedAt); err != nil {
			return nil, fmt.Errorf("journal: scanning transfer: %w", err)
		}

		t.FinishedAt = time.Unix(finishedAt, 0).UTC()
		transfers = append(transfers, t)
	}

	return transfers, rows.Err()
}

// scanRun reads one run row from a result set whose columns match the
// shared SELECT list.
func scanRun(rows *sql.Rows) (Run, error) {
	var (
		run        Run
		startedAt  int64
		finishedAt int64
		success    int
	)

	err := rows.Scan(&run.ID, &run.LocalRoot, &run.DestID, &startedAt, &finishedAt, &success,
		&run.ScanFiles, &run.ScanBytes, &run.FilesUploaded, &run.BytesUploaded, &run.Message)
	if err != nil {
		return Run{}, fmt.Errorf("journal: scanning run: %w", err)
	}

	run.StartedAt = time.Unix(startedAt, 0).UTC()
	run.Success = success != 0

	if finishedAt != 0 {
		run.FinishedAt = time.Unix(finishedAt, 0).UTC()
	}

	return run, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}

	return 0
}
