package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// RunInfo describes a run when it starts.
type RunInfo struct {
	SourceDir      string
	DestDir        string
	Methods        []string
	ReferenceCount int
	Workers        int
	Standardize    bool
	Seed           int64
}

// RunSummary is the final tally of a run.
type RunSummary struct {
	Status         string
	Discovered     int
	AlreadyPresent int
	Planned        int
	Written        int
	Failed         int
	BytesWritten   int64
	Fallback       bool
	Error          string
}

// Run is one row of the runs table.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	RunInfo
	RunSummary
}

// Duration is the wall time of a finished run, or zero.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// ItemRecord is the ledger row for one dispatched patch.
type ItemRecord struct {
	Chunk     int
	Source    string
	Dest      string
	Handle    int
	Method    string
	Reference string
	Kind      string
	Error     string
	Duration  time.Duration
	Bytes     int64
}

// BeginRun inserts a running row and returns its new ID.
func (l *Ledger) BeginRun(ctx context.Context, info RunInfo) (string, error) {
	id := uuid.NewString()
	_, err := l.exec(ctx, `INSERT INTO runs
		(id, started_at, status, source_dir, dest_dir, methods, reference_count, workers, standardize, seed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, formatTime(time.Now()), StatusRunning, info.SourceDir, info.DestDir,
		strings.Join(info.Methods, ","), info.ReferenceCount, info.Workers, boolToInt(info.Standardize), info.Seed,
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// RecordResults appends one chunk of item outcomes in a single transaction.
func (l *Ledger) RecordResults(ctx context.Context, runID string, records []ItemRecord) error {
	if len(records) == 0 {
		return nil
	}
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		tx, err := l.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin record tx: %w", err)
		}
		defer func() {
			_ = tx.Rollback()
		}()

		stmt, err := tx.PrepareContext(ctx, `INSERT INTO items
			(run_id, chunk, source, dest, handle, method, reference, kind, error, duration_ms, bytes, recorded_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare item insert: %w", err)
		}
		defer stmt.Close()

		now := formatTime(time.Now())
		for _, r := range records {
			var errText sql.NullString
			if r.Error != "" {
				errText = sql.NullString{String: r.Error, Valid: true}
			}
			if _, err := stmt.ExecContext(ctx, runID, r.Chunk, r.Source, r.Dest, r.Handle, r.Method, r.Reference,
				r.Kind, errText, r.Duration.Milliseconds(), r.Bytes, now); err != nil {
				return fmt.Errorf("insert item %s: %w", r.Source, err)
			}
		}
		return tx.Commit()
	})
}

// FinishRun stores the final summary and stamps the finish time.
func (l *Ledger) FinishRun(ctx context.Context, runID string, summary RunSummary) error {
	status := summary.Status
	if status == "" {
		status = StatusCompleted
	}
	var errText sql.NullString
	if summary.Error != "" {
		errText = sql.NullString{String: summary.Error, Valid: true}
	}
	res, err := l.exec(ctx, `UPDATE runs SET
		finished_at = ?, status = ?, discovered = ?, already_present = ?, planned = ?,
		written = ?, failed = ?, bytes_written = ?, fallback = ?, error = ?
		WHERE id = ?`,
		formatTime(time.Now()), status, summary.Discovered, summary.AlreadyPresent, summary.Planned,
		summary.Written, summary.Failed, summary.BytesWritten, boolToInt(summary.Fallback), errText, runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, ErrRunNotFound)
	}
	return nil
}

const runColumns = `id, started_at, finished_at, status, source_dir, dest_dir, methods, reference_count,
	workers, standardize, seed, discovered, already_present, planned, written, failed,
	bytes_written, fallback, error`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		r           Run
		started     sql.NullString
		finished    sql.NullString
		methods     string
		standardize int
		fallback    int
		errText     sql.NullString
	)
	if err := row.Scan(&r.ID, &started, &finished, &r.Status, &r.SourceDir, &r.DestDir, &methods,
		&r.ReferenceCount, &r.Workers, &standardize, &r.Seed, &r.Discovered, &r.AlreadyPresent,
		&r.Planned, &r.Written, &r.Failed, &r.BytesWritten, &fallback, &errText); err != nil {
		return Run{}, err
	}
	r.StartedAt = parseTime(started)
	r.FinishedAt = parseTime(finished)
	if methods != "" {
		r.Methods = strings.Split(methods, ",")
	}
	r.Standardize = standardize != 0
	r.Fallback = fallback != 0
	r.Error = errText.String
	return r, nil
}

// GetRun loads a run by ID.
func (l *Ledger) GetRun(ctx context.Context, id string) (Run, error) {
	row := l.db.QueryRowContext(ensureContext(ctx), "SELECT "+runColumns+" FROM runs WHERE id = ?", id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	return r, nil
}

// Runs lists the most recent runs first. A limit <= 0 returns all runs.
func (l *Ledger) Runs(ctx context.Context, limit int) ([]Run, error) {
	query := "SELECT " + runColumns + " FROM runs ORDER BY started_at DESC, rowid DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := l.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// LatestRun returns the most recently started run, if any.
func (l *Ledger) LatestRun(ctx context.Context) (Run, bool, error) {
	runs, err := l.Runs(ctx, 1)
	if err != nil || len(runs) == 0 {
		return Run{}, false, err
	}
	return runs[0], true, nil
}

// Failures lists the failed items of a run in recording order.
func (l *Ledger) Failures(ctx context.Context, runID string) ([]ItemRecord, error) {
	rows, err := l.db.QueryContext(ensureContext(ctx), `SELECT chunk, source, dest, handle, method, reference,
		kind, error, duration_ms, bytes
		FROM items WHERE run_id = ? AND kind != 'success' ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query failures: %w", err)
	}
	defer rows.Close()

	var out []ItemRecord
	for rows.Next() {
		var (
			r          ItemRecord
			errText    sql.NullString
			durationMS int64
		)
		if err := rows.Scan(&r.Chunk, &r.Source, &r.Dest, &r.Handle, &r.Method, &r.Reference,
			&r.Kind, &errText, &durationMS, &r.Bytes); err != nil {
			return nil, fmt.Errorf("scan failure: %w", err)
		}
		r.Error = errText.String
		r.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}

// KindCounts tallies the recorded items of a run by kind.
func (l *Ledger) KindCounts(ctx context.Context, runID string) (map[string]int, error) {
	rows, err := l.db.QueryContext(ensureContext(ctx),
		"SELECT kind, COUNT(1) FROM items WHERE run_id = ? GROUP BY kind", runID)
	if err != nil {
		return nil, fmt.Errorf("query kind counts: %w", err)
	}
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan kind count: %w", err)
		}
		counts[kind] = n
	}
	return counts, rows.Err()
}
