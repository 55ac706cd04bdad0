// Package sqlite persists run history and posted-finding records. GitHub
// runs recover records from the PR's own comments; the store serves local
// runs, which have no comment thread to re-read.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/bmartin/prguard/internal/domain"
)

// Store is a SQLite-backed record of past runs and published findings.
type Store struct {
	db *sql.DB
}

// Run is one persisted review run.
type Run struct {
	Repository string
	BaseSHA    string
	HeadSHA    string
	Timestamp  time.Time
	Summary    domain.RunSummary
}

// NewStore opens (or creates) the database at dbPath. Use ":memory:" for an
// in-memory database in tests.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return s, nil
}

func (s *Store) createSchema() error {
	schema := `
	-- Metadata about each review run
	CREATE TABLE IF NOT EXISTS runs (
		run_id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp INTEGER NOT NULL,
		repository TEXT NOT NULL,
		base_sha TEXT NOT NULL,
		head_sha TEXT NOT NULL,
		status TEXT NOT NULL,
		chunks_total INTEGER NOT NULL,
		chunks_failed INTEGER NOT NULL,
		findings_total INTEGER NOT NULL,
		findings_posted INTEGER NOT NULL,
		findings_deduplicated INTEGER NOT NULL,
		post_failures INTEGER NOT NULL
	);

	-- Findings already reported, keyed by fingerprint
	CREATE TABLE IF NOT EXISTS posted_findings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		repository TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		comment_id INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		UNIQUE(repository, fingerprint)
	);

	CREATE INDEX IF NOT EXISTS idx_posted_repo ON posted_findings(repository);
	CREATE INDEX IF NOT EXISTS idx_runs_timestamp ON runs(timestamp DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// RecordRun stores a completed run.
func (s *Store) RecordRun(ctx context.Context, run Run) error {
	query := `
		INSERT INTO runs (timestamp, repository, base_sha, head_sha, status,
			chunks_total, chunks_failed, findings_total, findings_posted,
			findings_deduplicated, post_failures)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		run.Timestamp.Unix(),
		run.Repository,
		run.BaseSHA,
		run.HeadSHA,
		string(run.Summary.Status),
		run.Summary.ChunksTotal,
		run.Summary.ChunksFailed,
		run.Summary.FindingsTotal,
		run.Summary.FindingsPosted,
		run.Summary.FindingsDeduplicated,
		run.Summary.PostFailures,
	)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, repository string, limit int) ([]Run, error) {
	query := `
		SELECT timestamp, repository, base_sha, head_sha, status,
			chunks_total, chunks_failed, findings_total, findings_posted,
			findings_deduplicated, post_failures
		FROM runs
		WHERE repository = ?
		ORDER BY timestamp DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, repository, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var ts int64
		var status string
		if err := rows.Scan(&ts, &r.Repository, &r.BaseSHA, &r.HeadSHA, &status,
			&r.Summary.ChunksTotal, &r.Summary.ChunksFailed, &r.Summary.FindingsTotal,
			&r.Summary.FindingsPosted, &r.Summary.FindingsDeduplicated,
			&r.Summary.PostFailures); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.Timestamp = time.Unix(ts, 0)
		r.Summary.Status = domain.RunStatus(status)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// SavePostedRecords remembers which findings have been reported for a
// repository. Re-saving a fingerprint is a no-op.
func (s *Store) SavePostedRecords(ctx context.Context, repository string, records []domain.PostedCommentRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT OR IGNORE INTO posted_findings (repository, fingerprint, comment_id, created_at)
		VALUES (?, ?, ?, ?)
	`
	now := time.Now().Unix()
	for _, rec := range records {
		if _, err := tx.ExecContext(ctx, query, repository, string(rec.Fingerprint), rec.CommentID, now); err != nil {
			return fmt.Errorf("failed to save posted record: %w", err)
		}
	}
	return tx.Commit()
}

// ListPostedRecords returns every finding ever reported for a repository.
func (s *Store) ListPostedRecords(ctx context.Context, repository string) ([]domain.PostedCommentRecord, error) {
	query := `
		SELECT fingerprint, comment_id FROM posted_findings
		WHERE repository = ?
		ORDER BY fingerprint
	`
	rows, err := s.db.QueryContext(ctx, query, repository)
	if err != nil {
		return nil, fmt.Errorf("failed to list posted records: %w", err)
	}
	defer rows.Close()

	var records []domain.PostedCommentRecord
	for rows.Next() {
		var fp string
		var rec domain.PostedCommentRecord
		if err := rows.Scan(&fp, &rec.CommentID); err != nil {
			return nil, fmt.Errorf("failed to scan posted record: %w", err)
		}
		rec.Fingerprint = domain.Fingerprint(fp)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
