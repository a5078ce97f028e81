package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Record upserts the outcome of a job.
func (s *Store) Record(ctx context.Context, rec JobRecord) error {
	if strings.TrimSpace(rec.JobID) == "" {
		return errors.New("job id is required")
	}
	if strings.TrimSpace(rec.BookID) == "" {
		return errors.New("book id is required")
	}
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.exec(ctx, `
		INSERT INTO jobs (`+jobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_id) DO UPDATE SET
			status = excluded.status,
			title = excluded.title,
			files_total = excluded.files_total,
			files_done = excluded.files_done,
			error_message = excluded.error_message,
			finished_at = excluded.finished_at`,
		rec.JobID,
		rec.BookID,
		nullableString(rec.Title),
		string(rec.Status),
		rec.FilesTotal,
		rec.FilesDone,
		nullableString(rec.Error),
		created.UTC().Format(timeLayout),
		nullableTime(rec.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("record job %s: %w", rec.JobID, err)
	}
	return nil
}

// Get returns the record for jobID, or nil when none exists.
func (s *Store) Get(ctx context.Context, jobID string) (*JobRecord, error) {
	row := s.db.QueryRowContext(orBackground(ctx), `SELECT `+jobColumns+` FROM jobs WHERE job_id = ?`, jobID)
	rec, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}
	return &rec, nil
}

// LatestForBook returns the most recent record for bookID, or nil.
func (s *Store) LatestForBook(ctx context.Context, bookID string) (*JobRecord, error) {
	records, err := s.List(ctx, ListOptions{BookID: bookID, Limit: 1})
	if err != nil || len(records) == 0 {
		return nil, err
	}
	return &records[0], nil
}

// List returns records newest first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]JobRecord, error) {
	var (
		clauses []string
		args    []any
	)
	if opts.BookID != "" {
		clauses = append(clauses, "book_id = ?")
		args = append(args, opts.BookID)
	}
	if opts.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(opts.Status))
	}
	query := `SELECT ` + jobColumns + ` FROM jobs`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY COALESCE(finished_at, created_at) DESC, created_at DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(orBackground(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []JobRecord
	for rows.Next() {
		rec, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Clear removes every record and returns how many were deleted.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.exec(ctx, `DELETE FROM jobs`)
	if err != nil {
		return 0, fmt.Errorf("clear jobs: %w", err)
	}
	return res.RowsAffected()
}

// Prune removes records finished before cutoff.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.exec(ctx,
		`DELETE FROM jobs WHERE finished_at IS NOT NULL AND finished_at < ?`,
		cutoff.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("prune jobs: %w", err)
	}
	return res.RowsAffected()
}
