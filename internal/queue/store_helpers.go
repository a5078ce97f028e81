package queue

import (
	"database/sql"
	"errors"
	"time"
)

// timeLayout keeps a fixed-width fraction so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const jobColumns = "job_id, book_id, title, status, files_total, files_done, error_message, created_at, finished_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (JobRecord, error) {
	var (
		rec         JobRecord
		title       sql.NullString
		statusStr   string
		errorMsg    sql.NullString
		createdRaw  string
		finishedRaw sql.NullString
	)
	if err := scanner.Scan(
		&rec.JobID,
		&rec.BookID,
		&title,
		&statusStr,
		&rec.FilesTotal,
		&rec.FilesDone,
		&errorMsg,
		&createdRaw,
		&finishedRaw,
	); err != nil {
		return JobRecord{}, err
	}
	rec.Title = title.String
	rec.Status = Status(statusStr)
	rec.Error = errorMsg.String
	if created, err := parseTimeString(createdRaw); err == nil {
		rec.CreatedAt = created
	}
	if finishedRaw.Valid {
		if finished, err := parseTimeString(finishedRaw.String); err == nil {
			rec.FinishedAt = &finished
		}
	}
	return rec, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(timeLayout)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
