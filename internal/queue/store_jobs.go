package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewJob inserts a queued job and returns it.
func (s *Store) NewJob(ctx context.Context, params NewJobParams) (*Job, error) {
	if strings.TrimSpace(params.InputPath) == "" {
		return nil, errors.New("input path is required")
	}
	if strings.TrimSpace(params.TargetLanguage) == "" {
		return nil, errors.New("target language is required")
	}
	id := uuid.NewString()
	timestamp := formatTime(time.Now())

	if _, err := s.exec(
		ctx,
		`INSERT INTO jobs (
            id, input_path, source_name, target_language, preserve_voice,
            status, progress_percent, progress_message, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?, ?)`,
		id,
		params.InputPath,
		params.SourceName,
		params.TargetLanguage,
		boolToInt(params.PreserveVoice),
		StatusQueued,
		"Queued",
		timestamp,
		timestamp,
	); err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches a job and its stage results. It returns nil, nil when the
// job does not exist.
func (s *Store) GetByID(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	results, err := s.StageResults(ctx, id)
	if err != nil {
		return nil, err
	}
	job.StageResults = results
	return job, nil
}

// StageResults returns the recorded stage results of a job in insertion order.
func (s *Store) StageResults(ctx context.Context, jobID string) ([]StageResult, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT stage, status, duration_ms, output_ref, error, soft, recorded_at
         FROM stage_results WHERE job_id = ? ORDER BY seq`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("query stage results: %w", err)
	}
	defer rows.Close()

	var results []StageResult
	for rows.Next() {
		result, err := scanStageResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stage result: %w", err)
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

// List returns jobs filtered by status set (or all jobs when no status is
// provided), oldest first. Stage results are not loaded.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + jobColumns + ` FROM jobs`
	orderClause := ` ORDER BY rowid`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Remove deletes a terminal job by identifier. Queued and running jobs are left alone.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	res, err := s.exec(
		ctx,
		`DELETE FROM jobs WHERE id = ? AND status IN (?, ?)`,
		id, StatusSucceeded, StatusFailed,
	)
	if err != nil {
		return false, fmt.Errorf("delete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClearTerminal removes every succeeded and failed job and returns their ids.
func (s *Store) ClearTerminal(ctx context.Context) ([]string, error) {
	ids, err := s.collectIDs(
		ctx,
		`DELETE FROM jobs WHERE status IN (?, ?) RETURNING id`,
		StatusSucceeded, StatusFailed,
	)
	if err != nil {
		return nil, fmt.Errorf("clear terminal jobs: %w", err)
	}
	return ids, nil
}

func (s *Store) collectIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	ctx = orBackground(ctx)
	var ids []string
	err := withBusyRetry(ctx, func() error {
		ids = ids[:0]
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}
