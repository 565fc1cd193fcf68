package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ClaimNext atomically moves the oldest queued job to running and returns it.
// It returns nil, nil when nothing is queued. Concurrent callers never claim
// the same job.
func (s *Store) ClaimNext(ctx context.Context) (*Job, error) {
	ctx = orBackground(ctx)
	timestamp := formatTime(time.Now())
	var id string
	err := withBusyRetry(ctx, func() error {
		return s.db.QueryRowContext(
			ctx,
			`UPDATE jobs
             SET status = ?, started_at = ?, updated_at = ?, last_heartbeat = ?, progress_message = ?
             WHERE id = (SELECT id FROM jobs WHERE status = ? ORDER BY rowid LIMIT 1)
               AND status = ?
             RETURNING id`,
			StatusRunning, timestamp, timestamp, timestamp, "Starting",
			StatusQueued, StatusQueued,
		).Scan(&id)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return s.GetByID(ctx, id)
}

// UpdateProgress records the current stage and progress of a running job.
// The stored percentage never decreases.
func (s *Store) UpdateProgress(ctx context.Context, id string, stage Stage, percent int, message string) error {
	percent = clampPercent(percent)
	res, err := s.exec(
		ctx,
		`UPDATE jobs
         SET current_stage = ?, progress_percent = MAX(progress_percent, ?), progress_message = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		nullableString(string(stage)),
		percent,
		nullableString(message),
		formatTime(time.Now()),
		id,
		StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return requireAffected(res, id)
}

// AppendStageResult adds a stage result to a running job. Each stage may be
// recorded once.
func (s *Store) AppendStageResult(ctx context.Context, id string, result StageResult) error {
	if result.RecordedAt.IsZero() {
		result.RecordedAt = time.Now()
	}
	res, err := s.exec(
		ctx,
		`INSERT INTO stage_results (job_id, seq, stage, status, duration_ms, output_ref, error, soft, recorded_at)
         SELECT j.id,
                (SELECT COALESCE(MAX(seq), 0) + 1 FROM stage_results WHERE job_id = j.id),
                ?, ?, ?, ?, ?, ?, ?
         FROM jobs j WHERE j.id = ? AND j.status = ?`,
		string(result.Stage),
		string(result.Status),
		result.DurationMs,
		nullableString(result.OutputRef),
		nullableString(result.Error),
		boolToInt(result.Soft),
		formatTime(result.RecordedAt),
		id,
		StatusRunning,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("stage %s already recorded for job %s", result.Stage, id)
		}
		return fmt.Errorf("append stage result: %w", err)
	}
	return requireAffected(res, id)
}

// Complete marks a running job succeeded and stores its final result in the
// same statement.
func (s *Store) Complete(ctx context.Context, id string, result FinalResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	timestamp := formatTime(time.Now())
	res, err := s.exec(
		ctx,
		`UPDATE jobs
         SET status = ?, result_json = ?, progress_percent = 100, progress_message = ?,
             current_stage = NULL, completed_at = ?, updated_at = ?, last_heartbeat = NULL
         WHERE id = ? AND status = ?`,
		StatusSucceeded,
		string(payload),
		"Completed",
		timestamp,
		timestamp,
		id,
		StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return requireAffected(res, id)
}

// Fail marks a running job failed with the stage and message that caused it.
func (s *Store) Fail(ctx context.Context, id string, stage Stage, message string) error {
	if strings.TrimSpace(message) == "" {
		message = "job failed"
	}
	timestamp := formatTime(time.Now())
	res, err := s.exec(
		ctx,
		`UPDATE jobs
         SET status = ?, error_message = ?, failed_stage = ?, progress_message = ?,
             current_stage = NULL, completed_at = ?, updated_at = ?, last_heartbeat = NULL
         WHERE id = ? AND status = ?`,
		StatusFailed,
		message,
		nullableString(string(stage)),
		"Failed",
		timestamp,
		timestamp,
		id,
		StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return requireAffected(res, id)
}

// FailRunning fails every running job with reason and returns their ids. The
// daemon calls it at startup for jobs a previous process left behind.
func (s *Store) FailRunning(ctx context.Context, reason string) ([]string, error) {
	timestamp := formatTime(time.Now())
	ids, err := s.collectIDs(
		ctx,
		`UPDATE jobs
         SET status = ?, error_message = ?, failed_stage = current_stage, progress_message = ?,
             current_stage = NULL, completed_at = ?, updated_at = ?, last_heartbeat = NULL
         WHERE status = ?
         RETURNING id`,
		StatusFailed, reason, "Failed", timestamp, timestamp, StatusRunning,
	)
	if err != nil {
		return nil, fmt.Errorf("fail running jobs: %w", err)
	}
	return ids, nil
}

// UpdateHeartbeat updates the last heartbeat timestamp for a running job.
func (s *Store) UpdateHeartbeat(ctx context.Context, id string) error {
	now := formatTime(time.Now())
	if _, err := s.exec(
		ctx,
		`UPDATE jobs SET last_heartbeat = ?, updated_at = ? WHERE id = ? AND status = ?`,
		now, now, id, StatusRunning,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

func requireAffected(res sql.Result, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotRunning, id)
	}
	return nil
}

func clampPercent(value int) int {
	switch {
	case value < 0:
		return 0
	case value > 100:
		return 100
	default:
		return value
	}
}
