package queue

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const jobColumns = "id, input_path, source_name, target_language, preserve_voice, status, current_stage, progress_percent, progress_message, error_message, failed_stage, result_json, created_at, updated_at, started_at, completed_at, last_heartbeat, retrieved_at"

// timeLayout is fixed-width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id              string
		inputPath       string
		sourceName      string
		targetLanguage  string
		preserveVoice   int64
		statusStr       string
		currentStage    sql.NullString
		progressPercent sql.NullInt64
		progressMessage sql.NullString
		errorMessage    sql.NullString
		failedStage     sql.NullString
		resultJSON      sql.NullString
		createdRaw      sql.NullString
		updatedRaw      sql.NullString
		startedRaw      sql.NullString
		completedRaw    sql.NullString
		heartbeatRaw    sql.NullString
		retrievedRaw    sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&inputPath,
		&sourceName,
		&targetLanguage,
		&preserveVoice,
		&statusStr,
		&currentStage,
		&progressPercent,
		&progressMessage,
		&errorMessage,
		&failedStage,
		&resultJSON,
		&createdRaw,
		&updatedRaw,
		&startedRaw,
		&completedRaw,
		&heartbeatRaw,
		&retrievedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:              id,
		InputPath:       inputPath,
		SourceName:      sourceName,
		TargetLanguage:  targetLanguage,
		PreserveVoice:   preserveVoice != 0,
		Status:          Status(statusStr),
		CurrentStage:    Stage(currentStage.String),
		ProgressPercent: int(progressPercent.Int64),
		ProgressMessage: progressMessage.String,
		ErrorMessage:    errorMessage.String,
		FailedStage:     Stage(failedStage.String),
		StartedAt:       parseNullableTime(startedRaw),
		CompletedAt:     parseNullableTime(completedRaw),
		LastHeartbeat:   parseNullableTime(heartbeatRaw),
		RetrievedAt:     parseNullableTime(retrievedRaw),
	}
	if resultJSON.Valid && resultJSON.String != "" {
		var result FinalResult
		if err := json.Unmarshal([]byte(resultJSON.String), &result); err != nil {
			return nil, fmt.Errorf("decode result for job %s: %w", id, err)
		}
		job.Result = &result
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	return job, nil
}

func scanStageResult(scanner interface{ Scan(dest ...any) error }) (StageResult, error) {
	var (
		stage       string
		status      string
		durationMs  int64
		outputRef   sql.NullString
		errorText   sql.NullString
		soft        int64
		recordedRaw string
	)
	if err := scanner.Scan(&stage, &status, &durationMs, &outputRef, &errorText, &soft, &recordedRaw); err != nil {
		return StageResult{}, err
	}
	result := StageResult{
		Stage:      Stage(stage),
		Status:     StageResultStatus(status),
		DurationMs: durationMs,
		OutputRef:  outputRef.String,
		Error:      errorText.String,
		Soft:       soft != 0,
	}
	if recorded, err := parseTimeString(recordedRaw); err == nil {
		result.RecordedAt = recorded
	}
	return result, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func formatTime(value time.Time) string {
	return value.UTC().Format(timeLayout)
}

func parseNullableTime(value sql.NullString) *time.Time {
	if !value.Valid {
		return nil
	}
	parsed, err := parseTimeString(value.String)
	if err != nil {
		return nil
	}
	return &parsed
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
