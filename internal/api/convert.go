package api

import (
	"slices"
	"time"

	"vidtranslate/internal/delivery"
	"vidtranslate/internal/deps"
	"vidtranslate/internal/queue"
	"vidtranslate/internal/workflow"
)

// FromJob maps a job snapshot to its polling report. link is attached to the
// result of a succeeded job when the delivered file is still downloadable.
func FromJob(job *queue.Job, link *delivery.Link) JobReport {
	if job == nil {
		return JobReport{}
	}

	report := JobReport{
		ID:             job.ID,
		Status:         string(job.Status),
		SourceName:     job.SourceName,
		TargetLanguage: job.TargetLanguage,
		PreserveVoice:  job.PreserveVoice,
		StageResults:   fromStageResults(job.StageResults),
		CreatedAt:      formatTime(job.CreatedAt),
		StartedAt:      formatTimePtr(job.StartedAt),
		CompletedAt:    formatTimePtr(job.CompletedAt),
	}

	switch job.Status {
	case queue.StatusRunning:
		report.Stage = string(job.CurrentStage)
		report.Percent = intPtr(job.ProgressPercent)
		report.Message = job.ProgressMessage
	case queue.StatusSucceeded:
		report.Percent = intPtr(100)
		if job.Result != nil {
			result := &JobResult{
				FileName:       job.Result.FileName,
				Transcription:  job.Result.Transcription,
				Translation:    job.Result.Translation,
				SourceLanguage: job.Result.SourceLanguage,
				SegmentCount:   job.Result.SegmentCount,
				VoiceCloned:    job.Result.VoiceCloned,
			}
			if link != nil && link.URL != "" {
				result.Download = &DownloadLink{
					URL:       link.URL,
					ExpiresAt: formatTime(link.ExpiresAt),
				}
			}
			report.Result = result
		}
	case queue.StatusFailed:
		report.Percent = intPtr(job.ProgressPercent)
		report.Error = &JobError{
			Stage:   string(job.FailedStage),
			Message: job.ErrorMessage,
		}
	}
	return report
}

// FromJobs converts a slice of jobs into reports without download links.
func FromJobs(jobs []*queue.Job) []JobReport {
	out := make([]JobReport, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, FromJob(job, nil))
	}
	return out
}

func fromStageResults(results []queue.StageResult) []StageResult {
	out := make([]StageResult, 0, len(results))
	for _, r := range results {
		out = append(out, StageResult{
			Stage:      string(r.Stage),
			Status:     string(r.Status),
			DurationMs: r.DurationMs,
			OutputRef:  r.OutputRef,
			Error:      r.Error,
			Soft:       r.Soft,
			RecordedAt: formatTime(r.RecordedAt),
		})
	}
	return out
}

// FromStatusSummary converts a workflow status summary to API payload.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	health := make([]StageHealth, 0, len(summary.Health))
	for _, h := range summary.Health {
		health = append(health, StageHealth{
			Name:   h.Name,
			Ready:  h.Ready,
			Detail: h.Detail,
		})
	}
	slices.SortFunc(health, func(a, b StageHealth) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})

	active := summary.ActiveJobs
	if active == nil {
		active = []string{}
	}
	return WorkflowStatus{
		Running:     summary.Running,
		Workers:     summary.Workers,
		ActiveJobs:  active,
		QueueStats:  MergeQueueStats(summary.QueueStats),
		LastError:   summary.LastError,
		LastJobID:   summary.LastJobID,
		StageHealth: health,
	}
}

// MergeQueueStats produces a string-keyed representation of queue stats with
// every status present.
func MergeQueueStats(stats map[queue.Status]int) map[string]int {
	out := make(map[string]int, len(queue.AllStatuses()))
	for _, status := range queue.AllStatuses() {
		out[string(status)] = stats[status]
	}
	return out
}

// FromDependencies converts binary checks to their API representation.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, DependencyStatus{
			Name:        s.Name,
			Command:     s.Command,
			Description: s.Description,
			Optional:    s.Optional,
			Available:   s.Available,
			Detail:      s.Detail,
		})
	}
	return out
}

// ParseTime parses an API timestamp; it returns the zero time on failure.
func ParseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	return time.Time{}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func intPtr(v int) *int {
	return &v
}
