package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// DaemonStopReason is the error message set when running jobs are failed because
// the daemon stopped before they finished.
const DaemonStopReason = "interrupted: daemon stopped before the job finished"

var allStatuses = []Status{
	StatusQueued,
	StatusRunning,
	StatusSucceeded,
	StatusFailed,
}

var allowedTransitions = map[Status][]Status{
	StatusQueued:  {StatusRunning},
	StatusRunning: {StatusSucceeded, StatusFailed},
}

// AllStatuses returns every known status in lifecycle order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus converts a string into a Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// CanTransitionTo reports whether moving from s to next is a legal lifecycle step.
func (s Status) CanTransitionTo(next Status) bool {
	for _, candidate := range allowedTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Stage identifies a step of the translation pipeline.
type Stage string

const (
	StageExtracting   Stage = "extracting"
	StageTranscribing Stage = "transcribing"
	StageTranslating  Stage = "translating"
	StageVoiceCloning Stage = "voice_cloning"
	StageSynthesizing Stage = "synthesizing"
	StageMuxing       Stage = "muxing"
)

// StageResultStatus is the outcome of a single stage.
type StageResultStatus string

const (
	StageSuccess StageResultStatus = "success"
	StageError   StageResultStatus = "error"
)

// StageResult records how one pipeline stage finished. Results are append-only.
type StageResult struct {
	Stage      Stage             `json:"stage"`
	Status     StageResultStatus `json:"status"`
	DurationMs int64             `json:"durationMs"`
	OutputRef  string            `json:"outputRef,omitempty"`
	Error      string            `json:"error,omitempty"`
	Soft       bool              `json:"soft,omitempty"`
	RecordedAt time.Time         `json:"recordedAt"`
}

// FinalResult is the payload stored for a succeeded job.
type FinalResult struct {
	VideoPath      string `json:"videoPath"`
	FileName       string `json:"fileName"`
	Transcription  string `json:"transcription"`
	Translation    string `json:"translation"`
	SourceLanguage string `json:"sourceLanguage,omitempty"`
	SegmentCount   int    `json:"segmentCount"`
	VoiceCloned    bool   `json:"voiceCloned"`
}

// Job is one submitted translation request.
type Job struct {
	ID              string
	InputPath       string
	SourceName      string
	TargetLanguage  string
	PreserveVoice   bool
	Status          Status
	CurrentStage    Stage
	ProgressPercent int
	ProgressMessage string
	ErrorMessage    string
	FailedStage     Stage
	Result          *FinalResult
	StageResults    []StageResult
	CreatedAt       time.Time
	UpdatedAt       time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
	LastHeartbeat   *time.Time
	RetrievedAt     *time.Time
}

// IsTerminal reports whether the job has finished.
func (j *Job) IsTerminal() bool {
	return j != nil && j.Status.IsTerminal()
}

// NewJobParams describes a job to enqueue.
type NewJobParams struct {
	InputPath      string
	SourceName     string
	TargetLanguage string
	PreserveVoice  bool
}

// HealthSummary aggregates job counts for status output.
type HealthSummary struct {
	Total     int `json:"total"`
	Queued    int `json:"queued"`
	Running   int `json:"running"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}
