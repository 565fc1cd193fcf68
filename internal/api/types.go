package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// JobReport is the polling view of a job. Which fields are populated depends
// on the job status; stageResults is present in every state.
type JobReport struct {
	ID             string        `json:"id"`
	Status         string        `json:"status"`
	SourceName     string        `json:"sourceName,omitempty"`
	TargetLanguage string        `json:"targetLanguage,omitempty"`
	PreserveVoice  bool          `json:"preserveVoice"`
	Stage          string        `json:"stage,omitempty"`
	Percent        *int          `json:"percent,omitempty"`
	Message        string        `json:"message,omitempty"`
	Result         *JobResult    `json:"result,omitempty"`
	Error          *JobError     `json:"error,omitempty"`
	StageResults   []StageResult `json:"stageResults"`
	CreatedAt      string        `json:"createdAt,omitempty"`
	StartedAt      string        `json:"startedAt,omitempty"`
	CompletedAt    string        `json:"completedAt,omitempty"`
}

// JobResult carries the outcome of a succeeded job.
type JobResult struct {
	FileName       string        `json:"fileName"`
	Transcription  string        `json:"transcription"`
	Translation    string        `json:"translation"`
	SourceLanguage string        `json:"sourceLanguage,omitempty"`
	SegmentCount   int           `json:"segmentCount"`
	VoiceCloned    bool          `json:"voiceCloned"`
	Download       *DownloadLink `json:"download,omitempty"`
}

// DownloadLink is a signed, expiring URL for the translated video.
type DownloadLink struct {
	URL       string `json:"url"`
	ExpiresAt string `json:"expiresAt"`
}

// JobError describes where and why a job failed.
type JobError struct {
	Stage   string `json:"stage,omitempty"`
	Message string `json:"message"`
}

// StageResult mirrors one recorded pipeline stage outcome.
type StageResult struct {
	Stage      string `json:"stage"`
	Status     string `json:"status"`
	DurationMs int64  `json:"durationMs"`
	OutputRef  string `json:"outputRef,omitempty"`
	Error      string `json:"error,omitempty"`
	Soft       bool   `json:"soft,omitempty"`
	RecordedAt string `json:"recordedAt,omitempty"`
}

// SubmitRequest is the body of POST /api/jobs.
type SubmitRequest struct {
	SourcePath     string `json:"sourcePath"`
	TargetLanguage string `json:"targetLanguage"`
	PreserveVoice  bool   `json:"preserveVoice"`
}

// JobResponse wraps a single job report.
type JobResponse struct {
	Job JobReport `json:"job"`
}

// JobListResponse wraps a collection of job reports.
type JobListResponse struct {
	Jobs []JobReport `json:"jobs"`
}

// RemoveResponse acknowledges a job removal.
type RemoveResponse struct {
	Removed bool   `json:"removed"`
	ID      string `json:"id"`
}

// ErrorResponse is returned for every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// WorkflowStatus summarizes scheduler state.
type WorkflowStatus struct {
	Running     bool           `json:"running"`
	Workers     int            `json:"workers"`
	ActiveJobs  []string       `json:"activeJobs"`
	QueueStats  map[string]int `json:"queueStats"`
	LastError   string         `json:"lastError,omitempty"`
	LastJobID   string         `json:"lastJobId,omitempty"`
	StageHealth []StageHealth  `json:"stageHealth"`
}

// StageHealth mirrors readiness reporting for capability adapters.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// DependencyStatus captures availability of an external binary.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	QueueDBPath  string             `json:"queueDbPath"`
	LockFilePath string             `json:"lockFilePath"`
	DeliveryDir  string             `json:"deliveryDir"`
	Workflow     WorkflowStatus     `json:"workflow"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// NotificationResponse reports the outcome of a test notification.
type NotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
