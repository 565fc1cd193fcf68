package queue

import "errors"

// ErrNotRunning is returned when a progress, stage result, or terminal write
// targets a job that is not currently running.
var ErrNotRunning = errors.New("job is not running")

// ErrInvalidStatus is returned for status filters that name no known status.
var ErrInvalidStatus = errors.New("invalid job status")
