// Package daemon coordinates the long-running vidtranslate process.
//
// It ties the job store, the workflow manager and the delivery outbox into a
// single lifecycle guarded by a flock-based lock, and serves the HTTP API with
// echo:
//
//	POST   /api/jobs                 submit a job (202)
//	GET    /api/jobs?status=...      list jobs
//	GET    /api/jobs/:id             poll one job (404 when unknown)
//	DELETE /api/jobs/:id             remove a finished job
//	GET    /api/status               daemon and scheduler status
//	POST   /api/notifications/test   send a test notification
//	GET    /download/:token          fetch a delivered video by signed link
//
// The /api group requires the configured bearer token when one is set.
// Downloads authenticate by their signed token alone.
//
// Keep orchestration logic here: pipeline steps live in internal/pipeline and
// scheduling in internal/workflow, while the daemon owns startup, shutdown
// and the transport surface.
package daemon
