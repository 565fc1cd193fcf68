// Package api defines the wire-format types exchanged between the daemon HTTP
// API and its clients, plus the converters and HTTP client around them.
//
// # Status reporting
//
// FromJob is a pure mapping over a job snapshot read from the queue store.
// The populated fields depend on status:
//
//   - queued: status only
//   - running: stage, percent and message
//   - succeeded: percent 100 and the result, with a signed download link
//   - failed: the last percent and error{stage, message}
//
// stageResults are included in every state. Because the snapshot is a fresh
// copy, mapping is safe concurrently with a running pipeline.
//
// # Client
//
// Client wraps the daemon endpoints for the CLI. Non-2xx responses become
// *HTTPError values that unwrap to the matching services error marker, so a
// 404 satisfies errors.Is(err, services.ErrNotFound).
//
// DTOs use camelCase JSON tags. Timestamps are RFC3339 with milliseconds.
package api
