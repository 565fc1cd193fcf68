// Package services defines shared utilities consumed by the pipeline stages
// and the external capability clients.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, worker names, and
//     correlation identifiers for logging.
//   - Error markers (media, translation, soft cloning, validation, timeout)
//     plus the Wrap helper that keeps stage and operation context in the
//     message while leaving both marker and cause reachable via errors.Is.
//
// Use these helpers when wiring new stage logic so failure reporting stays
// uniform across the pipeline.
package services
