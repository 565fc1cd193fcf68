// Package preflight provides readiness checks for the external tools,
// services and filesystem paths vidtranslate depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll once at startup and logs every failure before
//     accepting jobs.
//   - The CLI "vidtranslate check" command renders the same results as a
//     table, without needing a running daemon.
package preflight
