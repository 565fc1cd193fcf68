// Package main hosts the vidtranslate CLI entrypoint and command graph.
//
// One binary plays both roles: `vidtranslate daemon` runs the long-lived
// process, and every other command is a thin HTTP client of that daemon
// (submit, status, jobs, remove, test-notify) or a local utility (check,
// config). Configuration resolution and client construction live in
// commandContext so subcommands only deal with presentation.
package main
