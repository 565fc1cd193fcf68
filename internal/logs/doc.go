// Package logs tails the daemon log file for `vidtranslate logs`.
//
// It reads with bounded memory, supports negative offsets for "last N lines"
// reads and powers follow mode. Filters narrow output to one job or a minimum
// level for both JSON and console log formats. Callers supply contexts so
// polling stops when the CLI exits.
package logs
