// Package daemonctl launches and stops a background vidtranslate daemon for
// the start, stop and restart CLI commands. Readiness is probed through the
// HTTP status endpoint; shutdown goes through the pid file and signals.
package daemonctl
