// Package notifications delivers job events via ntfy.
//
// NewService returns an ntfy-backed notifier when a topic URL is configured
// and a no-op otherwise. Callers publish an Event with a loose Payload map;
// per-event toggles in the [notifications] config section decide which events
// are actually sent.
package notifications
