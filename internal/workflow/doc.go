// Package workflow schedules translation jobs.
//
// The Manager accepts submissions, persists them as queued jobs and returns
// immediately. A fixed pool of worker goroutines claims queued jobs from the
// SQLite store (at most one worker per job) and hands each one to the
// pipeline runner while a heartbeat loop stamps it as alive. GetStatus serves
// polling clients from fresh store snapshots and marks terminal jobs as
// retrieved on their first read.
//
// On Start the manager fails any job a previous process left running and
// removes work directories that no longer belong to an active job. When
// retrieved-job retention is configured, the first worker periodically
// purges retrieved terminal jobs together with their delivered files.
package workflow
