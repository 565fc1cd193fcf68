// Package queue persists translation jobs in SQLite and exposes the guarded
// transitions that drive their lifecycle.
//
// The Store manages database connections, schema initialization, atomic job
// claiming, progress and heartbeat tracking, append-only stage results, and the
// exactly-once terminal writes. Every mutation names the status it expects, so
// a job that already reached succeeded or failed can never be written again.
//
// Schema changes bump the version in schema.go; users clear the database to
// adopt the new schema.
package queue
