// Package artifacts tracks the temporary files and remote resources a job
// creates while it runs.
//
// Each job owns one Tracker. Stages register what they create; the pipeline
// releases everything still registered when the job reaches a terminal state,
// after exempting the final deliverable with Keep. Cleanup failures are logged
// and never surface as job errors.
package artifacts
