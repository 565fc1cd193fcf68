// Package pipeline runs one translation job through its stages.
//
// A Runner executes extracting, transcribing, translating, optional
// voice_cloning, synthesizing and muxing strictly in order for a claimed job.
// Each stage writes its lower progress bound on entry and its upper bound on
// success, and appends exactly one stage result. Every temporary file is
// registered with a per-job artifacts.Tracker that is drained on all exit
// paths, panics included. The muxed video is the only artifact that survives:
// it is kept out of the tracker and moved into the delivery outbox before the
// job is completed.
//
// A hard stage failure stops the job and fails it with the stage-prefixed
// error text. A voice cloning failure wrapping services.ErrCloningSoft is
// recorded as a soft stage result and synthesis continues with the default
// voice.
package pipeline
