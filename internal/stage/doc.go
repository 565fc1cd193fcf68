// Package stage adapts the external capabilities used by the translation
// pipeline (ffprobe, ffmpeg, WhisperX, the translation model and the speech
// provider) to a narrow, uniformly behaved interface.
//
// Every adapter call runs under its own deadline and returns errors tagged
// with the sentinel markers from internal/services, so the pipeline can decide
// between a hard failure and a degraded continuation without knowing which
// tool produced the error.
package stage
