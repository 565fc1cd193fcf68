// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Inspect runs ffprobe and returns a Result describing streams and container
// metadata. The pipeline uses it to reject sources without an audio stream
// before extraction and to sanity-check muxed output.
package ffprobe
