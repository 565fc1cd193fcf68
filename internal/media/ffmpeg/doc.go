// Package ffmpeg wraps the ffmpeg invocations used by the translation
// pipeline: audio extraction, concatenation of synthesized speech chunks, and
// remuxing a new audio track onto the original video.
//
// Every call writes to a temporary sibling of the destination and renames it
// into place on success, so a failed or interrupted run never leaves a
// truncated file at the destination path.
package ffmpeg
