// Package voice is a client for an ElevenLabs-compatible speech API.
//
// It covers the three calls the pipeline needs: cloning a voice from an audio
// sample, synthesizing speech for a chunk of text, and deleting a cloned voice
// once the job is done. Non-2xx responses are returned as *APIError so callers
// can tell quota and rate-limit rejections apart from other failures.
package voice
