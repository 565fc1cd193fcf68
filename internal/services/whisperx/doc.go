// Package whisperx runs WhisperX speech-to-text through uvx.
//
// Transcribe invokes WhisperX on a 16 kHz mono WAV file, reads the JSON it
// writes next to the requested output directory, and returns the joined text,
// the detected language, and the timed segments. Configuration options (model,
// CUDA, VAD method) are passed via Config.
package whisperx
