package stage

import (
	"context"

	"vidtranslate/internal/media/ffprobe"
	"vidtranslate/internal/services/whisperx"
)

// ProbeFunc inspects a media file.
type ProbeFunc func(ctx context.Context, path string) (ffprobe.Result, error)

// MediaTool runs transcoding operations.
type MediaTool interface {
	ExtractAudio(ctx context.Context, source, dest string) error
	ExtractSample(ctx context.Context, source, dest string, seconds int) error
	ConcatAudio(ctx context.Context, parts []string, dest string) error
	Mux(ctx context.Context, video, audio, dest string) error
}

// Transcriber converts speech audio to text.
type Transcriber interface {
	Transcribe(ctx context.Context, source, outputDir, language string) (whisperx.Transcript, error)
}

// Translator translates text into a target language.
type Translator interface {
	Translate(ctx context.Context, text, targetCode, languageName string) (string, error)
}

// VoiceProvider clones voices and synthesizes speech.
type VoiceProvider interface {
	CloneVoice(ctx context.Context, name, samplePath string) (string, error)
	DeleteVoice(ctx context.Context, voiceID string) error
	Synthesize(ctx context.Context, voiceID, text, dest string) (int64, error)
}

// healthChecker is implemented by capabilities that can verify their own
// readiness (API key, model availability).
type healthChecker interface {
	HealthCheck(ctx context.Context) error
}
