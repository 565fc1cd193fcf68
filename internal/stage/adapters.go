package stage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"vidtranslate/internal/config"
	"vidtranslate/internal/language"
	"vidtranslate/internal/logging"
	"vidtranslate/internal/media/ffmpeg"
	"vidtranslate/internal/media/ffprobe"
	"vidtranslate/internal/queue"
	"vidtranslate/internal/services"
	"vidtranslate/internal/services/llm"
	"vidtranslate/internal/services/voice"
	"vidtranslate/internal/services/whisperx"
	"vidtranslate/internal/textutil"
)

// VoiceSampleSeconds bounds the reference audio uploaded for cloning.
const VoiceSampleSeconds = 120

// Options configures Adapters.
type Options struct {
	Probe       ProbeFunc
	Media       MediaTool
	Transcriber Transcriber
	Translator  Translator
	Voice       VoiceProvider

	Timeouts           config.StageTimeouts
	SourceLanguage     string
	IdenticalThreshold float64
	ClonePolicy        string
	DefaultVoiceID     string
	MaxChunkChars      int
	MinOutputBytes     int64

	Logger *slog.Logger
}

// Adapters wraps the pipeline capabilities with deadlines and error
// classification.
type Adapters struct {
	opts   Options
	logger *slog.Logger
}

// New constructs Adapters from explicit capabilities.
func New(opts Options) *Adapters {
	if opts.ClonePolicy == "" {
		opts.ClonePolicy = config.ClonePolicySoft
	}
	if opts.IdenticalThreshold <= 0 {
		opts.IdenticalThreshold = 0.97
	}
	return &Adapters{
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, "stage"),
	}
}

// NewFromConfig wires the production capability clients.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) *Adapters {
	ffprobeBinary := cfg.FFprobeBinary()
	return New(Options{
		Probe: func(ctx context.Context, path string) (ffprobe.Result, error) {
			return ffprobe.Inspect(ctx, ffprobeBinary, path)
		},
		Media: ffmpeg.New(cfg.FFmpegBinary()),
		Transcriber: whisperx.NewService(whisperx.Config{
			Model:       cfg.Transcription.WhisperXModel,
			Binary:      cfg.WhisperXBinary(),
			CUDAEnabled: cfg.Transcription.WhisperXCUDAEnabled,
			VADMethod:   cfg.Transcription.WhisperXVADMethod,
			HFToken:     cfg.Transcription.WhisperXHuggingFace,
		}),
		Translator: llm.NewClient(llm.Config{
			APIKey:         cfg.Translation.APIKey,
			BaseURL:        cfg.Translation.BaseURL,
			Model:          cfg.Translation.Model,
			Referer:        cfg.Translation.Referer,
			Title:          cfg.Translation.Title,
			TimeoutSeconds: cfg.Translation.TimeoutSeconds,
		}),
		Voice: voice.NewClient(voice.Config{
			APIKey:  cfg.Voice.APIKey,
			BaseURL: cfg.Voice.BaseURL,
			Model:   cfg.Voice.Model,
		}),
		Timeouts:           cfg.StageTimeouts(),
		SourceLanguage:     cfg.Transcription.SourceLanguage,
		IdenticalThreshold: cfg.Translation.IdenticalThreshold,
		ClonePolicy:        cfg.Voice.CloneFailurePolicy,
		DefaultVoiceID:     cfg.Voice.DefaultVoiceID,
		MaxChunkChars:      cfg.Voice.MaxChunkChars,
		MinOutputBytes:     int64(cfg.Voice.MinOutputBytes),
		Logger:             logger,
	})
}

// ExtractAudio verifies that video has both a video and an audio stream and
// extracts the audio to dest as mono 16 kHz PCM WAV.
func (a *Adapters) ExtractAudio(ctx context.Context, video, dest string) error {
	const stageName = string(queue.StageExtracting)

	probeCtx, cancel := withTimeout(ctx, a.opts.Timeouts.Probe)
	result, err := a.opts.Probe(probeCtx, video)
	cancel()
	if err != nil {
		return classify(ctx, probeCtx, services.ErrMedia, stageName, "probe source", "source video could not be read", a.opts.Timeouts.Probe, err)
	}
	if result.AudioStreamCount() == 0 {
		return services.Wrap(services.ErrMedia, stageName, "probe source", "source video has no audio stream", nil)
	}
	if result.VideoStreamCount() == 0 {
		return services.Wrap(services.ErrMedia, stageName, "probe source", "source has no video stream", nil)
	}

	return a.timed(ctx, stageName, "extract audio", a.opts.Timeouts.Extract, func(callCtx context.Context) error {
		if err := a.opts.Media.ExtractAudio(callCtx, video, dest); err != nil {
			return classify(ctx, callCtx, services.ErrMedia, stageName, "extract audio", "audio extraction failed", a.opts.Timeouts.Extract, err)
		}
		return requireFile(stageName, "extract audio", dest, 1)
	})
}

// Transcribe converts extracted audio to text. workDir receives the
// transcriber's output files.
func (a *Adapters) Transcribe(ctx context.Context, audio, workDir string) (whisperx.Transcript, error) {
	const stageName = string(queue.StageTranscribing)
	var transcript whisperx.Transcript

	if info, err := os.Stat(audio); err != nil || info.Size() == 0 {
		return transcript, services.Wrap(services.ErrMedia, stageName, "transcribe", "extracted audio is missing or empty", err)
	}
	err := a.timed(ctx, stageName, "transcribe", a.opts.Timeouts.Transcribe, func(callCtx context.Context) error {
		result, err := a.opts.Transcriber.Transcribe(callCtx, audio, workDir, a.opts.SourceLanguage)
		if err != nil {
			message := "transcription failed"
			if errors.Is(err, whisperx.ErrNoSpeech) {
				message = "no speech recognized in source audio"
			}
			return classify(ctx, callCtx, services.ErrMedia, stageName, "transcribe", message, a.opts.Timeouts.Transcribe, err)
		}
		if strings.TrimSpace(result.Text) == "" {
			return services.Wrap(services.ErrMedia, stageName, "transcribe", "no speech recognized in source audio", nil)
		}
		transcript = result
		return nil
	})
	return transcript, err
}

// Translate translates text into target. Results that are empty or that
// merely echo the source text are rejected.
func (a *Adapters) Translate(ctx context.Context, text, target string) (string, error) {
	const stageName = string(queue.StageTranslating)
	var translated string

	err := a.timed(ctx, stageName, "translate", a.opts.Timeouts.Translate, func(callCtx context.Context) error {
		result, err := a.opts.Translator.Translate(callCtx, text, target, language.DisplayName(target))
		if err != nil {
			return classify(ctx, callCtx, services.ErrTranslation, stageName, "translate", translateFailure(err), a.opts.Timeouts.Translate, err)
		}
		result = strings.TrimSpace(result)
		if result == "" {
			return services.Wrap(services.ErrTranslation, stageName, "translate", "translation result is empty", nil)
		}
		if similarity := textutil.TextSimilarity(text, result); similarity >= a.opts.IdenticalThreshold {
			return services.Wrap(services.ErrTranslation, stageName, "translate",
				fmt.Sprintf("translation is identical to the source text (similarity %.2f)", similarity), nil)
		}
		translated = result
		return nil
	})
	return translated, err
}

// ExtractVoiceSample encodes a bounded reference clip for cloning.
func (a *Adapters) ExtractVoiceSample(ctx context.Context, audio, dest string) error {
	const stageName = string(queue.StageVoiceCloning)
	return a.timed(ctx, stageName, "extract voice sample", a.opts.Timeouts.Extract, func(callCtx context.Context) error {
		if err := a.opts.Media.ExtractSample(callCtx, audio, dest, VoiceSampleSeconds); err != nil {
			return a.cloneError(ctx, callCtx, "extract voice sample", err)
		}
		return nil
	})
}

// CloneVoice clones the speaker in sample and returns the provider voice id.
// Failures classified as recoverable by the clone policy wrap
// services.ErrCloningSoft.
func (a *Adapters) CloneVoice(ctx context.Context, name, sample string) (string, error) {
	var voiceID string
	err := a.timed(ctx, string(queue.StageVoiceCloning), "clone voice", a.opts.Timeouts.Clone, func(callCtx context.Context) error {
		id, err := a.opts.Voice.CloneVoice(callCtx, name, sample)
		if err != nil {
			return a.cloneError(ctx, callCtx, "clone voice", err)
		}
		voiceID = id
		return nil
	})
	return voiceID, err
}

// DeleteVoice removes a cloned voice from the provider.
func (a *Adapters) DeleteVoice(ctx context.Context, voiceID string) error {
	callCtx, cancel := withTimeout(ctx, a.opts.Timeouts.Clone)
	defer cancel()
	return a.opts.Voice.DeleteVoice(callCtx, voiceID)
}

func (a *Adapters) cloneError(parent, callCtx context.Context, op string, err error) error {
	const stageName = string(queue.StageVoiceCloning)
	if a.isSoftCloneFailure(err) {
		return services.Wrap(services.ErrCloningSoft, stageName, op, "continuing with the default voice", err)
	}
	return classify(parent, callCtx, services.ErrMedia, stageName, op, "voice cloning failed", a.opts.Timeouts.Clone, err)
}

func (a *Adapters) isSoftCloneFailure(err error) bool {
	if a.opts.ClonePolicy == config.ClonePolicyQuotaOnly {
		return voice.IsQuotaError(err)
	}
	return true
}

// SynthesisRequest describes one speech synthesis run.
type SynthesisRequest struct {
	Text    string
	VoiceID string
	// PartsDir receives the per-chunk audio files.
	PartsDir string
	Dest     string
	// OnChunk, when set, is called after each chunk is synthesized.
	OnChunk func(done, total int)
}

// SynthesisResult summarizes a completed synthesis.
type SynthesisResult struct {
	Path   string
	Chunks int
	Bytes  int64
}

// SynthesizeSpeech renders text chunk by chunk and concatenates the parts in
// order into req.Dest.
func (a *Adapters) SynthesizeSpeech(ctx context.Context, req SynthesisRequest) (SynthesisResult, error) {
	const stageName = string(queue.StageSynthesizing)
	var result SynthesisResult

	voiceID := strings.TrimSpace(req.VoiceID)
	if voiceID == "" {
		voiceID = a.opts.DefaultVoiceID
	}
	chunks := textutil.SplitChunks(req.Text, a.opts.MaxChunkChars)
	if len(chunks) == 0 {
		return result, services.Wrap(services.ErrMedia, stageName, "synthesize", "no text to synthesize", nil)
	}
	if err := os.MkdirAll(req.PartsDir, 0o755); err != nil {
		return result, services.Wrap(services.ErrMedia, stageName, "synthesize", "create parts directory", err)
	}

	err := a.timed(ctx, stageName, "synthesize", a.opts.Timeouts.Synthesize, func(callCtx context.Context) error {
		parts := make([]string, 0, len(chunks))
		for i, chunk := range chunks {
			part := filepath.Join(req.PartsDir, fmt.Sprintf("part_%03d.mp3", i))
			if _, err := a.opts.Voice.Synthesize(callCtx, voiceID, chunk, part); err != nil {
				return classify(ctx, callCtx, services.ErrMedia, stageName, "synthesize",
					fmt.Sprintf("speech synthesis failed for chunk %d/%d", i+1, len(chunks)), a.opts.Timeouts.Synthesize, err)
			}
			parts = append(parts, part)
			if req.OnChunk != nil {
				req.OnChunk(i+1, len(chunks))
			}
		}
		if err := a.opts.Media.ConcatAudio(callCtx, parts, req.Dest); err != nil {
			return classify(ctx, callCtx, services.ErrMedia, stageName, "concatenate speech", "joining synthesized audio failed", a.opts.Timeouts.Synthesize, err)
		}
		return requireFile(stageName, "synthesize", req.Dest, a.opts.MinOutputBytes)
	})
	if err != nil {
		return result, err
	}
	result.Path = req.Dest
	result.Chunks = len(chunks)
	if info, statErr := os.Stat(req.Dest); statErr == nil {
		result.Bytes = info.Size()
	}
	return result, nil
}

// MuxAudioVideo replaces the audio of video with audio, writing dest.
func (a *Adapters) MuxAudioVideo(ctx context.Context, video, audio, dest string) error {
	const stageName = string(queue.StageMuxing)
	return a.timed(ctx, stageName, "mux", a.opts.Timeouts.Mux, func(callCtx context.Context) error {
		if err := a.opts.Media.Mux(callCtx, video, audio, dest); err != nil {
			return classify(ctx, callCtx, services.ErrMedia, stageName, "mux", "combining audio and video failed", a.opts.Timeouts.Mux, err)
		}
		return requireFile(stageName, "mux", dest, 1)
	})
}

func (a *Adapters) timed(ctx context.Context, stageName, op string, timeout time.Duration, fn func(context.Context) error) error {
	callCtx, cancel := withTimeout(ctx, timeout)
	defer cancel()
	started := time.Now()
	err := fn(callCtx)
	logger := logging.WithContext(ctx, a.logger)
	if err != nil {
		logger.Debug("capability call failed",
			logging.String(logging.FieldStage, stageName),
			logging.String("operation", op),
			logging.Duration("elapsed", time.Since(started)),
			logging.String("error_kind", services.Kind(err)),
		)
		return err
	}
	logger.Debug("capability call completed",
		logging.String(logging.FieldStage, stageName),
		logging.String("operation", op),
		logging.Duration("elapsed", time.Since(started)),
	)
	return nil
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// classify tags err with marker. A deadline that fired on the call context
// but not on the parent is reported as a timeout of this call; cancellation of
// the parent is reported as an interruption.
func classify(parent, callCtx context.Context, marker error, stageName, op, message string, timeout time.Duration, err error) error {
	if parent.Err() != nil {
		return services.Wrap(services.ErrTransient, stageName, op, "interrupted", parent.Err())
	}
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return services.Wrap(marker, stageName, op, fmt.Sprintf("timed out after %s", timeout), services.ErrTimeout)
	}
	return services.Wrap(marker, stageName, op, message, err)
}

func translateFailure(err error) string {
	switch llm.StatusCode(err) {
	case http.StatusUnauthorized, http.StatusForbidden:
		return "translation provider rejected the api key"
	case http.StatusPaymentRequired, http.StatusTooManyRequests:
		return "translation provider quota exhausted"
	default:
		return "translation request failed"
	}
}

func requireFile(stageName, op, path string, minBytes int64) error {
	info, err := os.Stat(path)
	if err != nil {
		return services.Wrap(services.ErrMedia, stageName, op, "output file missing", err)
	}
	if info.Size() == 0 || info.Size() < minBytes {
		return services.Wrap(services.ErrMedia, stageName, op,
			fmt.Sprintf("output file too small (%d bytes)", info.Size()), nil)
	}
	return nil
}
