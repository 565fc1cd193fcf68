package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"vidtranslate/internal/artifacts"
	"vidtranslate/internal/logging"
	"vidtranslate/internal/notifications"
	"vidtranslate/internal/queue"
	"vidtranslate/internal/services"
	"vidtranslate/internal/services/whisperx"
	"vidtranslate/internal/stage"
	"vidtranslate/internal/staging"
	"vidtranslate/internal/textutil"
)

// JobStore is the subset of the queue store the runner writes to.
type JobStore interface {
	UpdateProgress(ctx context.Context, id string, stage queue.Stage, percent int, message string) error
	AppendStageResult(ctx context.Context, id string, result queue.StageResult) error
	Complete(ctx context.Context, id string, result queue.FinalResult) error
	Fail(ctx context.Context, id string, stage queue.Stage, message string) error
}

// Stages are the stage adapters the runner sequences.
type Stages interface {
	ExtractAudio(ctx context.Context, video, dest string) error
	Transcribe(ctx context.Context, audio, workDir string) (whisperx.Transcript, error)
	Translate(ctx context.Context, text, target string) (string, error)
	ExtractVoiceSample(ctx context.Context, audio, dest string) error
	CloneVoice(ctx context.Context, name, sample string) (string, error)
	DeleteVoice(ctx context.Context, voiceID string) error
	SynthesizeSpeech(ctx context.Context, req stage.SynthesisRequest) (stage.SynthesisResult, error)
	MuxAudioVideo(ctx context.Context, video, audio, dest string) error
}

// Outbox receives the finished video.
type Outbox interface {
	Accept(jobID, src, fileName string) (string, error)
	Discard(jobID string)
}

// Options configures a Runner.
type Options struct {
	Store    JobStore
	Stages   Stages
	Outbox   Outbox
	Notifier notifications.Service

	WorkDir            string
	DeleteSource       bool
	DeleteClonedVoices bool

	Logger *slog.Logger
}

// Runner executes claimed jobs.
type Runner struct {
	opts   Options
	logger *slog.Logger
}

// NewRunner constructs a Runner.
func NewRunner(opts Options) *Runner {
	if opts.Notifier == nil {
		opts.Notifier = notifications.NewService(nil)
	}
	return &Runner{
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, "pipeline"),
	}
}

// Run drives job from its first stage to a terminal state. The returned error
// is the stage failure that ended the job, or nil on success. The job is
// always terminal when Run returns, unless the store itself rejected the
// terminal write.
func (r *Runner) Run(ctx context.Context, job *queue.Job) error {
	if job == nil {
		return errors.New("pipeline: job is required")
	}
	ctx = services.WithJobID(ctx, job.ID)
	logger := logging.WithContext(ctx, r.logger)
	tracker := artifacts.NewTracker(logger)

	run := &jobRun{
		runner:  r,
		job:     job,
		tracker: tracker,
		logger:  logger,
		workDir: staging.JobDir(r.opts.WorkDir, job.ID),
	}
	defer func() {
		released := tracker.ReleaseAll()
		logger.Debug("job artifacts released",
			logging.Int("released", released),
			logging.String(logging.FieldEventType, "artifacts_released"),
		)
	}()

	if r.opts.DeleteSource {
		tracker.Register(job.InputPath, "source", artifacts.KindSource)
	}

	started := time.Now()
	logger.Info("job started",
		logging.String("source_file", job.InputPath),
		logging.String("target_language", job.TargetLanguage),
		logging.Bool("preserve_voice", job.PreserveVoice),
		logging.String(logging.FieldEventType, "job_start"),
	)

	result, err := run.execute(ctx)
	terminalCtx := context.WithoutCancel(ctx)
	if err != nil {
		run.fail(terminalCtx, ctx, err)
		return err
	}

	if completeErr := r.opts.Store.Complete(terminalCtx, job.ID, result); completeErr != nil {
		logging.ErrorWithContext(logger, "failed to persist job completion", "job_complete_failed",
			logging.Error(completeErr),
			logging.String(logging.FieldErrorHint, "check the queue database"),
		)
		r.opts.Outbox.Discard(job.ID)
		return completeErr
	}
	logger.Info("job succeeded",
		logging.String("output", result.VideoPath),
		logging.Bool("voice_cloned", result.VoiceCloned),
		logging.Duration("job_duration", time.Since(started)),
		logging.String(logging.FieldEventType, "job_succeeded"),
	)
	r.notify(terminalCtx, logger, notifications.EventJobSucceeded, notifications.Payload{
		"jobID":    job.ID,
		"fileName": result.FileName,
		"language": job.TargetLanguage,
	})
	return nil
}

type jobRun struct {
	runner  *Runner
	job     *queue.Job
	tracker *artifacts.Tracker
	logger  *slog.Logger
	workDir string
	current queue.Stage
}

func (j *jobRun) execute(ctx context.Context) (queue.FinalResult, error) {
	var (
		result     queue.FinalResult
		transcript whisperx.Transcript
		translated string
		voiceID    string
		speech     stage.SynthesisResult
	)
	job := j.job
	stages := j.runner.opts.Stages

	if err := os.MkdirAll(j.workDir, 0o755); err != nil {
		j.current = queue.StageExtracting
		return result, services.Wrap(services.ErrMedia, string(queue.StageExtracting), "prepare", "create work directory", err)
	}
	j.tracker.Register(j.workDir, string(queue.StageExtracting), artifacts.KindDir)

	audioPath := filepath.Join(j.workDir, "audio.wav")
	if err := j.step(ctx, queue.StageExtracting, func(ctx context.Context) (string, error) {
		j.tracker.Register(audioPath, string(queue.StageExtracting), artifacts.KindAudio)
		return audioPath, stages.ExtractAudio(ctx, job.InputPath, audioPath)
	}); err != nil {
		return result, err
	}

	if err := j.step(ctx, queue.StageTranscribing, func(ctx context.Context) (string, error) {
		var err error
		transcript, err = stages.Transcribe(ctx, audioPath, j.workDir)
		return transcript.JSONPath, err
	}); err != nil {
		return result, err
	}

	if err := j.step(ctx, queue.StageTranslating, func(ctx context.Context) (string, error) {
		var err error
		translated, err = stages.Translate(ctx, transcript.Text, job.TargetLanguage)
		return "", err
	}); err != nil {
		return result, err
	}

	if job.PreserveVoice {
		err := j.step(ctx, queue.StageVoiceCloning, func(ctx context.Context) (string, error) {
			id, err := j.cloneVoice(ctx, audioPath)
			voiceID = id
			return id, err
		})
		if err != nil && !errors.Is(err, services.ErrCloningSoft) {
			return result, err
		}
		if err != nil {
			logging.WarnWithContext(j.logger, "voice cloning failed; using default voice", "voice_clone_degraded",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the voice provider quota and API key"),
				logging.String(logging.FieldImpact, "translated speech uses the default voice"),
			)
			voiceID = ""
		}
	}

	speechPath := filepath.Join(j.workDir, "speech.mp3")
	if err := j.step(ctx, queue.StageSynthesizing, func(ctx context.Context) (string, error) {
		partsDir := filepath.Join(j.workDir, "parts")
		j.tracker.Register(partsDir, string(queue.StageSynthesizing), artifacts.KindDir)
		j.tracker.Register(speechPath, string(queue.StageSynthesizing), artifacts.KindAudio)
		var err error
		speech, err = stages.SynthesizeSpeech(ctx, stage.SynthesisRequest{
			Text:     translated,
			VoiceID:  voiceID,
			PartsDir: partsDir,
			Dest:     speechPath,
			OnChunk: func(done, total int) {
				j.progress(ctx, queue.StageSynthesizing, chunkPercent(done, total),
					fmt.Sprintf("Generating translated speech (%d/%d)", done, total))
			},
		})
		return speech.Path, err
	}); err != nil {
		return result, err
	}

	fileName := textutil.FileStem(job.SourceName) + "_translated.mp4"
	var delivered string
	if err := j.step(ctx, queue.StageMuxing, func(ctx context.Context) (string, error) {
		muxPath := filepath.Join(j.workDir, fileName)
		handle := j.tracker.Register(muxPath, string(queue.StageMuxing), artifacts.KindVideo)
		if err := stages.MuxAudioVideo(ctx, job.InputPath, speech.Path, muxPath); err != nil {
			return "", err
		}
		j.tracker.Keep(handle)
		path, err := j.runner.opts.Outbox.Accept(job.ID, muxPath, fileName)
		if err != nil {
			return "", err
		}
		delivered = path
		return path, nil
	}); err != nil {
		return result, err
	}

	result = queue.FinalResult{
		VideoPath:      delivered,
		FileName:       filepath.Base(delivered),
		Transcription:  transcript.Text,
		Translation:    translated,
		SourceLanguage: transcript.Language,
		SegmentCount:   len(transcript.Segments),
		VoiceCloned:    voiceID != "",
	}
	return result, nil
}

func (j *jobRun) cloneVoice(ctx context.Context, audioPath string) (string, error) {
	stages := j.runner.opts.Stages
	samplePath := filepath.Join(j.workDir, "voice_sample.mp3")
	j.tracker.Register(samplePath, string(queue.StageVoiceCloning), artifacts.KindVoice)
	if err := stages.ExtractVoiceSample(ctx, audioPath, samplePath); err != nil {
		return "", err
	}
	id, err := stages.CloneVoice(ctx, voiceName(j.job.ID), samplePath)
	if err != nil {
		return "", err
	}
	if j.runner.opts.DeleteClonedVoices {
		cleanupCtx := context.WithoutCancel(ctx)
		j.tracker.RegisterCleanup(id, string(queue.StageVoiceCloning), artifacts.KindVoice, func() error {
			return stages.DeleteVoice(cleanupCtx, id)
		})
	}
	return id, nil
}

// step runs one stage: lower progress bound, the stage body, one stage
// result, upper progress bound. Panics in fn become stage errors.
func (j *jobRun) step(ctx context.Context, st queue.Stage, fn func(context.Context) (string, error)) error {
	j.current = st
	stageCtx := services.WithStage(ctx, string(st))
	logger := logging.WithContext(stageCtx, j.runner.logger)
	store := j.runner.opts.Store
	b := stageBands[st]

	if err := store.UpdateProgress(stageCtx, j.job.ID, st, b.start, stageMessages[st]); err != nil {
		return fmt.Errorf("persist %s start: %w", st, err)
	}
	logger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))

	started := time.Now()
	ref, err := j.invoke(stageCtx, st, fn)
	record := queue.StageResult{
		Stage:      st,
		Status:     queue.StageSuccess,
		DurationMs: time.Since(started).Milliseconds(),
		OutputRef:  ref,
	}
	if err != nil {
		record.Status = queue.StageError
		record.Error = err.Error()
		record.Soft = errors.Is(err, services.ErrCloningSoft)
		record.OutputRef = ""
	}
	if appendErr := store.AppendStageResult(context.WithoutCancel(stageCtx), j.job.ID, record); appendErr != nil {
		logging.ErrorWithContext(logger, "failed to record stage result", "stage_result_failed",
			logging.Error(appendErr),
			logging.String(logging.FieldErrorHint, "check the queue database"),
		)
		if err == nil {
			return fmt.Errorf("persist %s result: %w", st, appendErr)
		}
	}
	if err != nil {
		return err
	}

	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("stage_duration", time.Since(started)),
	)
	if b.end < 100 {
		if err := store.UpdateProgress(stageCtx, j.job.ID, st, b.end, stageMessages[st]+" complete"); err != nil {
			return fmt.Errorf("persist %s progress: %w", st, err)
		}
	}
	return nil
}

func (j *jobRun) invoke(ctx context.Context, st queue.Stage, fn func(context.Context) (string, error)) (ref string, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			logging.ErrorWithContext(j.logger, "stage panicked", "stage_panic",
				logging.String(logging.FieldStage, string(st)),
				logging.Any("panic", recovered),
				logging.String("stack", string(debug.Stack())),
				logging.String(logging.FieldErrorHint, "report this as a bug"),
			)
			err = services.Wrap(services.ErrTransient, string(st), "run", fmt.Sprintf("panic: %v", recovered), nil)
		}
	}()
	return fn(ctx)
}

func (j *jobRun) progress(ctx context.Context, st queue.Stage, percent int, message string) {
	if err := j.runner.opts.Store.UpdateProgress(ctx, j.job.ID, st, percent, message); err != nil {
		j.logger.Debug("progress update failed", logging.Error(err))
	}
}

func (j *jobRun) fail(terminalCtx, ctx context.Context, stageErr error) {
	message := strings.TrimSpace(stageErr.Error())
	if ctx.Err() != nil {
		message = queue.DaemonStopReason
	}
	failedStage := j.current
	logging.ErrorWithContext(j.logger, "job failed", "job_failed",
		logging.String(logging.FieldStage, string(failedStage)),
		logging.String("error_kind", services.Kind(stageErr)),
		logging.Error(stageErr),
		logging.String(logging.FieldErrorHint, hintFor(stageErr)),
	)
	if err := j.runner.opts.Store.Fail(terminalCtx, j.job.ID, failedStage, message); err != nil {
		logging.ErrorWithContext(j.logger, "failed to persist job failure", "job_fail_persist_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the queue database"),
		)
	}
	j.runner.opts.Outbox.Discard(j.job.ID)
	j.runner.notify(terminalCtx, j.logger, notifications.EventJobFailed, notifications.Payload{
		"jobID": j.job.ID,
		"stage": string(failedStage),
		"error": message,
	})
}

func (r *Runner) notify(ctx context.Context, logger *slog.Logger, event notifications.Event, payload notifications.Payload) {
	if err := r.opts.Notifier.Publish(ctx, event, payload); err != nil {
		logger.Debug("notification failed", logging.String("event", string(event)), logging.Error(err))
	}
}

func hintFor(err error) string {
	switch {
	case errors.Is(err, services.ErrTimeout):
		return "raise the stage timeout in the [stages] config section"
	case errors.Is(err, services.ErrTranslation):
		return "check the translation model and target language"
	case errors.Is(err, services.ErrMedia):
		return "check that the source video is readable and has an audio track"
	default:
		return "see the daemon log for details"
	}
}

func voiceName(jobID string) string {
	if len(jobID) > 8 {
		jobID = jobID[:8]
	}
	return "vidtranslate-" + jobID
}
