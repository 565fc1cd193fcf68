package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"vidtranslate/internal/language"
	"vidtranslate/internal/logging"
	"vidtranslate/internal/queue"
	"vidtranslate/internal/services"
)

// SupportedExtensions lists the accepted source video containers.
var SupportedExtensions = []string{".mp4", ".avi", ".mov", ".mkv"}

// SubmitRequest describes a translation request.
type SubmitRequest struct {
	SourcePath     string
	TargetLanguage string
	PreserveVoice  bool
}

// Submit validates req, persists it as a queued job and wakes a worker. It
// does not wait for processing.
func (m *Manager) Submit(ctx context.Context, req SubmitRequest) (*queue.Job, error) {
	params, err := validateSubmission(req)
	if err != nil {
		return nil, err
	}
	job, err := m.store.NewJob(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}
	m.logger.Info("job submitted",
		logging.String(logging.FieldJobID, job.ID),
		logging.String("source_file", job.InputPath),
		logging.String("target_language", job.TargetLanguage),
		logging.Bool("preserve_voice", job.PreserveVoice),
		logging.String(logging.FieldEventType, "job_submitted"),
	)
	m.signal()
	return job, nil
}

func validateSubmission(req SubmitRequest) (queue.NewJobParams, error) {
	var params queue.NewJobParams

	source := strings.TrimSpace(req.SourcePath)
	if source == "" {
		return params, services.Wrap(services.ErrValidation, "", "submit", "source path is required", nil)
	}
	abs, err := filepath.Abs(source)
	if err != nil {
		return params, services.Wrap(services.ErrValidation, "", "submit", "invalid source path", err)
	}
	if !supportedExtension(abs) {
		return params, services.Wrap(services.ErrValidation, "", "submit",
			fmt.Sprintf("unsupported file type %q (supported: %s)", filepath.Ext(abs), strings.Join(SupportedExtensions, ", ")), nil)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return params, services.Wrap(services.ErrValidation, "", "submit", fmt.Sprintf("source file %s does not exist", abs), nil)
		}
		return params, services.Wrap(services.ErrValidation, "", "submit", "source file is not readable", err)
	}
	if !info.Mode().IsRegular() || info.Size() == 0 {
		return params, services.Wrap(services.ErrValidation, "", "submit", fmt.Sprintf("source %s is not a non-empty file", abs), nil)
	}

	target, err := language.Normalize(req.TargetLanguage)
	if err != nil {
		return params, services.Wrap(services.ErrValidation, "", "submit", "invalid target language", err)
	}

	return queue.NewJobParams{
		InputPath:      abs,
		SourceName:     filepath.Base(abs),
		TargetLanguage: target,
		PreserveVoice:  req.PreserveVoice,
	}, nil
}

func supportedExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, candidate := range SupportedExtensions {
		if ext == candidate {
			return true
		}
	}
	return false
}

// GetStatus returns a fresh snapshot of the job. Unknown ids yield
// services.ErrNotFound. The first read of a terminal job marks it retrieved.
func (m *Manager) GetStatus(ctx context.Context, id string) (*queue.Job, error) {
	id = strings.TrimSpace(id)
	job, err := m.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, services.Wrap(services.ErrNotFound, "", "get status", fmt.Sprintf("job %s not found", id), nil)
	}
	if job.IsTerminal() && job.RetrievedAt == nil {
		if err := m.store.MarkRetrieved(ctx, id); err != nil {
			m.logger.Debug("mark retrieved failed", logging.String(logging.FieldJobID, id), logging.Error(err))
		}
	}
	return job, nil
}

// List returns jobs filtered by the given status names (all when empty).
func (m *Manager) List(ctx context.Context, statusNames ...string) ([]*queue.Job, error) {
	statuses := make([]queue.Status, 0, len(statusNames))
	for _, name := range statusNames {
		if strings.TrimSpace(name) == "" {
			continue
		}
		status, ok := queue.ParseStatus(name)
		if !ok {
			return nil, services.Wrap(services.ErrValidation, "", "list", fmt.Sprintf("unknown status %q", name), queue.ErrInvalidStatus)
		}
		statuses = append(statuses, status)
	}
	return m.store.List(ctx, statuses...)
}

// Remove deletes a terminal job and its delivered file.
func (m *Manager) Remove(ctx context.Context, id string) error {
	job, err := m.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if job == nil {
		return services.Wrap(services.ErrNotFound, "", "remove", fmt.Sprintf("job %s not found", id), nil)
	}
	if !job.IsTerminal() {
		return services.Wrap(services.ErrValidation, "", "remove", fmt.Sprintf("job %s is still %s", id, job.Status), nil)
	}
	removed, err := m.store.Remove(ctx, id)
	if err != nil {
		return err
	}
	if removed && m.outbox != nil {
		m.outbox.Discard(id)
	}
	return nil
}

func (m *Manager) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}
