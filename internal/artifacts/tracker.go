package artifacts

import (
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"

	"vidtranslate/internal/logging"
)

// Kind classifies a tracked artifact.
type Kind string

const (
	KindAudio  Kind = "audio"
	KindVideo  Kind = "video"
	KindVoice  Kind = "voice"
	KindDir    Kind = "dir"
	KindSource Kind = "source"
)

// Artifact describes one tracked resource. Path is a filesystem path, or the
// provider reference for resources released by a cleanup function.
type Artifact struct {
	Path      string
	Stage     string
	Kind      Kind
	SizeBytes int64
}

// Handle identifies a registered artifact. The zero Handle is never issued.
type Handle uint64

type entry struct {
	artifact Artifact
	cleanup  func() error
}

// Tracker owns the artifact set of a single job.
type Tracker struct {
	mu      sync.Mutex
	next    Handle
	order   []Handle
	entries map[Handle]entry
	logger  *slog.Logger
}

// NewTracker returns an empty tracker.
func NewTracker(logger *slog.Logger) *Tracker {
	return &Tracker{
		entries: make(map[Handle]entry),
		logger:  logging.NewComponentLogger(logger, "artifacts"),
	}
}

// Register tracks a filesystem path created by stage. A blank path returns the
// zero Handle and tracks nothing.
func (t *Tracker) Register(path, stage string, kind Kind) Handle {
	path = strings.TrimSpace(path)
	if path == "" {
		return 0
	}
	artifact := Artifact{Path: path, Stage: stage, Kind: kind}
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		artifact.SizeBytes = info.Size()
	}
	return t.add(entry{artifact: artifact})
}

// RegisterCleanup tracks a non-file resource released by calling fn.
func (t *Tracker) RegisterCleanup(ref, stage string, kind Kind, fn func() error) Handle {
	if fn == nil {
		return 0
	}
	return t.add(entry{artifact: Artifact{Path: ref, Stage: stage, Kind: kind}, cleanup: fn})
}

func (t *Tracker) add(e entry) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	h := t.next
	t.entries[h] = e
	t.order = append(t.order, h)
	return h
}

// Release deletes the artifact behind h. Releasing an unknown or already
// released handle is a no-op.
func (t *Tracker) Release(h Handle) {
	e, ok := t.take(h)
	if !ok {
		return
	}
	t.destroy(e)
}

// Keep removes h from the tracked set without deleting it and returns the
// artifact so the caller can take ownership.
func (t *Tracker) Keep(h Handle) (Artifact, bool) {
	e, ok := t.take(h)
	if !ok {
		return Artifact{}, false
	}
	if e.cleanup == nil {
		if info, err := os.Stat(e.artifact.Path); err == nil && !info.IsDir() {
			e.artifact.SizeBytes = info.Size()
		}
	}
	return e.artifact, true
}

// ReleaseAll releases every tracked artifact in reverse registration order and
// returns how many were released.
func (t *Tracker) ReleaseAll() int {
	t.mu.Lock()
	pending := make([]entry, 0, len(t.entries))
	for i := len(t.order) - 1; i >= 0; i-- {
		if e, ok := t.entries[t.order[i]]; ok {
			pending = append(pending, e)
		}
	}
	t.entries = make(map[Handle]entry)
	t.order = nil
	t.mu.Unlock()

	for _, e := range pending {
		t.destroy(e)
	}
	return len(pending)
}

// Artifacts returns a snapshot of the tracked set in registration order.
func (t *Tracker) Artifacts() []Artifact {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Artifact, 0, len(t.entries))
	for _, h := range t.order {
		if e, ok := t.entries[h]; ok {
			out = append(out, e.artifact)
		}
	}
	return out
}

// Len reports how many artifacts are still tracked.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func (t *Tracker) take(h Handle) (entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[h]
	if !ok {
		return entry{}, false
	}
	delete(t.entries, h)
	for i, candidate := range t.order {
		if candidate == h {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return e, true
}

func (t *Tracker) destroy(e entry) {
	var err error
	switch {
	case e.cleanup != nil:
		err = e.cleanup()
	case e.artifact.Kind == KindDir:
		err = os.RemoveAll(e.artifact.Path)
	default:
		err = os.Remove(e.artifact.Path)
		if errors.Is(err, os.ErrNotExist) {
			err = nil
		}
	}
	if err != nil {
		logging.WarnWithContext(t.logger, "artifact cleanup failed", "artifact_cleanup_failed",
			logging.String("path", e.artifact.Path),
			logging.String(logging.FieldStage, e.artifact.Stage),
			logging.String("kind", string(e.artifact.Kind)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the file manually or check work_dir permissions"),
			logging.String(logging.FieldImpact, "disk space or provider quota not reclaimed"),
		)
		return
	}
	t.logger.Debug("artifact released",
		logging.String("path", e.artifact.Path),
		logging.String(logging.FieldStage, e.artifact.Stage),
		logging.String("kind", string(e.artifact.Kind)),
	)
}
