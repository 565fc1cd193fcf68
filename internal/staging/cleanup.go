package staging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"vidtranslate/internal/logging"
)

const jobDirPrefix = "job-"

// JobDir returns the per-job working directory under workDir.
func JobDir(workDir, jobID string) string {
	return filepath.Join(workDir, jobDirPrefix+jobID)
}

// JobIDFromDir extracts the job id from a working directory name.
func JobIDFromDir(name string) (string, bool) {
	if !strings.HasPrefix(name, jobDirPrefix) {
		return "", false
	}
	id := strings.TrimPrefix(name, jobDirPrefix)
	return id, id != ""
}

// CleanResult contains the outcome of a work directory sweep.
type CleanResult struct {
	Removed []string
	Errors  []CleanupError
}

// CleanupError pairs a directory path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// CleanStale removes job directories older than maxAge.
func CleanStale(ctx context.Context, workDir string, maxAge time.Duration, logger *slog.Logger) CleanResult {
	return sweep(ctx, workDir, logger, "stale", func(entry os.DirEntry, info os.FileInfo) bool {
		return info.ModTime().Before(time.Now().Add(-maxAge))
	})
}

// CleanOrphaned removes job directories whose job is not in active. Directories
// that do not follow the job naming scheme are left alone.
func CleanOrphaned(ctx context.Context, workDir string, active map[string]struct{}, logger *slog.Logger) CleanResult {
	return sweep(ctx, workDir, logger, "orphaned", func(entry os.DirEntry, _ os.FileInfo) bool {
		id, ok := JobIDFromDir(entry.Name())
		if !ok {
			return false
		}
		_, keep := active[id]
		return !keep
	})
}

func sweep(ctx context.Context, workDir string, logger *slog.Logger, reason string, shouldRemove func(os.DirEntry, os.FileInfo) bool) CleanResult {
	result := CleanResult{}
	if logger == nil {
		logger = logging.NewNop()
	}

	workDir = strings.TrimSpace(workDir)
	if workDir == "" {
		return result
	}

	entries, err := os.ReadDir(workDir)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, CleanupError{Path: workDir, Error: err})
		}
		return result
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		if !entry.IsDir() {
			continue
		}
		dirPath := filepath.Join(workDir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: dirPath, Error: err})
			continue
		}
		if !shouldRemove(entry, info) {
			continue
		}
		if err := os.RemoveAll(dirPath); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: dirPath, Error: err})
			logging.WarnWithContext(logger, "failed to remove "+reason+" work directory", "workdir_cleanup_failed",
				logging.String("path", dirPath),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check work_dir permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		result.Removed = append(result.Removed, dirPath)
		logger.Info("removed "+reason+" work directory",
			logging.String("path", dirPath),
			logging.Duration("age", time.Since(info.ModTime()).Round(time.Second)),
			logging.String(logging.FieldEventType, "workdir_cleanup"),
		)
	}

	return result
}

// ListDirectories returns all job directories under workDir with their metadata.
func ListDirectories(workDir string) ([]DirInfo, error) {
	workDir = strings.TrimSpace(workDir)
	if workDir == "" {
		return nil, nil
	}

	entries, err := os.ReadDir(workDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var dirs []DirInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id, ok := JobIDFromDir(entry.Name())
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		dirPath := filepath.Join(workDir, entry.Name())
		size, _ := dirSize(dirPath)
		dirs = append(dirs, DirInfo{
			JobID:   id,
			Path:    dirPath,
			ModTime: info.ModTime(),
			Size:    size,
		})
	}

	return dirs, nil
}

// DirInfo describes one job working directory.
type DirInfo struct {
	JobID   string
	Path    string
	ModTime time.Time
	Size    int64
}

func dirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // best effort
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}
