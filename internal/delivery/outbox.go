package delivery

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"vidtranslate/internal/fileutil"
	"vidtranslate/internal/logging"
	"vidtranslate/internal/services"
	"vidtranslate/internal/textutil"
)

// Link is a signed download location for a delivered file.
type Link struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Options configures an Outbox.
type Options struct {
	Dir                 string
	Secret              string
	TTL                 time.Duration
	BaseURL             string
	DeleteAfterDownload bool
	Logger              *slog.Logger
}

// Outbox stores delivered videos and mints download links for them.
type Outbox struct {
	dir                 string
	signer              *Signer
	ttl                 time.Duration
	baseURL             string
	deleteAfterDownload bool
	logger              *slog.Logger
	now                 func() time.Time
}

// New constructs an Outbox rooted at opts.Dir.
func New(opts Options) *Outbox {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Outbox{
		dir:                 opts.Dir,
		signer:              NewSigner(opts.Secret),
		ttl:                 ttl,
		baseURL:             strings.TrimRight(opts.BaseURL, "/"),
		deleteAfterDownload: opts.DeleteAfterDownload,
		logger:              logging.NewComponentLogger(opts.Logger, "delivery"),
		now:                 time.Now,
	}
}

// SetClock overrides the time source (for testing).
func (o *Outbox) SetClock(now func() time.Time) {
	if now != nil {
		o.now = now
	}
}

// Dir returns the outbox root.
func (o *Outbox) Dir() string {
	return o.dir
}

// Accept moves src into the outbox under jobID and returns the delivered path.
func (o *Outbox) Accept(jobID, src, fileName string) (string, error) {
	fileName = textutil.SanitizeFileName(fileName)
	if jobID == "" || fileName == "" {
		return "", services.Wrap(services.ErrValidation, "delivery", "accept", "job id and file name required", nil)
	}
	dest := o.pathFor(jobID, fileName)
	if err := fileutil.MoveFile(src, dest); err != nil {
		return "", services.Wrap(services.ErrMedia, "delivery", "accept", "move output into delivery directory", err)
	}
	o.logger.Info("output delivered",
		logging.String(logging.FieldJobID, jobID),
		logging.String("path", dest),
		logging.Int64("size_bytes", fileutil.FileSize(dest)),
		logging.String(logging.FieldEventType, "output_delivered"),
	)
	return dest, nil
}

// Link mints a download link for a delivered file. It returns false when the
// file is no longer present.
func (o *Outbox) Link(jobID, fileName string) (Link, bool) {
	if jobID == "" || fileName == "" {
		return Link{}, false
	}
	if _, err := os.Stat(o.pathFor(jobID, fileName)); err != nil {
		return Link{}, false
	}
	expires := o.now().Add(o.ttl).UTC().Truncate(time.Second)
	token := o.signer.Sign(jobID, fileName, expires)
	return Link{
		URL:       o.baseURL + "/download/" + url.PathEscape(token),
		ExpiresAt: expires,
	}, true
}

// Resolve validates token and returns the claims and on-disk path of the file.
func (o *Outbox) Resolve(token string) (Claims, string, error) {
	claims, err := o.signer.Verify(token, o.now())
	if err != nil {
		return claims, "", err
	}
	path := o.pathFor(claims.JobID, claims.FileName)
	if !within(o.dir, path) {
		return claims, "", fmt.Errorf("%w: path", ErrInvalidToken)
	}
	if _, err := os.Stat(path); err != nil {
		return claims, "", services.Wrap(services.ErrNotFound, "delivery", "resolve", "delivered file no longer available", err)
	}
	return claims, path, nil
}

// Confirm records a completed download and removes the file when the outbox
// deletes after download.
func (o *Outbox) Confirm(jobID string) {
	if !o.deleteAfterDownload {
		return
	}
	o.Discard(jobID)
}

// Discard removes everything delivered for jobID.
func (o *Outbox) Discard(jobID string) {
	if strings.TrimSpace(jobID) == "" {
		return
	}
	dir := filepath.Join(o.dir, jobID)
	if !within(o.dir, dir) {
		return
	}
	if err := os.RemoveAll(dir); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.WarnWithContext(o.logger, "failed to remove delivered output", "delivery_cleanup_failed",
			logging.String(logging.FieldJobID, jobID),
			logging.String("path", dir),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check delivery_dir permissions"),
			logging.String(logging.FieldImpact, "disk space not reclaimed"),
		)
		return
	}
	o.logger.Debug("delivered output removed", logging.String(logging.FieldJobID, jobID))
}

func (o *Outbox) pathFor(jobID, fileName string) string {
	return filepath.Join(o.dir, jobID, filepath.Base(fileName))
}

func within(base, path string) bool {
	absBase, err := filepath.Abs(base)
	if err != nil {
		return false
	}
	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absBase, absPath)
	return err == nil && rel != "." && !strings.HasPrefix(rel, "..")
}
