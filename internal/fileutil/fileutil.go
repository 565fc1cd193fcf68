package fileutil

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// CopyFileVerified copies src to dst and re-reads dst to confirm its SHA-256
// digest and size match the source. A mismatched dst is removed.
func CopyFileVerified(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	srcDigest := sha256.New()
	written, copyErr := io.Copy(out, io.TeeReader(in, srcDigest))
	if closeErr := out.Close(); copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("copy %s: %w", filepath.Base(src), copyErr)
	}

	dstDigest, dstSize, err := digest(dst)
	if err != nil {
		return err
	}
	if dstSize != written || string(dstDigest) != string(srcDigest.Sum(nil)) {
		_ = os.Remove(dst)
		return fmt.Errorf("copy verification failed: wrote %d bytes, destination has %d", written, dstSize)
	}
	return nil
}

func digest(path string) ([]byte, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open for verification: %w", err)
	}
	defer f.Close()
	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return nil, 0, fmt.Errorf("hash %s: %w", filepath.Base(path), err)
	}
	return h.Sum(nil), n, nil
}

// MoveFile renames src to dst, creating dst's directory. Across filesystems
// it falls back to a verified copy followed by removing src.
func MoveFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create destination dir: %w", err)
	}
	err := os.Rename(src, dst)
	if err == nil || !errors.Is(err, unix.EXDEV) {
		return err
	}
	if err := CopyFileVerified(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

// FileSize returns the size of path, or 0 when it cannot be read.
func FileSize(path string) int64 {
	if info, err := os.Stat(path); err == nil {
		return info.Size()
	}
	return 0
}
