package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Runner executes a command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs the command with os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput() //nolint:gosec
}

// ErrEmptyOutput reports that ffmpeg exited cleanly but produced no data.
var ErrEmptyOutput = errors.New("ffmpeg produced empty output")

// Tool runs ffmpeg commands.
type Tool struct {
	binary string
	run    Runner
}

// New returns a Tool using binary (default "ffmpeg").
func New(binary string) *Tool {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	return &Tool{binary: binary, run: ExecRunner}
}

// WithRunner replaces the command runner (for testing).
func (t *Tool) WithRunner(run Runner) *Tool {
	if run != nil {
		t.run = run
	}
	return t
}

// Binary returns the configured executable.
func (t *Tool) Binary() string {
	return t.binary
}

// ExtractAudio writes the first audio stream of source to dest as mono 16 kHz
// 16-bit PCM WAV.
func (t *Tool) ExtractAudio(ctx context.Context, source, dest string) error {
	return t.produce(ctx, "extract audio", dest, func(tmp string) []string {
		return []string{
			"-y",
			"-hide_banner",
			"-loglevel", "error",
			"-i", source,
			"-map", "0:a:0",
			"-vn",
			"-sn",
			"-dn",
			"-ac", "1",
			"-ar", "16000",
			"-c:a", "pcm_s16le",
			"-f", "wav",
			tmp,
		}
	})
}

// ExtractSample encodes at most seconds of audio from source into an MP3 at
// dest, for use as a voice cloning reference.
func (t *Tool) ExtractSample(ctx context.Context, source, dest string, seconds int) error {
	if seconds <= 0 {
		return fmt.Errorf("extract sample: invalid duration %d", seconds)
	}
	return t.produce(ctx, "extract sample", dest, func(tmp string) []string {
		return []string{
			"-y",
			"-hide_banner",
			"-loglevel", "error",
			"-t", strconv.Itoa(seconds),
			"-i", source,
			"-vn",
			"-ac", "1",
			"-c:a", "libmp3lame",
			"-b:a", "128k",
			"-f", "mp3",
			tmp,
		}
	})
}

// ConcatAudio joins parts in order into dest using the concat demuxer.
func (t *Tool) ConcatAudio(ctx context.Context, parts []string, dest string) error {
	if len(parts) == 0 {
		return errors.New("concat audio: no parts")
	}
	if len(parts) == 1 {
		return t.produce(ctx, "concat audio", dest, func(tmp string) []string {
			return []string{"-y", "-hide_banner", "-loglevel", "error", "-i", parts[0], "-c", "copy", "-f", formatFor(dest), tmp}
		})
	}

	listPath := dest + ".txt"
	if err := os.WriteFile(listPath, []byte(ConcatList(parts)), 0o644); err != nil {
		return fmt.Errorf("concat audio: write list: %w", err)
	}
	defer func() { _ = os.Remove(listPath) }()

	return t.produce(ctx, "concat audio", dest, func(tmp string) []string {
		return []string{
			"-y",
			"-hide_banner",
			"-loglevel", "error",
			"-f", "concat",
			"-safe", "0",
			"-i", listPath,
			"-c", "copy",
			"-f", formatFor(dest),
			tmp,
		}
	})
}

// Mux copies the first video stream of video and pairs it with the first audio
// stream of audio, encoding the audio to AAC and ending at the shorter input.
func (t *Tool) Mux(ctx context.Context, video, audio, dest string) error {
	return t.produce(ctx, "mux", dest, func(tmp string) []string {
		return []string{
			"-y",
			"-hide_banner",
			"-loglevel", "error",
			"-i", video,
			"-i", audio,
			"-map", "0:v:0",
			"-map", "1:a:0",
			"-c:v", "copy",
			"-c:a", "aac",
			"-shortest",
			"-movflags", "+faststart",
			"-f", "mp4",
			tmp,
		}
	})
}

// ConcatList renders a concat demuxer file list.
func ConcatList(parts []string) string {
	var b strings.Builder
	for _, part := range parts {
		b.WriteString("file '")
		b.WriteString(strings.ReplaceAll(part, "'", `'\''`))
		b.WriteString("'\n")
	}
	return b.String()
}

func (t *Tool) produce(ctx context.Context, op, dest string, args func(tmp string) []string) error {
	if strings.TrimSpace(dest) == "" {
		return fmt.Errorf("%s: empty destination", op)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("%s: ensure output dir: %w", op, err)
	}
	tmp := tempPath(dest)
	defer func() { _ = os.Remove(tmp) }()

	output, err := t.run(ctx, t.binary, args(tmp)...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s: %w", op, ctxErr)
		}
		return fmt.Errorf("%s: %w: %s", op, err, lastLines(string(output), 5))
	}
	info, err := os.Stat(tmp)
	if err != nil {
		return fmt.Errorf("%s: %w", op, ErrEmptyOutput)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%s: %w", op, ErrEmptyOutput)
	}
	if err := os.Rename(tmp, dest); err != nil {
		return fmt.Errorf("%s: finalize output: %w", op, err)
	}
	return nil
}

func tempPath(dest string) string {
	ext := filepath.Ext(dest)
	return strings.TrimSuffix(dest, ext) + ".partial" + ext
}

func formatFor(dest string) string {
	switch strings.ToLower(filepath.Ext(dest)) {
	case ".wav":
		return "wav"
	case ".mp4", ".m4a":
		return "mp4"
	default:
		return "mp3"
	}
}

func lastLines(output string, n int) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}
