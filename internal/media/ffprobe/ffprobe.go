package ffprobe

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Runner executes a command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs the command with os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput() //nolint:gosec
}

// Result is the subset of `ffprobe -show_format -show_streams` output the
// extract and mux stages inspect.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

type Stream struct {
	Index      int    `json:"index"`
	CodecName  string `json:"codec_name"`
	CodecType  string `json:"codec_type"`
	Duration   string `json:"duration"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	SampleRate string `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

type Format struct {
	Filename   string `json:"filename"`
	NBStreams  int    `json:"nb_streams"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	FormatName string `json:"format_name"`
}

// Inspect probes path with the ffprobe binary.
func Inspect(ctx context.Context, binary, path string) (Result, error) {
	return InspectWith(ctx, ExecRunner, binary, path)
}

// InspectWith is Inspect with an explicit command runner. An empty binary
// means "ffprobe" on PATH.
func InspectWith(ctx context.Context, run Runner, binary, path string) (Result, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}
	binary = cmp.Or(strings.TrimSpace(binary), "ffprobe")
	if run == nil {
		run = ExecRunner
	}
	args := []string{"-v", "error", "-hide_banner", "-of", "json", "-show_format", "-show_streams", "--", path}
	output, err := run(ctx, binary, args...)
	if err != nil {
		return Result{}, fmt.Errorf("ffprobe inspect: %w: %s", err, strings.TrimSpace(string(output)))
	}
	var result Result
	if err := json.Unmarshal(output, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse %s: %w", path, err)
	}
	return result, nil
}

func (r Result) VideoStreamCount() int { return r.streamsOf("video") }
func (r Result) AudioStreamCount() int { return r.streamsOf("audio") }

func (r Result) streamsOf(kind string) int {
	n := 0
	for _, s := range r.Streams {
		if strings.EqualFold(s.CodecType, kind) {
			n++
		}
	}
	return n
}

// DurationSeconds returns the container duration, or 0 when ffprobe did not
// report a usable one.
func (r Result) DurationSeconds() float64 {
	return nonNegative(r.Format.Duration)
}

// SizeBytes returns the container size, or 0 when unknown.
func (r Result) SizeBytes() int64 {
	return int64(nonNegative(r.Format.Size))
}

func nonNegative(value string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || v < 0 || v != v {
		return 0
	}
	return v
}
