package whisperx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	langpkg "vidtranslate/internal/language"
)

// ErrNoSpeech reports a transcription that produced no text.
var ErrNoSpeech = errors.New("no speech recognized")

// CommandRunner executes an external command.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// Service runs WhisperX through uvx and parses its JSON output.
type Service struct {
	cfg Config
	run CommandRunner
}

func NewService(cfg Config) *Service {
	cfg.Binary = strings.TrimSpace(cfg.Binary)
	return &Service{cfg: cfg, run: runCommand}
}

// WithCommandRunner replaces process execution, for tests.
func (s *Service) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	if runner != nil {
		s.run = runner
	}
}

func (s *Service) Model() string { return s.cfg.model() }
func (s *Service) Binary() string { return s.cfg.binary() }
func (s *Service) CUDAEnabled() bool { return s.cfg.CUDAEnabled }

// Transcript is the recognized speech of one audio file.
type Transcript struct {
	Text     string
	Language string // ISO 639-1
	Segments []Segment
	JSONPath string
}

// Segment is one sentence-level span of WhisperX output.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Words []Word  `json:"words"`
}

// Word carries word-level alignment when WhisperX provides it.
type Word struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Transcribe recognizes speech in the WAV file source. An empty language
// lets WhisperX detect it; the detected language is reported in ISO 639-1.
// Output files land in outputDir, or next to source when it is empty.
func (s *Service) Transcribe(ctx context.Context, source, outputDir, language string) (Transcript, error) {
	if strings.TrimSpace(source) == "" {
		return Transcript{}, errors.New("transcribe: source path required")
	}
	info, err := os.Stat(source)
	if err != nil {
		return Transcript{}, fmt.Errorf("transcribe: %w", err)
	}
	if info.Size() == 0 {
		return Transcript{}, fmt.Errorf("transcribe: audio file %s is empty", source)
	}
	if outputDir == "" {
		outputDir = filepath.Dir(source)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return Transcript{}, fmt.Errorf("transcribe: ensure output dir: %w", err)
	}

	if err := s.run(ctx, s.cfg.binary(), s.args(source, outputDir, language)...); err != nil {
		return Transcript{}, fmt.Errorf("whisperx: %w", err)
	}

	stem := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	result := Transcript{JSONPath: filepath.Join(outputDir, stem+".json")}
	var out struct {
		Segments []Segment `json:"segments"`
		Language string    `json:"language"`
	}
	data, err := os.ReadFile(result.JSONPath)
	if err != nil {
		return result, fmt.Errorf("whisperx: read output: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return result, fmt.Errorf("whisperx: parse output: %w", err)
	}

	result.Segments = out.Segments
	result.Language = langpkg.ToISO2(out.Language)
	if result.Language == "" {
		result.Language = langpkg.ToISO2(language)
	}
	texts := make([]string, 0, len(out.Segments))
	for _, seg := range out.Segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			texts = append(texts, text)
		}
	}
	result.Text = strings.Join(texts, " ")
	if result.Text == "" {
		return result, fmt.Errorf("whisperx: %w", ErrNoSpeech)
	}
	return result, nil
}

func (s *Service) args(source, outputDir, language string) []string {
	args := []string{"--index-url", PypiIndexURL}
	if s.cfg.CUDAEnabled {
		args = []string{"--index-url", CUDAIndexURL, "--extra-index-url", PypiIndexURL}
	}
	args = append(args, "whisperx", source, "--model", s.cfg.model(), "--output_dir", outputDir)
	args = append(args, decodeFlags...)

	vad := s.cfg.vadMethod()
	args = append(args, "--vad_method", vad)
	if vad == VADMethodPyannote && s.cfg.HFToken != "" {
		args = append(args, "--hf_token", s.cfg.HFToken)
	}
	if lang := langpkg.ToISO2(language); lang != "" {
		args = append(args, "--language", lang)
	}
	if s.cfg.CUDAEnabled {
		return append(args, "--device", CUDADevice)
	}
	return append(args, "--device", CPUDevice, "--compute_type", CPUComputeType)
}

func runCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	cmd.Env = os.Environ()
	// torch >= 2.6 defaults torch.load to weights_only, which pyannote checkpoints fail.
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		cmd.Env = append(cmd.Env, "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}
	output, err := cmd.CombinedOutput()
	if err == nil {
		return nil
	}
	msg := strings.TrimSpace(string(output))
	if len(msg) > 800 {
		msg = "..." + msg[len(msg)-800:]
	}
	return fmt.Errorf("%s: %w: %s", name, err, msg)
}
