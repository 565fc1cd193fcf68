package whisperx

// Config selects the WhisperX model and runtime.
type Config struct {
	Model       string // defaults to DefaultModel
	Binary      string // uvx launcher path, defaults to "uvx"
	CUDAEnabled bool
	// VADMethod is "silero" (default) or "pyannote". Pyannote needs HFToken.
	VADMethod string
	HFToken   string
}

const (
	DefaultModel = "large-v3"
	UVXCommand   = "uvx"

	CUDAIndexURL = "https://download.pytorch.org/whl/cu128"
	PypiIndexURL = "https://pypi.org/simple"

	CUDADevice        = "cuda"
	CPUDevice         = "cpu"
	CPUComputeType    = "float32"
	VADMethodSilero   = "silero"
	VADMethodPyannote = "pyannote"
)

// decodeFlags are fixed transcription settings: sentence-level segments in
// JSON, a conservative VAD window and beam search for dialogue accuracy.
var decodeFlags = []string{
	"--output_format", "json",
	"--segment_resolution", "sentence",
	"--batch_size", "4",
	"--chunk_size", "15",
	"--vad_onset", "0.08",
	"--vad_offset", "0.07",
	"--beam_size", "10",
	"--best_of", "10",
	"--temperature", "0.0",
	"--patience", "1.0",
}

func (c Config) model() string {
	if c.Model != "" {
		return c.Model
	}
	return DefaultModel
}

func (c Config) binary() string {
	if c.Binary != "" {
		return c.Binary
	}
	return UVXCommand
}

func (c Config) vadMethod() string {
	if c.VADMethod != "" {
		return c.VADMethod
	}
	return VADMethodSilero
}
