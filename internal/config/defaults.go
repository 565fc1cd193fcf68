package config

const (
	defaultConfigPath              = "~/.config/vidtranslate/config.toml"
	defaultWorkDir                 = "~/.local/share/vidtranslate/work"
	defaultDeliveryDir             = "~/.local/share/vidtranslate/delivery"
	defaultStateDir                = "~/.local/share/vidtranslate"
	defaultLogDir                  = "~/.local/share/vidtranslate/logs"
	defaultAPIBind                 = "127.0.0.1:7490"
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
	defaultLogRetentionDays        = 30
	defaultWorkers                 = 2
	defaultHeartbeatInterval       = 15
	defaultWhisperXModel           = "large-v3"
	defaultWhisperXVADMethod       = "silero"
	defaultTranslationBaseURL      = "https://openrouter.ai/api/v1/chat/completions"
	defaultTranslationModel        = "google/gemini-3-flash-preview"
	defaultTranslationReferer      = "https://github.com/vidtranslate/vidtranslate"
	defaultTranslationTitle        = "vidtranslate"
	defaultTranslationTimeout      = 120
	defaultIdenticalThreshold      = 0.97
	defaultVoiceBaseURL            = "https://api.elevenlabs.io/v1"
	defaultVoiceModel              = "eleven_multilingual_v1"
	defaultVoiceID                 = "21m00Tcm4TlvDq8ikWAM"
	defaultCloneFailurePolicy      = ClonePolicySoft
	defaultMaxChunkChars           = 2500
	defaultMinOutputBytes          = 1024
	defaultLinkTTLMinutes          = 60
	defaultNotifyRequestTimeout    = 10
	defaultExtractTimeoutSeconds   = 30
	defaultProbeTimeoutSeconds     = 30
	defaultTranscribeTimeout       = 1800
	defaultTranslateTimeoutSeconds = 300
	defaultCloneTimeoutSeconds     = 300
	defaultSynthesizeTimeout       = 1800
	defaultMuxTimeoutSeconds       = 600
)

// Clone failure policies.
const (
	// ClonePolicySoft degrades every cloning failure to the default voice.
	ClonePolicySoft = "soft"
	// ClonePolicyQuotaOnly degrades only provider quota/auth rejections; other
	// cloning failures fail the job.
	ClonePolicyQuotaOnly = "quota_only"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:     defaultWorkDir,
			DeliveryDir: defaultDeliveryDir,
			StateDir:    defaultStateDir,
			LogDir:      defaultLogDir,
			APIBind:     defaultAPIBind,
		},
		Workflow: Workflow{
			Workers:            defaultWorkers,
			QueuePollInterval:  5,
			ErrorRetryInterval: 10,
			HeartbeatInterval:  defaultHeartbeatInterval,
			DeleteSource:       true,
		},
		Stages: Stages{
			ProbeTimeout:      defaultProbeTimeoutSeconds,
			ExtractTimeout:    defaultExtractTimeoutSeconds,
			TranscribeTimeout: defaultTranscribeTimeout,
			TranslateTimeout:  defaultTranslateTimeoutSeconds,
			CloneTimeout:      defaultCloneTimeoutSeconds,
			SynthesizeTimeout: defaultSynthesizeTimeout,
			MuxTimeout:        defaultMuxTimeoutSeconds,
		},
		Transcription: Transcription{
			WhisperXModel:     defaultWhisperXModel,
			WhisperXVADMethod: defaultWhisperXVADMethod,
		},
		Translation: Translation{
			BaseURL:            defaultTranslationBaseURL,
			Model:              defaultTranslationModel,
			Referer:            defaultTranslationReferer,
			Title:              defaultTranslationTitle,
			TimeoutSeconds:     defaultTranslationTimeout,
			IdenticalThreshold: defaultIdenticalThreshold,
		},
		Voice: Voice{
			BaseURL:            defaultVoiceBaseURL,
			Model:              defaultVoiceModel,
			DefaultVoiceID:     defaultVoiceID,
			CloneFailurePolicy: defaultCloneFailurePolicy,
			DeleteClonedVoices: true,
			MaxChunkChars:      defaultMaxChunkChars,
			MinOutputBytes:     defaultMinOutputBytes,
		},
		Delivery: Delivery{
			LinkTTLMinutes:      defaultLinkTTLMinutes,
			DeleteAfterDownload: true,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			JobSucceeded:   true,
			JobFailed:      true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
