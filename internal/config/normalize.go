package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTranscription()
	c.normalizeTranslation()
	c.normalizeVoice()
	c.normalizeDelivery()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	targets := []struct {
		key      string
		value    *string
		fallback string
	}{
		{"paths.work_dir", &c.Paths.WorkDir, defaultWorkDir},
		{"paths.delivery_dir", &c.Paths.DeliveryDir, defaultDeliveryDir},
		{"paths.state_dir", &c.Paths.StateDir, defaultStateDir},
		{"paths.log_dir", &c.Paths.LogDir, defaultLogDir},
	}
	for _, target := range targets {
		if strings.TrimSpace(*target.value) == "" {
			*target.value = target.fallback
		}
		expanded, err := expandPath(strings.TrimSpace(*target.value))
		if err != nil {
			return fmt.Errorf("%s: %w", target.key, err)
		}
		*target.value = expanded
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		c.Paths.APIToken = lookupEnv("VIDTRANSLATE_API_TOKEN")
	}
	return nil
}

func (c *Config) normalizeTranscription() {
	c.Transcription.WhisperXModel = strings.TrimSpace(c.Transcription.WhisperXModel)
	if c.Transcription.WhisperXModel == "" {
		c.Transcription.WhisperXModel = defaultWhisperXModel
	}
	c.Transcription.WhisperXVADMethod = strings.ToLower(strings.TrimSpace(c.Transcription.WhisperXVADMethod))
	if c.Transcription.WhisperXVADMethod == "" {
		c.Transcription.WhisperXVADMethod = defaultWhisperXVADMethod
	}
	c.Transcription.WhisperXHuggingFace = strings.TrimSpace(c.Transcription.WhisperXHuggingFace)
	if c.Transcription.WhisperXHuggingFace == "" {
		c.Transcription.WhisperXHuggingFace = lookupEnv("HUGGING_FACE_HUB_TOKEN", "HF_TOKEN")
	}
	c.Transcription.SourceLanguage = strings.ToLower(strings.TrimSpace(c.Transcription.SourceLanguage))
}

func (c *Config) normalizeTranslation() {
	c.Translation.BaseURL = strings.TrimSpace(c.Translation.BaseURL)
	if c.Translation.BaseURL == "" {
		c.Translation.BaseURL = defaultTranslationBaseURL
	}
	c.Translation.Model = strings.TrimSpace(c.Translation.Model)
	if c.Translation.Model == "" {
		c.Translation.Model = defaultTranslationModel
	}
	c.Translation.Referer = strings.TrimSpace(c.Translation.Referer)
	if c.Translation.Referer == "" {
		c.Translation.Referer = defaultTranslationReferer
	}
	c.Translation.Title = strings.TrimSpace(c.Translation.Title)
	if c.Translation.Title == "" {
		c.Translation.Title = defaultTranslationTitle
	}
	if c.Translation.TimeoutSeconds <= 0 {
		c.Translation.TimeoutSeconds = defaultTranslationTimeout
	}
	c.Translation.APIKey = strings.TrimSpace(c.Translation.APIKey)
	if c.Translation.APIKey == "" {
		c.Translation.APIKey = lookupEnv("TRANSLATION_API_KEY", "OPENROUTER_API_KEY")
	}
}

func (c *Config) normalizeVoice() {
	c.Voice.BaseURL = strings.TrimRight(strings.TrimSpace(c.Voice.BaseURL), "/")
	if c.Voice.BaseURL == "" {
		c.Voice.BaseURL = defaultVoiceBaseURL
	}
	c.Voice.Model = strings.TrimSpace(c.Voice.Model)
	if c.Voice.Model == "" {
		c.Voice.Model = defaultVoiceModel
	}
	c.Voice.DefaultVoiceID = strings.TrimSpace(c.Voice.DefaultVoiceID)
	if c.Voice.DefaultVoiceID == "" {
		c.Voice.DefaultVoiceID = defaultVoiceID
	}
	c.Voice.CloneFailurePolicy = strings.ToLower(strings.TrimSpace(c.Voice.CloneFailurePolicy))
	if c.Voice.CloneFailurePolicy == "" {
		c.Voice.CloneFailurePolicy = defaultCloneFailurePolicy
	}
	c.Voice.APIKey = strings.TrimSpace(c.Voice.APIKey)
	if c.Voice.APIKey == "" {
		c.Voice.APIKey = lookupEnv("ELEVENLABS_API_KEY")
	}
}

func (c *Config) normalizeDelivery() {
	c.Delivery.SigningSecret = strings.TrimSpace(c.Delivery.SigningSecret)
	if c.Delivery.SigningSecret == "" {
		c.Delivery.SigningSecret = lookupEnv("VIDTRANSLATE_SIGNING_SECRET")
	}
	c.Delivery.PublicBaseURL = strings.TrimSpace(c.Delivery.PublicBaseURL)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

// lookupEnv returns the first non-empty value among the named variables.
func lookupEnv(keys ...string) string {
	for _, key := range keys {
		if value, ok := os.LookupEnv(key); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}
