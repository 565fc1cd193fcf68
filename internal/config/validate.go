package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateStages(); err != nil {
		return err
	}
	if err := c.validateTranslation(); err != nil {
		return err
	}
	if err := c.validateVoice(); err != nil {
		return err
	}
	if err := c.validateDelivery(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.workers":              c.Workflow.Workers,
		"workflow.queue_poll_interval":  c.Workflow.QueuePollInterval,
		"workflow.error_retry_interval": c.Workflow.ErrorRetryInterval,
		"workflow.heartbeat_interval":   c.Workflow.HeartbeatInterval,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	}); err != nil {
		return err
	}
	if c.Workflow.RetrievedRetentionHours < 0 {
		return errors.New("workflow.retrieved_retention_hours must be >= 0 (0 keeps jobs forever)")
	}
	return nil
}

func (c *Config) validateStages() error {
	return ensurePositiveMap(map[string]int{
		"stages.probe_timeout":      c.Stages.ProbeTimeout,
		"stages.extract_timeout":    c.Stages.ExtractTimeout,
		"stages.transcribe_timeout": c.Stages.TranscribeTimeout,
		"stages.translate_timeout":  c.Stages.TranslateTimeout,
		"stages.clone_timeout":      c.Stages.CloneTimeout,
		"stages.synthesize_timeout": c.Stages.SynthesizeTimeout,
		"stages.mux_timeout":        c.Stages.MuxTimeout,
	})
}

func (c *Config) validateTranslation() error {
	if c.Translation.IdenticalThreshold <= 0 || c.Translation.IdenticalThreshold > 1 {
		return errors.New("translation.identical_threshold must be between 0 (exclusive) and 1")
	}
	if _, err := url.ParseRequestURI(c.Translation.BaseURL); err != nil {
		return fmt.Errorf("translation.base_url: %w", err)
	}
	return nil
}

func (c *Config) validateVoice() error {
	switch c.Voice.CloneFailurePolicy {
	case ClonePolicySoft, ClonePolicyQuotaOnly:
	default:
		return fmt.Errorf("voice.clone_failure_policy must be %q or %q, got %q", ClonePolicySoft, ClonePolicyQuotaOnly, c.Voice.CloneFailurePolicy)
	}
	if c.Voice.MaxChunkChars < 100 {
		return errors.New("voice.max_chunk_chars must be at least 100")
	}
	if c.Voice.MinOutputBytes < 0 {
		return errors.New("voice.min_output_bytes must be >= 0")
	}
	if _, err := url.ParseRequestURI(c.Voice.BaseURL); err != nil {
		return fmt.Errorf("voice.base_url: %w", err)
	}
	return nil
}

func (c *Config) validateDelivery() error {
	if c.Delivery.LinkTTLMinutes <= 0 {
		return errors.New("delivery.link_ttl_minutes must be positive")
	}
	if base := strings.TrimSpace(c.Delivery.PublicBaseURL); base != "" {
		if _, err := url.ParseRequestURI(base); err != nil {
			return fmt.Errorf("delivery.public_base_url: %w", err)
		}
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
