package voice

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError is a non-2xx response from the speech provider.
type APIError struct {
	StatusCode int
	// Status is the provider's machine-readable reason, e.g. "quota_exceeded".
	Status string
	Detail string
}

func (e *APIError) Error() string {
	parts := []string{fmt.Sprintf("voice api: http %d", e.StatusCode)}
	if e.Status != "" {
		parts = append(parts, e.Status)
	}
	if e.Detail != "" {
		parts = append(parts, e.Detail)
	}
	return strings.Join(parts, ": ")
}

var quotaStatuses = map[string]struct{}{
	"quota_exceeded":               {},
	"too_many_concurrent_requests": {},
	"voice_limit_reached":          {},
	"system_busy":                  {},
	"insufficient_character_quota": {},
}

// IsQuotaError reports whether err is a provider rejection caused by quota,
// plan limits, or rate limiting.
func IsQuotaError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.StatusCode {
	case http.StatusUnauthorized, http.StatusPaymentRequired, http.StatusTooManyRequests:
		return true
	}
	if _, ok := quotaStatuses[strings.ToLower(apiErr.Status)]; ok {
		return true
	}
	return strings.Contains(strings.ToLower(apiErr.Detail), "quota")
}

// parseAPIError decodes the provider error body. ElevenLabs returns either
// {"detail": "text"} or {"detail": {"status": "...", "message": "..."}}.
func parseAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: statusCode}
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Detail) > 0 {
		var structured struct {
			Status  string `json:"status"`
			Message string `json:"message"`
		}
		var text string
		switch {
		case json.Unmarshal(envelope.Detail, &structured) == nil && (structured.Status != "" || structured.Message != ""):
			apiErr.Status = strings.TrimSpace(structured.Status)
			apiErr.Detail = strings.TrimSpace(structured.Message)
		case json.Unmarshal(envelope.Detail, &text) == nil:
			apiErr.Detail = strings.TrimSpace(text)
		default:
			apiErr.Detail = strings.TrimSpace(string(envelope.Detail))
		}
		return apiErr
	}
	apiErr.Detail = snippet(string(body))
	return apiErr
}

func snippet(content string) string {
	clean := strings.Join(strings.Fields(content), " ")
	const limit = 200
	runes := []rune(clean)
	if len(runes) > limit {
		return string(runes[:limit]) + "..."
	}
	return clean
}
