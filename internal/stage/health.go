package stage

import (
	"context"
	"time"
)

// Health summarizes the readiness of a pipeline capability.
type Health struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// Healthy constructs a ready Health record.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy constructs an unhealthy Health record with context detail.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}

const healthCheckTimeout = 10 * time.Second

// HealthChecks reports the readiness of each remote capability. Local tools
// are covered by preflight binary checks.
func (a *Adapters) HealthChecks(ctx context.Context) []Health {
	checks := []struct {
		name       string
		capability any
	}{
		{"translation", a.opts.Translator},
		{"voice", a.opts.Voice},
		{"transcription", a.opts.Transcriber},
	}
	out := make([]Health, 0, len(checks))
	for _, check := range checks {
		if check.capability == nil {
			out = append(out, Unhealthy(check.name, "not configured"))
			continue
		}
		checker, ok := check.capability.(healthChecker)
		if !ok {
			out = append(out, Healthy(check.name))
			continue
		}
		callCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		err := checker.HealthCheck(callCtx)
		cancel()
		if err != nil {
			out = append(out, Unhealthy(check.name, err.Error()))
			continue
		}
		out = append(out, Healthy(check.name))
	}
	return out
}
