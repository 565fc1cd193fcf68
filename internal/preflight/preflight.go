package preflight

import (
	"context"
	"fmt"
	"strings"

	"vidtranslate/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every preflight check for the given config. Remote API
// checks are skipped when remote is false.
func RunAll(ctx context.Context, cfg *config.Config, remote bool) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	results = append(results, CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir))
	results = append(results, CheckDirectoryAccess("Delivery directory", cfg.Paths.DeliveryDir))
	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))

	for _, status := range CheckSystemDeps(cfg) {
		result := Result{Name: status.Name, Passed: status.Available || status.Optional, Detail: status.Command}
		if !status.Available {
			result.Detail = status.Detail
		}
		results = append(results, result)
	}

	results = append(results, CheckSigningSecret(cfg))

	if remote {
		results = append(results, CheckTranslation(ctx, cfg))
		results = append(results, CheckVoice(ctx, cfg))
	} else {
		results = append(results, keyPresent("Translation API", cfg.Translation.APIKey))
		results = append(results, keyPresent("Voice API", cfg.Voice.APIKey))
	}
	return results
}

// Failures returns a summary error for failed results, or nil when all passed.
func Failures(results []Result) error {
	var failures []string
	for _, r := range results {
		if !r.Passed {
			failures = append(failures, fmt.Sprintf("%s: %s", r.Name, r.Detail))
		}
	}
	if len(failures) == 0 {
		return nil
	}
	return fmt.Errorf("preflight checks failed: %s", strings.Join(failures, "; "))
}

func keyPresent(name, key string) Result {
	if strings.TrimSpace(key) == "" {
		return Result{Name: name, Detail: "API key missing"}
	}
	return Result{Name: name, Passed: true, Detail: "API key configured"}
}
