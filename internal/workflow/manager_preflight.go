package workflow

import (
	"context"

	"vidtranslate/internal/logging"
	"vidtranslate/internal/preflight"
)

// RunPreflightChecks validates tools, directories and API access and logs
// each result. It returns the summary error of all failed checks, or nil.
func (m *Manager) RunPreflightChecks(ctx context.Context, remote bool) error {
	results := preflight.RunAll(ctx, m.cfg, remote)
	for _, r := range results {
		if r.Passed {
			m.logger.Info("preflight check passed",
				logging.String("check", r.Name),
				logging.String("detail", r.Detail),
				logging.String(logging.FieldEventType, "preflight_passed"),
			)
			continue
		}
		logging.ErrorWithContext(m.logger, "preflight check failed", "preflight_failed",
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
			logging.String(logging.FieldErrorHint, "fix the reported issue and restart the daemon"),
		)
	}
	return preflight.Failures(results)
}
