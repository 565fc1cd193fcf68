package workflow

import (
	"context"
	"sync"
	"time"

	"vidtranslate/internal/stage"
)

// healthCache memoizes capability health checks so status polling does not
// hit remote APIs on every request.
type healthCache struct {
	source HealthSource
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	checked time.Time
	results []stage.Health
}

func newHealthCache(source HealthSource, ttl time.Duration) *healthCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &healthCache{source: source, ttl: ttl, now: time.Now}
}

func (c *healthCache) get(ctx context.Context) []stage.Health {
	if c == nil || c.source == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.results != nil && c.now().Sub(c.checked) < c.ttl {
		return append([]stage.Health(nil), c.results...)
	}
	c.results = c.source.HealthChecks(ctx)
	c.checked = c.now()
	return append([]stage.Health(nil), c.results...)
}
