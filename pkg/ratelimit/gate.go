// Package ratelimit paces catalog API calls and honors provider backoff
// hints. The M2M service throttles aggressive clients hard, so every call
// passes through a token-bucket limiter, and a 429 response blocks the gate
// for the server-supplied (or a default) cooldown before any further call
// goes out.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for request pacing.
var (
	m2mRateLimitCooldownsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "m2m_rate_limit_cooldowns_total",
		Help: "Total number of provider-imposed cooldowns (429 responses)",
	})

	m2mRateLimitCooldownSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "m2m_rate_limit_cooldown_seconds",
		Help: "Remaining seconds of the current provider-imposed cooldown",
	})
)

// DefaultCooldown is applied after a 429 when the provider supplies no
// Retry-After hint.
const DefaultCooldown = 30 * time.Second

// Gate paces outgoing catalog calls. The zero value is not usable; create
// one with New.
type Gate struct {
	limiter *rate.Limiter
	logger  zerolog.Logger

	mu           sync.Mutex
	blockedUntil time.Time
}

// New creates a gate allowing rps requests per second with the given burst.
func New(rps float64, burst int, logger zerolog.Logger) *Gate {
	if rps <= 0 {
		rps = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &Gate{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		logger:  logger,
	}
}

// Wait blocks until the next call is allowed to go out, honoring both the
// steady-state pace and any active cooldown. Returns the context error if
// cancelled while waiting.
func (g *Gate) Wait(ctx context.Context) error {
	g.mu.Lock()
	until := g.blockedUntil
	g.mu.Unlock()

	if wait := time.Until(until); wait > 0 {
		g.logger.Warn().
			Dur("cooldown", wait).
			Msg("Waiting out provider cooldown")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		m2mRateLimitCooldownSeconds.Set(0)
	}

	return g.limiter.Wait(ctx)
}

// Cooldown blocks the gate for d. Called when the provider answers 429;
// d should come from the Retry-After header when present.
func (g *Gate) Cooldown(d time.Duration) {
	if d <= 0 {
		d = DefaultCooldown
	}

	g.mu.Lock()
	until := time.Now().Add(d)
	if until.After(g.blockedUntil) {
		g.blockedUntil = until
	}
	g.mu.Unlock()

	m2mRateLimitCooldownsTotal.Inc()
	m2mRateLimitCooldownSeconds.Set(d.Seconds())

	g.logger.Warn().
		Dur("cooldown", d).
		Msg("Provider rate limit hit, gating requests")
}

// BlockedFor returns the remaining cooldown, or zero when the gate is open.
func (g *Gate) BlockedFor() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()

	if wait := time.Until(g.blockedUntil); wait > 0 {
		return wait
	}
	return 0
}
