package crm

import (
	"sync"
	"time"
)

// RateConfig holds the pacing policy. The remote enforces a sliding request
// window and advertises remaining quota in a response header; delays escalate
// as that quota shrinks. Thresholds are tunable policy, not contract.
type RateConfig struct {
	// BaseDelay is the floor between consecutive requests while quota is ample.
	BaseDelay time.Duration
	// LowDelay applies once remaining quota drops below LowThreshold.
	LowDelay time.Duration
	// CriticalDelay applies below CriticalThreshold.
	CriticalDelay time.Duration

	LowThreshold      int
	CriticalThreshold int

	// Cooldown is imposed after an explicit rejection before any retry.
	Cooldown time.Duration
}

// DefaultRateConfig mirrors the pacing used against the production API.
func DefaultRateConfig() RateConfig {
	return RateConfig{
		BaseDelay:         50 * time.Millisecond,
		LowDelay:          100 * time.Millisecond,
		CriticalDelay:     200 * time.Millisecond,
		LowThreshold:      50,
		CriticalThreshold: 10,
		Cooldown:          2 * time.Second,
	}
}

// Governor tracks the most recently observed quota and converts it into an
// inter-request delay. Shared across all fetches in the process; safe for
// concurrent use.
type Governor struct {
	mu            sync.Mutex
	cfg           RateConfig
	remaining     int
	known         bool
	observedAt    time.Time
	cooldownUntil time.Time
	now           func() time.Time
}

// NewGovernor creates a Governor with the given policy. Zero durations fall
// back to defaults field by field.
func NewGovernor(cfg RateConfig) *Governor {
	def := DefaultRateConfig()
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.LowDelay <= 0 {
		cfg.LowDelay = def.LowDelay
	}
	if cfg.CriticalDelay <= 0 {
		cfg.CriticalDelay = def.CriticalDelay
	}
	// The base delay is a floor: a raised base must raise the tiers with it,
	// or pacing would speed up as quota shrinks.
	if cfg.LowDelay < cfg.BaseDelay {
		cfg.LowDelay = cfg.BaseDelay
	}
	if cfg.CriticalDelay < cfg.LowDelay {
		cfg.CriticalDelay = cfg.LowDelay
	}
	if cfg.LowThreshold <= 0 {
		cfg.LowThreshold = def.LowThreshold
	}
	if cfg.CriticalThreshold <= 0 || cfg.CriticalThreshold > cfg.LowThreshold {
		cfg.CriticalThreshold = def.CriticalThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}
	return &Governor{cfg: cfg, now: time.Now}
}

// Observe records the remaining-quota hint from the latest response.
func (g *Governor) Observe(remaining int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.remaining = remaining
	g.known = true
	g.observedAt = g.now()
}

// Cooldown marks the start of a fixed cooldown after an explicit rejection.
func (g *Governor) Cooldown() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cooldownUntil = g.now().Add(g.cfg.Cooldown)
}

// NextDelay returns how long the caller must wait before the next request.
// The delay is non-decreasing as remaining quota shrinks, and never shorter
// than an active cooldown.
func (g *Governor) NextDelay() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()

	delay := g.cfg.BaseDelay
	if g.known {
		switch {
		case g.remaining < g.cfg.CriticalThreshold:
			delay = g.cfg.CriticalDelay
		case g.remaining < g.cfg.LowThreshold:
			delay = g.cfg.LowDelay
		}
	}
	if until := g.cooldownUntil.Sub(g.now()); until > delay {
		delay = until
	}
	return delay
}

// Remaining returns the last observed quota and whether one has been seen.
func (g *Governor) Remaining() (int, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.remaining, g.known
}
