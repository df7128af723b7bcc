package crm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGovernorDelayTiers(t *testing.T) {
	g := NewGovernor(DefaultRateConfig())

	// No observation yet: base delay.
	assert.Equal(t, 50*time.Millisecond, g.NextDelay())

	g.Observe(200)
	assert.Equal(t, 50*time.Millisecond, g.NextDelay())

	g.Observe(30)
	assert.Equal(t, 100*time.Millisecond, g.NextDelay())

	g.Observe(5)
	assert.Equal(t, 200*time.Millisecond, g.NextDelay())
}

func TestGovernorDelayMonotonic(t *testing.T) {
	g := NewGovernor(DefaultRateConfig())

	prev := time.Duration(0)
	for remaining := 100; remaining >= 0; remaining-- {
		g.Observe(remaining)
		d := g.NextDelay()
		assert.GreaterOrEqual(t, d, prev, "delay must not shrink as quota drops (remaining=%d)", remaining)
		prev = d
	}
}

func TestGovernorRaisedBaseDelayLiftsTiers(t *testing.T) {
	cfg := DefaultRateConfig()
	cfg.BaseDelay = 500 * time.Millisecond
	g := NewGovernor(cfg)

	g.Observe(200)
	ample := g.NextDelay()
	assert.Equal(t, 500*time.Millisecond, ample, "base delay is the pacing floor")

	g.Observe(30)
	low := g.NextDelay()
	assert.GreaterOrEqual(t, low, ample)

	g.Observe(5)
	critical := g.NextDelay()
	assert.GreaterOrEqual(t, critical, low)
}

func TestGovernorCooldown(t *testing.T) {
	now := time.Now()
	current := now
	g := NewGovernor(RateConfig{Cooldown: 2 * time.Second})
	g.now = func() time.Time { return current }

	g.Observe(500)
	g.Cooldown()
	assert.Equal(t, 2*time.Second, g.NextDelay(), "cooldown dominates the tier delay")

	current = now.Add(1900 * time.Millisecond)
	assert.Equal(t, 100*time.Millisecond, g.NextDelay())

	current = now.Add(3 * time.Second)
	assert.Equal(t, g.cfg.BaseDelay, g.NextDelay(), "expired cooldown falls back to the tier delay")
}

func TestGovernorRemaining(t *testing.T) {
	g := NewGovernor(DefaultRateConfig())

	_, known := g.Remaining()
	assert.False(t, known)

	g.Observe(42)
	remaining, known := g.Remaining()
	require.True(t, known)
	assert.Equal(t, 42, remaining)
}

func TestGovernorConfigDefaults(t *testing.T) {
	g := NewGovernor(RateConfig{})
	def := DefaultRateConfig()
	assert.Equal(t, def.BaseDelay, g.cfg.BaseDelay)
	assert.Equal(t, def.LowThreshold, g.cfg.LowThreshold)
	assert.Equal(t, def.CriticalThreshold, g.cfg.CriticalThreshold)
	assert.Equal(t, def.Cooldown, g.cfg.Cooldown)
}
