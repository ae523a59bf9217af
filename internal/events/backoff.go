// Package events implements the dashboard's real-time layer: a reconnecting
// WebSocket event channel with bounded exponential backoff and typed event
// subscription. It is the client-side counterpart of the gateway hub.
package events

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// ReconnectConfig bounds the reconnection policy. Zero values fall back to
// the defaults below.
type ReconnectConfig struct {
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	Multiplier   float64       `mapstructure:"multiplier"`
}

const (
	defaultInitialDelay = 1 * time.Second
	defaultMaxDelay     = 30 * time.Second
	defaultMaxAttempts  = 10
	defaultMultiplier   = 1.5
)

func (c ReconnectConfig) withDefaults() ReconnectConfig {
	if c.InitialDelay <= 0 {
		c.InitialDelay = defaultInitialDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = defaultMaxDelay
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.Multiplier <= 1 {
		c.Multiplier = defaultMultiplier
	}
	return c
}

// ReconnectPolicy decides whether and when to retry a failed connection,
// independent of transport mechanics. Delays grow exponentially per failed
// attempt, capped at MaxDelay, with uniform jitter so that a fleet of
// dashboards does not retry in lockstep.
type ReconnectPolicy struct {
	mu      sync.Mutex
	cfg     ReconnectConfig
	attempt int
	timer   *time.Timer

	// Test seams; production uses math/rand and time.AfterFunc.
	randFloat func() float64
	afterFunc func(d time.Duration, f func()) *time.Timer
}

func NewReconnectPolicy(cfg ReconnectConfig) *ReconnectPolicy {
	return &ReconnectPolicy{
		cfg:       cfg.withDefaults(),
		randFloat: rand.Float64,
		afterFunc: time.AfterFunc,
	}
}

// ScheduleReconnect schedules cb after the next backoff delay. It returns
// false without scheduling once the attempt budget is spent; the caller is
// responsible for surfacing that as a terminal state.
func (p *ReconnectPolicy) ScheduleReconnect(cb func()) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.attempt >= p.cfg.MaxAttempts {
		return false
	}
	p.attempt++

	delay := p.delayLocked(p.attempt)
	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = p.afterFunc(delay, cb)
	return true
}

// delayLocked computes the jittered delay for the given attempt:
// exponential = min(initial * multiplier^attempt, max), then plus or minus
// up to ten percent of uniform jitter, floored to the millisecond.
func (p *ReconnectPolicy) delayLocked(attempt int) time.Duration {
	exponential := float64(p.cfg.InitialDelay.Milliseconds()) * math.Pow(p.cfg.Multiplier, float64(attempt))
	if capMs := float64(p.cfg.MaxDelay.Milliseconds()); exponential > capMs {
		exponential = capMs
	}
	jitter := exponential * 0.2 * (p.randFloat() - 0.5)
	return time.Duration(math.Floor(exponential+jitter)) * time.Millisecond
}

// Reset zeroes the attempt counter and cancels any pending retry. Called
// exactly once per successful (re)connection.
func (p *ReconnectPolicy) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempt = 0
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

// CancelReconnect clears a pending retry without touching the attempt
// counter. Used on explicit disconnect, where only a later successful
// connection may reset the budget.
func (p *ReconnectPolicy) CancelReconnect() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

// Attempt returns the current attempt counter.
func (p *ReconnectPolicy) Attempt() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempt
}

// Exhausted reports whether the attempt budget is spent.
func (p *ReconnectPolicy) Exhausted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempt >= p.cfg.MaxAttempts
}
