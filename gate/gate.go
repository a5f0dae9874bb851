// Package gate implements the timed key-hold gesture that must be observed
// before the loader activates under its impersonated name.
package gate

import (
	"time"

	"go.uber.org/zap"
)

const (
	DefaultWindow   = 10 * time.Second
	DefaultHold     = 2 * time.Second
	DefaultInterval = 100 * time.Millisecond

	// VKRShift is the right shift virtual key code.
	VKRShift uint8 = 0xA1
)

// Key reports whether the watched key is currently down.
type Key interface {
	Down() bool
}

type KeyFunc func() bool

func (f KeyFunc) Down() bool { return f() }

// Clock is the time source the gate polls against.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type systemClock struct{}

func (systemClock) Now() time.Time        { return time.Now() }
func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

type Options struct {
	Window   time.Duration
	Hold     time.Duration
	Interval time.Duration
	Clock    Clock
	Logger   *zap.Logger
}

type Gate struct {
	key      Key
	clock    Clock
	window   time.Duration
	hold     time.Duration
	interval time.Duration
	log      *zap.Logger
}

// New returns a gate watching key. Zero options take the defaults.
func New(key Key, opts Options) *Gate {
	g := &Gate{
		key:      key,
		clock:    opts.Clock,
		window:   opts.Window,
		hold:     opts.Hold,
		interval: opts.Interval,
		log:      opts.Logger,
	}
	if g.clock == nil {
		g.clock = SystemClock
	}
	if g.window <= 0 {
		g.window = DefaultWindow
	}
	if g.hold <= 0 {
		g.hold = DefaultHold
	}
	if g.interval <= 0 {
		g.interval = DefaultInterval
	}
	if g.log == nil {
		g.log = zap.NewNop()
	}
	return g
}

// tracker is the Idle / Holding(since) state.
type tracker struct {
	holding bool
	since   time.Time
}

// observe advances the state by one poll and reports whether the hold
// threshold has been met. Releasing the key discards any partial hold.
func (t *tracker) observe(down bool, now time.Time, hold time.Duration) bool {
	switch {
	case !down:
		t.holding = false
	case !t.holding:
		t.holding, t.since = true, now
	case now.Sub(t.since) >= hold:
		return true
	}
	return false
}

// Wait polls the key until it has been held for the hold threshold or the
// observation window runs out. It blocks for at most the window.
func (g *Gate) Wait() bool {
	start := g.clock.Now()
	var t tracker
	for g.clock.Now().Sub(start) < g.window {
		down := g.key.Down()
		now := g.clock.Now()
		if t.observe(down, now, g.hold) {
			g.log.Info("activation gesture observed", zap.Duration("after", now.Sub(start)))
			return true
		}
		g.clock.Sleep(g.interval)
	}
	g.log.Info("activation window elapsed", zap.Duration("window", g.window))
	return false
}
