package ratelimit

import (
	"math"
	"time"

	"github.com/vulnscan/vulnscan/pkg/duration"
)

// EventType names the direction of an adaptive ceiling change.
type EventType string

const (
	EventIncrease EventType = "increase"
	EventDecrease EventType = "decrease"
)

// EventFunc receives every applied ceiling change.
type EventFunc func(event EventType, ceiling float64)

// Outcome is one observed request result. Network failures are recorded as
// Success=false with StatusCode 0.
type Outcome struct {
	Success    bool
	StatusCode int
}

// Failed reports whether the outcome counts against target health.
func (o Outcome) Failed() bool {
	return !o.Success || o.StatusCode >= 500 || o.StatusCode == 0
}

// Adaptive tuning constants.
const (
	outcomeWindow    = 30
	minSamples       = 8
	decreaseRatio    = 0.40
	recoverRatio     = 0.10
	floorFraction    = 0.30
	minCeiling       = 0.5
	decreaseFactor   = 0.70
	recoverFactor    = 1.10
	recoveryEpsilon  = 0.01
	adjustmentWindow = duration.AdaptiveDebounce
)

// AdaptiveConfig configures a Controller.
type AdaptiveConfig struct {
	// Enabled turns outcome recording on. When false the ceiling stays at
	// the baseline for the life of the limiter.
	Enabled bool

	// OnEvent is called after each applied adjustment (optional).
	OnEvent EventFunc
}

// Controller retunes a Limiter from a rolling window of request outcomes.
// Its state is guarded by the limiter's mutex so admission and adjustment
// share one lock.
type Controller struct {
	limiter  *Limiter
	cfg      AdaptiveConfig
	baseline float64

	outcomes   []Outcome
	next       int
	lastAdjust time.Time
}

// NewController binds a controller to l. The limiter's ceiling at this
// moment becomes the baseline.
func NewController(l *Limiter, cfg AdaptiveConfig) *Controller {
	return &Controller{
		limiter:  l,
		cfg:      cfg,
		baseline: l.Ceiling(),
		outcomes: make([]Outcome, 0, outcomeWindow),
	}
}

// Enabled reports whether outcomes are being recorded.
func (c *Controller) Enabled() bool {
	return c.cfg.Enabled
}

// Baseline returns the configured ceiling the controller recovers towards.
func (c *Controller) Baseline() float64 {
	return c.baseline
}

// Record adds an outcome and, when the window is full enough and the
// debounce interval has passed, adjusts the ceiling.
func (c *Controller) Record(success bool, statusCode int) {
	if !c.cfg.Enabled {
		return
	}

	event, ceiling, changed := c.record(Outcome{Success: success, StatusCode: statusCode})
	if changed && c.cfg.OnEvent != nil {
		c.cfg.OnEvent(event, ceiling)
	}
}

func (c *Controller) record(o Outcome) (EventType, float64, bool) {
	l := c.limiter
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(c.outcomes) < outcomeWindow {
		c.outcomes = append(c.outcomes, o)
	} else {
		c.outcomes[c.next] = o
		c.next = (c.next + 1) % outcomeWindow
	}

	if len(c.outcomes) < minSamples {
		return "", 0, false
	}
	now := l.now()
	if now.Sub(c.lastAdjust) < adjustmentWindow {
		return "", 0, false
	}

	failures := 0
	for _, s := range c.outcomes {
		if s.Failed() {
			failures++
		}
	}
	ratio := float64(failures) / float64(len(c.outcomes))
	current := l.ceiling
	floor := c.baseline * floorFraction

	switch {
	case ratio >= decreaseRatio && current > math.Max(floor, minCeiling):
		next := math.Max(floor, current*decreaseFactor)
		l.ceiling = next
		c.lastAdjust = now
		return EventDecrease, next, true

	case ratio <= recoverRatio && current < c.baseline:
		next := math.Min(c.baseline, current*recoverFactor)
		if math.Abs(next-current) <= recoveryEpsilon {
			return "", 0, false
		}
		l.ceiling = next
		c.lastAdjust = now
		return EventIncrease, next, true
	}
	return "", 0, false
}
