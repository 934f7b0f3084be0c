// Package ratelimit provides the scanner's admission control.
//
// Limiter is a sliding-window limiter: at most Ceiling() admissions fall in
// any trailing one-second window. Controller watches request outcomes and
// retunes the limiter's ceiling when the target shows distress.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/vulnscan/vulnscan/pkg/duration"
)

// Limiter admits requests so that no trailing window holds more than the
// current ceiling. A ceiling <= 0 disables limiting.
type Limiter struct {
	mu      sync.Mutex
	ceiling float64
	window  time.Duration
	stamps  []time.Time

	// now is swapped in tests
	now func() time.Time
}

// New creates a limiter admitting up to ceiling requests per second.
func New(ceiling float64) *Limiter {
	return &Limiter{
		ceiling: ceiling,
		window:  duration.RateWindow,
		now:     time.Now,
	}
}

// Acquire blocks until one more admission fits in the window, then records
// it. It returns ctx.Err() if the context ends first; nothing is recorded
// in that case.
func (l *Limiter) Acquire(ctx context.Context) error {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		wait, ok := l.tryAdmit()
		if ok {
			return nil
		}
		if wait <= 0 {
			continue
		}

		if timer == nil {
			timer = time.NewTimer(wait)
		} else {
			timer.Reset(wait)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// tryAdmit evicts expired stamps and admits if there is room. Otherwise it
// returns how long until the oldest stamp leaves the window.
func (l *Limiter) tryAdmit() (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ceiling <= 0 {
		return 0, true
	}

	now := l.now()
	l.evict(now)

	if float64(len(l.stamps)) < l.ceiling {
		l.stamps = append(l.stamps, now)
		return 0, true
	}
	return l.stamps[0].Add(l.window).Sub(now), false
}

// evict drops stamps at or before now-window. Caller holds l.mu.
func (l *Limiter) evict(now time.Time) {
	cutoff := now.Add(-l.window)
	keep := l.stamps[:0]
	for _, t := range l.stamps {
		if t.After(cutoff) {
			keep = append(keep, t)
		}
	}
	l.stamps = keep
}

// Ceiling returns the current admissions-per-second ceiling.
func (l *Limiter) Ceiling() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ceiling
}

// SetCeiling replaces the ceiling. Admissions already in the window stay.
func (l *Limiter) SetCeiling(ceiling float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ceiling = ceiling
}

// Stats is a point-in-time view of the limiter.
type Stats struct {
	Ceiling  float64
	InWindow int
}

// Stats returns the current ceiling and the admissions still in the window.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evict(l.now())
	return Stats{
		Ceiling:  l.ceiling,
		InWindow: len(l.stamps),
	}
}
