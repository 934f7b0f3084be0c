// Package budget enforces the hard cap on requests issued during one scan.
package budget

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrExhausted is returned once a request would exceed the configured cap.
// It is fatal for the module that hits it.
var ErrExhausted = errors.New("budget: request budget exhausted")

// Budget counts request attempts. Every attempt is counted, including those
// refused for exceeding the cap, so Count is monotonic.
type Budget struct {
	max   int64
	count atomic.Int64
}

// New returns a budget allowing max requests. max <= 0 means unlimited.
func New(max int) *Budget {
	if max < 0 {
		max = 0
	}
	return &Budget{max: int64(max)}
}

// Increment records one request attempt. It returns an error wrapping
// ErrExhausted when the new count exceeds the cap; the caller must not
// send the request in that case.
func (b *Budget) Increment() error {
	n := b.count.Add(1)
	if b.max > 0 && n > b.max {
		return fmt.Errorf("%w: limit %d reached", ErrExhausted, b.max)
	}
	return nil
}

// Count returns the number of attempts recorded so far.
func (b *Budget) Count() int64 {
	return b.count.Load()
}

// Max returns the cap, or 0 when unlimited.
func (b *Budget) Max() int64 {
	return b.max
}

// Remaining returns how many more requests fit, or -1 when unlimited.
func (b *Budget) Remaining() int64 {
	if b.max <= 0 {
		return -1
	}
	if left := b.max - b.count.Load(); left > 0 {
		return left
	}
	return 0
}

// Exhausted reports whether the next Increment would fail.
func (b *Budget) Exhausted() bool {
	return b.max > 0 && b.count.Load() >= b.max
}
