// Package wait provides the bounded waits used between retries and while an
// address lease is pending.
package wait

import (
	"context"
	crand "crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Delay bounds, in units, for every retry and address wait.
const (
	MinDelayBeforeRetry = 1
	MaxDelayBeforeRetry = 24
)

// ErrTimeout is returned when a bounded wait expires or its handle is released.
var ErrTimeout = errors.New("bounded wait expired")

// Bounds is the closed range of delay units a wait may last.
type Bounds struct {
	Min  int
	Max  int
	Unit time.Duration
}

// DefaultBounds returns the standard [1, 24] second range.
func DefaultBounds() Bounds {
	return Bounds{
		Min:  MinDelayBeforeRetry,
		Max:  MaxDelayBeforeRetry,
		Unit: time.Second,
	}
}

func (b Bounds) Validate() error {
	if b.Min < 1 {
		return fmt.Errorf("minimum delay must be at least 1 unit, got %d", b.Min)
	}
	if b.Max < b.Min {
		return fmt.Errorf("maximum delay %d is below minimum %d", b.Max, b.Min)
	}
	if b.Unit <= 0 {
		return fmt.Errorf("delay unit must be positive, got %s", b.Unit)
	}
	return nil
}

// Clamp forces units into [Min, Max].
func (b Bounds) Clamp(units int) int {
	return max(b.Min, min(units, b.Max))
}

// Duration converts units to wall time after clamping.
func (b Bounds) Duration(units int) time.Duration {
	return time.Duration(b.Clamp(units)) * b.Unit
}

// Contains reports whether d is a valid delay for these bounds.
func (b Bounds) Contains(d time.Duration) bool {
	return d >= time.Duration(b.Min)*b.Unit && d <= time.Duration(b.Max)*b.Unit
}

// Jitter picks a uniformly random number of units in [Min, Max]. Should the
// random source fail, the maximum is used.
func (b Bounds) Jitter() int {
	span := int64(b.Max - b.Min + 1)
	if span <= 1 {
		return b.Min
	}
	n, err := crand.Int(crand.Reader, big.NewInt(span))
	if err != nil {
		return b.Max
	}
	return b.Min + int(n.Int64())
}

// Handle represents one bounded wait. Releasing it ends the wait early.
type Handle struct {
	deadline time.Time
	done     chan struct{}
	once     sync.Once
}

func (h *Handle) Deadline() time.Time {
	return h.deadline
}

// Release ends the wait. Safe to call more than once and on a nil handle.
func (h *Handle) Release() {
	if h == nil {
		return
	}
	h.once.Do(func() { close(h.done) })
}

func (h *Handle) Released() bool {
	if h == nil {
		return true
	}
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Waiter performs cancellable waits.
type Waiter interface {
	// Sleep blocks for d or until ctx is done.
	Sleep(ctx context.Context, d time.Duration) error
	// NewHandle starts a bounded wait that expires after d.
	NewHandle(d time.Duration) *Handle
	// Until polls ready every interval until it reports true, it fails, or h
	// expires. Expiry and release return ErrTimeout.
	Until(ctx context.Context, h *Handle, interval time.Duration, ready func(context.Context) (bool, error)) error
}

// ClockWaiter implements Waiter on top of a clockwork.Clock.
type ClockWaiter struct {
	clock clockwork.Clock
}

// NewWaiter creates a waiter. A nil clock means the real clock.
func NewWaiter(clock clockwork.Clock) *ClockWaiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ClockWaiter{clock: clock}
}

func (w *ClockWaiter) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	timer := w.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.Chan():
		return nil
	}
}

func (w *ClockWaiter) NewHandle(d time.Duration) *Handle {
	return &Handle{
		deadline: w.clock.Now().Add(d),
		done:     make(chan struct{}),
	}
}

func (w *ClockWaiter) Until(ctx context.Context, h *Handle, interval time.Duration, ready func(context.Context) (bool, error)) error {
	if interval <= 0 {
		interval = time.Second
	}
	for {
		ok, err := ready(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		remaining := w.clock.Until(h.deadline)
		if remaining <= 0 {
			return ErrTimeout
		}
		if err := w.pause(ctx, h, min(interval, remaining)); err != nil {
			return err
		}
	}
}

func (w *ClockWaiter) pause(ctx context.Context, h *Handle, d time.Duration) error {
	timer := w.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return ErrTimeout
	case <-timer.Chan():
		return nil
	}
}
