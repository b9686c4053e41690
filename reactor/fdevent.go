package reactor

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// Standard errors for FdEvent.
var (
	ErrFDAlreadyArmed = errors.New("reactor: fd registration already armed")
	ErrFDClosed       = errors.New("reactor: fd registration closed")
)

// FdEvent owns a single fd registration. It is constructed once per fd and
// re-armed for each wait; the poller registration itself is added on every
// Arm and removed when the armed wait fires (ready or timeout) or on Close.
type FdEvent struct {
	r  *Reactor
	fd int

	mu      sync.Mutex
	armed   bool
	closed  bool
	onReady Callback
	onTimer *TimerEvent
}

// NewFdEvent constructs a registration for fd against r. It does not, by
// itself, register interest with the poller — that happens on Arm.
func NewFdEvent(r *Reactor, fd int) *FdEvent {
	return &FdEvent{r: r, fd: fd}
}

// Arm registers interest in dir on the fd, arming deadline (if positive) as
// a one-shot timeout. Exactly one of onReady or onTimeout fires, and the
// registration auto-disarms on whichever fires first. onReady and onTimeout
// are invoked as reactor Callbacks — i.e. only after Loop returns them, never
// synchronously from Arm.
func (e *FdEvent) Arm(dir Direction, deadline time.Duration, onReady func(), onTimeout func()) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrFDClosed
	}
	if e.armed {
		e.mu.Unlock()
		return ErrFDAlreadyArmed
	}
	e.armed = true
	e.mu.Unlock()

	var fired atomic.Bool

	wrappedReady := func() {
		if !fired.CompareAndSwap(false, true) {
			return
		}
		e.disarm()
		onReady()
	}
	wrappedTimeout := func() {
		if !fired.CompareAndSwap(false, true) {
			return
		}
		e.disarm()
		onTimeout()
	}

	e.mu.Lock()
	e.onReady = wrappedReady
	e.mu.Unlock()

	if err := e.r.poller.Register(e.fd, dir, func() { e.fireReady() }); err != nil {
		e.mu.Lock()
		e.armed = false
		e.mu.Unlock()
		return err
	}

	if deadline > 0 {
		e.mu.Lock()
		e.onTimer = NewTimerEvent(e.r, deadline, wrappedTimeout, false)
		e.mu.Unlock()
	}

	return nil
}

func (e *FdEvent) fireReady() {
	e.mu.Lock()
	cb := e.onReady
	e.mu.Unlock()
	if cb != nil {
		cb()
	}
}

func (e *FdEvent) disarm() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.armed {
		return
	}
	e.armed = false
	_ = e.r.poller.Unregister(e.fd)
	if e.onTimer != nil {
		e.onTimer.Close()
		e.onTimer = nil
	}
	e.onReady = nil
}

// Close cancels any pending registration; a late fire (racing with Close)
// becomes a no-op.
func (e *FdEvent) Close() error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.disarm()
	return nil
}
