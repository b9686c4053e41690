// Package reactor provides I/O event registration on top of the host's
// native poller:
//   - Linux: epoll
//   - Darwin: kqueue
//   - other platforms: a channel-based fallback that never reports fd
//     readiness (timers and signals only), so the scheduler never needs a
//     build-tag of its own.
//
// See poller_linux.go, poller_darwin.go, and poller_other.go.
package reactor

import "time"

// poller is the platform-specific half of Reactor: registering fd interest
// and blocking until readiness, a wake-up, or a timeout.
type poller interface {
	// Register arms interest in dir on fd; cb runs (via the caller-supplied
	// enqueue function passed to Poll) when the fd becomes ready.
	Register(fd int, dir Direction, cb func()) error

	// Unregister removes a previously-registered fd.
	Unregister(fd int) error

	// Poll blocks for up to timeout waiting for any registered fd to become
	// ready or for Wake to be called, invoking enqueue for each ready fd's
	// callback. A timeout <= 0 means return immediately if nothing is ready.
	Poll(timeout time.Duration, enqueue func(Callback)) error

	// Wake interrupts a blocked Poll call immediately.
	Wake()

	// Registrations reports the number of fds currently registered.
	Registrations() int

	// Close releases the poller's OS resources.
	Close() error
}
