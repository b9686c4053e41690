package tasklet

import (
	"time"

	"github.com/concurrence/concurrence/reactor"
	catrate "github.com/joeycumines/go-catrate"
)

// Sleep parks the calling task for seconds, waking it normally (no error)
// once the reactor's timer fires. A kill delivered while asleep still
// surfaces as the usual thrown error.
func Sleep(s *Scheduler, seconds float64) error {
	self := s.current
	if self == nil {
		panic("tasklet: Sleep called with no current task")
	}
	d := time.Duration(seconds * float64(time.Second))
	if d < 0 {
		d = 0
	}
	ev := reactor.NewTimerEvent(s.Reactor(), d, func() {
		s.wakeAtHead(self)
	}, false)

	self.state = taskBlocked
	thrown := s.parkSelf(func() { s.removeFromRunnable(self) })
	self.state = taskRunning
	_ = ev.Close()
	return thrown
}

// Yield_ voluntarily relinquishes the rest of this task's turn. It is
// sleep(0), not a bare Schedule(): with other tasks still runnable,
// Schedule alone never lets the driver poll the reactor, so a CPU-bound loop
// of cooperating tasks would starve ready I/O forever. Routing through Sleep
// guarantees at least one reactor poll before this task resumes.
func Yield_(s *Scheduler) error {
	return Sleep(s, 0)
}

// Later schedules f to run as a new daemon task after seconds, without
// blocking the caller — spec.md §4's fire-and-forget convenience built on
// New + Sleep.
func Later(s *Scheduler, seconds float64, f func()) *Task {
	return New(s, func() (any, error) {
		if err := Sleep(s, seconds); err != nil {
			return nil, err
		}
		f()
		return nil, nil
	}, WithDaemon(true))
}

// LoopOption configures Loop/Interval/Rate.
type LoopOption func(*loopOptions)

type loopOptions struct {
	name     string
	daemon   bool
	coolDown float64
}

// WithLoopName names the loop's backing task.
func WithLoopName(name string) LoopOption { return func(o *loopOptions) { o.name = name } }

// WithLoopDaemon marks the loop's backing task as a daemon.
func WithLoopDaemon(daemon bool) LoopOption { return func(o *loopOptions) { o.daemon = daemon } }

const defaultCoolDown = 1.0

// Loop repeatedly invokes f as a new task until it returns false or a kill
// arrives, with at least defaultCoolDown seconds between iterations — a
// floor against an accidental busy loop starving the scheduler, per
// SPEC_FULL.md §10's configurable cool-down supplement. A failure from f is
// logged and swallowed, not propagated, matching the unjoined-task rule.
func Loop(s *Scheduler, f func() bool, opts ...LoopOption) *Task {
	return LoopWithCoolDown(s, defaultCoolDown, f, opts...)
}

// LoopWithCoolDown is Loop with an explicit minimum cool-down, clamped to a
// non-negative floor.
func LoopWithCoolDown(s *Scheduler, coolDownSeconds float64, f func() bool, opts ...LoopOption) *Task {
	o := loopOptions{coolDown: coolDownSeconds}
	for _, opt := range opts {
		opt(&o)
	}
	if o.coolDown < 0 {
		o.coolDown = 0
	}

	taskOpts := []TaskOption{WithDaemon(o.daemon)}
	if o.name != "" {
		taskOpts = append(taskOpts, WithName(o.name))
	}

	return New(s, func() (any, error) {
		for {
			cont := func() (cont bool) {
				defer func() {
					if r := recover(); r != nil {
						s.logger.Error("loop iteration panicked", "panic", r)
						cont = true
					}
				}()
				return f()
			}()
			if !cont {
				return nil, nil
			}
			if err := Sleep(s, o.coolDown); err != nil {
				return nil, err
			}
		}
	}, taskOpts...)
}

// Interval runs f every seconds, optionally firing once immediately before
// the first wait; when immediate is false the newly started task waits
// seconds before calling f for the first time, matching the source
// library's interval().
func Interval(s *Scheduler, seconds float64, immediate bool, f func(), opts ...LoopOption) *Task {
	o := loopOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	taskOpts := []TaskOption{WithDaemon(o.daemon)}
	if o.name != "" {
		taskOpts = append(taskOpts, WithName(o.name))
	}

	return New(s, func() (any, error) {
		if !immediate {
			if err := Sleep(s, seconds); err != nil {
				return nil, err
			}
		}
		for {
			func() {
				defer func() {
					if r := recover(); r != nil {
						s.logger.Error("interval iteration panicked", "panic", r)
					}
				}()
				f()
			}()
			if err := Sleep(s, seconds); err != nil {
				return nil, err
			}
		}
	}, taskOpts...)
}

// RateLimiter gates Rate's invocations beneath its exponentially-smoothed
// interval, grounded on SPEC_FULL.md §4.11's catrate wiring: even if the
// smoothing window drifts short, the limiter is a hard backstop.
type RateLimiter = catrate.Limiter

// Rate invokes f repeatedly, adapting the delay between calls by
// exponential smoothing of f's own reported duration, bounded to
// [0.5*target, 1.5*target] seconds, and additionally gated by limiter if
// non-nil (SPEC_FULL.md §4.11). f returns how long its own work took, in
// seconds, and whether to continue.
func Rate(s *Scheduler, targetSeconds float64, limiter *RateLimiter, category any, f func() (elapsed float64, cont bool), opts ...LoopOption) *Task {
	interval := targetSeconds
	minI := targetSeconds * 0.5
	maxI := targetSeconds * 1.5

	o := loopOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	taskOpts := []TaskOption{WithDaemon(o.daemon)}
	if o.name != "" {
		taskOpts = append(taskOpts, WithName(o.name))
	}

	return New(s, func() (any, error) {
		for {
			if limiter != nil {
				for {
					_, ok := limiter.Allow(category)
					if ok {
						break
					}
					if err := Sleep(s, interval); err != nil {
						return nil, err
					}
				}
			}

			elapsed, cont := f()
			if !cont {
				return nil, nil
			}

			const smoothing = 0.2
			interval = interval*(1-smoothing) + elapsed*smoothing
			if interval < minI {
				interval = minI
			}
			if interval > maxI {
				interval = maxI
			}

			if err := Sleep(s, interval); err != nil {
				return nil, err
			}
		}
	}, taskOpts...)
}

// Receiver starts a new daemon task that runs f(env) for every message
// delivered to t's mailbox, in arrival order, until the returned task is
// killed, a mailbox wait times out, or f returns false. Killing t itself
// does not stop the returned task.
func Receiver(s *Scheduler, t *Task, timeoutSeconds float64, f func(env any) bool) *Task {
	return New(s, func() (any, error) {
		for {
			env, err := t.Mailbox().PopLeft(timeoutSeconds)
			if err != nil {
				return nil, err
			}
			if !f(env) {
				return nil, nil
			}
		}
	}, WithDaemon(true))
}
