package tasklet

import (
	"time"

	"github.com/concurrence/concurrence/reactor"
)

// reactorTimer adapts a reactor.TimerEvent to the one-shot "arm a deadline,
// cancel it if the wait finished first" pattern every blocking primitive in
// this package needs (Join, Channel.Send/Receive). Grounded on the teacher's
// eventloop timer usage (timer_deadlock_test.go): a timer that, if it fires,
// mutates scheduler state exactly once and is otherwise inert.
type reactorTimer struct {
	ev *reactor.TimerEvent
}

func (t *reactorTimer) Stop() {
	if t == nil || t.ev == nil {
		return
	}
	_ = t.ev.Close()
}

// armTimeout schedules a TimeoutError to be thrown into self after
// timeoutSeconds. Callers only invoke this with a strictly positive
// timeoutSeconds — an already-expired or zero effective timeout is raised
// synchronously at the call site instead of being armed here, per spec.md
// §5 ("a timeout that has already elapsed raises immediately, without
// registering with the reactor").
func armTimeout(s *Scheduler, self *Task, timeoutSeconds float64) *reactorTimer {
	d := time.Duration(timeoutSeconds * float64(time.Second))
	if d <= 0 {
		d = time.Nanosecond
	}
	ev := reactor.NewTimerEvent(s.Reactor(), d, func() {
		s.throw(self, &TimeoutError{})
	}, false)
	return &reactorTimer{ev: ev}
}

// timeoutStack is the per-task nested timeout scope stack from spec.md §4.6:
// each Push(seconds) installs an upper bound on how long any blocking call
// made while it is active may wait, and the effective deadline is the
// minimum of the whole stack (a nested scope can only tighten, never
// loosen, the bound it was pushed inside).
type timeoutStack struct {
	deadlines []float64 // each entry an absolute deadline, as seconds since the stack's base
	base      time.Time
}

// Push installs a new timeout scope of seconds duration from now, returning
// a function that pops it. The effective deadline active after Push is the
// minimum of seconds and whatever bound was already in effect.
func (ts *timeoutStack) Push(seconds float64) func() {
	if ts.base.IsZero() {
		ts.base = time.Now()
	}
	deadline := time.Since(ts.base).Seconds() + seconds
	if len(ts.deadlines) > 0 {
		if prev := ts.deadlines[len(ts.deadlines)-1]; prev < deadline {
			deadline = prev
		}
	}
	ts.deadlines = append(ts.deadlines, deadline)
	depth := len(ts.deadlines)
	return func() {
		if len(ts.deadlines) >= depth {
			ts.deadlines = ts.deadlines[:depth-1]
		}
	}
}

// Current returns the remaining seconds until the innermost active timeout
// scope expires, or -1 if no scope is active.
func (ts *timeoutStack) Current() float64 {
	if len(ts.deadlines) == 0 {
		return -1
	}
	remaining := ts.deadlines[len(ts.deadlines)-1] - time.Since(ts.base).Seconds()
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// EffectiveTimeout resolves a caller-supplied timeout (negative meaning "no
// timeout") against the task's active timeout-scope stack, returning
// whichever is sooner.
func (t *Task) EffectiveTimeout(requested float64) float64 {
	scoped := t.timeouts.Current()
	if scoped < 0 {
		return requested
	}
	if requested < 0 || scoped < requested {
		return scoped
	}
	return requested
}

// PushTimeout installs a nested timeout scope on the currently running task
// of s, per spec.md §4.6.
func PushTimeout(s *Scheduler, seconds float64) func() {
	t := s.current
	if t == nil {
		panic("tasklet: PushTimeout called with no current task")
	}
	return t.timeouts.Push(seconds)
}
