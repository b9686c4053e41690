// Package tasklet implements the cooperative task scheduler: a runnable
// queue, context switching, blocking channels, task lifecycle, a
// parent/child tree, and task-local state.
//
// The source library this is modeled on used stackful coroutines for tasks;
// Go has none, so each Task instead runs in its own goroutine, and exactly
// one of them is ever allowed to run at a time. A single driver goroutine
// (the Scheduler's Run loop) hands a baton to the head of the runnable queue
// and blocks until that task either yields voluntarily, blocks on a channel
// or mailbox, or finishes — so every mutation of shared scheduler state
// happens on whichever goroutine currently holds the baton, never
// concurrently. This is the Go-native substitute for "runs on a single OS
// thread": the runtime is multi-threaded, but the scheduler's own state
// never is.
package tasklet

import (
	"container/list"
	"time"

	"github.com/concurrence/concurrence/reactor"
)

// Scheduler owns the runnable queue and drives the reactor when idle.
type Scheduler struct {
	r *reactor.Reactor

	runnable *list.List
	elems    map[*Task]*list.Element
	blocked  map[*Task]struct{}

	current *Task
	yielded chan struct{}

	heartbeat time.Duration
	quit      bool
	quitCode  int

	logger Logger
}

// NewScheduler constructs a Scheduler backed by a fresh Reactor.
func NewScheduler(heartbeat time.Duration) (*Scheduler, error) {
	r, err := reactor.New()
	if err != nil {
		return nil, err
	}
	if heartbeat <= 0 {
		heartbeat = time.Second
	}
	return &Scheduler{
		r:         r,
		runnable:  list.New(),
		elems:     make(map[*Task]*list.Element),
		blocked:   make(map[*Task]struct{}),
		yielded:   make(chan struct{}),
		heartbeat: heartbeat,
		logger:    noopLogger{},
	}, nil
}

// markBlocked records t as parked on some wait queue, so Run can recognize
// a true deadlock (every blocked task, with nothing left in the reactor
// that could ever wake any of them).
func (s *Scheduler) markBlocked(t *Task) { s.blocked[t] = struct{}{} }

// unmarkBlocked clears a task's blocked bookkeeping once it resumes.
func (s *Scheduler) unmarkBlocked(t *Task) { delete(s.blocked, t) }

// SetLogger installs the logger used for swallowed task/reactor failures.
func (s *Scheduler) SetLogger(l Logger) {
	if l == nil {
		l = noopLogger{}
	}
	s.logger = l
}

// Reactor returns the underlying reactor, for components (timers, fd waits)
// layered on top of the scheduler.
func (s *Scheduler) Reactor() *reactor.Reactor { return s.r }

// Current returns the task presently holding the baton. It is only
// meaningful when called from within a running task's own goroutine.
func (s *Scheduler) Current() *Task { return s.current }

// RunCount reports the number of runnable tasks, including the current one.
func (s *Scheduler) RunCount() int { return s.runnable.Len() }

// append enqueues a newly created task at the tail of runnable. Precondition:
// task not already enqueued. Safe only from the goroutine currently holding
// the baton (the parent task creating a child, or the driver seeding root).
func (s *Scheduler) append(t *Task) {
	if _, ok := s.elems[t]; ok {
		panic("tasklet: task already enqueued")
	}
	s.elems[t] = s.runnable.PushBack(t)
}

// removeFromRunnable removes t from the runnable queue, if present.
func (s *Scheduler) removeFromRunnable(t *Task) {
	if e, ok := s.elems[t]; ok {
		s.runnable.Remove(e)
		delete(s.elems, t)
	}
}

// wakeAtHead inserts t at the front of runnable (used by pass-the-torch and
// by Throw to make a resumed task observe the exception immediately).
func (s *Scheduler) wakeAtHead(t *Task) {
	s.removeFromRunnable(t)
	s.elems[t] = s.runnable.PushFront(t)
}

// wakeAtTail inserts t at the back of runnable.
func (s *Scheduler) wakeAtTail(t *Task) {
	s.removeFromRunnable(t)
	s.elems[t] = s.runnable.PushBack(t)
}

// schedule rotates the head task to the tail. No-op with only one runnable
// task — matches the §8 boundary behavior.
func (s *Scheduler) schedule() {
	if s.runnable.Len() <= 1 {
		return
	}
	front := s.runnable.Front()
	t := front.Value.(*Task)
	s.runnable.MoveToBack(front)
	s.elems[t] = s.runnable.Back()
}

// signalYield hands the baton back to the driver. Must only be called by
// the task currently holding it.
func (s *Scheduler) signalYield() {
	s.yielded <- struct{}{}
}

// parkSelf runs mutate synchronously (safe: the caller is the sole active
// goroutine right now), hands the baton back to the driver, and blocks until
// the driver resumes this task. It returns whatever error was thrown into
// the task during its suspension (timeout, kill), or nil on an ordinary
// resume.
func (s *Scheduler) parkSelf(mutate func()) error {
	t := s.current
	if mutate != nil {
		mutate()
	}
	s.signalYield()
	return <-t.resume
}

// Schedule implements the §4.1 voluntary-yield primitive: rotate head to
// tail, then suspend until resumed at the new head.
func (s *Scheduler) Schedule() error {
	return s.parkSelf(s.schedule)
}

// throw delivers err into t at its next resumption. If t is blocked, it is
// extracted from whatever channel/mailbox queue holds it (balance adjusted)
// and placed at runnable's head. If already runnable, it is moved to head.
// No effect on a done task. Only safe from the goroutine holding the baton.
func (s *Scheduler) throw(t *Task, err error) {
	if t.state == taskDone {
		return
	}
	if t.waitQueue != nil {
		t.waitQueue.extract(t)
	}
	t.pendingThrow = err
	if _, ok := s.elems[t]; ok {
		s.wakeAtHead(t)
		return
	}
	s.elems[t] = s.runnable.PushFront(t)
}

// Run is the scheduler's driver loop: hand the baton to the runnable head,
// wait for it to yield, and poll the reactor whenever nothing is runnable.
// It returns the quit code once nothing is runnable, no task is blocked and
// the reactor holds no registrations. After Quit, it returns as soon as the
// runnable queue is empty; tasks still blocked at that point are not resumed.
func (s *Scheduler) Run() int {
	for {
		if front := s.runnable.Front(); front != nil {
			t := front.Value.(*Task)
			s.current = t
			thrown := t.pendingThrow
			t.pendingThrow = nil
			t.resume <- thrown
			<-s.yielded
			s.current = nil
			if s.quit && s.runnable.Len() == 0 && s.r.Pending() == 0 {
				return s.quitCode
			}
			continue
		}

		if s.quit {
			return s.quitCode
		}

		if len(s.blocked) == 0 && s.r.Pending() == 0 {
			return s.quitCode
		}

		if len(s.blocked) > 0 && s.r.Pending() == 0 {
			for t := range s.blocked {
				s.throw(t, ErrDeadlock)
			}
			continue
		}

		cbs, err := s.r.Loop(s.heartbeat)
		if err != nil {
			s.logger.Error("reactor loop failed", "error", err)
			continue
		}
		for _, cb := range cbs {
			func() {
				defer func() {
					if r := recover(); r != nil {
						s.logger.Error("reactor callback panicked", "panic", r)
					}
				}()
				cb()
			}()
		}
	}
}

// Quit requests the driver loop to stop, with code as Run's return value, as
// soon as no task remains runnable.
func (s *Scheduler) Quit(code int) {
	s.quit = true
	s.quitCode = code
}
