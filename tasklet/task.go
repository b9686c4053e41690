package tasklet

import (
	"errors"
	"fmt"
	"sync/atomic"
	"weak"
)

// taskState is the lifecycle flag pair from spec.md §3: alive/blocked,
// collapsed to a small state machine since Go needs an explicit value to
// assert "ready → running → (blocked | ready | done)" transitions against.
type taskState int

const (
	taskReady taskState = iota
	taskRunning
	taskBlocked
	taskDone
)

// waitQueue is implemented by anything a Task can be parked on (a Channel's
// wait queue, a Mailbox's wakeup channel's wait queue) so Scheduler.throw can
// extract a blocked task uniformly.
type waitQueue interface {
	extract(t *Task)
}

// resultKind distinguishes Task.Result()'s three possible states.
type resultKind int

const (
	resultPending resultKind = iota
	resultValue
	resultFailure
)

// Result is the outcome of a finished task: exactly one of pending, a value,
// or a failure, per spec.md §3.
type Result struct {
	kind  resultKind
	value any
	err   *TaskletError
}

// Pending reports whether the task has not yet finished.
func (r Result) Pending() bool { return r.kind == resultPending }

// Value returns the task's returned value and true, or nil/false if the task
// has not finished or finished with a failure.
func (r Result) Value() (any, bool) {
	if r.kind != resultValue {
		return nil, false
	}
	return r.value, true
}

// Failure returns the task's captured failure and true, or nil/false if the
// task has not finished or finished with a value.
func (r Result) Failure() (*TaskletError, bool) {
	if r.kind != resultFailure {
		return nil, false
	}
	return r.err, true
}

var taskIDCounter atomic.Uint64

// Task is a unit of execution with its own goroutine, a mailbox, a
// parent/children tree, a join channel, and a name — spec.md §3.
type Task struct {
	id     uint64
	name   string
	daemon bool

	sched *Scheduler
	state taskState

	resume       chan error // driver -> task baton; carries a thrown error, or nil
	pendingThrow error      // set by throw(), delivered on the task's next resume

	parent   weak.Pointer[Task]
	children map[*Task]struct{}

	waitQueue waitQueue // non-nil while blocked on a Channel/Mailbox wait queue

	joinWaiters []*Task // tasks parked in Join, woken directly on finish

	result Result

	mailbox *Mailbox

	timeouts   timeoutStack
	locals     map[any]any
	chanResult any // transfers a Receive's delivered payload across the baton handoff

	fn func() (any, error)
}

// Name returns the task's display name.
func (t *Task) Name() string { return t.name }

// ID returns the task's stable identity.
func (t *Task) ID() uint64 { return t.id }

// Alive reports whether the task has not yet completed.
func (t *Task) Alive() bool { return t.state != taskDone }

// Blocked reports whether the task is currently waiting on a channel.
func (t *Task) Blocked() bool { return t.state == taskBlocked }

// Daemon reports whether the task is detached from the parent/child tree.
func (t *Task) Daemon() bool { return t.daemon }

// Parent returns the task's parent, or nil if it has none or the parent has
// already finished (parent links are weak — a finished parent is reclaimed
// independently of its children).
func (t *Task) Parent() *Task { return t.parent.Value() }

// Children returns a snapshot of the task's live children.
func (t *Task) Children() []*Task {
	out := make([]*Task, 0, len(t.children))
	for c := range t.children {
		out = append(out, c)
	}
	return out
}

// Mailbox returns the task's mailbox.
func (t *Task) Mailbox() *Mailbox { return t.mailbox }

// Result returns the task's current result — pending until it finishes.
func (t *Task) Result() Result { return t.result }

// TaskOption configures New.
type TaskOption func(*taskOptions)

type taskOptions struct {
	name   string
	daemon bool
}

// WithName sets the task's display name.
func WithName(name string) TaskOption { return func(o *taskOptions) { o.name = name } }

// WithDaemon marks the task as a daemon: it is not attached to its creator
// as a child, and is excluded from JoinChildren.
func WithDaemon(daemon bool) TaskOption { return func(o *taskOptions) { o.daemon = daemon } }

// New constructs a task bound to f but does not start it. A non-daemon task
// is attached to the currently-running task (if any) as a child. The task is
// enqueued at the runnable tail, starting on first selection — matching
// spec.md §4.2's "invoking the task with arguments enqueues it ... and
// starts it on first selection", collapsed into construction since Go
// closures already carry their arguments.
func New(s *Scheduler, f func() (any, error), opts ...TaskOption) *Task {
	o := taskOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.name == "" {
		o.name = fmt.Sprintf("task-%d", taskIDCounter.Load()+1)
	}

	t := &Task{
		id:       taskIDCounter.Add(1),
		name:     o.name,
		daemon:   o.daemon,
		sched:    s,
		state:    taskReady,
		resume:   make(chan error),
		children: make(map[*Task]struct{}),
		locals:   make(map[any]any),
		fn:       f,
	}
	t.mailbox = newMailbox(s)

	if !o.daemon {
		if parent := s.current; parent != nil {
			t.parent = weak.Make(parent)
			parent.children[t] = struct{}{}
		}
	}

	s.append(t)
	go t.run()
	return t
}

// run is the task's goroutine body: wait for the first baton, execute fn,
// record the result, and notify any joiner — spec.md §4.2's execution
// wrapper.
func (t *Task) run() {
	thrown := <-t.resume
	t.state = taskRunning

	var result Result
	if thrown != nil {
		result = t.boundaryFailure(thrown)
	} else {
		result = t.invoke()
	}

	t.finish(result)
}

func (t *Task) invoke() (result Result) {
	defer func() {
		if r := recover(); r != nil {
			err, ok := r.(error)
			if !ok {
				err = fmt.Errorf("tasklet: task panic: %v", r)
			}
			result = t.boundaryFailureKind(err, FailurePanicked)
		}
	}()
	v, err := t.fn()
	if err != nil {
		return t.boundaryFailure(err)
	}
	return Result{kind: resultValue, value: v}
}

func (t *Task) boundaryFailure(err error) Result {
	kind := FailureError
	if err == ErrTaskletExit {
		kind = FailureKilled
	}
	return t.boundaryFailureKind(err, kind)
}

func (t *Task) boundaryFailureKind(err error, kind JoinFailureKind) Result {
	return Result{kind: resultFailure, err: &TaskletError{Cause: err, Task: t, Kind: kind}}
}

// finish runs on the task's own goroutine, immediately after fn returns (or
// after a pre-start kill): store the result, detach from the parent's
// children, notify a joiner, release the mailbox and task-local storage, and
// hand the baton back.
// Every mutation here is a scheduler-queue mutation and is therefore only
// safe because this task still holds the baton.
func (t *Task) finish(result Result) {
	t.result = result
	t.state = taskDone

	if p := t.Parent(); p != nil {
		delete(p.children, t)
	}

	sched := t.sched
	sched.removeFromRunnable(t)

	if len(t.joinWaiters) == 0 && result.kind == resultFailure && result.err.Kind != FailureKilled {
		sched.logger.Error("unjoined task failed", "task", t.name, "cause", result.err.Cause)
	}
	waiters := t.joinWaiters
	t.joinWaiters = nil
	for _, w := range waiters {
		if w.state != taskDone {
			sched.wakeAtHead(w)
		}
	}

	t.mailbox = nil
	clear(t.locals)

	sched.signalYield()
}

// Join blocks the calling task until t finishes, then returns t's value, or a
// *JoinError wrapping t's failure. A negative timeoutSeconds blocks
// indefinitely; zero or positive bounds the wait and returns a *TimeoutError
// on expiry. Calling Join from outside any task (e.g. the driver itself) is
// not supported and will panic.
func Join(t *Task, timeoutSeconds float64) (any, error) {
	sched := t.sched
	self := sched.current
	if self == nil {
		panic("tasklet: Join called with no current task")
	}
	if !t.Alive() {
		return resultToJoin(t.result)
	}

	effective := self.EffectiveTimeout(timeoutSeconds)
	if effective == 0 {
		return nil, &TimeoutError{}
	}

	t.joinWaiters = append(t.joinWaiters, self)
	var timer *reactorTimer
	if effective > 0 {
		timer = armTimeout(sched, self, effective)
	}

	self.state = taskBlocked
	sched.markBlocked(self)
	thrown := sched.parkSelf(func() { sched.removeFromRunnable(self) })
	sched.unmarkBlocked(self)
	self.state = taskRunning

	removeJoinWaiter(t, self)
	if timer != nil {
		timer.Stop()
	}
	if thrown != nil {
		return nil, thrown
	}
	return resultToJoin(t.result)
}

func resultToJoin(r Result) (any, error) {
	if v, ok := r.Value(); ok {
		return v, nil
	}
	f, _ := r.Failure()
	return nil, newJoinError(f)
}

func removeJoinWaiter(t *Task, self *Task) {
	for i, w := range t.joinWaiters {
		if w == self {
			t.joinWaiters = append(t.joinWaiters[:i], t.joinWaiters[i+1:]...)
			return
		}
	}
}

// JoinAll joins each task in order, gathering each one's value or
// join-failure into a list of the same length (spec.md §4.2): a failed or
// killed task's *JoinError is stored in its slot and the loop continues. Only
// a joiner-side interruption — the joiner itself being killed, timing out, or
// observing a deadlock — aborts the loop early and is returned directly.
func JoinAll(ts []*Task, timeoutSeconds float64) ([]any, error) {
	out := make([]any, len(ts))
	for i, t := range ts {
		v, err := Join(t, timeoutSeconds)
		if err != nil {
			var je *JoinError
			if errors.As(err, &je) {
				out[i] = je
				continue
			}
			return out, err
		}
		out[i] = v
	}
	return out, nil
}

// JoinChildren joins every non-daemon child of t still alive, one at a time
// in no particular order (Children's snapshot order), ignoring individual child failures (spec.md §4.2's shutdown
// convenience: reap the tree without letting one failed child abort the
// rest) but re-raising a joiner-side kill, timeout, or deadlock, matching
// JoinAll.
func JoinChildren(t *Task, timeoutSeconds float64) error {
	for _, c := range t.Children() {
		_, err := Join(c, timeoutSeconds)
		if err != nil {
			var je *JoinError
			if errors.As(err, &je) {
				continue
			}
			return err
		}
	}
	return nil
}

// Kill asynchronously throws ErrTaskletExit into t, unwinding it the next
// time it is scheduled (or immediately, if currently blocked).
func Kill(t *Task) {
	t.sched.throw(t, ErrTaskletExit)
}

// Walk performs a pre-order traversal of the task tree rooted at t, calling
// visit(task, depth) for each node — spec.md §4.2's diagnostic tree walk.
func Walk(root *Task, visit func(t *Task, depth int)) {
	var rec func(t *Task, depth int)
	rec = func(t *Task, depth int) {
		visit(t, depth)
		for _, c := range t.Children() {
			rec(c, depth+1)
		}
	}
	rec(root, 0)
}

// Dump renders Walk's pre-order traversal as a human-readable tree, one line
// per task, for diagnostics — SPEC_FULL.md §10's supplemented feature.
func Dump(root *Task) string {
	out := ""
	Walk(root, func(t *Task, depth int) {
		for i := 0; i < depth; i++ {
			out += "  "
		}
		status := "ready"
		switch {
		case t.state == taskDone:
			status = "done"
		case t.Blocked():
			status = "blocked"
		case t.state == taskRunning:
			status = "running"
		}
		out += fmt.Sprintf("%s (id=%d, %s, mailbox=%d)\n", t.name, t.id, status, t.mailboxLen())
	})
	return out
}

func (t *Task) mailboxLen() int {
	if t.mailbox == nil {
		return 0
	}
	return t.mailbox.Len()
}
