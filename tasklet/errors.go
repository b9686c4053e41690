package tasklet

import (
	"errors"
	"fmt"
)

// TimeoutError is raised from any blocking primitive when its effective
// deadline expires, grounded on the teacher's eventloop.TimeoutError shape
// (errors.go): a concrete type with an optional wrapped cause so it composes
// with errors.Is/errors.As.
type TimeoutError struct {
	Message string
	Cause   error
}

func (e *TimeoutError) Error() string {
	if e.Message == "" {
		return "tasklet: operation timed out"
	}
	return e.Message
}

func (e *TimeoutError) Unwrap() error { return e.Cause }

// ErrTaskletExit is the cooperative kill signal. It is delivered via Throw
// and unwinds the target task's stack with guaranteed cleanup. It is
// intentionally a plain sentinel, not a wrapping type, so that ordinary
// errors.As(err, *TaskletError) lookups never mistake a kill for a failure —
// callers that want to special-case kill compare with errors.Is.
var ErrTaskletExit = errors.New("tasklet: killed")

// JoinFailureKind classifies why a join observed a failure rather than a
// value.
type JoinFailureKind int

const (
	// FailureError means the task returned an ordinary error.
	FailureError JoinFailureKind = iota
	// FailureKilled means the task was killed (ErrTaskletExit).
	FailureKilled
	// FailurePanicked means the task's function panicked.
	FailurePanicked
)

func (k JoinFailureKind) String() string {
	switch k {
	case FailureKilled:
		return "killed"
	case FailurePanicked:
		return "panicked"
	default:
		return "error"
	}
}

// TaskletError wraps a failure captured at a task's boundary: either an
// uncaught error return, a panic, or a kill.
type TaskletError struct {
	Cause   error
	Task    *Task
	Kind    JoinFailureKind
}

func (e *TaskletError) Error() string {
	name := "?"
	if e.Task != nil {
		name = e.Task.Name()
	}
	return fmt.Sprintf("tasklet: task %q failed (%s): %v", name, e.Kind, e.Cause)
}

func (e *TaskletError) Unwrap() error { return e.Cause }

// JoinError is raised from Join when the target task failed or was killed.
type JoinError struct {
	*TaskletError
}

func newJoinError(te *TaskletError) *JoinError {
	return &JoinError{TaskletError: te}
}

// ErrDeadlock is the fatal error surfaced when a task blocks and no other
// task is runnable and the reactor holds no registrations that could ever
// wake anything — continuing would hang the process forever.
var ErrDeadlock = errors.New("tasklet: scheduler deadlock: no runnable tasks and nothing pending on the reactor")
