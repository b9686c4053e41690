package tasklet

import "fmt"

// ErrNoTaskLocal is returned when a TaskLocal/TaskInstance lookup misses,
// matching spec.md §4.7's "reads that miss raise attribute-not-found".
var ErrNoTaskLocal = fmt.Errorf("tasklet: task-local attribute not set")

// TaskLocal is a per-task attribute bag keyed by the running task, grounded
// on spec.md §4.7. The source library keys a weak-keyed global map by task
// so a finished task's entries are reclaimed by the garbage collector; here
// storage lives directly on the Task struct's locals map instead and is
// dropped in Task.finish, which gives an explicit release point without
// needing a weak map of our own.
type TaskLocal[V any] struct {
	key       any
	recursive bool
}

// NewTaskLocal constructs a TaskLocal. If recursive, a miss on the current
// task walks Parent() links until a hit or the root.
func NewTaskLocal[V any](recursive bool) *TaskLocal[V] {
	return &TaskLocal[V]{key: new(int), recursive: recursive}
}

// Get returns the value bound to t (or, if recursive, the nearest ancestor
// with one), or ErrNoTaskLocal if none is found.
func (tl *TaskLocal[V]) Get(t *Task) (V, error) {
	var zero V
	for cur := t; cur != nil; cur = cur.Parent() {
		if v, ok := cur.locals[tl.key]; ok {
			return v.(V), nil
		}
		if !tl.recursive {
			break
		}
	}
	return zero, ErrNoTaskLocal
}

// Set binds v to t, replacing any existing binding.
func (tl *TaskLocal[V]) Set(t *Task, v V) {
	t.locals[tl.key] = v
}

// Unset removes t's own binding, if any (does not affect ancestors).
func (tl *TaskLocal[V]) Unset(t *Task) {
	delete(t.locals, tl.key)
}

// TaskInstance is a TaskLocal specialized to a single scoped binding per
// task, with guaranteed release on exit — spec.md §4.7's "set(obj) is a
// scoped acquisition ... with guaranteed unset() on exit".
type TaskInstance[V any] struct {
	tl *TaskLocal[V]
}

// NewTaskInstance constructs a TaskInstance.
func NewTaskInstance[V any](recursive bool) *TaskInstance[V] {
	return &TaskInstance[V]{tl: NewTaskLocal[V](recursive)}
}

// Set binds v to t for the duration of the returned scope; the caller must
// invoke it (typically via defer) to release the binding.
func (ti *TaskInstance[V]) Set(t *Task, v V) func() {
	// Only t's own binding is saved and restored: a value inherited from an
	// ancestor must not be copied onto t when the scope ends.
	prev, hadPrev := t.locals[ti.tl.key]
	ti.tl.Set(t, v)
	return func() {
		if hadPrev {
			t.locals[ti.tl.key] = prev
		} else {
			ti.tl.Unset(t)
		}
	}
}

// Get returns the value currently bound to t, or ErrNoTaskLocal if none.
func (ti *TaskInstance[V]) Get(t *Task) (V, error) {
	return ti.tl.Get(t)
}
