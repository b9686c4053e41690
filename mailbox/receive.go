package mailbox

import "github.com/concurrence/concurrence/tasklet"

// Receive pops envelopes off the calling task's own mailbox in arrival
// order, calling handle for each, until handle returns false, the mailbox
// wait times out, or the task is killed — spec.md §4.5's receive iterator:
// "yields (env, args, kwargs) for each message ... blocking between
// messages with an optional timeout that raises TimeoutError on expiry."
func Receive(t *tasklet.Task, timeoutSeconds float64, handle func(env Envelope) (cont bool)) error {
	for {
		v, err := t.Mailbox().PopLeft(timeoutSeconds)
		if err != nil {
			return err
		}
		env, ok := v.(Envelope)
		if !ok {
			continue
		}
		if !handle(env) {
			return nil
		}
	}
}
