package tasklet

import "container/list"

// Mailbox is a FIFO queue with an attached wakeup channel, grounded on
// spec.md §4.5: Append enqueues an envelope and, only if a receiver is
// already blocked waiting, hands it a wakeup token — the receiver then pops
// the real envelope off the queue itself, so the token never carries the
// payload. This indirection is what lets Append be non-blocking even though
// the wakeup primitive underneath is a synchronous Channel.
type Mailbox struct {
	queue *list.List // of any (an envelope; the mailbox package defines its shape)
	wake  *Channel
}

func newMailbox(s *Scheduler) *Mailbox {
	return &Mailbox{
		queue: list.New(),
		wake:  NewChannel(s),
	}
}

// Append adds env to the tail of the queue and wakes a waiting receiver, if
// one is parked. It never blocks the caller.
func (m *Mailbox) Append(env any) {
	m.queue.PushBack(env)
	if m.wake.HasReceiver() {
		_ = m.wake.Send(struct{}{}, -1)
	}
}

// PopLeft removes and returns the head envelope, blocking on the wakeup
// channel while the queue is empty. A negative timeoutSeconds blocks
// indefinitely; otherwise a *TimeoutError is returned on expiry.
func (m *Mailbox) PopLeft(timeoutSeconds float64) (any, error) {
	for m.queue.Len() == 0 {
		if _, err := m.wake.Receive(timeoutSeconds); err != nil {
			return nil, err
		}
	}
	e := m.queue.Front()
	m.queue.Remove(e)
	return e.Value, nil
}

// Len reports the number of envelopes currently queued (not counting
// receivers parked waiting for one).
func (m *Mailbox) Len() int {
	if m == nil || m.queue == nil {
		return 0
	}
	return m.queue.Len()
}
