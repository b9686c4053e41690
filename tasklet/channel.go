package tasklet

import "container/list"

// bomb is the payload wrapper a Channel uses to transport an exception
// instead of a value, grounded on spec.md §4.5's "an exception sent over a
// channel is re-raised in the receiver, not just handed back as a value".
type bomb struct {
	err error
}

// chanWaiter is one task parked on a Channel, holding whichever side of the
// rendezvous it is still missing: a sender waits with a value already in
// hand; a receiver waits with none.
type chanWaiter struct {
	task    *Task
	value   any
	isSend  bool
	timeout *reactorTimer
}

// Channel is a synchronous, unbuffered rendezvous point between tasks,
// grounded on spec.md §4.5 and implemented as a balance counter plus a FIFO
// wait queue, the same shape as the source library's channel: balance > 0
// means that many senders are parked with values ready; balance < 0 means
// that many receivers are parked waiting for one.
type Channel struct {
	sched *Scheduler
	queue *list.List // of *chanWaiter
	elems map[*Task]*list.Element
}

// NewChannel constructs an empty Channel bound to s.
func NewChannel(s *Scheduler) *Channel {
	return &Channel{
		sched: s,
		queue: list.New(),
		elems: make(map[*Task]*list.Element),
	}
}

// Balance reports the channel's current balance: positive for waiting
// senders, negative for waiting receivers, zero if empty.
func (c *Channel) Balance() int {
	n := c.queue.Len()
	if n == 0 {
		return 0
	}
	if c.queue.Front().Value.(*chanWaiter).isSend {
		return n
	}
	return -n
}

// HasSender reports whether a sender is currently parked with a value ready.
func (c *Channel) HasSender() bool { return c.Balance() > 0 }

// HasReceiver reports whether a receiver is currently parked waiting.
func (c *Channel) HasReceiver() bool { return c.Balance() < 0 }

// Send hands v to a waiting receiver, or parks the caller as a waiting
// sender until one arrives. Per spec.md §4.5, handing off to an
// already-waiting receiver makes it head of runnable and then yields, so
// execution continues in the receiver immediately.
func (c *Channel) Send(v any, timeoutSeconds float64) error {
	return c.rendezvous(chanWaiter{value: v, isSend: true}, timeoutSeconds)
}

// SendException delivers err to a waiting receiver's Receive call in place
// of a value, or parks the caller as a waiting (exceptional) sender.
func (c *Channel) SendException(err error, timeoutSeconds float64) error {
	return c.rendezvous(chanWaiter{value: bomb{err: err}, isSend: true}, timeoutSeconds)
}

// Receive waits for a value (or exception) from a waiting or future sender.
// If a sender is already parked, Receive takes its value and appends the
// sender to the tail of runnable, continuing in the receiver without a
// switch (spec.md §4.1).
func (c *Channel) Receive(timeoutSeconds float64) (any, error) {
	result, err := c.rendezvousReceive(timeoutSeconds)
	if err != nil {
		return nil, err
	}
	if b, ok := result.(bomb); ok {
		return nil, b.err
	}
	return result, nil
}

// rendezvous implements Send/SendException: complete immediately against an
// opposite-facing waiter if one is queued, otherwise park.
func (c *Channel) rendezvous(w chanWaiter, timeoutSeconds float64) error {
	self := c.sched.current
	if self == nil {
		panic("tasklet: Channel.Send called with no current task")
	}

	if c.HasReceiver() {
		front := c.queue.Front()
		recv := front.Value.(*chanWaiter)
		c.popFront(front)
		if recv.timeout != nil {
			recv.timeout.Stop()
		}
		recv.task.chanResult = w.value
		c.sched.wakeAtHead(recv.task)
		// Pass the torch: yield so the receiver runs next, per spec.md §4.5
		// and §5 ("send yields after pass-the-torch").
		return c.sched.parkSelf(func() { c.sched.wakeAtTail(self) })
	}

	effective := self.EffectiveTimeout(timeoutSeconds)
	if effective == 0 {
		return &TimeoutError{}
	}

	w.task = self
	elem := c.queue.PushBack(&w)
	c.elems[self] = elem
	self.waitQueue = c

	if effective > 0 {
		elem.Value.(*chanWaiter).timeout = armTimeout(c.sched, self, effective)
	}

	self.state = taskBlocked
	c.sched.markBlocked(self)
	thrown := c.sched.parkSelf(func() { c.sched.removeFromRunnable(self) })
	c.sched.unmarkBlocked(self)
	self.state = taskRunning
	self.waitQueue = nil
	if thrown != nil {
		c.removeWaiter(self)
		return thrown
	}
	return nil
}

// rendezvousReceive implements Receive: symmetric to rendezvous but for the
// receiving side, and returns the delivered payload (a value or a bomb).
func (c *Channel) rendezvousReceive(timeoutSeconds float64) (any, error) {
	self := c.sched.current
	if self == nil {
		panic("tasklet: Channel.Receive called with no current task")
	}

	if c.HasSender() {
		front := c.queue.Front()
		send := front.Value.(*chanWaiter)
		c.popFront(front)
		if send.timeout != nil {
			send.timeout.Stop()
		}
		c.sched.wakeAtTail(send.task)
		return send.value, nil
	}

	effective := self.EffectiveTimeout(timeoutSeconds)
	if effective == 0 {
		return nil, &TimeoutError{}
	}

	w := &chanWaiter{task: self, isSend: false}
	elem := c.queue.PushBack(w)
	c.elems[self] = elem
	self.waitQueue = c

	if effective > 0 {
		w.timeout = armTimeout(c.sched, self, effective)
	}

	self.state = taskBlocked
	c.sched.markBlocked(self)
	thrown := c.sched.parkSelf(func() { c.sched.removeFromRunnable(self) })
	c.sched.unmarkBlocked(self)
	self.state = taskRunning
	self.waitQueue = nil
	if thrown != nil {
		c.removeWaiter(self)
		return nil, thrown
	}
	result := self.chanResult
	self.chanResult = nil
	return result, nil
}

func (c *Channel) popFront(e *list.Element) {
	w := e.Value.(*chanWaiter)
	c.queue.Remove(e)
	delete(c.elems, w.task)
}

func (c *Channel) removeWaiter(t *Task) {
	if e, ok := c.elems[t]; ok {
		c.queue.Remove(e)
		delete(c.elems, t)
	}
}

// extract implements waitQueue: called by Scheduler.throw when t is killed
// or timed out while parked on this channel.
func (c *Channel) extract(t *Task) {
	if e, ok := c.elems[t]; ok {
		if w := e.Value.(*chanWaiter); w.timeout != nil {
			w.timeout.Stop()
		}
	}
	c.removeWaiter(t)
}
