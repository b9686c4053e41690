package reactor

import (
	"container/heap"
	"sync/atomic"
	"time"
)

// timerEntry is one scheduled firing, grounded on the teacher's timerHeap
// (eventloop/loop.go) — a min-heap ordered by absolute deadline.
type timerEntry struct {
	when       time.Time
	duration   time.Duration
	cb         Callback
	persistent bool
	canceled   atomic.Bool
	index      int
}

type timerHeap []*timerEntry

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].when.Before(h[j].when) }
func (h timerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *timerHeap) Push(x any)         { e := x.(*timerEntry); e.index = len(*h); *h = append(*h, e) }
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// TimerEvent is a registration that invokes cb once (or repeatedly, if
// persistent) after duration has elapsed.
type TimerEvent struct {
	r     *Reactor
	entry *timerEntry
}

// NewTimerEvent arms a timer against r firing cb after duration. If
// persistent, the timer re-arms itself for duration again after every firing
// until closed.
func NewTimerEvent(r *Reactor, duration time.Duration, cb Callback, persistent bool) *TimerEvent {
	e := &timerEntry{
		when:       time.Now().Add(duration),
		duration:   duration,
		cb:         cb,
		persistent: persistent,
	}
	r.mu.Lock()
	heap.Push(&r.timers, e)
	r.mu.Unlock()
	r.poller.Wake()
	return &TimerEvent{r: r, entry: e}
}

// Close cancels the timer. A timer already in flight (popped from the heap,
// queued as a Callback) still fires once more; Close only prevents future
// firings and removal from the heap is lazy (checked on pop).
func (t *TimerEvent) Close() error {
	t.entry.canceled.Store(true)
	return nil
}
