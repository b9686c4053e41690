package reactor

import (
	"os"
	"os/signal"
	"sync/atomic"
)

// SignalEvent is a registration that invokes cb when signo is delivered to
// the process. If persistent, it remains armed after firing; otherwise it is
// a one-shot registration, disarmed on its first delivery.
type SignalEvent struct {
	r          *Reactor
	signo      os.Signal
	cb         Callback
	persistent bool
	canceled   atomic.Bool
}

// NewSignalEvent installs a handler for signo.
func NewSignalEvent(r *Reactor, signo os.Signal, cb Callback, persistent bool) *SignalEvent {
	ev := &SignalEvent{r: r, signo: signo, cb: cb, persistent: persistent}

	r.sigMu.Lock()
	if len(r.sigSubs[signo]) == 0 {
		signal.Notify(r.sigCh, signo)
	}
	r.sigSubs[signo] = append(r.sigSubs[signo], ev)
	r.sigMu.Unlock()

	r.poller.Wake()
	return ev
}

// Close removes the registration. A callback that Loop has already collected
// for this handler still runs; signals drained after Close do not fire it.
func (s *SignalEvent) Close() error {
	if !s.canceled.CompareAndSwap(false, true) {
		return nil
	}
	s.r.sigMu.Lock()
	defer s.r.sigMu.Unlock()
	subs := s.r.sigSubs[s.signo]
	for i, ev := range subs {
		if ev == s {
			s.r.sigSubs[s.signo] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(s.r.sigSubs[s.signo]) == 0 {
		delete(s.r.sigSubs, s.signo)
		signal.Stop(s.r.sigCh)
		for sig := range s.r.sigSubs {
			signal.Notify(s.r.sigCh, sig)
		}
	}
	return nil
}
