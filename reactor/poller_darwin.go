//go:build darwin

package reactor

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// kqueuePoller implements poller using kqueue, grounded on the teacher's
// FastPoller (eventloop/poller_darwin.go) — simplified to a map-indexed
// registration table rather than a preallocated direct-index slice.
type kqueuePoller struct {
	kq int

	mu  sync.Mutex
	fds map[int]func()

	wakeIdent uintptr
}

func newPoller() (poller, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	unix.CloseOnExec(kq)
	p := &kqueuePoller{kq: kq, fds: make(map[int]func()), wakeIdent: 1}

	changes := []unix.Kevent_t{{
		Ident:  p.wakeIdent,
		Filter: unix.EVFILT_USER,
		Flags:  unix.EV_ADD | unix.EV_CLEAR,
	}}
	if _, err := unix.Kevent(kq, changes, nil, nil); err != nil {
		_ = unix.Close(kq)
		return nil, err
	}
	return p, nil
}

func (p *kqueuePoller) Register(fd int, dir Direction, cb func()) error {
	p.mu.Lock()
	p.fds[fd] = cb
	p.mu.Unlock()

	var changes []unix.Kevent_t
	if dir&Read != 0 {
		changes = append(changes, unix.Kevent_t{Ident: uintptr(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_ADD | unix.EV_ONESHOT})
	}
	if dir&Write != 0 {
		changes = append(changes, unix.Kevent_t{Ident: uintptr(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_ADD | unix.EV_ONESHOT})
	}
	if _, err := unix.Kevent(p.kq, changes, nil, nil); err != nil {
		p.mu.Lock()
		delete(p.fds, fd)
		p.mu.Unlock()
		return err
	}
	return nil
}

func (p *kqueuePoller) Unregister(fd int) error {
	p.mu.Lock()
	delete(p.fds, fd)
	p.mu.Unlock()
	changes := []unix.Kevent_t{
		{Ident: uintptr(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE},
		{Ident: uintptr(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE},
	}
	_, _ = unix.Kevent(p.kq, changes, nil, nil)
	return nil
}

func (p *kqueuePoller) Poll(timeout time.Duration, enqueue func(Callback)) error {
	var ts *unix.Timespec
	if timeout > 0 {
		t := unix.NsecToTimespec(int64(timeout))
		ts = &t
	} else {
		t := unix.NsecToTimespec(0)
		ts = &t
	}

	var events [256]unix.Kevent_t
	n, err := unix.Kevent(p.kq, nil, events[:], ts)
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return err
	}

	for i := 0; i < n; i++ {
		if events[i].Filter == unix.EVFILT_USER {
			continue
		}
		fd := int(events[i].Ident)
		p.mu.Lock()
		cb := p.fds[fd]
		p.mu.Unlock()
		if cb != nil {
			enqueue(Callback(cb))
		}
	}
	return nil
}

func (p *kqueuePoller) Wake() {
	changes := []unix.Kevent_t{{
		Ident:  p.wakeIdent,
		Filter: unix.EVFILT_USER,
		Fflags: unix.NOTE_TRIGGER,
	}}
	_, _ = unix.Kevent(p.kq, changes, nil, nil)
}

func (p *kqueuePoller) Close() error {
	return unix.Close(p.kq)
}

func (p *kqueuePoller) Registrations() int {
	p.mu.Lock()
	n := len(p.fds)
	p.mu.Unlock()
	return n
}
