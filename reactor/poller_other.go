//go:build !linux && !darwin

package reactor

import (
	"sync"
	"time"
)

// genericPoller is a fallback for platforms without an epoll/kqueue
// implementation in this package. It records registrations and supports
// Wake, but Poll only waits for a wake-up or the timeout: it never checks
// fd readiness and never reports a registered fd as ready, so only timers
// and signals work on these platforms.
//
// TODO(reactor): add a Windows IOCP-backed poller, grounded on the teacher's
// poller_windows.go, instead of this fallback.
type genericPoller struct {
	mu    sync.Mutex
	fds   map[int]func()
	wakeC chan struct{}
}

func newPoller() (poller, error) {
	return &genericPoller{
		fds:   make(map[int]func()),
		wakeC: make(chan struct{}, 1),
	}, nil
}

func (p *genericPoller) Register(fd int, dir Direction, cb func()) error {
	p.mu.Lock()
	p.fds[fd] = cb
	p.mu.Unlock()
	return nil
}

func (p *genericPoller) Unregister(fd int) error {
	p.mu.Lock()
	delete(p.fds, fd)
	p.mu.Unlock()
	return nil
}

func (p *genericPoller) Poll(timeout time.Duration, enqueue func(Callback)) error {
	if timeout <= 0 {
		timeout = time.Millisecond
	}
	select {
	case <-p.wakeC:
	case <-time.After(timeout):
	}
	return nil
}

func (p *genericPoller) Wake() {
	select {
	case p.wakeC <- struct{}{}:
	default:
	}
}

func (p *genericPoller) Close() error {
	return nil
}

func (p *genericPoller) Registrations() int {
	p.mu.Lock()
	n := len(p.fds)
	p.mu.Unlock()
	return n
}
