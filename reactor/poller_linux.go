//go:build linux

package reactor

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// epollPoller implements poller using epoll, grounded on the teacher's
// FastPoller (eventloop/poller_linux.go) — simplified here to a map-indexed
// registration table, since this reactor does not need the direct-array
// fast path the teacher's single-digit-nanosecond budget demanded.
type epollPoller struct {
	epfd int

	mu  sync.Mutex
	fds map[int]func()

	wakeR, wakeW int
}

func newPoller() (poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	wakeFd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, err
	}
	p := &epollPoller{
		epfd:  epfd,
		fds:   make(map[int]func()),
		wakeR: wakeFd,
		wakeW: wakeFd,
	}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakeFd, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(wakeFd),
	}); err != nil {
		_ = unix.Close(epfd)
		_ = unix.Close(wakeFd)
		return nil, err
	}
	return p, nil
}

func epollEvents(dir Direction) uint32 {
	var e uint32
	if dir&Read != 0 {
		e |= unix.EPOLLIN
	}
	if dir&Write != 0 {
		e |= unix.EPOLLOUT
	}
	return e
}

func (p *epollPoller) Register(fd int, dir Direction, cb func()) error {
	p.mu.Lock()
	p.fds[fd] = cb
	p.mu.Unlock()

	ev := &unix.EpollEvent{Events: epollEvents(dir), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, ev); err != nil {
		p.mu.Lock()
		delete(p.fds, fd)
		p.mu.Unlock()
		return err
	}
	return nil
}

func (p *epollPoller) Unregister(fd int) error {
	p.mu.Lock()
	delete(p.fds, fd)
	p.mu.Unlock()
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (p *epollPoller) Poll(timeout time.Duration, enqueue func(Callback)) error {
	ms := int(timeout / time.Millisecond)
	if timeout > 0 && ms == 0 {
		ms = 1
	}
	if timeout <= 0 {
		ms = 0
	}

	var events [256]unix.EpollEvent
	n, err := unix.EpollWait(p.epfd, events[:], ms)
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return err
	}

	for i := 0; i < n; i++ {
		fd := int(events[i].Fd)
		if fd == p.wakeR {
			var buf [8]byte
			_, _ = unix.Read(p.wakeR, buf[:])
			continue
		}
		p.mu.Lock()
		cb := p.fds[fd]
		p.mu.Unlock()
		if cb != nil {
			enqueue(Callback(cb))
		}
	}
	return nil
}

func (p *epollPoller) Wake() {
	var one [8]byte
	one[0] = 1
	_, _ = unix.Write(p.wakeW, one[:])
}

func (p *epollPoller) Close() error {
	_ = unix.Close(p.wakeR)
	return unix.Close(p.epfd)
}

func (p *epollPoller) Registrations() int {
	p.mu.Lock()
	n := len(p.fds)
	p.mu.Unlock()
	return n
}
