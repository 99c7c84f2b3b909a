//go:build linux && !ringsel_select

package selector

import (
	"errors"
	"time"

	"golang.org/x/sys/unix"
)

func newPlatformSelector() (platformSelector, error) {
	return newEpollSelector()
}

// epollSelector is the Linux backend: a single epoll instance plus a
// scratch buffer epoll_wait overwrites in place on every poll.
type epollSelector struct {
	epfd       int
	events     []unix.EpollEvent
	registered map[int]struct{}
}

func newEpollSelector() (*epollSelector, error) {
	// The size hint is ignored by modern kernels; epoll_create1(0) is
	// the non-deprecated equivalent of epoll_create(1024).
	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, err
	}
	return &epollSelector{
		epfd:       epfd,
		events:     make([]unix.EpollEvent, 1024),
		registered: make(map[int]struct{}),
	}, nil
}

func maskToEpoll(mask EventMask) uint32 {
	var ev uint32
	if mask.Has(Readable) {
		ev |= unix.EPOLLIN
	}
	if mask.Has(Writable) {
		ev |= unix.EPOLLOUT
	}
	if mask.Has(Error) {
		ev |= unix.EPOLLERR
	}
	if mask.Has(Hup) {
		ev |= unix.EPOLLHUP | unix.EPOLLRDHUP
	}
	return ev
}

func epollToMask(ev uint32) EventMask {
	var mask EventMask
	if ev&unix.EPOLLIN != 0 {
		mask |= Readable
	}
	if ev&unix.EPOLLOUT != 0 {
		mask |= Writable
	}
	if ev&unix.EPOLLERR != 0 {
		mask |= Error
	}
	if ev&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0 {
		mask |= Hup
	}
	return mask
}

func (s *epollSelector) register(fd int, mask EventMask) error {
	if _, ok := s.registered[fd]; ok {
		return ErrAlreadyRegistered
	}
	ev := &unix.EpollEvent{Events: maskToEpoll(mask), Fd: int32(fd)}
	if err := unix.EpollCtl(s.epfd, unix.EPOLL_CTL_ADD, fd, ev); err != nil {
		return err
	}
	s.registered[fd] = struct{}{}
	return nil
}

func (s *epollSelector) reregister(fd int, mask EventMask) error {
	if _, ok := s.registered[fd]; !ok {
		return ErrNotRegistered
	}
	ev := &unix.EpollEvent{Events: maskToEpoll(mask), Fd: int32(fd)}
	return unix.EpollCtl(s.epfd, unix.EPOLL_CTL_MOD, fd, ev)
}

func (s *epollSelector) deregister(fd int) error {
	if _, ok := s.registered[fd]; !ok {
		return ErrNotRegistered
	}
	delete(s.registered, fd)
	// Linux ignores the event argument for EPOLL_CTL_DEL, but kernels
	// before 2.6.9 required a non-nil pointer; pass one for safety.
	return unix.EpollCtl(s.epfd, unix.EPOLL_CTL_DEL, fd, &unix.EpollEvent{})
}

func (s *epollSelector) pollTimeout(dt time.Duration) ([]Fired, error) {
	msec := -1
	if dt >= 0 {
		// Truncating rather than rounding up means a caller-specified
		// timeout under 1ms degenerates to a non-blocking poll (msec=0)
		// instead of waiting slightly longer than asked; acceptable
		// since epoll_wait's own granularity is a millisecond anyway.
		msec = int(dt / time.Millisecond)
	}

	var n int
	var err error
	for {
		n, err = unix.EpollWait(s.epfd, s.events, msec)
		if err == nil || !errors.Is(err, unix.EINTR) {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	fired := make([]Fired, n)
	for i := 0; i < n; i++ {
		fired[i] = Fired{
			Fd:   int(s.events[i].Fd),
			Mask: epollToMask(s.events[i].Events),
		}
	}
	return fired, nil
}

func (s *epollSelector) close() error {
	return unix.Close(s.epfd)
}
