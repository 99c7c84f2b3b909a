//go:build (darwin || dragonfly || freebsd || netbsd || openbsd) && !ringsel_select

package selector

import (
	"errors"
	"time"

	"golang.org/x/sys/unix"
)

func newPlatformSelector() (platformSelector, error) {
	return newKqueueSelector()
}

// kqueueSelector is the BSD/Darwin backend. A registration is modeled
// as two kevent entries per fd, one EVFILT_READ and one EVFILT_WRITE,
// enabled or disabled according to the requested mask; kqueue's
// EV_ADD is idempotent, so reregister just resubmits both.
type kqueueSelector struct {
	kqfd       int
	events     []unix.Kevent_t
	registered map[int]struct{}
}

func newKqueueSelector() (*kqueueSelector, error) {
	kqfd, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	return &kqueueSelector{
		kqfd:       kqfd,
		events:     make([]unix.Kevent_t, 1024),
		registered: make(map[int]struct{}),
	}, nil
}

func kqueueSubmit(kqfd int, changes []unix.Kevent_t) error {
	for {
		_, err := unix.Kevent(kqfd, changes, nil, nil)
		if err == nil || !errors.Is(err, unix.EINTR) {
			return err
		}
	}
}

func (s *kqueueSelector) register(fd int, mask EventMask) error {
	if _, ok := s.registered[fd]; ok {
		return ErrAlreadyRegistered
	}
	if err := s.apply(fd, mask); err != nil {
		return err
	}
	s.registered[fd] = struct{}{}
	return nil
}

func (s *kqueueSelector) reregister(fd int, mask EventMask) error {
	if _, ok := s.registered[fd]; !ok {
		return ErrNotRegistered
	}
	return s.apply(fd, mask)
}

func (s *kqueueSelector) apply(fd int, mask EventMask) error {
	readFlag := uint16(unix.EV_ADD | unix.EV_DISABLE)
	if mask.Has(Readable) {
		readFlag = unix.EV_ADD | unix.EV_ENABLE
	}
	writeFlag := uint16(unix.EV_ADD | unix.EV_DISABLE)
	if mask.Has(Writable) {
		writeFlag = unix.EV_ADD | unix.EV_ENABLE
	}

	changes := []unix.Kevent_t{
		{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: readFlag},
		{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: writeFlag},
	}
	return kqueueSubmit(s.kqfd, changes)
}

func (s *kqueueSelector) deregister(fd int) error {
	if _, ok := s.registered[fd]; !ok {
		return ErrNotRegistered
	}
	delete(s.registered, fd)
	changes := []unix.Kevent_t{
		{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE},
		{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE},
	}
	return kqueueSubmit(s.kqfd, changes)
}

func (s *kqueueSelector) pollTimeout(dt time.Duration) ([]Fired, error) {
	var ts *unix.Timespec
	if dt >= 0 {
		t := unix.NsecToTimespec(dt.Nanoseconds())
		ts = &t
	}

	var n int
	var err error
	for {
		n, err = unix.Kevent(s.kqfd, nil, s.events, ts)
		if err == nil || !errors.Is(err, unix.EINTR) {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	fired := make([]Fired, 0, n)
	for i := 0; i < n; i++ {
		ev := &s.events[i]
		var mask EventMask
		switch ev.Filter {
		case unix.EVFILT_READ:
			mask |= Readable
		case unix.EVFILT_WRITE:
			mask |= Writable
		}
		if ev.Flags&unix.EV_EOF != 0 {
			mask |= Hup
		}
		if ev.Flags&unix.EV_ERROR != 0 {
			mask |= Error
		}
		fired = append(fired, Fired{Fd: int(ev.Ident), Mask: mask})
	}
	return fired, nil
}

func (s *kqueueSelector) close() error {
	return unix.Close(s.kqfd)
}
