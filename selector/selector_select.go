//go:build ringsel_select || (!linux && !darwin && !dragonfly && !freebsd && !netbsd && !openbsd)

package selector

import (
	"errors"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

func newPlatformSelector() (platformSelector, error) {
	return newSelectSelector(), nil
}

// selectSelector is the portable fallback backend, built on select(2).
// It trades scalability (FD_SETSIZE, O(maxfd) scans) for running
// anywhere x/sys/unix exposes Select and an fd_set layout.
type selectSelector struct {
	maxfd int
	rfds  unix.FdSet
	wfds  unix.FdSet
}

func newSelectSelector() *selectSelector {
	return &selectSelector{}
}

// fdSetBytes returns the Bits array of set reinterpreted as a byte
// slice, so a single bit-twiddling implementation works regardless of
// whether a given platform's unix.FdSet packs bits into int32 or
// int64 words.
func fdSetBytes(set *unix.FdSet) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(&set.Bits[0])), len(set.Bits)*int(unsafe.Sizeof(set.Bits[0])))
}

func fdSet(set *unix.FdSet, fd int) {
	b := fdSetBytes(set)
	b[fd/8] |= 1 << uint(fd%8)
}

func fdClr(set *unix.FdSet, fd int) {
	b := fdSetBytes(set)
	b[fd/8] &^= 1 << uint(fd%8)
}

func fdIsSet(set *unix.FdSet, fd int) bool {
	b := fdSetBytes(set)
	return b[fd/8]&(1<<uint(fd%8)) != 0
}

// findMax returns the highest fd still present in set, searching
// backwards from prevMax down to and including 0.
func findMax(set *unix.FdSet, prevMax int) int {
	for i := prevMax; i >= 0; i-- {
		if fdIsSet(set, i) {
			return i
		}
	}
	return 0
}

func (s *selectSelector) register(fd int, mask EventMask) error {
	if mask.Has(Readable) {
		fdSet(&s.rfds, fd)
	}
	if mask.Has(Writable) {
		fdSet(&s.wfds, fd)
	}
	if fd > s.maxfd {
		s.maxfd = fd
	}
	return nil
}

func (s *selectSelector) reregister(fd int, mask EventMask) error {
	fdClr(&s.rfds, fd)
	fdClr(&s.wfds, fd)
	if err := s.register(fd, mask); err != nil {
		return err
	}
	// register only ever grows maxfd; if fd was the maximum and its new
	// mask left it unset in both sets, maxfd needs to shrink back down.
	if fd == s.maxfd && !fdIsSet(&s.rfds, fd) && !fdIsSet(&s.wfds, fd) {
		rmax := findMax(&s.rfds, fd)
		wmax := findMax(&s.wfds, fd)
		if rmax > wmax {
			s.maxfd = rmax
		} else {
			s.maxfd = wmax
		}
	}
	return nil
}

func (s *selectSelector) deregister(fd int) error {
	if !fdIsSet(&s.rfds, fd) && !fdIsSet(&s.wfds, fd) {
		return ErrNotRegistered
	}
	fdClr(&s.rfds, fd)
	fdClr(&s.wfds, fd)
	if fd == s.maxfd {
		rmax := findMax(&s.rfds, fd)
		wmax := findMax(&s.wfds, fd)
		if rmax > wmax {
			s.maxfd = rmax
		} else {
			s.maxfd = wmax
		}
	}
	return nil
}

func (s *selectSelector) pollTimeout(dt time.Duration) ([]Fired, error) {
	rfds := s.rfds
	wfds := s.wfds

	var tv *unix.Timeval
	if dt >= 0 {
		t := unix.NsecToTimeval(dt.Nanoseconds())
		tv = &t
	}

	for {
		_, err := unix.Select(s.maxfd+1, &rfds, &wfds, nil, tv)
		if err == nil {
			break
		}
		if errors.Is(err, unix.EINTR) {
			rfds = s.rfds
			wfds = s.wfds
			continue
		}
		return nil, err
	}

	fired := make([]Fired, 0, s.maxfd+1)
	for fd := 0; fd <= s.maxfd; fd++ {
		isRead := fdIsSet(&rfds, fd)
		isWrite := fdIsSet(&wfds, fd)
		if !isRead && !isWrite {
			continue
		}
		var mask EventMask
		if isRead {
			mask |= Readable
		}
		if isWrite {
			mask |= Writable
		}
		fired = append(fired, Fired{Fd: fd, Mask: mask})
	}
	return fired, nil
}

func (s *selectSelector) close() error {
	return nil
}
