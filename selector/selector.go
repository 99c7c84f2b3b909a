package selector

import "time"

// platformSelector is implemented once per backend (epoll, kqueue,
// select); the public Selector type below is the single concrete type
// callers program against, matching spec's "consumers program to one
// interface" design note. Backend choice happens at build time via Go
// build tags on the files that define newPlatformSelector, never at
// runtime.
type platformSelector interface {
	register(fd int, mask EventMask) error
	reregister(fd int, mask EventMask) error
	deregister(fd int) error
	pollTimeout(timeout time.Duration) ([]Fired, error)
	close() error
}

// Selector owns a kernel event handle (epoll/kqueue fd, or an
// in-memory fd_set pair) and a scratch buffer for returned events. It
// is owned by a single goroutine: registration, polling, and
// deregistration are not synchronized against concurrent callers.
type Selector struct {
	backend platformSelector
}

// New creates a Selector using this build's selected backend.
func New() (*Selector, error) {
	backend, err := newPlatformSelector()
	if err != nil {
		return nil, err
	}
	return &Selector{backend: backend}, nil
}

// Register arms fd for the events in mask. fd must not already be
// registered with this Selector.
func (s *Selector) Register(fd int, mask EventMask) error {
	return s.backend.register(fd, mask)
}

// Reregister changes the mask on an already-registered fd. An empty
// mask is equivalent to Deregister: handled here rather than per
// backend, since neither the epoll nor the kqueue backend drops fd
// from its registered set on its own when handed a zero mask.
func (s *Selector) Reregister(fd int, mask EventMask) error {
	if mask == 0 {
		return s.backend.deregister(fd)
	}
	return s.backend.reregister(fd, mask)
}

// Deregister stops watching fd. It does not close fd: descriptors are
// external resources the Selector never owns.
func (s *Selector) Deregister(fd int) error {
	return s.backend.deregister(fd)
}

// Poll blocks until at least one event is ready and returns the fired
// set. Equivalent to PollTimeout(-1).
func (s *Selector) Poll() ([]Fired, error) {
	return s.backend.pollTimeout(-1)
}

// PollTimeout blocks until at least one event is ready or dt elapses,
// whichever comes first. A negative dt means block indefinitely.
func (s *Selector) PollTimeout(dt time.Duration) ([]Fired, error) {
	return s.backend.pollTimeout(dt)
}

// Close releases the underlying kernel handle. Registered descriptors
// are not closed; they are the caller's responsibility.
func (s *Selector) Close() error {
	return s.backend.close()
}
