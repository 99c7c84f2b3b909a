// {{{ Copyright (c) Paul R. Tagliamonte <paultag@gmail.com> 2020-2021
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE. }}}

package ring

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// state is the Ring's disconnect state, guarded by sharedRing.lock.
type state int

const (
	stateOpen state = iota
	stateDisconnected
)

// sharedRing is the data both a Producer and a Consumer hold a pointer
// to. Only Producer methods touch head; only Consumer methods touch
// tail; other goroutines only read them. Cache-line padding keeps
// head, tail, and the lock from bouncing between cores in the steady
// state.
type sharedRing struct {
	_pad0 [64]byte

	cap  uintptr // capacity in bytes; always a power of two.
	mask uintptr // cap - 1.
	m    *mapping
	shm  *sharedMemory

	lock  sync.Mutex
	cond  sync.Cond
	state state

	_pad1 [64]byte
	head  atomic.Uintptr

	_pad2 [64]byte
	tail  atomic.Uintptr

	// refs tracks how many of {Producer, Consumer} are still open, so
	// the backing mapping and shm fd are released exactly once, on the
	// second Close.
	refs atomic.Int32
}

// New allocates a ring of at least cap bytes (rounded up to a
// page-aligned power of two) and returns its two endpoints. A cap of
// 0 is legal and yields one page, rounded up to the next power of two.
func New(cap uint) (*Producer, *Consumer, error) {
	aligned := pageAligned(uintptr(cap))

	shm, err := newSharedMemory(aligned)
	if err != nil {
		return nil, nil, err
	}

	m, err := doubleMap(shm.fd, aligned)
	if err != nil {
		shm.close()
		return nil, nil, err
	}

	r := &sharedRing{
		cap:   aligned,
		mask:  aligned - 1,
		m:     m,
		shm:   shm,
		state: stateOpen,
	}
	r.cond.L = &r.lock
	r.refs.Store(2)

	p := &Producer{r: r}
	c := &Consumer{r: r}
	runtime.SetFinalizer(p, (*Producer).finalize)
	runtime.SetFinalizer(c, (*Consumer).finalize)
	return p, c, nil
}

func (r *sharedRing) capacity() uintptr {
	return r.cap
}

// release decrements the shared refcount and, on the final release,
// tears down the mapping and shm descriptor. Each endpoint must call it
// at most once: Close guards it with the endpoint's closed flag (and
// finalize goes through Close), so the refcount reaches zero only after
// both endpoints have closed.
func (r *sharedRing) release() error {
	if r.refs.Add(-1) != 0 {
		return nil
	}
	err := r.m.close()
	if shmErr := r.shm.close(); err == nil {
		err = shmErr
	}
	return err
}

// disconnect marks the ring Disconnected and wakes every waiter so it
// can re-check its own predicate and return. Called when either
// endpoint closes; Disconnected is sticky (spec invariant 5): once
// set, it is never cleared.
func (r *sharedRing) disconnect() {
	r.lock.Lock()
	r.state = stateDisconnected
	r.cond.Broadcast()
	r.lock.Unlock()
}

// wait blocks until ready reports true or the ring disconnects. ready
// is re-evaluated under r.lock both before the first Wait and after
// every wakeup, so a transfer that completes between the caller's
// failed tryWrite/tryRead and this call is never missed: unblock
// cannot finish its Broadcast until this goroutine has either observed
// the updated head/tail here or is already parked in cond.Wait, so the
// two can't interleave into a dropped wakeup the way a plain
// "set a flag, wait for the flag" protocol can when the flag is shared
// between two independent wait directions.
func (r *sharedRing) wait(ready func() bool) state {
	r.lock.Lock()
	defer r.lock.Unlock()
	for !ready() {
		if r.state == stateDisconnected {
			return stateDisconnected
		}
		r.cond.Wait()
	}
	return r.state
}

// unblock wakes every goroutine parked in wait after a transfer moved
// head or tail. Broadcast rather than Signal, since a single write can
// be what a blocked reader is waiting on and vice versa; there is at
// most one waiter per direction, so waking both and letting each
// re-check its own predicate is cheap.
func (r *sharedRing) unblock() {
	r.lock.Lock()
	r.cond.Broadcast()
	r.lock.Unlock()
}

// vim: foldmethod=marker
