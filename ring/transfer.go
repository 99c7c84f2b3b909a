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
	"unsafe"
)

// writeReady reports whether the ring currently has free space for the
// producer. Used as the predicate passed to wait by Producer.Write.
func (r *sharedRing) writeReady() bool {
	return r.cap-(r.head.Load()-r.tail.Load()) > 0
}

// readReady reports whether the ring currently has unread bytes for
// the consumer. Used as the predicate passed to wait by Consumer.Read.
func (r *sharedRing) readReady() bool {
	return r.head.Load()-r.tail.Load() > 0
}

// UNSAFE
//
// tryWrite is the non-blocking fast path: it copies as much of buf as
// fits into the free space between head and tail, publishes the new
// head with a Release store, and returns the number of bytes copied
// (possibly 0). It never waits for free space. The index arithmetic
// and the copy take no lock; only a non-zero transfer briefly takes
// r.lock, in unblock, to wake a waiting peer.
//
// The copy is a single straight memcpy with no wraparound branch: the
// double mapping means cap contiguous bytes starting at (head & mask)
// are always valid virtual memory, even when the span crosses the
// midpoint of the mapping.
func (r *sharedRing) tryWrite(buf []byte) int {
	head := r.head.Load()
	tail := r.tail.Load() // Acquire: synchronizes with the consumer's tail store.
	avail := r.cap - (head - tail)
	n := uintptr(len(buf))
	if n > avail {
		n = avail
	}
	if n == 0 {
		return 0
	}

	dst := unsafe.Slice((*byte)(unsafe.Add(r.m.ptr(), head&r.mask)), n)
	copy(dst, buf[:n])

	r.head.Store(head + n) // Release: publishes the bytes just copied.
	r.unblock()
	return int(n)
}

// UNSAFE
//
// tryRead is tryWrite's mirror: it copies as much of the unread region
// as fits into buf, publishes the new tail with a Release store, and
// returns the number of bytes copied (possibly 0). It never waits for
// data, and like tryWrite takes r.lock only in unblock after a non-zero
// transfer.
func (r *sharedRing) tryRead(buf []byte) int {
	tail := r.tail.Load()
	head := r.head.Load() // Acquire: synchronizes with the producer's head store.
	avail := head - tail
	n := uintptr(len(buf))
	if n > avail {
		n = avail
	}
	if n == 0 {
		return 0
	}

	src := unsafe.Slice((*byte)(unsafe.Add(r.m.ptr(), tail&r.mask)), n)
	copy(buf[:n], src)

	r.tail.Store(tail + n) // Release: publishes that this span is free again.
	r.unblock()
	return int(n)
}

// vim: foldmethod=marker
