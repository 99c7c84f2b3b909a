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
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// mapping is a single anonymous reservation of 2*cap bytes, inside
// which two MAP_FIXED|MAP_SHARED mappings of the same shm descriptor
// are layered so that base[0:cap] and base[cap:2*cap] alias the same
// physical memory. Only mapping itself owns the munmap-on-close
// responsibility: the two inner fixed mappings are never unmapped on
// their own, since unmapping the outer 2*cap reservation releases them
// too.
type mapping struct {
	base uintptr
	size uintptr // cap, not 2*cap
}

// doubleMap reserves a 2*cap byte anonymous region and maps the shm
// descriptor fd twice inside it, back to back, so that any cap-byte
// slice starting at offset i (0 <= i < cap) is contiguous virtual
// memory whether or not it crosses the midpoint.
func doubleMap(fd int, cap uintptr) (*mapping, error) {
	reservation, err := mmapRaw(0, cap<<1,
		unix.PROT_NONE,
		unix.MAP_ANONYMOUS|unix.MAP_PRIVATE,
		-1, 0)
	if err != nil {
		return nil, fmt.Errorf("ring: reserve %d bytes: %w", cap<<1, err)
	}

	lower, err := mmapRaw(reservation, cap,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_FIXED|unix.MAP_SHARED,
		fd, 0)
	if err != nil {
		unmapRaw(reservation, cap<<1)
		return nil, fmt.Errorf("ring: map lower half: %w", err)
	}
	if lower != reservation {
		unmapRaw(reservation, cap<<1)
		return nil, fmt.Errorf("ring: kernel split our MAP_FIXED mapping")
	}

	upper, err := mmapRaw(reservation+cap, cap,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_FIXED|unix.MAP_SHARED,
		fd, 0)
	if err != nil {
		unmapRaw(reservation, cap<<1)
		return nil, fmt.Errorf("ring: map mirror half: %w", err)
	}
	if upper != lower+cap {
		unmapRaw(reservation, cap<<1)
		return nil, fmt.Errorf("ring: kernel split our mirror MAP_FIXED mapping")
	}

	return &mapping{base: reservation, size: cap}, nil
}

// close unmaps the entire 2*cap reservation in one call, which also
// releases the two inner fixed mappings layered on top of it.
func (m *mapping) close() error {
	if m.base == 0 {
		return nil
	}
	err := unmapRaw(m.base, m.size<<1)
	m.base = 0
	return err
}

// ptr returns a pointer to the start of the doubled mapping. Valid
// offsets for a cap-byte read/write span are [0, cap), and the bytes
// at ptr()[i] and ptr()[i+cap] always alias.
func (m *mapping) ptr() unsafe.Pointer {
	return unsafe.Pointer(m.base)
}

// pageAligned rounds cap up to a multiple of the system page size,
// then up again to the next power of two so mask := cap - 1 is a
// valid index mask. A cap of 0 still yields one page, rounded up.
func pageAligned(cap uintptr) uintptr {
	if cap == 0 {
		cap = 1
	}
	pagesize := uintptr(unix.Getpagesize())
	alloc := cap + (pagesize - 1)
	alloc -= alloc % pagesize
	return nextPowerOfTwo(alloc)
}

// nextPowerOfTwo returns the smallest power of two >= n. The source
// this ring's algorithm was ported from never makes this step
// explicit, but mask := cap-1 is only a valid modulo mask when cap is
// a power of two, so this port makes it one.
func nextPowerOfTwo(n uintptr) uintptr {
	if n == 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	n++
	return n
}

// mmapRaw is a thin wrapper around the raw mmap(2) syscall that, unlike
// unix.Mmap, accepts an explicit addr hint so MAP_FIXED placement is
// possible. unix.Mmap always passes addr=0, which can't express the
// double-mapping trick this package depends on.
func mmapRaw(addr, length uintptr, prot, flags, fd int, offset int64) (uintptr, error) {
	r0, _, errno := unix.Syscall6(unix.SYS_MMAP, addr, length,
		uintptr(prot), uintptr(flags), uintptr(fd), uintptr(offset))
	if errno != 0 {
		return 0, errno
	}
	return r0, nil
}

func unmapRaw(addr, length uintptr) error {
	_, _, errno := unix.Syscall(unix.SYS_MUNMAP, addr, length, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

// vim: foldmethod=marker
