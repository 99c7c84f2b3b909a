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
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// ErrNamesExhausted is returned when shm name generation could not
// find an unused name after shmMaxAttempts tries.
var ErrNamesExhausted = errors.New("ring: exhausted shared-memory names")

const shmMaxAttempts = 1 << 12 // 4096, per spec.

// shmDir is where this package creates its backing objects. On Linux,
// /dev/shm is the tmpfs glibc's shm_open itself targets, so opening a
// file there directly is functionally identical to shm_open/shm_unlink
// without requiring cgo. Platforms without a /dev/shm (anything that
// isn't Linux) fall back to os.TempDir, which is also tmpfs-backed on
// the BSDs and Darwin in the common case.
var shmDir = "/dev/shm"

func init() {
	if st, err := os.Stat(shmDir); err != nil || !st.IsDir() {
		shmDir = os.TempDir()
	}
}

// sharedMemory is a newly-created, already-unlinked shared-memory
// object truncated to a known size. Its fd keeps the backing pages
// alive until the fd is closed, even though the name is gone from the
// filesystem namespace by the time New returns.
type sharedMemory struct {
	fd int
}

// newSharedMemory creates a shared-memory object of size bytes under a
// randomly generated, collision-checked name, unlinks the name
// immediately, and returns the open descriptor.
func newSharedMemory(size uintptr) (*sharedMemory, error) {
	for attempt := 0; attempt < shmMaxAttempts; attempt++ {
		// name already starts with "/" (shmNamePrefix); shmDir never
		// ends in one, so a plain concatenation is the correct path.
		path := shmDir + randomShmName()

		fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT|unix.O_EXCL, 0o600)
		if err != nil {
			if errors.Is(err, unix.EEXIST) {
				continue
			}
			return nil, fmt.Errorf("ring: open shared-memory object: %w", err)
		}

		// Unlink immediately: the fd keeps the pages alive, and no
		// name should leak into the namespace if this process later
		// crashes (spec: "descriptor is unlinked immediately after
		// creation").
		if err := unix.Unlink(path); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("ring: unlink shared-memory object: %w", err)
		}

		if err := unix.Ftruncate(fd, int64(size)); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("ring: truncate shared-memory object: %w", err)
		}

		return &sharedMemory{fd: fd}, nil
	}
	return nil, ErrNamesExhausted
}

func (s *sharedMemory) close() error {
	if s.fd < 0 {
		return nil
	}
	err := unix.Close(s.fd)
	s.fd = -1
	return err
}

// vim: foldmethod=marker
