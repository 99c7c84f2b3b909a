package selector_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/samplelabs/ringsel/selector"
)

func newPipe(t *testing.T) (*os.File, *os.File) {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() {
		r.Close()
		w.Close()
	})
	return r, w
}

func TestSelector_ReadableAfterWrite(t *testing.T) {
	s, err := selector.New()
	require.NoError(t, err)
	defer s.Close()

	r, w := newPipe(t)
	rfd := int(r.Fd())
	require.NoError(t, s.Register(rfd, selector.Readable))

	fired, err := s.PollTimeout(100 * time.Millisecond)
	require.NoError(t, err)
	require.Empty(t, fired)

	_, err = w.Write([]byte("hello world"))
	require.NoError(t, err)

	fired, err = s.PollTimeout(100 * time.Millisecond)
	require.NoError(t, err)
	require.Len(t, fired, 1)
	require.Equal(t, rfd, fired[0].Fd)
	require.True(t, fired[0].Mask.Has(selector.Readable))
}

func TestSelector_TwoPipesDrain(t *testing.T) {
	s, err := selector.New()
	require.NoError(t, err)
	defer s.Close()

	r1, w1 := newPipe(t)
	r2, w2 := newPipe(t)
	fd1, fd2 := int(r1.Fd()), int(r2.Fd())
	require.NoError(t, s.Register(fd1, selector.Readable))
	require.NoError(t, s.Register(fd2, selector.Readable))

	_, err = w1.Write([]byte("a"))
	require.NoError(t, err)
	fired, err := s.PollTimeout(100 * time.Millisecond)
	require.NoError(t, err)
	require.Len(t, fired, 1)

	_, err = w2.Write([]byte("b"))
	require.NoError(t, err)
	fired, err = s.PollTimeout(100 * time.Millisecond)
	require.NoError(t, err)
	require.Len(t, fired, 2)

	buf := make([]byte, 1)
	_, err = r1.Read(buf)
	require.NoError(t, err)
	fired, err = s.PollTimeout(100 * time.Millisecond)
	require.NoError(t, err)
	require.Len(t, fired, 1)
	require.Equal(t, fd2, fired[0].Fd)
}

func TestSelector_DeregisterNarrowsPoll(t *testing.T) {
	s, err := selector.New()
	require.NoError(t, err)
	defer s.Close()

	r1, w1 := newPipe(t)
	r2, w2 := newPipe(t)
	fd1, fd2 := int(r1.Fd()), int(r2.Fd())
	require.NoError(t, s.Register(fd1, selector.Readable))
	require.NoError(t, s.Register(fd2, selector.Readable))

	_, err = w1.Write([]byte("a"))
	require.NoError(t, err)
	_, err = w2.Write([]byte("b"))
	require.NoError(t, err)

	require.NoError(t, s.Deregister(fd1))
	fired, err := s.PollTimeout(100 * time.Millisecond)
	require.NoError(t, err)
	require.Len(t, fired, 1)
	require.Equal(t, fd2, fired[0].Fd)

	require.NoError(t, s.Register(fd1, selector.Readable))
	require.NoError(t, s.Deregister(fd2))
	fired, err = s.PollTimeout(100 * time.Millisecond)
	require.NoError(t, err)
	require.Len(t, fired, 1)
	require.Equal(t, fd1, fired[0].Fd)
}

func TestSelector_ZeroTimeoutDoesNotBlock(t *testing.T) {
	s, err := selector.New()
	require.NoError(t, err)
	defer s.Close()

	r, _ := newPipe(t)
	require.NoError(t, s.Register(int(r.Fd()), selector.Readable))

	start := time.Now()
	fired, err := s.PollTimeout(0)
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.Empty(t, fired)
	require.Less(t, elapsed, 50*time.Millisecond)
}

func TestSelector_DoubleRegisterThenSingleDeregister(t *testing.T) {
	s, err := selector.New()
	require.NoError(t, err)
	defer s.Close()

	r, _ := newPipe(t)
	fd := int(r.Fd())
	require.NoError(t, s.Register(fd, selector.Readable))

	// Some backends reject a second Register outright; others would
	// silently clobber the first registration. Either behavior is
	// acceptable as long as a single Deregister leaves fd unregistered
	// and does not panic or double-close anything.
	_ = s.Register(fd, selector.Readable)

	require.NoError(t, s.Deregister(fd))
	require.ErrorIs(t, s.Deregister(fd), selector.ErrNotRegistered)
}

func TestSelector_FourPipeInterleaving(t *testing.T) {
	s, err := selector.New()
	require.NoError(t, err)
	defer s.Close()

	const n = 4
	var rs, ws [n]*os.File
	var fds [n]int
	for i := 0; i < n; i++ {
		rs[i], ws[i] = newPipe(t)
		fds[i] = int(rs[i].Fd())
		require.NoError(t, s.Register(fds[i], selector.Readable))
	}

	// Fire pipes 1 and 3 first, then 0 and 2; confirm the readiness set
	// tracks exactly what's pending regardless of registration order.
	_, err = ws[1].Write([]byte("x"))
	require.NoError(t, err)
	_, err = ws[3].Write([]byte("x"))
	require.NoError(t, err)

	fired, err := s.PollTimeout(100 * time.Millisecond)
	require.NoError(t, err)
	require.Len(t, fired, 2)
	seen := map[int]bool{}
	for _, f := range fired {
		seen[f.Fd] = true
	}
	require.True(t, seen[fds[1]])
	require.True(t, seen[fds[3]])

	buf := make([]byte, 1)
	_, err = rs[1].Read(buf)
	require.NoError(t, err)
	_, err = rs[3].Read(buf)
	require.NoError(t, err)

	_, err = ws[0].Write([]byte("x"))
	require.NoError(t, err)
	_, err = ws[2].Write([]byte("x"))
	require.NoError(t, err)

	fired, err = s.PollTimeout(100 * time.Millisecond)
	require.NoError(t, err)
	require.Len(t, fired, 2)
	seen = map[int]bool{}
	for _, f := range fired {
		seen[f.Fd] = true
	}
	require.True(t, seen[fds[0]])
	require.True(t, seen[fds[2]])
}

func TestSelector_WritableReportsImmediately(t *testing.T) {
	s, err := selector.New()
	require.NoError(t, err)
	defer s.Close()

	_, w := newPipe(t)
	require.NoError(t, s.Register(int(w.Fd()), selector.Writable))

	fired, err := s.PollTimeout(100 * time.Millisecond)
	require.NoError(t, err)
	require.Len(t, fired, 1)
	require.True(t, fired[0].Mask.Has(selector.Writable))
}
