package ring

import (
	"bytes"
	"math/rand"
	"testing"
	"time"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// R1: capacity rounding and a full ring returns 0 from TryWrite.
func TestRing_CapacityAndFull(t *testing.T) {
	p, c, err := New(1 << 16)
	require.NoError(t, err)
	defer p.Close()
	defer c.Close()

	assert.Equal(t, 1<<16, p.Capacity())
	assert.Equal(t, 1<<16, c.Capacity())

	chunk := bytes.Repeat([]byte{0xAB}, 500)
	written := 0
	for {
		n := p.TryWrite(chunk)
		if n == 0 {
			break
		}
		written += n
	}
	assert.Equal(t, 1<<16, written)
	assert.Equal(t, 0, p.TryWrite(chunk))
}

// R4: ring(0) succeeds and rounds up to the page size.
func TestRing_ZeroCapacityRoundsToPage(t *testing.T) {
	p, c, err := New(0)
	require.NoError(t, err)
	defer p.Close()
	defer c.Close()

	assert.Equal(t, p.Capacity(), c.Capacity())
	assert.True(t, p.Capacity() > 0)
	assert.Equal(t, p.Capacity(), int(nextPowerOfTwo(uintptr(p.Capacity()))))
}

// Ring invariant 3: try_read on an empty ring returns 0.
func TestRing_EmptyTryReadReturnsZero(t *testing.T) {
	p, c, err := New(4096)
	require.NoError(t, err)
	defer p.Close()
	defer c.Close()

	buf := make([]byte, 16)
	assert.Equal(t, 0, c.TryRead(buf))
}

// Round-trip: a random blob smaller than cap survives TryWrite+TryRead intact.
func TestRing_RoundTrip(t *testing.T) {
	p, c, err := New(4096)
	require.NoError(t, err)
	defer p.Close()
	defer c.Close()

	src := make([]byte, 1000)
	rand.New(rand.NewSource(1)).Read(src)

	n := p.TryWrite(src)
	require.Equal(t, len(src), n)

	dst := make([]byte, len(src))
	n = c.TryRead(dst)
	require.Equal(t, len(src), n)
	assert.Equal(t, src, dst)
}

// Invariant 4: the last byte of the lower half (offset cap-1) and the
// last byte of the upper half (offset 2*cap-1) are the same physical
// byte, so a store through either address is visible through the other.
func TestRing_DoubleMappingAliases(t *testing.T) {
	p, c, err := New(4096)
	require.NoError(t, err)
	defer p.Close()
	defer c.Close()

	r := p.r
	base := r.m.ptr()
	cap := r.cap

	lowerLast := (*byte)(unsafe.Add(base, cap-1))
	upperLast := (*byte)(unsafe.Add(base, (cap<<1)-1))

	*lowerLast = 0x42
	assert.Equal(t, byte(0x42), *upperLast, "lower[cap-1] and upper[cap-1] must alias")

	*upperLast = 0x99
	assert.Equal(t, byte(0x99), *lowerLast, "write through the mirror must be visible in the lower half")
}

// R3: dropping the consumer while the producer is blocked in Write
// unblocks it within bounded time and returns ok=false.
func TestRing_ConsumerCloseUnblocksProducer(t *testing.T) {
	p, c, err := New(4096) // page-aligned to a single page; small enough to fill fast.
	require.NoError(t, err)
	defer p.Close()

	chunk := bytes.Repeat([]byte{1}, p.Capacity())
	require.Equal(t, p.Capacity(), p.TryWrite(chunk))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, ok := p.Write([]byte{2})
		assert.False(t, ok)
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, c.Close())

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("producer did not unblock after consumer closed")
	}
}

// Cross-goroutine byte-for-byte transfer through the blocking
// Write/Read in uneven chunk sizes (500-byte writes, 465-byte reads),
// mirroring examples/buffer.rs's usage pattern.
func TestRing_CrossGoroutineTransfer(t *testing.T) {
	p, c, err := New(1 << 14)
	require.NoError(t, err)
	defer p.Close()
	defer c.Close()

	const total = 1 << 20
	src := make([]byte, total)
	rand.New(rand.NewSource(7)).Read(src)

	done := make(chan struct{})
	go func() {
		defer close(done)
		off := 0
		for off < total {
			end := off + 500
			if end > total {
				end = total
			}
			n, ok := p.Write(src[off:end])
			if !ok {
				return
			}
			off += n
		}
		p.Close()
	}()

	dst := make([]byte, 0, total)
	buf := make([]byte, 465)
	for len(dst) < total {
		n, ok := c.Read(buf)
		if !ok {
			break
		}
		dst = append(dst, buf[:n]...)
	}
	<-done

	require.Len(t, dst, total)
	assert.True(t, bytes.Equal(src, dst))
}

// Invariant 2: 0 <= head - tail <= cap holds after arbitrary
// interleaved try_write/try_read traffic.
func TestRing_HeadTailInvariant(t *testing.T) {
	p, c, err := New(256)
	require.NoError(t, err)
	defer p.Close()
	defer c.Close()

	r := p.r
	rng := rand.New(rand.NewSource(3))
	buf := make([]byte, 64)
	for i := 0; i < 2000; i++ {
		if rng.Intn(2) == 0 {
			p.TryWrite(buf[:rng.Intn(len(buf))+1])
		} else {
			c.TryRead(buf[:rng.Intn(len(buf))+1])
		}
		head := r.head.Load()
		tail := r.tail.Load()
		require.True(t, head-tail <= r.cap)
	}
}
