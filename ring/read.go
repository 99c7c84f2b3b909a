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

// Consumer is one of the two shared owners of a Ring, exclusively
// permitted to advance tail and read the region [tail, head). A
// Consumer is Send but not Sync: concurrent use of the same Consumer
// from multiple goroutines is undefined.
type Consumer struct {
	r      *sharedRing
	closed bool
}

// Capacity returns the ring's fixed byte capacity.
func (c *Consumer) Capacity() int {
	return int(c.r.capacity())
}

// TryRead is the non-blocking read: it returns immediately with
// whatever is available, which may be 0 if the ring is empty.
func (c *Consumer) TryRead(buf []byte) int {
	return c.r.tryRead(buf)
}

// Read blocks until at least one byte is available or the Producer
// disconnects. It returns (n, true) on a successful transfer, or
// (0, false) once the Producer has disconnected and no more buffered
// bytes remain.
func (c *Consumer) Read(buf []byte) (int, bool) {
	for {
		if n := c.r.tryRead(buf); n > 0 {
			return n, true
		}
		if c.r.wait(c.r.readReady) == stateDisconnected {
			// The producer is gone, but bytes it wrote before
			// disconnecting may still be sitting in the ring; drain
			// them before reporting EOF.
			if n := c.r.tryRead(buf); n > 0 {
				return n, true
			}
			return 0, false
		}
	}
}

// Close disconnects this Consumer from its Producer and releases this
// endpoint's share of the ring. It is safe to call more than once.
func (c *Consumer) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.r.disconnect()
	return c.r.release()
}

func (c *Consumer) finalize() {
	c.Close()
}

// vim: foldmethod=marker
