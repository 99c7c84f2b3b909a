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

// Producer is the other shared owner of a Ring, exclusively permitted
// to advance head and write the region [head, head+cap-(head-tail)).
// A Producer is Send but not Sync: concurrent use of the same Producer
// from multiple goroutines is undefined.
type Producer struct {
	r      *sharedRing
	closed bool
}

// Capacity returns the ring's fixed byte capacity.
func (p *Producer) Capacity() int {
	return int(p.r.capacity())
}

// TryWrite is the non-blocking write: it copies as much of buf as
// currently fits and returns immediately, which may be 0 if the ring
// is full.
func (p *Producer) TryWrite(buf []byte) int {
	return p.r.tryWrite(buf)
}

// Write blocks until at least one byte can be written or the Consumer
// disconnects. It returns (n, true) on a successful transfer, or
// (0, false) as soon as the Consumer has disconnected.
func (p *Producer) Write(buf []byte) (int, bool) {
	for {
		p.r.lock.Lock()
		disconnected := p.r.state == stateDisconnected
		p.r.lock.Unlock()
		if disconnected {
			return 0, false
		}
		if n := p.r.tryWrite(buf); n > 0 {
			return n, true
		}
		if p.r.wait(p.r.writeReady) == stateDisconnected {
			return 0, false
		}
	}
}

// Close disconnects this Producer from its Consumer and releases this
// endpoint's share of the ring. It is safe to call more than once.
func (p *Producer) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.r.disconnect()
	return p.r.release()
}

func (p *Producer) finalize() {
	p.Close()
}

// vim: foldmethod=marker
