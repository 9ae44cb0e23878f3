// Package fakeport provides a scripted in-memory transport.Port.
package fakeport

import (
	"errors"
	"sync"
	"time"
)

var ErrClosed = errors.New("fakeport: closed")

// Port queues inbound bytes and records every write. Reads never block
// unless SimulateTimeout is set, in which case an empty read sleeps for the
// configured read timeout before returning 0, nil.
type Port struct {
	mu      sync.Mutex
	inbound []byte
	writes  [][]byte
	timeout time.Duration
	closed  bool

	// MaxRead caps the bytes handed out per Read to exercise reassembly.
	MaxRead int
	// SimulateTimeout makes empty reads wait out the read timeout.
	SimulateTimeout bool
	// OnWrite runs after each write is recorded, outside the lock. It may
	// call Feed to script a reply.
	OnWrite func(p []byte)

	Resets int
}

func New() *Port {
	return &Port{timeout: time.Second}
}

// Feed appends inbound bytes.
func (p *Port) Feed(chunks ...[]byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range chunks {
		p.inbound = append(p.inbound, c...)
	}
}

func (p *Port) FeedString(s string) {
	p.Feed([]byte(s))
}

func (p *Port) Read(b []byte) (int, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, ErrClosed
	}
	if len(p.inbound) == 0 {
		wait := p.timeout
		simulate := p.SimulateTimeout
		p.mu.Unlock()
		if simulate {
			time.Sleep(wait)
		}
		return 0, nil
	}
	n := len(b)
	if p.MaxRead > 0 && n > p.MaxRead {
		n = p.MaxRead
	}
	n = copy(b[:n], p.inbound)
	p.inbound = p.inbound[n:]
	p.mu.Unlock()
	return n, nil
}

func (p *Port) Write(b []byte) (int, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, ErrClosed
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	p.writes = append(p.writes, cp)
	hook := p.OnWrite
	p.mu.Unlock()
	if hook != nil {
		hook(cp)
	}
	return len(b), nil
}

func (p *Port) SetReadTimeout(t time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timeout = t
	return nil
}

func (p *Port) ReadTimeout() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.timeout
}

func (p *Port) ResetInputBuffer() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inbound = nil
	p.Resets++
	return nil
}

func (p *Port) ResetOutputBuffer() error {
	return nil
}

func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Writes returns a copy of every write so far.
func (p *Port) Writes() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]byte, len(p.writes))
	copy(out, p.writes)
	return out
}

// Pending reports inbound bytes not yet read.
func (p *Port) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inbound)
}
