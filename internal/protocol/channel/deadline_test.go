package channel

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danmuck/wavebroker/internal/protocol"
	"github.com/danmuck/wavebroker/internal/protocol/frame"
	"github.com/danmuck/wavebroker/internal/testutil/testlog"
	"github.com/danmuck/wavebroker/internal/transport"
)

type timedChunk struct {
	at   time.Duration
	data []byte
}

// timedPort releases each chunk at its offset from creation and blocks reads
// for at most the configured read timeout, like a serial port.
type timedPort struct {
	mu      sync.Mutex
	start   time.Time
	chunks  []timedChunk
	timeout time.Duration
}

func newTimedPort(chunks ...timedChunk) *timedPort {
	return &timedPort{start: time.Now(), chunks: chunks, timeout: time.Second}
}

func (p *timedPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	timeout := p.timeout
	p.mu.Unlock()
	deadline := time.Now().Add(timeout)
	for {
		p.mu.Lock()
		if len(p.chunks) > 0 && time.Since(p.start) >= p.chunks[0].at {
			n := copy(b, p.chunks[0].data)
			p.chunks[0].data = p.chunks[0].data[n:]
			if len(p.chunks[0].data) == 0 {
				p.chunks = p.chunks[1:]
			}
			p.mu.Unlock()
			return n, nil
		}
		p.mu.Unlock()
		if !time.Now().Before(deadline) {
			return 0, nil
		}
		time.Sleep(time.Millisecond)
	}
}

func (p *timedPort) Write(b []byte) (int, error) { return len(b), nil }

func (p *timedPort) SetReadTimeout(d time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timeout = d
	return nil
}

func (p *timedPort) ResetInputBuffer() error  { return nil }
func (p *timedPort) ResetOutputBuffer() error { return nil }
func (p *timedPort) Close() error             { return nil }

func TestReceiveLateFrameIsReadToTheEnd(t *testing.T) {
	testlog.Start(t)
	payload := make([]byte, 100)
	for i := range payload {
		payload[i] = byte(i)
	}
	raw, err := frame.Encode(frame.Frame{Command: frame.CommandFile, Payload: payload})
	require.NoError(t, err)

	// The header lands just before the deadline and the body well after it,
	// but within one read timeout of the header.
	port := newTimedPort(
		timedChunk{at: 190 * time.Millisecond, data: []byte("noise\r\n")},
		timedChunk{at: 195 * time.Millisecond, data: raw[:frame.HeaderLen]},
		timedChunk{at: 260 * time.Millisecond, data: raw[frame.HeaderLen:]},
	)
	d := NewDemux(transport.NewLink("command", port, nil), 0)

	m, err := d.Receive(Raw, 200*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, payload, m.Frame.Payload)

	line, err := d.Receive(CommandResponses, 200*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "noise", line.Line)
	assert.Zero(t, d.Pending(CommandResponses))
}

func TestReceiveDeadlineStillBoundsTheWait(t *testing.T) {
	testlog.Start(t)
	port := newTimedPort(timedChunk{at: 400 * time.Millisecond, data: []byte("late\r\n")})
	d := NewDemux(transport.NewLink("command", port, nil), 0)

	start := time.Now()
	_, err := d.Receive(CommandResponses, 100*time.Millisecond)
	assert.ErrorIs(t, err, protocol.ErrNoData)
	assert.Less(t, time.Since(start), 300*time.Millisecond)
}
