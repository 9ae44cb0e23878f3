package transport

import (
	"bytes"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/wavebroker/internal/protocol"
)

const readChunk = 512

// Link is a buffered, timeout-aware view of a Port.
type Link struct {
	port    Port
	tap     *Tap
	id      string
	name    string
	timeout time.Duration
	buf     []byte
	scratch []byte
}

// NewLink wraps port. tap may be nil.
func NewLink(name string, port Port, tap *Tap) *Link {
	return &Link{
		port:    port,
		tap:     tap,
		id:      uuid.NewString(),
		name:    name,
		timeout: DefaultTimeout,
		scratch: make([]byte, readChunk),
	}
}

// Open opens a serial port and wraps it in a Link.
func Open(name string, cfg Config, tap *Tap) (*Link, error) {
	port, err := OpenPort(cfg)
	if err != nil {
		return nil, err
	}
	l := NewLink(name, port, tap)
	if cfg.Timeout > 0 {
		l.timeout = cfg.Timeout
	}
	if err := l.Flush(); err != nil {
		_ = port.Close()
		return nil, err
	}
	log.Debug().Str("link", name).Str("session", l.id).Str("address", cfg.Address).Int("baud", cfg.Baud).Msg("link opened")
	return l, nil
}

func (l *Link) ID() string   { return l.id }
func (l *Link) Name() string { return l.name }

func (l *Link) Timeout() time.Duration { return l.timeout }

// SetTimeout changes the per-read timeout.
func (l *Link) SetTimeout(d time.Duration) error {
	if d <= 0 {
		d = DefaultTimeout
	}
	if d == l.timeout {
		return nil
	}
	if err := l.port.SetReadTimeout(d); err != nil {
		return fmt.Errorf("transport: set read timeout: %w", err)
	}
	l.timeout = d
	return nil
}

// Buffered reports bytes already pulled from the port but not yet consumed.
func (l *Link) Buffered() int { return len(l.buf) }

func (l *Link) fill() (int, error) {
	n, err := l.port.Read(l.scratch)
	if n > 0 {
		l.buf = append(l.buf, l.scratch[:n]...)
	}
	if err != nil {
		return n, fmt.Errorf("transport: read %s: %w", l.name, err)
	}
	return n, nil
}

func (l *Link) take(n int) []byte {
	if n > len(l.buf) {
		n = len(l.buf)
	}
	out := make([]byte, n)
	copy(out, l.buf[:n])
	l.buf = l.buf[n:]
	return out
}

// ReadN returns up to max bytes. The result is empty when the read timeout
// elapses before any byte arrives.
func (l *Link) ReadN(max int) ([]byte, error) {
	if max <= 0 {
		return nil, nil
	}
	if len(l.buf) == 0 {
		if _, err := l.fill(); err != nil {
			return nil, err
		}
	}
	out := l.take(max)
	l.tap.Read(max, out)
	return out, nil
}

// ReadExact reads exactly n bytes. A read timeout with no progress yields the
// bytes gathered so far and ErrNoData.
func (l *Link) ReadExact(n int) ([]byte, error) {
	for len(l.buf) < n {
		got, err := l.fill()
		if err != nil {
			return nil, err
		}
		if got == 0 {
			out := l.take(len(l.buf))
			l.tap.Read(n, out)
			return out, protocol.ErrNoData
		}
	}
	out := l.take(n)
	l.tap.Read(n, out)
	return out, nil
}

// ReadLine reads through the next newline. On timeout it returns whatever
// arrived, possibly nothing.
func (l *Link) ReadLine() ([]byte, error) {
	for {
		if i := bytes.IndexByte(l.buf, '\n'); i >= 0 {
			out := l.take(i + 1)
			l.tap.ReadLine(out)
			return out, nil
		}
		got, err := l.fill()
		if err != nil {
			return nil, err
		}
		if got == 0 {
			out := l.take(len(l.buf))
			l.tap.ReadLine(out)
			return out, nil
		}
	}
}

// Unread pushes p back in front of the buffered input. The next read
// returns it first.
func (l *Link) Unread(p []byte) {
	if len(p) == 0 {
		return
	}
	buf := make([]byte, 0, len(p)+len(l.buf))
	buf = append(buf, p...)
	l.buf = append(buf, l.buf...)
}

// Write writes all of p.
func (l *Link) Write(p []byte) (int, error) {
	n, err := l.port.Write(p)
	l.tap.Write(p)
	if err != nil {
		return n, fmt.Errorf("transport: write %s: %w", l.name, err)
	}
	if n != len(p) {
		return n, fmt.Errorf("transport: short write on %s: %d of %d", l.name, n, len(p))
	}
	return n, nil
}

// Flush discards buffered input and pending output.
func (l *Link) Flush() error {
	l.buf = l.buf[:0]
	if err := l.port.ResetInputBuffer(); err != nil {
		return fmt.Errorf("transport: flush input: %w", err)
	}
	if err := l.port.ResetOutputBuffer(); err != nil {
		return fmt.Errorf("transport: flush output: %w", err)
	}
	return nil
}

func (l *Link) Close() error {
	log.Debug().Str("link", l.name).Str("session", l.id).Msg("link closed")
	return l.port.Close()
}
