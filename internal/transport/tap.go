package transport

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
)

// Tap mirrors link traffic to an append-only log. Write failures are
// reported once and otherwise ignored; the protocol never waits on the tap.
type Tap struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	failed bool
}

func NewTap(w io.Writer) *Tap {
	return &Tap{w: w}
}

// OpenTap opens (or creates) path for appending.
func OpenTap(path string) (*Tap, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("transport: open wire log: %w", err)
	}
	return &Tap{w: f, closer: f}, nil
}

func (t *Tap) Read(requested int, got []byte) {
	t.printf("read:  %5d %5d %q\n", requested, len(got), got)
}

func (t *Tap) ReadLine(got []byte) {
	t.printf("readl:       %5d %q\n", len(got), got)
}

func (t *Tap) Write(p []byte) {
	t.printf("write: %5d       %q\n", len(p), p)
}

func (t *Tap) printf(format string, args ...any) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failed {
		return
	}
	if _, err := fmt.Fprintf(t.w, format, args...); err != nil {
		t.failed = true
		log.Warn().Err(err).Msg("wire log disabled after write failure")
	}
}

func (t *Tap) Close() error {
	if t == nil || t.closer == nil {
		return nil
	}
	return t.closer.Close()
}
