package sink

import (
	"fmt"
	"io"
	"sync"
)

// Writer prints one line per console message.
type Writer struct {
	mu     sync.Mutex
	w      io.Writer
	prefix string
}

func NewWriter(w io.Writer, prefix string) *Writer {
	return &Writer{w: w, prefix: prefix}
}

func (s *Writer) WriteLine(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.w, "%s%s\n", s.prefix, line)
	return err
}

// LineSink matches wave.Sink without importing it.
type LineSink interface {
	WriteLine(line string) error
}

// Tee forwards every line to each sink in order and stops at the first
// error.
type Tee []LineSink

func (t Tee) WriteLine(line string) error {
	for _, s := range t {
		if err := s.WriteLine(line); err != nil {
			return err
		}
	}
	return nil
}
