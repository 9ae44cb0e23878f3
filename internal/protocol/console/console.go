// Package console extracts debug text from escape-delimited fragments:
// ESC STX <text> ) ESC ETX.
package console

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/danmuck/wavebroker/internal/protocol"
)

const (
	ESC byte = 0x1B
	STX byte = 0x02
	ETX byte = 0x03

	// MaxFragment bounds how much is buffered while looking for ESC ETX.
	MaxFragment = 64 * 1024
)

var (
	envOpen  = []byte{ESC, STX}
	envClose = []byte{ESC, ETX}

	ErrBadEnvelope = fmt.Errorf("%w: console: fragment does not start with ESC STX", protocol.ErrFraming)
	ErrTooLong     = fmt.Errorf("%w: console: fragment exceeds %d bytes", protocol.ErrFraming, MaxFragment)
	ErrIncomplete  = errors.New("console: incomplete fragment")
)

// Extract parses one fragment at the start of buf. It returns the inner text,
// the number of bytes the envelope occupied, and ErrIncomplete when more
// input is needed.
func Extract(buf []byte) ([]byte, int, error) {
	if len(buf) == 0 || buf[0] != ESC {
		return nil, 0, ErrBadEnvelope
	}
	if len(buf) < 2 {
		return nil, 0, ErrIncomplete
	}
	if buf[1] != STX {
		return nil, 0, ErrBadEnvelope
	}
	end := bytes.Index(buf[2:], envClose)
	if end < 0 {
		if len(buf) > MaxFragment {
			return nil, 0, ErrTooLong
		}
		return nil, 0, ErrIncomplete
	}
	inner := buf[2 : 2+end]
	consumed := 2 + end + len(envClose)
	return Text(inner), consumed, nil
}

// Text strips the closing parenthesis marker and trailing whitespace.
func Text(inner []byte) []byte {
	out := bytes.TrimRight(inner, " \t\r\n")
	out = bytes.TrimSuffix(out, []byte(")"))
	out = bytes.TrimRight(out, " \t\r\n")
	cp := make([]byte, len(out))
	copy(cp, out)
	return cp
}

// Wrap builds a fragment around text.
func Wrap(text string) []byte {
	buf := make([]byte, 0, len(text)+5)
	buf = append(buf, envOpen...)
	buf = append(buf, text...)
	buf = append(buf, ')')
	buf = append(buf, envClose...)
	return buf
}
