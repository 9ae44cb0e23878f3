package console

import (
	"errors"
	"testing"

	"github.com/danmuck/wavebroker/internal/protocol"
)

func TestExtractSingleFragment(t *testing.T) {
	buf := Wrap("App started\r\nline two")
	text, n, err := Extract(buf)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if n != len(buf) {
		t.Fatalf("consumed %d of %d", n, len(buf))
	}
	if string(text) != "App started\r\nline two" {
		t.Fatalf("unexpected text: %q", text)
	}
}

func TestExtractLeavesResidual(t *testing.T) {
	first := Wrap("one")
	buf := append(append([]byte{}, first...), Wrap("two")[:4]...)
	text, n, err := Extract(buf)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if string(text) != "one" || n != len(first) {
		t.Fatalf("unexpected result text=%q n=%d", text, n)
	}
	if _, _, err := Extract(buf[n:]); !errors.Is(err, ErrIncomplete) {
		t.Fatalf("expected residual to be incomplete, got %v", err)
	}
}

func TestExtractRejectsBadEnvelope(t *testing.T) {
	_, _, err := Extract([]byte{ESC, 'x', 'y'})
	if !errors.Is(err, ErrBadEnvelope) || !errors.Is(err, protocol.ErrFraming) {
		t.Fatalf("expected framing error, got %v", err)
	}
}

func TestExtractWithoutParenthesis(t *testing.T) {
	buf := []byte{ESC, STX, 'h', 'i', '\n', ESC, ETX}
	text, _, err := Extract(buf)
	if err != nil || string(text) != "hi" {
		t.Fatalf("got %q, %v", text, err)
	}
}
