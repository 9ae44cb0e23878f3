package channel

import (
	"bytes"
	"strconv"

	"github.com/danmuck/wavebroker/internal/protocol/frame"
)

// StatusMessage is a structured report pushed by the device:
// 0x04 DDDDD|T:T:T|TAG:C> text
type StatusMessage struct {
	Seq       int
	Timestamp string
	Tag       string
	Channel   Channel
	Code      int
	Body      string
}

// ParseStatus tokenizes f against the status grammar. ok is false for any
// deviation; the caller then treats the frame as raw.
func ParseStatus(f frame.Frame) (StatusMessage, bool) {
	if f.Command != frame.CommandStatus {
		return StatusMessage{}, false
	}
	t := tokenizer{buf: f.Payload}

	seqDigits, ok := t.digits(5)
	if !ok || !t.expect('|') {
		return StatusMessage{}, false
	}
	seq, _ := strconv.Atoi(string(seqDigits))

	start := t.pos
	for i := 0; i < 3; i++ {
		if _, ok := t.signed(); !ok {
			return StatusMessage{}, false
		}
		if i < 2 && !t.expect(':') {
			return StatusMessage{}, false
		}
	}
	stamp := string(t.buf[start:t.pos])
	if !t.expect('|') {
		return StatusMessage{}, false
	}

	tag, ok := t.upper()
	if !ok || !t.expect(':') {
		return StatusMessage{}, false
	}
	code, ok := t.signed()
	if !ok || !t.expect('>') || !t.expect(' ') {
		return StatusMessage{}, false
	}
	body := t.buf[t.pos:]
	if i := bytes.IndexByte(body, '\n'); i >= 0 {
		body = body[:i]
	}
	body = bytes.TrimRight(body, "\x00\r")

	msg := StatusMessage{
		Seq:       seq,
		Timestamp: stamp,
		Tag:       string(tag),
		Code:      code,
		Body:      string(body),
	}
	msg.Channel = Raw
	if ch, ok := ByTag(msg.Tag); ok {
		msg.Channel = ch
	}
	return msg, true
}

// management directives echoed back by the device, e.g. "[0:2]MID_DIAGMGR,0xFF"
var managementPrefixes = [][]byte{
	[]byte("[0:2]"),
	[]byte("MID_"),
}

// IsManagement reports frames carrying management subscription traffic.
func IsManagement(f frame.Frame) bool {
	if f.Command != frame.CommandStatus {
		return false
	}
	for _, p := range managementPrefixes {
		if bytes.HasPrefix(f.Payload, p) {
			return true
		}
	}
	return false
}

type tokenizer struct {
	buf []byte
	pos int
}

func (t *tokenizer) expect(b byte) bool {
	if t.pos >= len(t.buf) || t.buf[t.pos] != b {
		return false
	}
	t.pos++
	return true
}

func (t *tokenizer) digits(n int) ([]byte, bool) {
	if len(t.buf)-t.pos < n {
		return nil, false
	}
	for _, c := range t.buf[t.pos : t.pos+n] {
		if c < '0' || c > '9' {
			return nil, false
		}
	}
	out := t.buf[t.pos : t.pos+n]
	t.pos += n
	return out, true
}

func (t *tokenizer) signed() (int, bool) {
	start := t.pos
	if t.pos < len(t.buf) && t.buf[t.pos] == '-' {
		t.pos++
	}
	digitsStart := t.pos
	for t.pos < len(t.buf) && t.buf[t.pos] >= '0' && t.buf[t.pos] <= '9' {
		t.pos++
	}
	if t.pos == digitsStart {
		t.pos = start
		return 0, false
	}
	v, err := strconv.Atoi(string(t.buf[start:t.pos]))
	if err != nil {
		t.pos = start
		return 0, false
	}
	return v, true
}

func (t *tokenizer) upper() ([]byte, bool) {
	start := t.pos
	for t.pos < len(t.buf) && t.buf[t.pos] >= 'A' && t.buf[t.pos] <= 'Z' {
		t.pos++
	}
	if t.pos == start {
		return nil, false
	}
	return t.buf[start:t.pos], true
}

// FormatStatus renders a status payload; it is the inverse of ParseStatus.
func FormatStatus(m StatusMessage) frame.Frame {
	var b bytes.Buffer
	seq := strconv.Itoa(m.Seq)
	for i := len(seq); i < 5; i++ {
		b.WriteByte('0')
	}
	b.WriteString(seq)
	b.WriteByte('|')
	b.WriteString(m.Timestamp)
	b.WriteByte('|')
	b.WriteString(m.Tag)
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(m.Code))
	b.WriteString("> ")
	b.WriteString(m.Body)
	return frame.Frame{Command: frame.CommandStatus, Payload: b.Bytes()}
}
