package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/danmuck/wavebroker/internal/protocol"
)

const (
	StartMarker byte = 0x7F
	EndMarker   byte = 0x7E

	// HeaderLen covers the start marker and the little-endian length.
	HeaderLen = 3
	// Overhead is every byte of a frame that is not payload.
	Overhead = HeaderLen + 2

	MaxPayload = 0xFFFF
)

// Well-known command bytes.
const (
	CommandStatus byte = 0x04
	CommandFile   byte = 0x30
)

var (
	ErrPayloadTooLarge = errors.New("frame: payload too large")
	ErrBadStart        = fmt.Errorf("%w: frame: bad start marker", protocol.ErrFraming)
	ErrBadEnd          = fmt.Errorf("%w: frame: bad end marker", protocol.ErrFraming)
	ErrTruncated       = fmt.Errorf("%w: frame: truncated", protocol.ErrFraming)
	ErrEmptyBody       = fmt.Errorf("%w: frame: body missing command byte", protocol.ErrFraming)
)

// Frame is one binary unit: 0x7F | len:uint16-LE | cmd | payload[len] | 0x7E.
// The length counts payload bytes only.
type Frame struct {
	Command byte
	Payload []byte
}

// Encode renders f for the wire.
func Encode(f Frame) ([]byte, error) {
	if len(f.Payload) > MaxPayload {
		return nil, ErrPayloadTooLarge
	}
	buf := make([]byte, 0, Overhead+len(f.Payload))
	buf = append(buf, StartMarker)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(f.Payload)))
	buf = append(buf, f.Command)
	buf = append(buf, f.Payload...)
	buf = append(buf, EndMarker)
	return buf, nil
}

func WriteFrame(w io.Writer, f Frame) error {
	buf, err := Encode(f)
	if err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}

// BodyLen is the number of bytes that follow the header for a payload of
// length n: the command byte, the payload and the end marker.
func BodyLen(n uint16) int {
	return int(n) + 2
}

// ParseLength decodes the two length bytes that follow the start marker.
func ParseLength(b []byte) (uint16, error) {
	if len(b) != 2 {
		return 0, fmt.Errorf("%w: frame: length field is %d bytes", protocol.ErrFraming, len(b))
	}
	return binary.LittleEndian.Uint16(b), nil
}

// DecodeBody validates the end marker of a body read after the header and
// splits it into command and payload.
func DecodeBody(body []byte) (Frame, error) {
	if len(body) < 2 {
		return Frame{}, ErrEmptyBody
	}
	if body[len(body)-1] != EndMarker {
		return Frame{}, fmt.Errorf("%w: got 0x%02x", ErrBadEnd, body[len(body)-1])
	}
	payload := make([]byte, len(body)-2)
	copy(payload, body[1:len(body)-1])
	return Frame{Command: body[0], Payload: payload}, nil
}

// Decode parses exactly one complete frame from b.
func Decode(b []byte) (Frame, error) {
	if len(b) < Overhead {
		return Frame{}, ErrTruncated
	}
	if b[0] != StartMarker {
		return Frame{}, ErrBadStart
	}
	n, err := ParseLength(b[1:HeaderLen])
	if err != nil {
		return Frame{}, err
	}
	want := HeaderLen + BodyLen(n)
	if len(b) < want {
		return Frame{}, ErrTruncated
	}
	if len(b) > want {
		return Frame{}, fmt.Errorf("%w: frame: %d trailing bytes", protocol.ErrFraming, len(b)-want)
	}
	return DecodeBody(b[HeaderLen:])
}

// ReadFrame reads one frame from r, start marker included.
func ReadFrame(r io.Reader) (Frame, error) {
	var head [HeaderLen]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return Frame{}, ErrTruncated
		}
		return Frame{}, err
	}
	if head[0] != StartMarker {
		return Frame{}, ErrBadStart
	}
	n, err := ParseLength(head[1:])
	if err != nil {
		return Frame{}, err
	}
	body := make([]byte, BodyLen(n))
	if _, err := io.ReadFull(r, body); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return Frame{}, ErrTruncated
		}
		return Frame{}, err
	}
	return DecodeBody(body)
}
