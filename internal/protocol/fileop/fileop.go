// Package fileop encodes requests and decodes responses of the device's
// binary file and directory sub-protocol. Requests travel in frames with
// command 0x30: opcode, reserved zero byte, body. Responses echo 0x30 and
// opcode|0xE0, then status:int32, code1:uint16, code2:uint16 and the rest.
package fileop

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/danmuck/wavebroker/internal/protocol"
	"github.com/danmuck/wavebroker/internal/protocol/frame"
)

type Opcode byte

const (
	OpOpen Opcode = iota
	OpClose
	OpWrite
	OpRead
	OpDelete
	OpDirCreate
	OpDirDelete
	OpDirOpen
	OpDirRead
	OpDirClose
)

const (
	responseFlag = 0xE0
	resultLen    = 8

	// ChunkSize is the largest write body the device accepts.
	ChunkSize = 1500

	// OpenWriteAttr prefixes the path when opening a file for upload.
	OpenWriteAttr uint32 = 0x00000009
)

var opNames = [...]string{
	OpOpen:      "open",
	OpClose:     "close",
	OpWrite:     "write",
	OpRead:      "read",
	OpDelete:    "delete",
	OpDirCreate: "dir-create",
	OpDirDelete: "dir-delete",
	OpDirOpen:   "dir-open",
	OpDirRead:   "dir-read",
	OpDirClose:  "dir-close",
}

func (o Opcode) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("op(0x%02x)", byte(o))
}

var ErrShortResponse = fmt.Errorf("%w: fileop: response shorter than result header", protocol.ErrFraming)

// Result is the decoded reply to one request.
type Result struct {
	Status int32
	Code1  uint16
	Code2  uint16
	Rest   []byte
}

func (r Result) String() string {
	return fmt.Sprintf("status=%d code1=%d code2=%d rest=%d", r.Status, r.Code1, r.Code2, len(r.Rest))
}

// Codes reports whether the code pair equals (c1, c2).
func (r Result) Codes(c1, c2 uint16) bool {
	return r.Code1 == c1 && r.Code2 == c2
}

// Request builds the frame for op with body.
func Request(op Opcode, body []byte) frame.Frame {
	payload := make([]byte, 0, 2+len(body))
	payload = append(payload, byte(op), 0)
	payload = append(payload, body...)
	return frame.Frame{Command: frame.CommandFile, Payload: payload}
}

// ParseRequest splits a request frame; it is used by device simulators.
func ParseRequest(f frame.Frame) (Opcode, []byte, error) {
	if f.Command != frame.CommandFile || len(f.Payload) < 2 {
		return 0, nil, fmt.Errorf("%w: fileop: not a file request", protocol.ErrUnexpectedResponse)
	}
	return Opcode(f.Payload[0]), f.Payload[2:], nil
}

// Response builds the frame a device sends back for op.
func Response(op Opcode, res Result) frame.Frame {
	payload := make([]byte, 1+resultLen, 1+resultLen+len(res.Rest))
	payload[0] = byte(op) | responseFlag
	binary.LittleEndian.PutUint32(payload[1:5], uint32(res.Status))
	binary.LittleEndian.PutUint16(payload[5:7], res.Code1)
	binary.LittleEndian.PutUint16(payload[7:9], res.Code2)
	payload = append(payload, res.Rest...)
	return frame.Frame{Command: frame.CommandFile, Payload: payload}
}

// ResponseError reports a reply that does not echo the request's command and
// opcode.
type ResponseError struct {
	Op  Opcode
	Got []byte
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("fileop: invalid response for %s: % x", e.Op, e.Got)
}

func (e *ResponseError) Unwrap() error { return protocol.ErrUnexpectedResponse }

// DecodeResponse validates the echo and decodes the result.
func DecodeResponse(op Opcode, f frame.Frame) (Result, error) {
	if f.Command != frame.CommandFile || len(f.Payload) < 1 || f.Payload[0] != byte(op)|responseFlag {
		got := append([]byte{f.Command}, f.Payload...)
		if len(got) > 16 {
			got = got[:16]
		}
		return Result{}, &ResponseError{Op: op, Got: got}
	}
	body := f.Payload[1:]
	if len(body) < resultLen {
		return Result{}, ErrShortResponse
	}
	rest := make([]byte, len(body)-resultLen)
	copy(rest, body[resultLen:])
	return Result{
		Status: int32(binary.LittleEndian.Uint32(body[0:4])),
		Code1:  binary.LittleEndian.Uint16(body[4:6]),
		Code2:  binary.LittleEndian.Uint16(body[6:8]),
		Rest:   rest,
	}, nil
}

// PathBody encodes a NUL-terminated path.
func PathBody(path string) []byte {
	out := make([]byte, 0, len(path)+1)
	out = append(out, path...)
	return append(out, 0)
}

// OpenWriteBody encodes the upload open request: attribute word then path.
func OpenWriteBody(path string) []byte {
	out := make([]byte, 4, 4+len(path)+1)
	binary.LittleEndian.PutUint32(out, OpenWriteAttr)
	return append(out, PathBody(path)...)
}

// ParsePath extracts a NUL-terminated string from body.
func ParsePath(body []byte) (string, error) {
	i := bytes.IndexByte(body, 0)
	if i < 0 {
		return "", errors.New("fileop: path is not NUL-terminated")
	}
	return string(body[:i]), nil
}

// StatusError reports a negative status.
type StatusError struct {
	Op     Opcode
	Path   string
	Result Result
}

func (e *StatusError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("fileop: %s %s failed: %s", e.Op, e.Path, e.Result)
	}
	return fmt.Sprintf("fileop: %s failed: %s", e.Op, e.Result)
}

// Warning describes a soft mismatch on the secondary result codes. The
// device is known to report unexpected codes on successful operations, so
// warnings never abort.
type Warning struct {
	Op     Opcode
	Path   string
	Result Result
	// Want describes the expected result, e.g. "codes=(3,6)".
	Want string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s %s: got %s, want %s", w.Op, w.Path, w.Result, w.Want)
}
