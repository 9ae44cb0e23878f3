package protocol

import "errors"

var (
	// ErrNoData reports a receive that timed out with zero new bytes. It is a
	// normal outcome; callers decide whether to retry.
	ErrNoData = errors.New("protocol: no data")
	// ErrFraming reports a malformed unit on the wire. The current read is
	// abandoned and the stream is not resynchronized.
	ErrFraming = errors.New("protocol: framing error")
	// ErrUnexpectedResponse reports a response echoing the wrong command or opcode.
	ErrUnexpectedResponse = errors.New("protocol: unexpected response")
	// ErrProtocolSemantic reports a well-formed message missing an expected token.
	ErrProtocolSemantic = errors.New("protocol: semantic error")
)

// IsNoData reports whether err is (or wraps) ErrNoData.
func IsNoData(err error) bool {
	return errors.Is(err, ErrNoData)
}
