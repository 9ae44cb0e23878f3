// Package scanner classifies the next unit on a device link.
//
// One call to Next consumes exactly one unit: a text line, a binary frame or
// a debug fragment. The first byte selects the unit kind; each kind has its
// own reader in the dispatch table.
package scanner

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/danmuck/wavebroker/internal/observability"
	"github.com/danmuck/wavebroker/internal/protocol"
	"github.com/danmuck/wavebroker/internal/protocol/console"
	"github.com/danmuck/wavebroker/internal/protocol/frame"
)

type UnitKind int

const (
	UnitLine UnitKind = iota
	UnitFrame
	UnitDebug
)

func (k UnitKind) String() string {
	switch k {
	case UnitLine:
		return "line"
	case UnitFrame:
		return "frame"
	case UnitDebug:
		return "debug"
	default:
		return fmt.Sprintf("unit(%d)", int(k))
	}
}

// Unit is one classified piece of the byte stream.
type Unit struct {
	Kind UnitKind
	// Line holds the trimmed text of a UnitLine or UnitDebug.
	Line string
	// Frame holds the decoded UnitFrame.
	Frame frame.Frame
}

// Source is the subset of transport.Link the scanner drives.
type Source interface {
	ReadN(max int) ([]byte, error)
	ReadExact(n int) ([]byte, error)
	ReadLine() ([]byte, error)
	Unread(p []byte)
	Name() string
	SetTimeout(d time.Duration) error
}

type reader func(s *Scanner, first byte) (Unit, error)

// Scanner is a pull scanner bound to one Source. It is not safe for
// concurrent use.
type Scanner struct {
	src      Source
	dispatch map[byte]reader
}

func New(src Source) *Scanner {
	return &Scanner{
		src: src,
		dispatch: map[byte]reader{
			frame.StartMarker: readFrame,
			console.ESC:       readDebug,
		},
	}
}

// Next returns the next unit using the source's current read timeout. A
// timeout before the first byte returns protocol.ErrNoData; a timeout inside
// a unit is a framing error.
func (s *Scanner) Next() (Unit, error) {
	first, err := s.src.ReadN(1)
	if err != nil {
		return Unit{}, err
	}
	return s.finish(first)
}

// NextWithin waits at most wait for the first byte of a unit. Once a unit
// has started, every further read gets the full unit timeout, so a deadline
// only ever lands on a unit boundary.
func (s *Scanner) NextWithin(wait, unit time.Duration) (Unit, error) {
	if err := s.src.SetTimeout(wait); err != nil {
		return Unit{}, err
	}
	first, err := s.src.ReadN(1)
	if err != nil {
		return Unit{}, err
	}
	if len(first) > 0 {
		if err := s.src.SetTimeout(unit); err != nil {
			return Unit{}, err
		}
	}
	return s.finish(first)
}

func (s *Scanner) finish(first []byte) (Unit, error) {
	if len(first) == 0 {
		return Unit{}, protocol.ErrNoData
	}
	read, ok := s.dispatch[first[0]]
	if !ok {
		read = readLine
	}
	unit, err := read(s, first[0])
	if err != nil {
		if errors.Is(err, protocol.ErrFraming) {
			observability.RecordFramingError(s.src.Name())
		}
		return Unit{}, err
	}
	observability.RecordUnit(s.src.Name(), unit.Kind.String())
	return unit, nil
}

func readLine(s *Scanner, first byte) (Unit, error) {
	line := []byte{first}
	if first != '\n' {
		rest, err := s.src.ReadLine()
		if err != nil {
			return Unit{}, err
		}
		line = append(line, rest...)
	}
	return Unit{Kind: UnitLine, Line: string(bytes.TrimSpace(line))}, nil
}

func readFrame(s *Scanner, _ byte) (Unit, error) {
	lenBytes, err := s.src.ReadExact(2)
	if err != nil {
		return Unit{}, truncated("length", err)
	}
	n, err := frame.ParseLength(lenBytes)
	if err != nil {
		return Unit{}, err
	}
	body, err := s.src.ReadExact(frame.BodyLen(n))
	if err != nil {
		return Unit{}, truncated("body", err)
	}
	f, err := frame.DecodeBody(body)
	if err != nil {
		return Unit{}, err
	}
	return Unit{Kind: UnitFrame, Frame: f}, nil
}

func readDebug(s *Scanner, first byte) (Unit, error) {
	buf := []byte{first}
	for {
		text, consumed, err := console.Extract(buf)
		switch {
		case err == nil:
			s.src.Unread(buf[consumed:])
			return Unit{Kind: UnitDebug, Line: string(text)}, nil
		case !errors.Is(err, console.ErrIncomplete):
			return Unit{}, err
		}
		more, err := s.src.ReadN(256)
		if err != nil {
			return Unit{}, err
		}
		if len(more) == 0 {
			return Unit{}, truncated("debug fragment", protocol.ErrNoData)
		}
		buf = append(buf, more...)
	}
}

func truncated(what string, err error) error {
	if errors.Is(err, protocol.ErrNoData) {
		return fmt.Errorf("%w: %s truncated by timeout", protocol.ErrFraming, what)
	}
	return err
}
