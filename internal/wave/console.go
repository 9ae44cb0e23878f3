package wave

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/wavebroker/internal/protocol"
	"github.com/danmuck/wavebroker/internal/protocol/channel"
)

// consolePrime switches the secondary port into console mode.
const consolePrime = "AT+WINCOMM\r"

// Sink receives decoded console lines.
type Sink interface {
	WriteLine(line string) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(line string) error

func (f SinkFunc) WriteLine(line string) error { return f(line) }

// Console yields debug output, either from a dedicated console link or from
// the debug channel of a device's command link.
type Console struct {
	demux     *channel.Demux
	dedicated bool
	poll      time.Duration
}

// PrimeConsole puts a dedicated console link into console mode and drops
// anything it had buffered.
func PrimeConsole(link Link) error {
	if _, err := link.Write([]byte(consolePrime)); err != nil {
		return fmt.Errorf("wave: prime console: %w", err)
	}
	return link.Flush()
}

// NewConsole drains a dedicated console link. Plain text lines on that link
// are console output too.
func NewConsole(link Link, queueLimit int) *Console {
	return &Console{
		demux:     channel.NewDemux(link, queueLimit),
		dedicated: true,
		poll:      500 * time.Millisecond,
	}
}

// Console reads the debug channel of the command link.
func (d *Device) Console() *Console {
	return &Console{demux: d.demux, poll: 500 * time.Millisecond}
}

// SetPoll sets how long Run waits per receive before checking for
// cancellation.
func (c *Console) SetPoll(d time.Duration) {
	if d > 0 {
		c.poll = d
	}
}

func (c *Console) pop() (string, bool) {
	if m, ok := c.demux.TryPop(channel.Debug); ok {
		return m.Line, true
	}
	if !c.dedicated {
		return "", false
	}
	if m, ok := c.demux.TryPop(channel.CommandResponses); ok {
		return m.Line, true
	}
	return "", false
}

// Next returns one console line or protocol.ErrNoData after timeout.
func (c *Console) Next(timeout time.Duration) (string, error) {
	if !c.dedicated {
		m, err := c.demux.Receive(channel.Debug, timeout)
		return m.Line, err
	}
	deadline := time.Now().Add(timeout)
	for {
		if line, ok := c.pop(); ok {
			return line, nil
		}
		remaining := time.Until(deadline)
		if remaining < time.Millisecond {
			return "", protocol.ErrNoData
		}
		if err := c.demux.Poll(remaining, timeout); err != nil {
			return "", err
		}
		for _, m := range c.demux.Drain(channel.Raw) {
			log.Trace().Uint8("cmd", m.Frame.Command).Int("len", len(m.Frame.Payload)).Msg("frame on console link ignored")
		}
	}
}

// Run forwards console lines to sink until ctx is cancelled. Cancellation
// is observed only between whole messages. A malformed unit is logged and
// the next read starts at the following byte.
func (c *Console) Run(ctx context.Context, sink Sink) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := c.Next(c.poll)
		switch {
		case err == nil:
		case errors.Is(err, protocol.ErrNoData):
			continue
		case errors.Is(err, protocol.ErrFraming):
			log.Warn().Err(err).Msg("console unit dropped")
			continue
		default:
			return err
		}
		if line == "" {
			continue
		}
		if err := sink.WriteLine(line); err != nil {
			return fmt.Errorf("wave: console sink: %w", err)
		}
	}
}
