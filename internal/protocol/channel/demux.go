package channel

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/wavebroker/internal/observability"
	"github.com/danmuck/wavebroker/internal/protocol"
	"github.com/danmuck/wavebroker/internal/protocol/scanner"
)

const (
	DefaultTimeout    = time.Second
	DefaultQueueLimit = 256
)

// Link is the transport surface the demultiplexer needs.
type Link interface {
	scanner.Source
}

// Demux owns the per-channel queues of one link. It is not safe for
// concurrent use.
type Demux struct {
	link   Link
	scan   *scanner.Scanner
	queues [channelCount]queue
	limit  int
}

func NewDemux(link Link, queueLimit int) *Demux {
	if queueLimit <= 0 {
		queueLimit = DefaultQueueLimit
	}
	d := &Demux{
		link:  link,
		scan:  scanner.New(link),
		limit: queueLimit,
	}
	for i := range d.queues {
		d.queues[i].limit = queueLimit
	}
	return d
}

// Receive returns the oldest message on ch. Queued messages are returned
// without touching the wire. Otherwise units are scanned and routed until ch
// gains an entry or timeout elapses, in which case protocol.ErrNoData is
// returned. The deadline bounds only the wait for the start of a unit; a
// unit that has begun is read to its end with the full timeout per read.
func (d *Demux) Receive(ch Channel, timeout time.Duration) (Message, error) {
	if !ch.Valid() {
		return Message{}, fmt.Errorf("channel: unknown channel %d", int(ch))
	}
	if m, ok := d.queues[ch].pop(); ok {
		return m, nil
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining < time.Millisecond {
			observability.RecordReceiveTimeout(ch.String())
			return Message{}, protocol.ErrNoData
		}
		unit, err := d.scan.NextWithin(remaining, timeout)
		if err != nil {
			if errors.Is(err, protocol.ErrNoData) {
				observability.RecordReceiveTimeout(ch.String())
			}
			return Message{}, err
		}
		d.Route(unit)
		if m, ok := d.queues[ch].pop(); ok {
			return m, nil
		}
	}
}

// Poll scans and routes a single unit. It waits at most wait for the unit
// to start and then allows unit per read until it ends.
func (d *Demux) Poll(wait, unit time.Duration) error {
	if unit <= 0 {
		unit = DefaultTimeout
	}
	if wait <= 0 {
		wait = unit
	}
	u, err := d.scan.NextWithin(wait, unit)
	if err != nil {
		return err
	}
	d.Route(u)
	return nil
}

// Route appends the message carried by unit to its channel queue.
func (d *Demux) Route(unit scanner.Unit) {
	switch unit.Kind {
	case scanner.UnitLine:
		d.push(Message{Channel: CommandResponses, Line: unit.Line})
	case scanner.UnitDebug:
		d.push(Message{Channel: Debug, Line: unit.Line})
	case scanner.UnitFrame:
		if status, ok := ParseStatus(unit.Frame); ok {
			if ch, known := ByTag(status.Tag); known {
				d.push(Message{Channel: ch, Status: status})
				return
			}
		}
		if IsManagement(unit.Frame) {
			log.Trace().Str("link", d.link.Name()).Bytes("payload", unit.Frame.Payload).Msg("management frame discarded")
			return
		}
		d.push(Message{Channel: Raw, Frame: unit.Frame})
	default:
		log.Warn().Str("kind", unit.Kind.String()).Msg("unroutable unit")
	}
}

func (d *Demux) push(m Message) {
	if d.queues[m.Channel].push(m) {
		observability.RecordQueueDrop(m.Channel.String())
		log.Warn().Str("channel", m.Channel.String()).Int("limit", d.limit).Msg("channel queue full, dropped oldest message")
	}
}

// TryPop returns the oldest queued message on ch without touching the wire.
func (d *Demux) TryPop(ch Channel) (Message, bool) {
	if !ch.Valid() {
		return Message{}, false
	}
	return d.queues[ch].pop()
}

// Pending reports queued messages on ch.
func (d *Demux) Pending(ch Channel) int {
	if !ch.Valid() {
		return 0
	}
	return len(d.queues[ch].items)
}

// Drain empties ch and returns what it held, oldest first.
func (d *Demux) Drain(ch Channel) []Message {
	if !ch.Valid() {
		return nil
	}
	return d.queues[ch].drain()
}

// Reset discards every queued message.
func (d *Demux) Reset() {
	for i := range d.queues {
		d.queues[i].drain()
	}
}
