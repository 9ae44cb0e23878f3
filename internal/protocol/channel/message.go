package channel

import "github.com/danmuck/wavebroker/internal/protocol/frame"

// Message is one queued item. Exactly one of the payload fields is set,
// according to the channel it was routed to.
type Message struct {
	Channel Channel
	// Line is set for CommandResponses and Debug.
	Line string
	// Frame is set for Raw.
	Frame frame.Frame
	// Status is set for PhoneStatus and ProcessManager.
	Status StatusMessage
}

// Bytes returns the raw frame as it appeared on the wire without markers:
// command byte followed by payload.
func (m Message) Bytes() []byte {
	out := make([]byte, 0, len(m.Frame.Payload)+1)
	out = append(out, m.Frame.Command)
	return append(out, m.Frame.Payload...)
}

// queue is a bounded FIFO. When full, the oldest entry is dropped.
type queue struct {
	items []Message
	limit int
}

func (q *queue) push(m Message) (dropped bool) {
	if q.limit > 0 && len(q.items) >= q.limit {
		q.items = q.items[1:]
		dropped = true
	}
	q.items = append(q.items, m)
	return dropped
}

func (q *queue) pop() (Message, bool) {
	if len(q.items) == 0 {
		return Message{}, false
	}
	m := q.items[0]
	q.items[0] = Message{}
	q.items = q.items[1:]
	return m, true
}

func (q *queue) drain() []Message {
	out := q.items
	q.items = nil
	return out
}
