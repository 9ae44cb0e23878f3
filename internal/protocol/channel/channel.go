// Package channel routes classified units to per-channel FIFO queues and
// serves receives against them.
package channel

import (
	"fmt"
	"strings"
)

// Channel is a logical stream of device-originated messages.
type Channel int

const (
	CommandResponses Channel = iota
	Raw
	PhoneStatus
	ProcessManager
	Debug

	channelCount
)

var channelNames = [channelCount]string{
	CommandResponses: "command-responses",
	Raw:              "raw",
	PhoneStatus:      "phone-status",
	ProcessManager:   "process-manager",
	Debug:            "debug",
}

// wire tags carried in status payloads
var tagChannels = map[string]Channel{
	"PHONESTATUS": PhoneStatus,
	"PROCESSMGR":  ProcessManager,
}

// All lists every channel in declaration order.
func All() []Channel {
	out := make([]Channel, 0, channelCount)
	for ch := Channel(0); ch < channelCount; ch++ {
		out = append(out, ch)
	}
	return out
}

func (c Channel) Valid() bool {
	return c >= 0 && c < channelCount
}

func (c Channel) String() string {
	if !c.Valid() {
		return fmt.Sprintf("channel(%d)", int(c))
	}
	return channelNames[c]
}

// Parse resolves a channel by its name or its wire tag.
func Parse(name string) (Channel, bool) {
	name = strings.TrimSpace(name)
	if ch, ok := tagChannels[strings.ToUpper(name)]; ok {
		return ch, true
	}
	for ch, n := range channelNames {
		if strings.EqualFold(n, name) {
			return Channel(ch), true
		}
	}
	return 0, false
}

// ByTag maps a status payload tag to its channel.
func ByTag(tag string) (Channel, bool) {
	ch, ok := tagChannels[tag]
	return ch, ok
}
