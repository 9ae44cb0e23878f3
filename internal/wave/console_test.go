package wave

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danmuck/wavebroker/internal/protocol"
	"github.com/danmuck/wavebroker/internal/protocol/channel"
	"github.com/danmuck/wavebroker/internal/protocol/console"
	"github.com/danmuck/wavebroker/internal/protocol/frame"
	"github.com/danmuck/wavebroker/internal/testutil/fakeport"
	"github.com/danmuck/wavebroker/internal/testutil/testlog"
	"github.com/danmuck/wavebroker/internal/transport"
)

func TestPrimeConsole(t *testing.T) {
	testlog.Start(t)
	port := fakeport.New()
	port.FeedString("stale boot noise\r\n")
	link := transport.NewLink("console", port, nil)

	require.NoError(t, PrimeConsole(link))
	writes := port.Writes()
	require.Len(t, writes, 1)
	assert.Equal(t, "AT+WINCOMM\r", string(writes[0]))
	assert.Zero(t, port.Pending())
}

func TestDedicatedConsoleYieldsTextAndDebug(t *testing.T) {
	testlog.Start(t)
	port := fakeport.New()
	port.FeedString("boot ok\r\n")
	port.Feed(console.Wrap("APP: started"))
	raw, _ := frame.Encode(frame.Frame{Command: 0x11, Payload: []byte{1}})
	port.Feed(raw)
	port.FeedString("\r\n")
	port.Feed(console.Wrap("APP: heap 120k"))

	c := NewConsole(transport.NewLink("console", port, nil), 0)
	var got []string
	for {
		line, err := c.Next(20 * time.Millisecond)
		if errors.Is(err, protocol.ErrNoData) {
			break
		}
		require.NoError(t, err)
		got = append(got, line)
	}
	assert.Equal(t, []string{"boot ok", "APP: started", "", "APP: heap 120k"}, got)
}

func TestCombinedConsoleReadsDebugChannelOnly(t *testing.T) {
	dev, sim, _ := newDevice(t)
	sim.Port.FeedString("OK\r\n")
	sim.Port.Feed(console.Wrap("APP: tick"))

	line, err := dev.Console().Next(50 * time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "APP: tick", line)

	m, ok := dev.Demux().TryPop(channel.CommandResponses)
	require.True(t, ok, "command response stays queued for the command exchange")
	assert.Equal(t, "OK", m.Line)
}

func TestConsoleRunStopsOnCancel(t *testing.T) {
	testlog.Start(t)
	port := fakeport.New()
	port.Feed(console.Wrap("one"))
	port.Feed([]byte{frame.StartMarker, 0x01, 0x00, frame.CommandFile, 0x01, 0x00})
	port.Feed(console.Wrap("two"))

	c := NewConsole(transport.NewLink("console", port, nil), 0)
	c.SetPoll(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var lines []string
	sink := SinkFunc(func(line string) error {
		lines = append(lines, line)
		if line == "two" {
			cancel()
		}
		return nil
	})

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, sink) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("console did not stop after cancel")
	}
	assert.Equal(t, "one", lines[0])
	assert.Equal(t, "two", lines[len(lines)-1])
}

func TestConsoleRunPropagatesSinkError(t *testing.T) {
	testlog.Start(t)
	port := fakeport.New()
	port.Feed(console.Wrap("x"))
	c := NewConsole(transport.NewLink("console", port, nil), 0)
	c.SetPoll(10 * time.Millisecond)

	boom := errors.New("sink closed")
	err := c.Run(context.Background(), SinkFunc(func(string) error { return boom }))
	assert.ErrorIs(t, err, boom)
}
