package transport

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danmuck/wavebroker/internal/protocol"
	"github.com/danmuck/wavebroker/internal/testutil/fakeport"
	"github.com/danmuck/wavebroker/internal/testutil/testlog"
)

func TestReadNShortOnPartialData(t *testing.T) {
	testlog.Start(t)
	port := fakeport.New()
	port.FeedString("ab")
	l := NewLink("command", port, nil)

	got, err := l.ReadN(5)
	require.NoError(t, err)
	assert.Equal(t, []byte("ab"), got)

	got, err = l.ReadN(1)
	require.NoError(t, err)
	assert.Empty(t, got, "timeout yields empty read")
}

func TestReadExactReassemblesSmallReads(t *testing.T) {
	testlog.Start(t)
	port := fakeport.New()
	port.MaxRead = 1
	port.FeedString("hello world")
	l := NewLink("command", port, nil)

	got, err := l.ReadExact(5)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	rest, err := l.ReadExact(20)
	assert.True(t, errors.Is(err, protocol.ErrNoData))
	assert.Equal(t, " world", string(rest))
}

func TestReadLineStopsAtNewline(t *testing.T) {
	testlog.Start(t)
	port := fakeport.New()
	port.FeedString("WaveS8500\r\nOK\r\n")
	l := NewLink("command", port, nil)

	line, err := l.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "WaveS8500\r\n", string(line))
	line, err = l.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "OK\r\n", string(line))

	port.FeedString("partial")
	line, err = l.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "partial", string(line))
}

func TestWriteAndFlush(t *testing.T) {
	testlog.Start(t)
	port := fakeport.New()
	l := NewLink("command", port, nil)
	port.FeedString("stale")
	_, err := l.ReadN(1)
	require.NoError(t, err)

	require.NoError(t, l.Flush())
	assert.Zero(t, l.Buffered())
	assert.Zero(t, port.Pending())

	n, err := l.Write([]byte("AT\r\n"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, [][]byte{[]byte("AT\r\n")}, port.Writes())
}

func TestSetTimeoutPropagates(t *testing.T) {
	port := fakeport.New()
	l := NewLink("command", port, nil)
	require.NoError(t, l.SetTimeout(250*time.Millisecond))
	assert.Equal(t, 250*time.Millisecond, port.ReadTimeout())
	assert.Equal(t, 250*time.Millisecond, l.Timeout())
}

func TestTapMirrorsTraffic(t *testing.T) {
	testlog.Start(t)
	var buf bytes.Buffer
	port := fakeport.New()
	port.FeedString("OK\r\n")
	l := NewLink("command", port, NewTap(&buf))

	_, err := l.Write([]byte("AT\r\n"))
	require.NoError(t, err)
	_, err = l.ReadN(1)
	require.NoError(t, err)
	_, err = l.ReadLine()
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "write:     4"))
	assert.True(t, strings.HasPrefix(lines[1], "read:      1     1"))
	assert.True(t, strings.HasPrefix(lines[2], "readl:"))
}

type failingWriter struct{ calls int }

func (w *failingWriter) Write(p []byte) (int, error) {
	w.calls++
	return 0, errors.New("disk full")
}

func TestTapFailureNeverBlocksIO(t *testing.T) {
	testlog.Start(t)
	w := &failingWriter{}
	port := fakeport.New()
	l := NewLink("command", port, NewTap(w))

	for i := 0; i < 3; i++ {
		_, err := l.Write([]byte("AT\r\n"))
		require.NoError(t, err)
	}
	assert.Equal(t, 1, w.calls, "tap disables itself after the first failure")
	assert.Len(t, port.Writes(), 3)
}

func TestUnreadReturnsBytesFirst(t *testing.T) {
	port := fakeport.New()
	port.FeedString("cd")
	l := NewLink("console", port, nil)
	l.Unread([]byte("ab"))

	got, err := l.ReadExact(4)
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(got))
}
