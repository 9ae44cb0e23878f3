package wave

import (
	"testing"

	"github.com/danmuck/wavebroker/internal/protocol/fileop"
	"github.com/danmuck/wavebroker/internal/testutil/fakedevice"
	"github.com/danmuck/wavebroker/internal/testutil/testlog"
	"github.com/danmuck/wavebroker/internal/transport"
)

func newDevice(t *testing.T) (*Device, *fakedevice.Device, *[]fileop.Warning) {
	t.Helper()
	testlog.Start(t)
	sim := fakedevice.New()
	warnings := &[]fileop.Warning{}
	dev := New(transport.NewLink("command", sim.Port, nil), Options{
		OnWarning: func(w fileop.Warning) { *warnings = append(*warnings, w) },
	})
	return dev, sim, warnings
}
