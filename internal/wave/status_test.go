package wave

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danmuck/wavebroker/internal/protocol"
	"github.com/danmuck/wavebroker/internal/protocol/channel"
	"github.com/danmuck/wavebroker/internal/protocol/frame"
)

func pushStatus(tag, body string) frame.Frame {
	return channel.FormatStatus(channel.StatusMessage{Seq: 1, Timestamp: "0:0:0", Tag: tag, Body: body})
}

func TestInstallConditionSkipsUntilErrType(t *testing.T) {
	dev, sim, _ := newDevice(t)
	sim.OnStatus = func(cmd string) []frame.Frame {
		if !strings.Contains(cmd, "GetAppInstallCondition") {
			return nil
		}
		return []frame.Frame{
			pushStatus("PHONESTATUS", "checking"),
			pushStatus("PHONESTATUS", "result errType=0"),
		}
	}
	ok, err := dev.InstallCondition("93bt1p123e", 440952)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"[1600:1601]GetAppInstallCondition 93bt1p123e 440952"}, sim.StatusCommands())

	sim.OnStatus = func(string) []frame.Frame {
		return []frame.Frame{pushStatus("PHONESTATUS", "errType=12")}
	}
	ok, err = dev.InstallCondition("93bt1p123e", 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInstallConditionWithoutErrTypeIsSemanticError(t *testing.T) {
	dev, sim, _ := newDevice(t)
	sim.OnStatus = func(string) []frame.Frame {
		return []frame.Frame{pushStatus("PHONESTATUS", "checking")}
	}
	_, err := dev.InstallCondition("93bt1p123e", 1)
	assert.True(t, errors.Is(err, protocol.ErrProtocolSemantic))

	sim.OnStatus = nil
	_, err = dev.InstallCondition("93bt1p123e", 1)
	assert.True(t, errors.Is(err, protocol.ErrNoData))
	assert.False(t, errors.Is(err, protocol.ErrProtocolSemantic))
}

func TestInstallParsesErrType(t *testing.T) {
	dev, sim, _ := newDevice(t)
	sim.OnStatus = func(cmd string) []frame.Frame {
		if strings.HasSuffix(cmd, "MID_PROCESSMGR,0xFF") {
			return []frame.Frame{
				{Command: frame.CommandStatus, Payload: []byte(cmd)},
				pushStatus("PHONESTATUS", "install done errType=0"),
			}
		}
		return nil
	}
	ok, err := dev.Install("93bt1p123e")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{
		"[1600:1601]EnableDiagWrite",
		"[1600:1601]AppPkgInstall /Osp/Applications/93bt1p123e",
		"[0:2]MID_PROCESSMGR,0xFF",
		"[0:2]MID_DIAGMGR,0xFF",
		"[0:2]MID_DIAGMGR,0xFF",
	}, sim.StatusCommands())
}

func TestInstallWithoutErrTypeIsSemanticError(t *testing.T) {
	dev, sim, _ := newDevice(t)
	sim.Push(pushStatus("PHONESTATUS", "installing"))
	_, err := dev.Install("93bt1p123e")
	assert.True(t, errors.Is(err, protocol.ErrProtocolSemantic))
}

func TestTerminateCollectsUntilQuiet(t *testing.T) {
	dev, sim, _ := newDevice(t)
	sim.OnStatus = func(string) []frame.Frame {
		return []frame.Frame{
			pushStatus("PROCESSMGR", "terminating"),
			pushStatus("PHONESTATUS", "unrelated"),
			pushStatus("PROCESSMGR", "terminated"),
		}
	}
	msgs, err := dev.Terminate("93bt1p123e")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "terminating", msgs[0].Body)
	assert.Equal(t, "terminated", msgs[1].Body)
	assert.Equal(t, 1, dev.Demux().Pending(channel.PhoneStatus))
}

func TestRunCommand(t *testing.T) {
	dev, sim, _ := newDevice(t)
	require.NoError(t, dev.Run("93bt1p123e", "Hello.exe"))
	assert.Equal(t, []string{
		"[1400:1400]/Osp/Applications/93bt1p123e/Bin/Hello.exe,/Osp/Applications/93bt1p123e/Bin",
	}, sim.StatusCommands())
}

func TestErrType(t *testing.T) {
	v, ok := ErrType("a errType=0 b")
	assert.True(t, ok)
	assert.Equal(t, 0, v)
	v, ok = ErrType("errType=-3")
	assert.True(t, ok)
	assert.Equal(t, -3, v)
	_, ok = ErrType("errType=")
	assert.False(t, ok)
	_, ok = ErrType("nothing")
	assert.False(t, ok)
}
