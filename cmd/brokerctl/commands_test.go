package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danmuck/wavebroker/internal/protocol/channel"
	"github.com/danmuck/wavebroker/internal/protocol/frame"
	"github.com/danmuck/wavebroker/internal/testutil/fakedevice"
	"github.com/danmuck/wavebroker/internal/testutil/testlog"
	"github.com/danmuck/wavebroker/internal/transport"
	"github.com/danmuck/wavebroker/internal/wave"
)

func newFakeDevice(t *testing.T) (*wave.Device, *fakedevice.Device) {
	t.Helper()
	testlog.Start(t)
	sim := fakedevice.New()
	sim.AT["AT+CGMM"] = []string{"GT-S8500", "OK"}
	sim.AT["AT+USERMEM"] = []string{"+USERMEM:51200k", "OK"}
	sim.AT["AT+LCDINFO"] = []string{"+LCDINFO: 480, 800", "OK"}
	return wave.New(transport.NewLink("command", sim.Port, nil), wave.Options{}), sim
}

func phoneStatus(body string) frame.Frame {
	return channel.FormatStatus(channel.StatusMessage{Seq: 7, Timestamp: "12:00:01", Tag: "PHONESTATUS", Body: body})
}

func TestRunInfo(t *testing.T) {
	dev, _ := newFakeDevice(t)
	var out bytes.Buffer
	require.NoError(t, runInfo(dev, &out))
	assert.Equal(t, "model:  GT-S8500\nmemory: 52428800 bytes\nlcd:    480x800\n", out.String())
}

func TestRunLsMarksDirectories(t *testing.T) {
	dev, sim := newFakeDevice(t)
	sim.AddDir("/Osp")
	sim.AddDir("/Osp/Applications")
	sim.AddFile("/Osp/readme.txt", []byte("hello"))

	var out bytes.Buffer
	require.NoError(t, runLs(dev, &out, []string{"/Osp"}))
	assert.Equal(t, "Files in /Osp:\n"+
		"       0 ./\n"+
		"       0 ../\n"+
		"       0 Applications/\n"+
		"       5 readme.txt\n", out.String())
}

func TestRunMkdirRmdirRm(t *testing.T) {
	dev, sim := newFakeDevice(t)
	require.NoError(t, runMkdir(dev, true, []string{"/a/b"}))
	assert.True(t, sim.HasDir("/a/b"))
	sim.AddFile("/a/b/f", []byte("x"))

	require.NoError(t, runRm(dev, []string{"/a/b/f"}))
	require.NoError(t, runRmdir(dev, false, []string{"/a/b"}))
	assert.False(t, sim.HasDir("/a/b"))

	sim.AddFile("/a/g", []byte("y"))
	assert.Error(t, runRmdir(dev, false, []string{"/a"}))
	require.NoError(t, runRmdir(dev, true, []string{"/a"}))
	assert.False(t, sim.HasDir("/a"))
}

func TestRunPutGet(t *testing.T) {
	dev, sim := newFakeDevice(t)
	dir := t.TempDir()
	local := filepath.Join(dir, "in.bin")
	data := bytes.Repeat([]byte("wave"), 1000)
	require.NoError(t, os.WriteFile(local, data, 0o644))

	var out bytes.Buffer
	require.NoError(t, runPut(context.Background(), dev, &out, local, "/in.bin"))
	assert.Contains(t, out.String(), "(4000 bytes, 3 chunks)")
	got, ok := sim.File("/in.bin")
	require.True(t, ok)
	assert.Equal(t, data, got)

	back := filepath.Join(dir, "back.bin")
	require.NoError(t, runGet(dev, &out, "/in.bin", back))
	roundTrip, err := os.ReadFile(back)
	require.NoError(t, err)
	assert.Equal(t, data, roundTrip)
}

func TestRunInstall(t *testing.T) {
	dev, sim := newFakeDevice(t)
	sim.OnStatus = func(cmd string) []frame.Frame {
		switch {
		case strings.Contains(cmd, "GetAppInstallCondition"):
			return []frame.Frame{phoneStatus("errType=0")}
		case strings.HasSuffix(cmd, "MID_PROCESSMGR,0xFF"):
			return []frame.Frame{phoneStatus("AppPkgInstall errType=0")}
		}
		return nil
	}
	root := writeAppTree(t)

	var out bytes.Buffer
	err := runInstall(context.Background(), dev, &out, installPlan{
		AppID:  "93bt1p123e",
		Exe:    "Hello.exe",
		Root:   root,
		Walker: fsWalker{appID: "93bt1p123e"},
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "installation possible: true")
	assert.Contains(t, out.String(), "uploaded 3603 bytes in 4 chunks")
	assert.Contains(t, out.String(), "Installed")

	exe, ok := sim.File("/Osp/Applications/93bt1p123e/Bin/Hello.exe")
	require.True(t, ok)
	assert.Len(t, exe, 3600)
	assert.True(t, sim.HasDir("/Osp/Applications/93bt1p123e/Res/480x800"))

	cmds := sim.StatusCommands()
	assert.Equal(t, "[1600:1601]GetAppInstallCondition 93bt1p123e 3603", cmds[0])
	assert.Equal(t, "[1600:1601]TerminateProcessEx 93bt1p123e 0", cmds[1])
	assert.Equal(t, "[1400:1400]/Osp/Applications/93bt1p123e/Bin/Hello.exe,/Osp/Applications/93bt1p123e/Bin", cmds[len(cmds)-1])
}

func TestRunInstallRefused(t *testing.T) {
	dev, sim := newFakeDevice(t)
	sim.OnStatus = func(cmd string) []frame.Frame {
		switch {
		case strings.Contains(cmd, "GetAppInstallCondition"):
			return []frame.Frame{phoneStatus("errType=0")}
		case strings.HasSuffix(cmd, "MID_PROCESSMGR,0xFF"):
			return []frame.Frame{phoneStatus("errType=3")}
		}
		return nil
	}
	var out bytes.Buffer
	err := runInstall(context.Background(), dev, &out, installPlan{
		AppID:  "93bt1p123e",
		Exe:    "Hello.exe",
		Root:   writeAppTree(t),
		Walker: fsWalker{appID: "93bt1p123e"},
	})
	assert.Error(t, err)
	assert.Contains(t, out.String(), "Failed to install")
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	var stderr bytes.Buffer
	err := run([]string{"frobnicate"}, &stderr)
	assert.ErrorContains(t, err, "unknown command")
	assert.Contains(t, stderr.String(), "install <app-id> <exe> [local-dir]")
}
