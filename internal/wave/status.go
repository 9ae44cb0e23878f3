package wave

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/wavebroker/internal/protocol"
	"github.com/danmuck/wavebroker/internal/protocol/channel"
	"github.com/danmuck/wavebroker/internal/protocol/frame"
)

// Interface id pairs addressed by status commands.
const (
	ifaceAppManager = "[1600:1601]"
	ifaceLauncher   = "[1400:1400]"
	ifaceManagement = "[0:2]"

	// AppRoot is where applications live on the device.
	AppRoot = "/Osp/Applications"
)

// SendStatus sends a textual sub-command in a status frame.
func (d *Device) SendStatus(command string) error {
	return d.send(frame.Frame{Command: frame.CommandStatus, Payload: []byte(command)})
}

// InstallCondition asks whether nbytes of appID can be installed. Status
// messages without an errType token are skipped; if only such messages
// arrive before the link goes quiet the reply is a semantic error.
func (d *Device) InstallCondition(appID string, nbytes int64) (bool, error) {
	cmd := fmt.Sprintf("%sGetAppInstallCondition %s %d", ifaceAppManager, appID, nbytes)
	if err := d.SendStatus(cmd); err != nil {
		return false, err
	}
	skipped := 0
	for {
		m, err := d.demux.Receive(channel.PhoneStatus, d.opts.StatusTimeout)
		if errors.Is(err, protocol.ErrNoData) && skipped > 0 {
			return false, fmt.Errorf("%w: install condition %s: %d status messages without errType",
				protocol.ErrProtocolSemantic, appID, skipped)
		}
		if err != nil {
			return false, fmt.Errorf("wave: install condition %s: %w", appID, err)
		}
		log.Debug().Str("app", appID).Int("code", m.Status.Code).Str("body", m.Status.Body).Msg("install condition status")
		if v, ok := ErrType(m.Status.Body); ok {
			return v == 0, nil
		}
		skipped++
	}
}

// Terminate stops appID and returns the process manager reports that arrive
// before the link goes quiet.
func (d *Device) Terminate(appID string) ([]channel.StatusMessage, error) {
	if err := d.SendStatus(fmt.Sprintf("%sTerminateProcessEx %s 0", ifaceAppManager, appID)); err != nil {
		return nil, err
	}
	var out []channel.StatusMessage
	for {
		m, err := d.demux.Receive(channel.ProcessManager, d.opts.Timeout)
		if errors.Is(err, protocol.ErrNoData) {
			return out, nil
		}
		if err != nil {
			return out, fmt.Errorf("wave: terminate %s: %w", appID, err)
		}
		out = append(out, m.Status)
	}
}

// Install asks the device to install the package already uploaded under
// AppRoot/appID.
func (d *Device) Install(appID string) (bool, error) {
	for _, cmd := range []string{
		ifaceAppManager + "EnableDiagWrite",
		ifaceAppManager + "AppPkgInstall " + AppRoot + "/" + appID,
		ifaceManagement + "MID_PROCESSMGR,0xFF",
		ifaceManagement + "MID_DIAGMGR,0xFF",
		ifaceManagement + "MID_DIAGMGR,0xFF",
	} {
		if err := d.SendStatus(cmd); err != nil {
			return false, err
		}
	}
	m, err := d.demux.Receive(channel.PhoneStatus, d.opts.InstallTimeout)
	if err != nil {
		return false, fmt.Errorf("wave: install %s: %w", appID, err)
	}
	v, ok := ErrType(m.Status.Body)
	if !ok {
		return false, fmt.Errorf("%w: install %s: no errType in %q", protocol.ErrProtocolSemantic, appID, m.Status.Body)
	}
	return v == 0, nil
}

// Run launches exe from the application's Bin directory.
func (d *Device) Run(appID, exe string) error {
	bin := AppRoot + "/" + appID + "/Bin"
	return d.SendStatus(ifaceLauncher + bin + "/" + exe + "," + bin)
}

// ErrType extracts the integer following "errType=" in body.
func ErrType(body string) (int, bool) {
	const token = "errType="
	i := strings.Index(body, token)
	if i < 0 {
		return 0, false
	}
	rest := body[i+len(token):]
	end := 0
	if end < len(rest) && rest[end] == '-' {
		end++
	}
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	v, err := strconv.Atoi(rest[:end])
	if err != nil {
		return 0, false
	}
	return v, true
}
