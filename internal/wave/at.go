package wave

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/danmuck/wavebroker/internal/protocol"
	"github.com/danmuck/wavebroker/internal/protocol/channel"
)

const (
	atOK    = "OK"
	atError = "ERROR"
)

// AT sends command and collects response lines through the terminal OK or
// ERROR line, which is the last element. Empty lines and the command echo
// are dropped. protocol.ErrNoData is returned when no terminal line arrives.
func (d *Device) AT(command string) ([]string, error) {
	if _, err := d.link.Write([]byte(command + "\r\n")); err != nil {
		return nil, fmt.Errorf("wave: %s: %w", command, err)
	}
	var result []string
	for {
		m, err := d.demux.Receive(channel.CommandResponses, d.opts.Timeout)
		if err != nil {
			return nil, fmt.Errorf("wave: %s: %w", command, err)
		}
		line := m.Line
		if line != "" && line != command {
			result = append(result, line)
		}
		if line == atOK || line == atError {
			return result, nil
		}
	}
}

// single runs command and returns its one data line when the reply is
// exactly [data, OK].
func (d *Device) single(command string) (string, error) {
	ans, err := d.AT(command)
	if err != nil {
		return "", err
	}
	if len(ans) != 2 || ans[1] != atOK {
		return "", fmt.Errorf("%w: %s replied %q", protocol.ErrProtocolSemantic, command, ans)
	}
	return ans[0], nil
}

// Model queries AT+CGMM.
func (d *Device) Model() (string, error) {
	return d.single("AT+CGMM")
}

// UserMemory queries AT+USERMEM and returns bytes.
func (d *Device) UserMemory() (int64, error) {
	line, err := d.single("AT+USERMEM")
	if err != nil {
		return 0, err
	}
	rest, ok := strings.CutPrefix(line, "+USERMEM:")
	if !ok {
		return 0, fmt.Errorf("%w: unexpected AT+USERMEM line %q", protocol.ErrProtocolSemantic, line)
	}
	kb, ok := strings.CutSuffix(rest, "k")
	if !ok || !isDigits(kb) {
		return 0, fmt.Errorf("%w: unexpected AT+USERMEM line %q", protocol.ErrProtocolSemantic, line)
	}
	n, err := strconv.ParseInt(kb, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", protocol.ErrProtocolSemantic, err)
	}
	return n * 1024, nil
}

// LCDInfo queries the main display size. Devices that reject AT+LCDINFO are
// asked for AT+LCDINFO:MAIN.
func (d *Device) LCDInfo() (width, height int, err error) {
	ans, err := d.AT("AT+LCDINFO")
	if err != nil {
		return 0, 0, err
	}
	if len(ans) == 2 && ans[1] == atOK {
		return parseLCDInfo(ans[0])
	}
	if len(ans) > 0 && ans[0] == atError {
		ans, err = d.AT("AT+LCDINFO:MAIN")
		if err != nil {
			return 0, 0, err
		}
		if len(ans) >= 2 && ans[len(ans)-1] == atOK {
			return parseLCDInfo(ans[0])
		}
	}
	return 0, 0, fmt.Errorf("%w: AT+LCDINFO replied %q", protocol.ErrProtocolSemantic, ans)
}

// parseLCDInfo reads "+LCDINFO: <w>, <h>".
func parseLCDInfo(line string) (int, int, error) {
	bad := fmt.Errorf("%w: unexpected AT+LCDINFO line %q", protocol.ErrProtocolSemantic, line)
	rest, ok := strings.CutPrefix(line, "+LCDINFO: ")
	if !ok {
		return 0, 0, bad
	}
	ws, hs, ok := strings.Cut(rest, ", ")
	if !ok || !isDigits(ws) || !isDigits(hs) {
		return 0, 0, bad
	}
	w, _ := strconv.Atoi(ws)
	h, _ := strconv.Atoi(hs)
	return w, h, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
