package transport

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.bug.st/serial"
)

const (
	DefaultBaud    = 115200
	DefaultTimeout = time.Second
)

// Port is the raw duplex endpoint. Read returns 0, nil when the read timeout
// elapses without data, matching go.bug.st/serial.
type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
	ResetOutputBuffer() error
	Close() error
}

// Config selects and tunes one serial endpoint.
type Config struct {
	Address string
	Baud    int
	Timeout time.Duration
	// FlowControl asserts RTS and DTR when the port opens. CDC-ACM devices
	// honour RTS/CTS in the USB layer; platforms that ignore DTR still work.
	FlowControl bool
}

func DefaultConfig(address string) Config {
	return Config{
		Address:     address,
		Baud:        DefaultBaud,
		Timeout:     DefaultTimeout,
		FlowControl: true,
	}
}

// OpenPort opens a serial port at 8N1.
func OpenPort(cfg Config) (Port, error) {
	if strings.TrimSpace(cfg.Address) == "" {
		return nil, fmt.Errorf("transport: missing port address")
	}
	baud := cfg.Baud
	if baud <= 0 {
		baud = DefaultBaud
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	if cfg.FlowControl {
		mode.InitialStatusBits = &serial.ModemOutputBits{RTS: true, DTR: true}
	}
	port, err := serial.Open(cfg.Address, mode)
	if err != nil {
		return nil, fmt.Errorf("transport: open %s: %w", cfg.Address, describePortError(err))
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("transport: set read timeout: %w", err)
	}
	return port, nil
}

func describePortError(err error) error {
	var portErr *serial.PortError
	if !errors.As(err, &portErr) {
		return err
	}
	switch portErr.Code() {
	case serial.PortNotFound:
		return fmt.Errorf("port not found: %w", err)
	case serial.PortBusy:
		return fmt.Errorf("port busy: %w", err)
	case serial.PermissionDenied:
		return fmt.Errorf("permission denied: %w", err)
	default:
		return err
	}
}
