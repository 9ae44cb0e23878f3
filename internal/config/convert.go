package config

import (
	"github.com/danmuck/wavebroker/internal/transport"
	"github.com/danmuck/wavebroker/internal/wave"
)

// WaveOptions maps the timing and sizing keys onto device options. Zero
// values fall through to the wave defaults.
func (c Config) WaveOptions() (wave.Options, error) {
	var opts wave.Options
	var err error
	if opts.Timeout, err = parseDuration(c.Timeout); err != nil {
		return wave.Options{}, err
	}
	if opts.FileTimeout, err = parseDuration(c.FileTimeout); err != nil {
		return wave.Options{}, err
	}
	if opts.InstallTimeout, err = parseDuration(c.InstallTimeout); err != nil {
		return wave.Options{}, err
	}
	if opts.StatusTimeout, err = parseDuration(c.StatusTimeout); err != nil {
		return wave.Options{}, err
	}
	opts.ChunkSize = c.ChunkSize
	opts.QueueLimit = c.QueueLimit
	return opts, nil
}

// PortConfig returns serial settings for address.
func (c Config) PortConfig(address string) (transport.Config, error) {
	cfg := transport.DefaultConfig(address)
	if c.Baud > 0 {
		cfg.Baud = c.Baud
	}
	timeout, err := parseDuration(c.Timeout)
	if err != nil {
		return transport.Config{}, err
	}
	if timeout > 0 {
		cfg.Timeout = timeout
	}
	return cfg, nil
}
