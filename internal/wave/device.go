package wave

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/wavebroker/internal/protocol/channel"
	"github.com/danmuck/wavebroker/internal/protocol/fileop"
	"github.com/danmuck/wavebroker/internal/protocol/frame"
)

// Link is the transport surface a Device needs. *transport.Link satisfies it.
type Link interface {
	channel.Link
	Write(p []byte) (int, error)
	Flush() error
	Close() error
}

// Options tunes receive timeouts and transfer sizes.
type Options struct {
	Timeout        time.Duration
	FileTimeout    time.Duration
	StatusTimeout  time.Duration
	InstallTimeout time.Duration
	ChunkSize      int
	QueueLimit     int
	// OnWarning observes soft result-code mismatches. They are logged
	// regardless.
	OnWarning func(fileop.Warning)
}

func DefaultOptions() Options {
	return Options{
		Timeout:        time.Second,
		FileTimeout:    time.Second,
		StatusTimeout:  3 * time.Second,
		InstallTimeout: 10 * time.Second,
		ChunkSize:      fileop.ChunkSize,
		QueueLimit:     channel.DefaultQueueLimit,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.Timeout <= 0 {
		o.Timeout = def.Timeout
	}
	if o.FileTimeout <= 0 {
		o.FileTimeout = def.FileTimeout
	}
	if o.StatusTimeout <= 0 {
		o.StatusTimeout = def.StatusTimeout
	}
	if o.InstallTimeout <= 0 {
		o.InstallTimeout = def.InstallTimeout
	}
	if o.ChunkSize <= 0 || o.ChunkSize > frame.MaxPayload-2 {
		o.ChunkSize = def.ChunkSize
	}
	if o.QueueLimit <= 0 {
		o.QueueLimit = def.QueueLimit
	}
	return o
}

// Device is a handset reached over one command link.
type Device struct {
	link  Link
	demux *channel.Demux
	opts  Options
}

func New(link Link, opts Options) *Device {
	opts = opts.withDefaults()
	return &Device{
		link:  link,
		demux: channel.NewDemux(link, opts.QueueLimit),
		opts:  opts,
	}
}

func (d *Device) Options() Options { return d.opts }

// Demux exposes the channel queues, e.g. for the combined console variant.
func (d *Device) Demux() *channel.Demux { return d.demux }

// Receive pops the next message on ch, waiting up to timeout.
func (d *Device) Receive(ch channel.Channel, timeout time.Duration) (channel.Message, error) {
	return d.demux.Receive(ch, timeout)
}

func (d *Device) Close() error {
	d.demux.Reset()
	return d.link.Close()
}

func (d *Device) send(f frame.Frame) error {
	buf, err := frame.Encode(f)
	if err != nil {
		return err
	}
	if _, err := d.link.Write(buf); err != nil {
		return fmt.Errorf("wave: send frame 0x%02x: %w", f.Command, err)
	}
	log.Trace().Str("link", d.link.Name()).Uint8("cmd", f.Command).Int("len", len(f.Payload)).Msg("frame sent")
	return nil
}

func (d *Device) warn(w fileop.Warning) {
	log.Warn().Str("op", w.Op.String()).Str("path", w.Path).
		Int32("status", w.Result.Status).Uint16("code1", w.Result.Code1).Uint16("code2", w.Result.Code2).
		Str("want", w.Want).Msg("unexpected file result codes")
	if d.opts.OnWarning != nil {
		d.opts.OnWarning(w)
	}
}
