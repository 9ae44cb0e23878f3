package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/wavebroker/internal/config"
	"github.com/danmuck/wavebroker/internal/observability"
	"github.com/danmuck/wavebroker/internal/protocol/fileop"
	"github.com/danmuck/wavebroker/internal/sink"
	"github.com/danmuck/wavebroker/internal/transport"
	"github.com/danmuck/wavebroker/internal/wave"
)

// session owns the links opened for one command.
type session struct {
	cfg     config.Config
	tap     *transport.Tap
	dev     *wave.Device
	console *wave.Console
	closers []func() error
}

func openSession(cfg config.Config, withConsole bool) (*session, error) {
	s := &session{cfg: cfg}
	if cfg.MetricsAddr != "" {
		go func() {
			if err := observability.ServeMetrics(cfg.MetricsAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Str("addr", cfg.MetricsAddr).Msg("metrics server stopped")
			}
		}()
	}
	if cfg.WireLog != "" {
		tap, err := transport.OpenTap(cfg.WireLog)
		if err != nil {
			return nil, err
		}
		s.tap = tap
		s.closers = append(s.closers, tap.Close)
	}

	opts, err := cfg.WaveOptions()
	if err != nil {
		return nil, err
	}
	opts.OnWarning = func(w fileop.Warning) {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}

	portCfg, err := cfg.PortConfig(cfg.Port)
	if err != nil {
		return nil, err
	}
	link, err := transport.Open("command", portCfg, s.tap)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.dev = wave.New(link, opts)
	s.closers = append([]func() error{s.dev.Close}, s.closers...)

	if !withConsole {
		return s, nil
	}
	if cfg.CombinedConsole {
		s.console = s.dev.Console()
		return s, nil
	}
	consoleCfg, err := cfg.PortConfig(cfg.ConsolePort)
	if err != nil {
		s.Close()
		return nil, err
	}
	clink, err := transport.Open("console", consoleCfg, s.tap)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.closers = append([]func() error{clink.Close}, s.closers...)
	if err := wave.PrimeConsole(clink); err != nil {
		s.Close()
		return nil, err
	}
	s.console = wave.NewConsole(clink, cfg.QueueLimit)
	return s, nil
}

// consoleSink prints to stdout and, when a broker is configured, publishes
// over MQTT as well.
func (s *session) consoleSink() (wave.Sink, func(), error) {
	out := sink.NewWriter(os.Stdout, "")
	if s.cfg.MQTT.Broker == "" {
		return out, func() {}, nil
	}
	pub, err := sink.DialMQTT(sink.MQTTConfig{
		Broker:      s.cfg.MQTT.Broker,
		TopicPrefix: s.cfg.MQTT.TopicPrefix,
		ClientID:    s.cfg.MQTT.ClientID,
		Username:    s.cfg.MQTT.Username,
		Password:    s.cfg.MQTT.Password,
	})
	if err != nil {
		return nil, nil, err
	}
	log.Info().Str("topic", pub.Topic()).Msg("console lines published over mqtt")
	return sink.Tee{out, pub}, func() { _ = pub.Close() }, nil
}

func (s *session) Close() {
	for _, c := range s.closers {
		if err := c(); err != nil {
			log.Debug().Err(err).Msg("close")
		}
	}
	s.closers = nil
}
