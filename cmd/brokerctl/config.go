package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/danmuck/wavebroker/internal/config"
)

type fileConfig struct {
	Port            string         `toml:"port"`
	ConsolePort     string         `toml:"console_port"`
	CombinedConsole bool           `toml:"combined_console"`
	Baud            int            `toml:"baud"`
	Timeout         string         `toml:"timeout"`
	FileTimeout     string         `toml:"file_timeout"`
	InstallTimeout  string         `toml:"install_timeout"`
	StatusTimeout   string         `toml:"status_timeout"`
	ChunkSize       int            `toml:"chunk_size"`
	WireLog         string         `toml:"wire_log"`
	QueueLimit      int            `toml:"queue_limit"`
	MetricsAddr     string         `toml:"metrics_addr"`
	MQTT            fileMQTTConfig `toml:"mqtt"`
}

type fileMQTTConfig struct {
	Broker      string `toml:"broker"`
	TopicPrefix string `toml:"topic_prefix"`
	ClientID    string `toml:"client_id"`
	Username    string `toml:"username"`
	Password    string `toml:"password"`
}

func loadConfig(path string) (config.Config, error) {
	cfg := config.DefaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return config.Config{}, fmt.Errorf("load broker config: %w", err)
	}

	str := func(dst *string, v string, key ...string) {
		if meta.IsDefined(key...) {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(dst *int, v int, key string) {
		if meta.IsDefined(key) {
			*dst = v
		}
	}

	str(&cfg.Port, raw.Port, "port")
	str(&cfg.ConsolePort, raw.ConsolePort, "console_port")
	if meta.IsDefined("combined_console") {
		cfg.CombinedConsole = raw.CombinedConsole
	}
	num(&cfg.Baud, raw.Baud, "baud")
	str(&cfg.Timeout, raw.Timeout, "timeout")
	str(&cfg.FileTimeout, raw.FileTimeout, "file_timeout")
	str(&cfg.InstallTimeout, raw.InstallTimeout, "install_timeout")
	str(&cfg.StatusTimeout, raw.StatusTimeout, "status_timeout")
	num(&cfg.ChunkSize, raw.ChunkSize, "chunk_size")
	str(&cfg.WireLog, raw.WireLog, "wire_log")
	num(&cfg.QueueLimit, raw.QueueLimit, "queue_limit")
	str(&cfg.MetricsAddr, raw.MetricsAddr, "metrics_addr")

	str(&cfg.MQTT.Broker, raw.MQTT.Broker, "mqtt", "broker")
	str(&cfg.MQTT.TopicPrefix, raw.MQTT.TopicPrefix, "mqtt", "topic_prefix")
	str(&cfg.MQTT.ClientID, raw.MQTT.ClientID, "mqtt", "client_id")
	str(&cfg.MQTT.Username, raw.MQTT.Username, "mqtt", "username")
	if meta.IsDefined("mqtt", "password") {
		cfg.MQTT.Password = raw.MQTT.Password
	}

	if err := config.Validate(cfg); err != nil {
		return config.Config{}, fmt.Errorf("invalid broker config %s: %w", path, err)
	}
	return cfg, nil
}
