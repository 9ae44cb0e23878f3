package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the on-disk broker configuration. Durations are Go duration
// strings.
type Config struct {
	Port            string     `toml:"port"`
	ConsolePort     string     `toml:"console_port"`
	CombinedConsole bool       `toml:"combined_console"`
	Baud            int        `toml:"baud"`
	Timeout         string     `toml:"timeout"`
	FileTimeout     string     `toml:"file_timeout"`
	InstallTimeout  string     `toml:"install_timeout"`
	StatusTimeout   string     `toml:"status_timeout"`
	ChunkSize       int        `toml:"chunk_size"`
	WireLog         string     `toml:"wire_log"`
	QueueLimit      int        `toml:"queue_limit"`
	MetricsAddr     string     `toml:"metrics_addr"`
	MQTT            MQTTConfig `toml:"mqtt"`
}

// MQTTConfig enables the MQTT console sink when Broker is set.
type MQTTConfig struct {
	Broker      string `toml:"broker"`
	TopicPrefix string `toml:"topic_prefix"`
	ClientID    string `toml:"client_id"`
	Username    string `toml:"username"`
	Password    string `toml:"password"`
}

func DefaultConfig() Config {
	return Config{
		Port:           "/dev/ttyACM0",
		ConsolePort:    "/dev/ttyACM1",
		Baud:           115200,
		Timeout:        "1s",
		FileTimeout:    "1s",
		InstallTimeout: "10s",
		StatusTimeout:  "3s",
		ChunkSize:      1500,
		QueueLimit:     256,
		MQTT: MQTTConfig{
			TopicPrefix: "wavebroker",
		},
	}
}

// Load reads path over DefaultConfig and validates the result.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.Port) == "" {
		return fmt.Errorf("config missing port")
	}
	if !cfg.CombinedConsole && strings.TrimSpace(cfg.ConsolePort) == "" {
		return fmt.Errorf("config missing console_port (or set combined_console)")
	}
	if cfg.Baud <= 0 {
		return fmt.Errorf("baud must be positive, got %d", cfg.Baud)
	}
	if cfg.ChunkSize <= 0 || cfg.ChunkSize > 0xFFFF-2 {
		return fmt.Errorf("chunk_size out of range: %d", cfg.ChunkSize)
	}
	if cfg.QueueLimit < 0 {
		return fmt.Errorf("queue_limit must not be negative")
	}
	for key, raw := range map[string]string{
		"timeout":         cfg.Timeout,
		"file_timeout":    cfg.FileTimeout,
		"install_timeout": cfg.InstallTimeout,
		"status_timeout":  cfg.StatusTimeout,
	} {
		if _, err := parseDuration(raw); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	if cfg.MQTT.Broker != "" && strings.TrimSpace(cfg.MQTT.TopicPrefix) == "" {
		return fmt.Errorf("mqtt.topic_prefix required when mqtt.broker is set")
	}
	return nil
}

// parseDuration accepts a blank value as zero, meaning "use the default".
func parseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", raw)
	}
	return d, nil
}
