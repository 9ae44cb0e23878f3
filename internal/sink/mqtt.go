package sink

import (
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const publishTimeout = 5 * time.Second

var ErrPublishTimeout = errors.New("sink: mqtt publish timed out")

// MQTTConfig selects the broker and topic for console lines.
type MQTTConfig struct {
	Broker      string
	TopicPrefix string
	ClientID    string
	Username    string
	Password    string
}

// Topic is where console lines are published.
func (c MQTTConfig) Topic() string {
	return strings.TrimSuffix(c.TopicPrefix, "/") + "/console"
}

// publisher is the part of mqtt.Client the sink uses.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTT publishes each console line as one QoS 0 message.
type MQTT struct {
	client publisher
	topic  string
}

// DialMQTT connects to cfg.Broker. A blank client id gets a random one.
func DialMQTT(cfg MQTTConfig) (*MQTT, error) {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "wavebroker-" + uuid.NewString()
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(clientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(5 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Str("broker", cfg.Broker).Msg("mqtt connection lost")
	})
	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Info().Str("broker", cfg.Broker).Str("client_id", clientID).Msg("mqtt connected")
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("sink: mqtt connect %s: %w", cfg.Broker, token.Error())
	}
	return newMQTT(client, cfg.Topic()), nil
}

func newMQTT(client publisher, topic string) *MQTT {
	return &MQTT{client: client, topic: topic}
}

func (s *MQTT) Topic() string { return s.topic }

func (s *MQTT) WriteLine(line string) error {
	token := s.client.Publish(s.topic, 0, false, line)
	if !token.WaitTimeout(publishTimeout) {
		return ErrPublishTimeout
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("sink: mqtt publish: %w", err)
	}
	return nil
}

func (s *MQTT) Close() error {
	s.client.Disconnect(250)
	return nil
}
