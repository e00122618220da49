package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Event is a message published to a stream's broadcast channel.
type Event struct {
	Type      string          `json:"type"`
	Channel   string          `json:"channel"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEvent creates an event with the current timestamp.
func NewEvent(eventType, channel string, payload interface{}) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		Type:      eventType,
		Channel:   channel,
		Payload:   data,
		Timestamp: time.Now(),
	}, nil
}

// Publisher pushes events to subscribed clients. Delivery is best-effort
// and at most once; a returned error means the attempt was not delivered.
type Publisher interface {
	Publish(ctx context.Context, channel, event string, payload interface{}) error
	Close() error
}

// PushConfig holds configuration for the signed HTTP push driver.
type PushConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Key      string        `mapstructure:"key"`
	Secret   string        `mapstructure:"secret"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// KafkaConfig holds Kafka-specific configuration.
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

// RedisConfig holds Redis-specific configuration.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Config selects and configures the publisher driver.
type Config struct {
	Driver        string      `mapstructure:"driver"` // "push", "redis", "kafka"
	ChannelPrefix string      `mapstructure:"channel_prefix"`
	Push          PushConfig  `mapstructure:"push"`
	Redis         RedisConfig `mapstructure:"redis"`
	Kafka         KafkaConfig `mapstructure:"kafka"`
}

// New creates a Publisher based on the configured driver.
func New(cfg Config) (Publisher, error) {
	switch cfg.Driver {
	case "redis":
		return NewRedisPublisher(cfg.Redis)
	case "kafka":
		return NewKafkaPublisher(cfg.Kafka)
	case "push", "":
		return NewPushPublisher(cfg.Push), nil
	default:
		return nil, fmt.Errorf("unsupported publisher driver: %s", cfg.Driver)
	}
}
