package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/streampulse/viewership-service/pkg/log"
)

const defaultKafkaTopic = "viewer-count-updates"

// KafkaPublisher produces count events to a Kafka topic, keyed by
// stream so one stream's updates stay ordered within a partition.
type KafkaPublisher struct {
	producer *kafka.Producer
	topic    string
}

// NewKafkaPublisher creates a Kafka-based publisher.
func NewKafkaPublisher(cfg KafkaConfig) (*KafkaPublisher, error) {
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": cfg.Brokers,
		"acks":              "1",
		"linger.ms":         5,
		"compression.type":  "snappy",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	topic := cfg.Topic
	if topic == "" {
		topic = defaultKafkaTopic
	}

	kp := &KafkaPublisher{producer: p, topic: topic}
	go kp.deliveryReportHandler()

	return kp, nil
}

// channelKey extracts the stream ID from a "viewers:{streamID}" channel
// name for use as the partition key.
func channelKey(channel string) string {
	if i := strings.LastIndex(channel, ":"); i >= 0 {
		return channel[i+1:]
	}
	return channel
}

func (p *KafkaPublisher) Publish(ctx context.Context, channel, event string, payload interface{}) error {
	e, err := NewEvent(event, channel, payload)
	if err != nil {
		return fmt.Errorf("failed to build event: %w", err)
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	return p.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &p.topic, Partition: kafka.PartitionAny},
		Key:            []byte(channelKey(channel)),
		Value:          data,
	}, nil)
}

// deliveryReportHandler logs failed deliveries. Broadcast is at most
// once, so failures are logged and dropped.
func (p *KafkaPublisher) deliveryReportHandler() {
	for ev := range p.producer.Events() {
		if m, ok := ev.(*kafka.Message); ok && m.TopicPartition.Error != nil {
			l := log.L()
			l.Error().
				Err(m.TopicPartition.Error).
				Str("topic", p.topic).
				Msg("kafka delivery failed")
		}
	}
}

func (p *KafkaPublisher) Close() error {
	p.producer.Flush(5000)
	p.producer.Close()
	return nil
}
