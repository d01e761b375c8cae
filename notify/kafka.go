package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// Kafka publishes receipts as JSON keyed by account, so receipts of one
// account keep their order within a partition.
type Kafka struct {
	writer *kafka.Writer
}

// ParseBrokers splits a comma separated broker list.
func ParseBrokers(csv string) []string {
	brokers := []string{}
	for _, b := range strings.Split(csv, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func NewKafka(brokers []string, topic string) *Kafka {
	return &Kafka{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
	}
}

func (k *Kafka) Send(ctx context.Context, r Receipt) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encoding receipt: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(r.UserID),
		Value: data,
		Time:  time.Now().UTC(),
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publishing receipt to %s: %w", k.writer.Topic, err)
	}
	return nil
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}
