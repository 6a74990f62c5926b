package changefeed

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaWriter delivers change events to Kafka through one kafka-go writer.
// The writer has no fixed topic; each message is stamped with the topic the
// publisher was built for.
type KafkaWriter struct {
	w *kafka.Writer
}

// NewKafkaWriter returns a writer for brokers. Change events only refresh
// downstream views, so a leader acknowledgement is enough.
func NewKafkaWriter(brokers []string) *KafkaWriter {
	return &KafkaWriter{w: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		Compression:            kafka.Snappy,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}}
}

// WriteMessages sends msgs to topic. The caller's slice is not modified.
func (k *KafkaWriter) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	return k.w.WriteMessages(ctx, withTopic(topic, msgs)...)
}

// Close flushes pending writes and closes broker connections.
func (k *KafkaWriter) Close() error {
	return k.w.Close()
}

func withTopic(topic string, msgs []kafka.Message) []kafka.Message {
	out := make([]kafka.Message, len(msgs))
	for i, m := range msgs {
		m.Topic = topic
		out[i] = m
	}
	return out
}
