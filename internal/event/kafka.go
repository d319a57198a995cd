package event

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaBus carries registration events over a Kafka topic so the saga can run
// in a separate worker process. Publishing and consuming sides share this type:
// the server constructs it with a writer only, the worker with a reader only.
type KafkaBus struct {
	writer *kafka.Writer
	reader *kafka.Reader

	mu       sync.RWMutex
	handlers []Handler
}

// NewKafkaPublisher creates a bus that only publishes. Call Close when
// shutting down.
func NewKafkaPublisher(brokers []string, topic string) *KafkaBus {
	return &KafkaBus{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 50 * time.Millisecond,
		},
	}
}

// NewKafkaConsumer creates a bus that only consumes. Run drives delivery.
func NewKafkaConsumer(brokers []string, topic, groupID string) *KafkaBus {
	return &KafkaBus{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1,
			MaxBytes: 10e6, // 10MB
			MaxWait:  1 * time.Second,
		}),
	}
}

// Publish writes the event to the topic, keyed by nothing: registration
// events for one identity are independent and ordering across identities
// does not matter.
func (b *KafkaBus) Publish(ctx context.Context, e Event) error {
	payload, err := Marshal(e)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return b.writer.WriteMessages(writeCtx, kafka.Message{Value: payload})
}

func (b *KafkaBus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Run fetches messages and delivers them to the subscribed handlers. Offsets
// are committed only after every handler succeeds, so a failed delivery is
// retried (at-least-once). Run blocks until ctx is canceled.
func (b *KafkaBus) Run(ctx context.Context) error {
	for {
		msg, err := b.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Printf("event: kafka fetch error: %v", err)
			continue
		}

		e, err := Unmarshal(msg.Value)
		if err != nil {
			// Malformed messages are never going to decode; skip them.
			log.Printf("event: dropping undecodable message at offset %d: %v", msg.Offset, err)
			if err := b.reader.CommitMessages(ctx, msg); err != nil {
				log.Printf("event: kafka commit error: %v", err)
			}
			continue
		}

		b.mu.RLock()
		handlers := make([]Handler, len(b.handlers))
		copy(handlers, b.handlers)
		b.mu.RUnlock()

		failed := false
		for _, h := range handlers {
			if err := h(ctx, e); err != nil {
				log.Printf("event: handler failed for %s: %v", e.EventName(), err)
				failed = true
			}
		}
		if failed {
			// Leave the offset uncommitted; the group will redeliver.
			continue
		}
		if err := b.reader.CommitMessages(ctx, msg); err != nil {
			log.Printf("event: kafka commit error: %v", err)
		}
	}
}

// Close releases the underlying Kafka connections. Safe on a half-configured
// bus.
func (b *KafkaBus) Close() error {
	var firstErr error
	if b.writer != nil {
		firstErr = b.writer.Close()
	}
	if b.reader != nil {
		if err := b.reader.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
