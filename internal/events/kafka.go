package events

import (
	"context"
	"fmt"
	"time"

	"rentcrm/internal/config"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

const kafkaBufferSize = 256

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaForwarder copies bus events to a Kafka topic. Publishing only
// enqueues; Run performs the writes.
type KafkaForwarder struct {
	writer  messageWriter
	queue   chan kafka.Message
	timeout time.Duration
	logger  *zerolog.Logger
}

func NewKafkaForwarder(cfg config.KafkaConfig, logger *zerolog.Logger) *KafkaForwarder {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	return newKafkaForwarder(writer, logger)
}

func newKafkaForwarder(w messageWriter, logger *zerolog.Logger) *KafkaForwarder {
	return &KafkaForwarder{
		writer:  w,
		queue:   make(chan kafka.Message, kafkaBufferSize),
		timeout: 10 * time.Second,
		logger:  logger,
	}
}

// Attach subscribes the forwarder to every booking event on bus.
func (f *KafkaForwarder) Attach(bus *EventBus) {
	bus.Subscribe(f.Handle, BookingEventTypes...)
}

// Handle enqueues the event keyed by booking id so a booking's events stay
// on one partition.
func (f *KafkaForwarder) Handle(event *Event) error {
	p, err := event.Decode()
	if err != nil {
		return fmt.Errorf("decode event %s: %w", event.Type, err)
	}

	msg := kafka.Message{
		Key:   []byte(p.BookingID),
		Value: event.Payload,
		Time:  event.CreatedAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}

	select {
	case f.queue <- msg:
		return nil
	default:
		return fmt.Errorf("kafka queue full, dropping %s for booking %s", event.Type, p.BookingID)
	}
}

// Run writes queued messages until ctx is cancelled, then flushes what is
// left and closes the writer.
func (f *KafkaForwarder) Run(ctx context.Context) {
	f.logger.Info().Msg("Kafka forwarder started")
	for {
		select {
		case <-ctx.Done():
			f.drain()
			if err := f.writer.Close(); err != nil {
				f.logger.Warn().Err(err).Msg("Failed to close kafka writer")
			}
			f.logger.Info().Msg("Kafka forwarder stopped")
			return
		case msg := <-f.queue:
			f.write(context.Background(), msg)
		}
	}
}

func (f *KafkaForwarder) drain() {
	for {
		select {
		case msg := <-f.queue:
			f.write(context.Background(), msg)
		default:
			return
		}
	}
}

func (f *KafkaForwarder) write(ctx context.Context, msg kafka.Message) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	if err := f.writer.WriteMessages(ctx, msg); err != nil {
		f.logger.Error().Err(err).Str("key", string(msg.Key)).Msg("Failed to write message to Kafka")
		return
	}
	f.logger.Debug().Str("key", string(msg.Key)).Msg("Published event to Kafka")
}
