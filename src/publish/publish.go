package publish

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"market-gateway/src/execution"
	"market-gateway/src/feed"
)

// Sink accepts serialized tick and fill payloads on logically separate
// subjects. Serialization failures are returned to the caller; delivery
// failures are logged and not retried here.
type Sink interface {
	PublishTick(ctx context.Context, tick *feed.Tick) error
	PublishFill(ctx context.Context, fill *execution.FillEvent) error
	Close() error
}

// KafkaSink forwards payloads to two Kafka topics, one per subject.
type KafkaSink struct {
	tickWriter *kafka.Writer
	fillWriter *kafka.Writer
}

func NewKafkaSink(brokers []string, tickTopic, fillTopic string, batchBytes int64) *KafkaSink {
	return &KafkaSink{
		tickWriter: kafka.NewWriter(kafka.WriterConfig{
			Brokers:    brokers,
			Topic:      tickTopic,
			BatchBytes: int(batchBytes),
			Async:      true,
		}),
		fillWriter: kafka.NewWriter(kafka.WriterConfig{
			Brokers:    brokers,
			Topic:      fillTopic,
			BatchBytes: int(batchBytes),
		}),
	}
}

func (s *KafkaSink) PublishTick(ctx context.Context, tick *feed.Tick) error {
	payload, err := json.Marshal(tick)
	if err != nil {
		return fmt.Errorf("failed to serialize tick: %w", err)
	}

	if err := s.tickWriter.WriteMessages(ctx, kafka.Message{Value: payload}); err != nil {
		log.Error().
			Err(err).
			Str("symbol", tick.Symbol).
			Uint64("seq_id", tick.SeqID).
			Msg("Failed to publish tick")
		return fmt.Errorf("failed to publish tick: %w", err)
	}
	return nil
}

func (s *KafkaSink) PublishFill(ctx context.Context, fill *execution.FillEvent) error {
	payload, err := json.Marshal(fill)
	if err != nil {
		return fmt.Errorf("failed to serialize fill: %w", err)
	}

	if err := s.fillWriter.WriteMessages(ctx, kafka.Message{Value: payload}); err != nil {
		log.Error().
			Err(err).
			Str("exchange_order_id", fill.ExchangeOrderID).
			Uint64("seq_id", fill.SeqID).
			Msg("Failed to publish fill")
		return fmt.Errorf("failed to publish fill: %w", err)
	}
	return nil
}

func (s *KafkaSink) Close() error {
	tickErr := s.tickWriter.Close()
	fillErr := s.fillWriter.Close()
	if tickErr != nil {
		return tickErr
	}
	return fillErr
}

// LogSink serializes payloads and logs them instead of delivering anywhere.
// It is the default sink when no Kafka brokers are configured.
type LogSink struct{}

func NewLogSink() *LogSink {
	return &LogSink{}
}

func (s *LogSink) PublishTick(_ context.Context, tick *feed.Tick) error {
	payload, err := json.Marshal(tick)
	if err != nil {
		return fmt.Errorf("failed to serialize tick: %w", err)
	}
	log.Debug().
		Str("subject", "ticks").
		Uint64("seq_id", tick.SeqID).
		Int("bytes", len(payload)).
		Msg("Tick published")
	return nil
}

func (s *LogSink) PublishFill(_ context.Context, fill *execution.FillEvent) error {
	payload, err := json.Marshal(fill)
	if err != nil {
		return fmt.Errorf("failed to serialize fill: %w", err)
	}
	log.Info().
		Str("subject", "fills").
		Str("exchange_order_id", fill.ExchangeOrderID).
		Uint64("seq_id", fill.SeqID).
		Int("bytes", len(payload)).
		Msg("Fill published")
	return nil
}

func (s *LogSink) Close() error {
	return nil
}
