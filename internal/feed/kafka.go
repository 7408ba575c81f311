// Package feed adapts external market data sources into ledger and store updates.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/jwtly10/tradedesk/internal/depth"
	"github.com/jwtly10/tradedesk/internal/types"
)

type Kind string

const (
	KindCandle Kind = "candle"
	KindBook   Kind = "book"
)

// Message is the JSON payload carried on the market data topic.
type Message struct {
	Kind   Kind          `json:"kind"`
	Symbol string        `json:"symbol"`
	Bar    *types.Bar    `json:"bar,omitempty"`
	Bids   []depth.Level `json:"bids,omitempty"`
	Asks   []depth.Level `json:"asks,omitempty"`
}

// Sink receives decoded feed updates.
type Sink interface {
	ApplyBar(ctx context.Context, symbol string, bar types.Bar) error
	ApplyBook(ctx context.Context, symbol string, book depth.RawBook) error
}

// MessageReader is the subset of *kafka.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// NewKafkaReader builds a reader with manual commits; the consumer commits
// after each message is applied.
func NewKafkaReader(cfg KafkaConfig) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.GroupID,
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		CommitInterval: 0,
	})
}

type ConsumerConfig struct {
	// FetchTimeout bounds a single FetchMessage call so cancellation is noticed.
	FetchTimeout time.Duration
	// RetryDelay is the pause after a fetch error or a failed apply.
	RetryDelay time.Duration
}

func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{FetchTimeout: 5 * time.Second, RetryDelay: 2 * time.Second}
}

// KafkaConsumer reads Messages and hands them to a Sink, committing each one
// once it has been applied or rejected as malformed.
type KafkaConsumer struct {
	reader MessageReader
	sink   Sink
	logger *slog.Logger
	cfg    ConsumerConfig
}

func NewKafkaConsumer(reader MessageReader, sink Sink, logger *slog.Logger, cfg ConsumerConfig) *KafkaConsumer {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultConsumerConfig().FetchTimeout
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultConsumerConfig().RetryDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaConsumer{reader: reader, sink: sink, logger: logger, cfg: cfg}
}

// Start runs the consume loop until ctx is cancelled.
func (c *KafkaConsumer) Start(ctx context.Context) error {
	c.logger.Info("starting market data consumer")

	for {
		if ctx.Err() != nil {
			return nil
		}

		fetchCtx, cancel := context.WithTimeout(ctx, c.cfg.FetchTimeout)
		m, err := c.reader.FetchMessage(fetchCtx)
		cancel()

		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			c.logger.Error("Kafka fetch error", "error", err)
			if !c.sleep(ctx) {
				return nil
			}
			continue
		}

		if err := c.handle(ctx, m); err != nil {
			// Only cancellation escapes handle.
			return nil
		}

		if err := c.reader.CommitMessages(ctx, m); err != nil {
			c.logger.Warn("Failed to commit offset", "offset", m.Offset, "error", err)
		}
	}
}

// handle applies one message, retrying transient sink failures. Malformed
// messages are logged and dropped.
func (c *KafkaConsumer) handle(ctx context.Context, m kafka.Message) error {
	msg, err := Decode(m.Value)
	if err != nil {
		c.logger.Warn("Skipping malformed message", "offset", m.Offset, "error", err)
		return nil
	}

	for {
		err := c.apply(ctx, msg)
		if err == nil {
			return nil
		}
		if isRejection(err) {
			c.logger.Warn("Skipping rejected message", "kind", msg.Kind, "symbol", msg.Symbol, "error", err)
			return nil
		}
		c.logger.Error("Apply failed, retrying", "kind", msg.Kind, "symbol", msg.Symbol, "error", err)
		if !c.sleep(ctx) {
			return ctx.Err()
		}
	}
}

func (c *KafkaConsumer) apply(ctx context.Context, msg Message) error {
	switch msg.Kind {
	case KindCandle:
		return c.sink.ApplyBar(ctx, msg.Symbol, *msg.Bar)
	case KindBook:
		return c.sink.ApplyBook(ctx, msg.Symbol, depth.RawBook{Bids: msg.Bids, Asks: msg.Asks})
	}
	return fmt.Errorf("unknown kind %q", msg.Kind)
}

func (c *KafkaConsumer) sleep(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(c.cfg.RetryDelay):
		return true
	}
}

// Decode parses and shape-checks a feed payload. Value validation is left to the sink.
func Decode(raw []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	msg.Symbol = strings.ToUpper(strings.TrimSpace(msg.Symbol))
	if msg.Symbol == "" {
		return Message{}, fmt.Errorf("message without symbol: %w", types.ErrInvalidInputSeries)
	}

	switch msg.Kind {
	case KindCandle:
		if msg.Bar == nil {
			return Message{}, fmt.Errorf("candle message for %s without bar: %w", msg.Symbol, types.ErrInvalidInputSeries)
		}
	case KindBook:
	default:
		return Message{}, fmt.Errorf("unknown message kind %q: %w", msg.Kind, types.ErrInvalidInputSeries)
	}
	return msg, nil
}

// isRejection reports whether the sink refused the data itself, as opposed
// to failing to process it.
func isRejection(err error) bool {
	return errors.Is(err, types.ErrInvalidInputSeries) ||
		errors.Is(err, types.ErrInvalidPrice) ||
		errors.Is(err, types.ErrInvalidQuantity)
}
