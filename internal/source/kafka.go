package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"snsnotify/internal/logging"
)

// KafkaConfig configures a consumer-group reader.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka receives envelopes from a topic as part of a consumer group. Offsets
// are committed after each message is handled, including messages that were
// dropped as undecodable.
type Kafka struct {
	cfg       KafkaConfig
	logger    *slog.Logger
	newReader func(KafkaConfig) messageReader
}

// NewKafka returns a Kafka source.
func NewKafka(cfg KafkaConfig, logger *slog.Logger) *Kafka {
	return &Kafka{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "source.kafka"),
		newReader: defaultKafkaReader,
	}
}

func defaultKafkaReader(cfg KafkaConfig) messageReader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     time.Second,
		StartOffset: kafka.LastOffset,
	})
}

// Name implements Source.
func (k *Kafka) Name() string { return "kafka" }

// Run consumes until ctx is cancelled.
func (k *Kafka) Run(ctx context.Context, handle Handler) error {
	reader := k.newReader(k.cfg)
	defer func() {
		if err := reader.Close(); err != nil {
			k.logger.Debug("kafka reader close failed", logging.Error(err))
		}
	}()
	k.logger.Info("kafka source started",
		logging.Any("brokers", k.cfg.Brokers),
		logging.String("topic", k.cfg.Topic),
		logging.String("group_id", k.cfg.GroupID),
	)

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("kafka fetch %s: %w", k.cfg.Topic, err)
		}
		k.handleMessage(ctx, handle, msg)
		if err := reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logging.WarnWithContext(k.logger, "kafka commit failed", "kafka_commit_failed",
				logging.Int64("offset", msg.Offset),
				logging.Int("partition", msg.Partition),
				logging.Error(err),
				logging.String(logging.FieldImpact, "event may be delivered again"),
			)
		}
	}
}

func (k *Kafka) handleMessage(ctx context.Context, handle Handler, msg kafka.Message) {
	ev, err := Decode(msg.Value)
	if err != nil {
		logging.WarnWithContext(k.logger, "dropping kafka message", "source_decode_failed",
			logging.Int64("offset", msg.Offset),
			logging.Int("partition", msg.Partition),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "publish a {\"phase\",\"event\"} JSON envelope"),
		)
		return
	}
	if err := handle(ctx, ev); err != nil {
		logging.WarnWithContext(k.logger, "build event handling failed", "source_handle_failed",
			logging.Job(ev.Job),
			logging.BuildNumber(ev.Number),
			logging.Error(err),
		)
	}
}
