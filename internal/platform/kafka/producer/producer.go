package producer

import (
	"context"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	dErrors "registrar/pkg/domain-errors"
)

// Producer wraps a franz-go client for publishing lifecycle messages.
type Producer struct {
	client *kgo.Client
	logger *slog.Logger
}

type Config struct {
	Brokers []string
	// ClientID identifies this service in broker logs.
	ClientID string
}

func New(cfg Config, logger *slog.Logger) (*Producer, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	}
	if cfg.ClientID != "" {
		opts = append(opts, kgo.ClientID(cfg.ClientID))
	}
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "create kafka client")
	}
	return &Producer{client: client, logger: logger}, nil
}

// Produce publishes one message and waits for the broker ack.
func (p *Producer) Produce(ctx context.Context, topic string, key, value []byte) error {
	record := &kgo.Record{Topic: topic, Key: key, Value: value}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "produce to "+topic)
	}
	return nil
}

// ProduceAsync publishes without waiting. Failures are logged.
func (p *Producer) ProduceAsync(ctx context.Context, topic string, key, value []byte) {
	record := &kgo.Record{Topic: topic, Key: key, Value: value}
	p.client.Produce(ctx, record, func(r *kgo.Record, err error) {
		if err != nil {
			p.logger.Error("async produce failed", "topic", r.Topic, "error", err)
		}
	})
}

func (p *Producer) Close() {
	p.client.Close()
}
