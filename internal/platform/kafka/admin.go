package kafka

import (
	"context"
	"errors"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	dErrors "registrar/pkg/domain-errors"
)

// EnsureTopics creates the given topics if they do not exist yet.
// Safe to call on every startup.
func EnsureTopics(ctx context.Context, brokers []string, topics ...string) error {
	client, err := kgo.NewClient(kgo.SeedBrokers(brokers...))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "create kafka admin client")
	}
	defer client.Close()

	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopics(ctx, 1, 1, nil, topics...)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "create topics")
	}
	for _, res := range resp.Sorted() {
		if res.Err != nil && !errors.Is(res.Err, kerr.TopicAlreadyExists) {
			return dErrors.Wrap(res.Err, dErrors.CodeUpstreamUnavailable, "create topic "+res.Topic)
		}
	}
	return nil
}
