package notify

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
)

// PubSub publishes lifecycle messages to a Google Cloud Pub/Sub topic,
// for downstream consumers that react to batch completion.
type PubSub struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	logger *zap.Logger
}

// NewPubSub creates a Pub/Sub notifier. It authenticates with
// Application Default Credentials and verifies the topic exists up
// front.
func NewPubSub(ctx context.Context, projectID, topicID string, logger *zap.Logger) (*PubSub, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	topic := client.Topic(topicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		if closeErr := client.Close(); closeErr != nil {
			logger.Warn("closing pubsub client after topic check failure", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("checking pubsub topic %q: %w", topicID, err)
	}
	if !exists {
		if closeErr := client.Close(); closeErr != nil {
			logger.Warn("closing pubsub client after topic check failure", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("pubsub topic %q does not exist in project %q", topicID, projectID)
	}

	return &PubSub{client: client, topic: topic, logger: logger}, nil
}

// Send publishes one message and waits for the server ack.
func (p *PubSub) Send(ctx context.Context, msg string) error {
	result := p.topic.Publish(ctx, &pubsub.Message{Data: []byte(msg)})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publishing notification: %w", err)
	}
	return nil
}

// Close flushes pending publishes and releases the client.
func (p *PubSub) Close() error {
	p.topic.Stop()
	return p.client.Close()
}
