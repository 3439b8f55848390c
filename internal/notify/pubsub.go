package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
)

// alertPayload is the JSON body published for each notification.
type alertPayload struct {
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// PubSubNotifier publishes alerts to a Google Cloud Pub/Sub topic.
type PubSubNotifier struct {
	topic *pubsub.Topic
}

// NewPubSubNotifier connects to the project and verifies the topic exists
// before use.
func NewPubSubNotifier(ctx context.Context, projectID, topicID string) (*PubSubNotifier, *pubsub.Client, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, nil, fmt.Errorf("create pubsub client: %w", err)
	}

	topic := client.Topic(topicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("check pubsub topic %q: %w", topicID, err)
	}
	if !exists {
		_ = client.Close()
		return nil, nil, fmt.Errorf("pubsub topic %q does not exist", topicID)
	}

	return &PubSubNotifier{topic: topic}, client, nil
}

// Notify marshals the alert and publishes it, blocking until the server
// acknowledges the message.
func (n *PubSubNotifier) Notify(ctx context.Context, subject, message string) error {
	data, err := json.Marshal(alertPayload{Subject: subject, Message: message})
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	result := n.topic.Publish(ctx, &pubsub.Message{Data: data})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish alert: %w", err)
	}
	return nil
}
