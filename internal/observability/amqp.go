package observability

import (
	"context"
)

// Publisher is the event bus the service publishes lifecycle events to.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error
}

var defaultPublisher Publisher

func SetPublisher(publisher Publisher) {
	defaultPublisher = publisher
}

// PublishEvent wraps payload in an envelope and publishes it on the default publisher.
// Without a publisher it does nothing.
func PublishEvent(ctx context.Context, routingKey, eventName string, payload any, headers map[string]string) error {
	if defaultPublisher == nil {
		return nil
	}

	envelope := EventEnvelope{EventType: routingKey, EventName: eventName, Payload: payload}
	err := defaultPublisher.Publish(ctx, routingKey, envelope, headers)
	if err != nil {
		IncAMQPPublishError()
	}
	return err
}
