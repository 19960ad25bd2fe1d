package service

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"
	"github.com/sifan077/CloudShare/internal/app/model"
)

// AccessPublisher publishes access events to NATS JetStream.
type AccessPublisher struct {
	js nats.JetStreamContext
}

// NewAccessPublisher creates a new access event publisher.
func NewAccessPublisher(js nats.JetStreamContext) *AccessPublisher {
	return &AccessPublisher{js: js}
}

// Publish publishes an access event to the stream. The event id doubles as
// the JetStream message id so duplicate publishes are dropped by the server.
func (p *AccessPublisher) Publish(ctx context.Context, event model.AccessEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	_, err = p.js.Publish(model.AccessStreamSubject, data, nats.Context(ctx), nats.MsgId(event.ID))
	return err
}
