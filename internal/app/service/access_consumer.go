package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sifan077/CloudShare/internal/app/model"
	apprepository "github.com/sifan077/CloudShare/internal/app/repository"
	"go.uber.org/zap"
)

const accessFetchBatch = 10

// AccessConsumer drains access events from NATS JetStream into the archive.
type AccessConsumer struct {
	js     nats.JetStreamContext
	logger *zap.Logger
	repo   apprepository.AccessEventRepository
	cancel context.CancelFunc
	done   chan struct{}
}

// NewAccessConsumer creates a new access event consumer.
func NewAccessConsumer(js nats.JetStreamContext, logger *zap.Logger, repo apprepository.AccessEventRepository) *AccessConsumer {
	return &AccessConsumer{js: js, logger: logger, repo: repo}
}

// EnsureStream creates the access stream if it does not exist yet. The
// publisher needs the stream even when this process does not consume.
func EnsureStream(js nats.JetStreamContext) error {
	if _, err := js.StreamInfo(model.AccessStreamName); err == nil {
		return nil
	}
	_, err := js.AddStream(&nats.StreamConfig{
		Name:     model.AccessStreamName,
		Subjects: []string{model.AccessStreamSubject},
		MaxBytes: model.AccessStreamMaxBytes,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// Start begins consuming access events.
func (c *AccessConsumer) Start() error {
	if err := EnsureStream(c.js); err != nil {
		return err
	}

	// Create consumer if not exists
	if _, err := c.js.ConsumerInfo(model.AccessStreamName, model.AccessConsumerName); err != nil {
		_, err = c.js.AddConsumer(model.AccessStreamName, &nats.ConsumerConfig{
			Durable:   model.AccessConsumerName,
			AckPolicy: nats.AckExplicitPolicy,
		})
		if err != nil {
			return fmt.Errorf("failed to create consumer: %w", err)
		}
	}

	sub, err := c.js.PullSubscribe(model.AccessStreamSubject, model.AccessConsumerName)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.consume(ctx, sub)
	return nil
}

// Stop ends the fetch loop and waits for the in-flight batch.
func (c *AccessConsumer) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
}

func (c *AccessConsumer) consume(ctx context.Context, sub *nats.Subscription) {
	defer close(c.done)
	for {
		if ctx.Err() != nil {
			c.logger.Info("access consumer stopped")
			return
		}

		msgs, err := sub.Fetch(accessFetchBatch, nats.MaxWait(5*time.Second))
		if err != nil && !errors.Is(err, nats.ErrTimeout) && !errors.Is(err, context.DeadlineExceeded) {
			c.logger.Error("failed to fetch messages", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}

		for _, msg := range msgs {
			if err := c.handle(ctx, msg.Data); err != nil {
				var poison *poisonError
				if errors.As(err, &poison) {
					// Undecodable payloads are dropped; redelivery cannot fix them.
					_ = msg.Term()
					continue
				}
				_ = msg.Nak()
				continue
			}
			_ = msg.Ack()
		}
	}
}

type poisonError struct{ err error }

func (e *poisonError) Error() string { return e.err.Error() }

func (e *poisonError) Unwrap() error { return e.err }

func (c *AccessConsumer) handle(ctx context.Context, data []byte) error {
	var event model.AccessEvent
	if err := json.Unmarshal(data, &event); err != nil {
		c.logger.Error("failed to unmarshal access event", zap.Error(err))
		return &poisonError{err: err}
	}
	if event.ID == "" || event.RecordID == "" {
		c.logger.Error("access event without id", zap.ByteString("payload", data))
		return &poisonError{err: errors.New("access event missing id")}
	}

	if err := c.repo.Create(ctx, &event); err != nil {
		c.logger.Error("failed to store access event",
			zap.String("id", event.ID),
			zap.String("record_id", event.RecordID),
			zap.Error(err))
		return err
	}

	c.logger.Debug("access event stored",
		zap.String("id", event.ID),
		zap.String("record_id", event.RecordID),
		zap.String("ip", event.IP),
		zap.Time("timestamp", event.Timestamp),
	)
	return nil
}
