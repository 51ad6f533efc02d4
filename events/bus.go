// Package events is the server's lifecycle event bus. Events are JSON
// encoded onto a watermill gochannel pub/sub, so any subscriber (in process
// or the MQTT forwarder) sees the same payload.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// ErrBusClosed is returned when publishing or subscribing on a closed bus.
var ErrBusClosed = errors.New("event bus closed")

// Bus fans published events out to topic subscribers.
type Bus struct {
	mu     sync.RWMutex
	pubsub *gochannel.GoChannel
	logger *slog.Logger
	closed bool
	wg     sync.WaitGroup
}

// NewBus creates an in-process bus.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{
				OutputChannelBuffer: 100,
				Persistent:          false,
			},
			watermill.NopLogger{},
		),
		logger: logger,
	}
}

// Close stops every subscription and waits for in-flight handlers.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	err := b.pubsub.Close()
	b.wg.Wait()
	return err
}

// PublishRaw publishes an already encoded payload.
func (b *Bus) PublishRaw(topic string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("topic", topic)
	return b.pubsub.Publish(topic, msg)
}

// RawHandler receives a topic's payloads undecoded.
type RawHandler func(ctx context.Context, topic string, payload []byte) error

// SubscribeRaw delivers every payload on topic to fn. Delivery order across
// publishes is not guaranteed.
func (b *Bus) SubscribeRaw(topic string, fn RawHandler) (*Subscription, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrBusClosed
	}

	ctx, cancel := context.WithCancel(context.Background())
	messages, err := b.pubsub.Subscribe(ctx, topic)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribe to %s: %w", topic, err)
	}

	sub := &Subscription{topic: topic, cancel: cancel, done: make(chan struct{})}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer close(sub.done)
		for msg := range messages {
			if err := fn(msg.Context(), topic, msg.Payload); err != nil {
				b.logger.Warn("event handler failed", "topic", topic, "error", err)
			}
			// handler errors are not redelivered
			msg.Ack()
		}
	}()
	return sub, nil
}

// Subscription is an active topic subscription.
type Subscription struct {
	topic  string
	cancel context.CancelFunc
	done   chan struct{}
}

// Topic returns the subscribed topic.
func (s *Subscription) Topic() string { return s.topic }

// Unsubscribe stops delivery and waits for the handler goroutine to exit.
func (s *Subscription) Unsubscribe() {
	s.cancel()
	<-s.done
}

// Publish encodes evt as JSON and publishes it on topic. Publishing on a
// nil bus is a no-op so components can run without events.
func Publish[T any](b *Bus, topic string, evt T) error {
	if b == nil {
		return nil
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", topic, err)
	}
	return b.PublishRaw(topic, payload)
}

// Subscribe decodes each payload on topic into T before calling fn.
func Subscribe[T any](b *Bus, topic string, fn func(ctx context.Context, evt T) error) (*Subscription, error) {
	return b.SubscribeRaw(topic, func(ctx context.Context, _ string, payload []byte) error {
		var evt T
		if err := json.Unmarshal(payload, &evt); err != nil {
			return fmt.Errorf("decode %s event: %w", topic, err)
		}
		return fn(ctx, evt)
	})
}
