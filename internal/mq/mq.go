// Package mq carries domain events to an external broker. RabbitMQ and
// Google Pub/Sub are supported; with the none driver nothing is opened and
// callers skip publishing.
package mq

import (
	"context"
	"fmt"

	"github.com/bookingd/apiserver/config"
)

// Message is one delivery from either broker.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler consumes a delivery. Returning an error asks the broker to
// redeliver.
type Handler func(ctx context.Context, msg Message) error

// Backend is the broker-specific client behind MQ.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// MQ is the broker handle shared by the event publisher and the events
// command.
type MQ struct {
	backend Backend
}

func New(backend Backend) *MQ {
	return &MQ{backend: backend}
}

// Open connects the broker named by cfg.Driver. It returns a nil MQ and a
// nil error for the none driver.
func Open(ctx context.Context, cfg config.MQConfig) (*MQ, error) {
	var (
		backend Backend
		err     error
	)
	switch cfg.Driver {
	case "", config.MQNone:
		return nil, nil
	case config.MQRabbitMQ:
		backend, err = NewRabbitMQClient(cfg.RabbitMQ)
	case config.MQPubSub:
		backend, err = NewPubSubClient(ctx, cfg.PubSub)
	default:
		return nil, fmt.Errorf("mq: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	return New(backend), nil
}

// OpenEventPublisher opens the broker and binds a publisher to cfg.Channel.
// It returns nil when publishing is disabled.
func OpenEventPublisher(ctx context.Context, cfg config.MQConfig) (*EventPublisher, error) {
	m, err := Open(ctx, cfg)
	if err != nil || m == nil {
		return nil, err
	}
	return NewEventPublisher(m, cfg.Channel), nil
}

func (m *MQ) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	return m.backend.Publish(ctx, channel, data, attrs)
}

// Subscribe delivers messages from channel to handler. It blocks until ctx
// is cancelled or the broker connection fails.
func (m *MQ) Subscribe(ctx context.Context, channel string, handler Handler) error {
	return m.backend.Subscribe(ctx, channel, handler)
}

func (m *MQ) Close() error {
	return m.backend.Close()
}
