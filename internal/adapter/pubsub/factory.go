package pubsub

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Factory builds broker endpoints. Handlers never see which broker is behind it.
type Factory interface {
	BuildPublisher(exchange string) (message.Publisher, error)
	// BuildSubscriber binds queue to topic on exchange.
	BuildSubscriber(queue, exchange, topic string) (message.Subscriber, error)
	Close() error
}

// NewFactory selects AMQP when url is set and the in-process channel otherwise.
func NewFactory(url string, logger watermill.LoggerAdapter) Factory {
	if url == "" {
		return NewChannelFactory(logger)
	}
	return &amqpFactory{url: url, logger: logger}
}

// --- AMQP ---

type amqpFactory struct {
	url    string
	logger watermill.LoggerAdapter

	mu      sync.Mutex
	closers []interface{ Close() error }
}

func (f *amqpFactory) config(queue, exchange string) amqp.Config {
	cfg := amqp.NewDurablePubSubConfig(f.url, amqp.GenerateQueueNameConstant(queue))

	// [TOPIC_EXCHANGE] topics become routing keys of one shared exchange
	cfg.Exchange.GenerateName = func(string) string { return exchange }
	cfg.Exchange.Type = "topic"
	cfg.Exchange.Durable = true
	cfg.Publish.GenerateRoutingKey = func(topic string) string { return topic }
	cfg.QueueBind.GenerateRoutingKey = func(topic string) string { return topic }
	return cfg
}

func (f *amqpFactory) BuildPublisher(exchange string) (message.Publisher, error) {
	pub, err := amqp.NewPublisher(f.config("", exchange), f.logger)
	if err != nil {
		return nil, fmt.Errorf("amqp publisher %s: %w", exchange, err)
	}
	f.track(pub)
	return pub, nil
}

func (f *amqpFactory) BuildSubscriber(queue, exchange, _ string) (message.Subscriber, error) {
	sub, err := amqp.NewSubscriber(f.config(queue, exchange), f.logger)
	if err != nil {
		return nil, fmt.Errorf("amqp subscriber %s: %w", queue, err)
	}
	f.track(sub)
	return sub, nil
}

func (f *amqpFactory) track(c interface{ Close() error }) {
	f.mu.Lock()
	f.closers = append(f.closers, c)
	f.mu.Unlock()
}

func (f *amqpFactory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var errs []error
	for _, c := range f.closers {
		errs = append(errs, c.Close())
	}
	f.closers = nil
	return errors.Join(errs...)
}

// --- IN-PROCESS ---

// ChannelFactory serves every endpoint from one GoChannel: a single-node
// deployment, or tests, without a broker.
type ChannelFactory struct {
	ch *gochannel.GoChannel
}

func NewChannelFactory(logger watermill.LoggerAdapter) *ChannelFactory {
	return &ChannelFactory{
		ch: gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, logger),
	}
}

func (f *ChannelFactory) BuildPublisher(string) (message.Publisher, error) { return f.ch, nil }

func (f *ChannelFactory) BuildSubscriber(_, _, _ string) (message.Subscriber, error) {
	return f.ch, nil
}

func (f *ChannelFactory) Close() error { return f.ch.Close() }
