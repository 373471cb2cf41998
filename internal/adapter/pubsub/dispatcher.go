package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/webitel/im-notice-service/internal/domain/bus"
	"github.com/webitel/im-notice-service/internal/domain/event"
)

// EventDispatcher defines the high-level contract for outgoing events.
// This allows the handler to stay agnostic of the transport implementation.
type EventDispatcher interface {
	Publish(ctx context.Context, ev *event.MessageEvent) error
	Publisher() message.Publisher
}

// eventDispatcher is the concrete implementation (private).
type eventDispatcher struct {
	publisher message.Publisher
}

// NewEventDispatcher returns the interface instead of the pointer to the struct.
func NewEventDispatcher(pub message.Publisher) EventDispatcher {
	return &eventDispatcher{
		publisher: pub,
	}
}

func (d *eventDispatcher) Publish(ctx context.Context, ev *event.MessageEvent) error {
	if ev == nil {
		return fmt.Errorf("event dispatcher: cannot publish nil event")
	}
	topic := ev.GetRoutingKey()
	if topic == "" {
		return nil
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("event dispatcher: marshal failure: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("event_id", ev.ID)
	msg.SetContext(ctx)

	if err := d.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("event dispatcher: failed to publish to topic %s: %w", topic, err)
	}
	return nil
}

func (d *eventDispatcher) Publisher() message.Publisher {
	return d.publisher
}

// Exporter mirrors locally produced bus events to the broker so peer nodes
// can fold them too. Publishing happens off the bus goroutine.
type Exporter struct {
	dispatcher EventDispatcher
	dedup      *Deduplicator
	logger     *slog.Logger

	// [SEND_GUARD] onEvent never writes to a closed queue
	mu          sync.RWMutex
	closed      bool
	queue       chan *event.MessageEvent
	unsubscribe func()
	wg          sync.WaitGroup
	stopOnce    sync.Once
}

func NewExporter(d EventDispatcher, dedup *Deduplicator, logger *slog.Logger, buffer int) *Exporter {
	if buffer < 1 {
		buffer = 1
	}
	return &Exporter{
		dispatcher: d,
		dedup:      dedup,
		logger:     logger,
		queue:      make(chan *event.MessageEvent, buffer),
	}
}

// Start subscribes to the bus and runs the publish loop.
func (e *Exporter) Start(sub bus.Subscriber) {
	e.wg.Add(1)
	go e.loop()
	e.unsubscribe = sub.Subscribe(e.onEvent)
}

func (e *Exporter) onEvent(ev *event.MessageEvent) {
	if ev.Origin != event.OriginLocal {
		return
	}
	// [ECHO_GUARD] the broker will hand this id back to our own consumers
	e.dedup.Remember(ev.ID)

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return
	}
	select {
	case e.queue <- ev:
	default:
		e.logger.Warn("EXPORT_QUEUE_FULL", "event_id", ev.ID, "kind", ev.Kind.String())
	}
}

func (e *Exporter) loop() {
	defer e.wg.Done()
	for ev := range e.queue {
		if err := e.dispatcher.Publish(context.Background(), ev); err != nil {
			e.logger.Error("EVENT_EXPORT_FAILED", "err", err, "event_id", ev.ID)
			continue
		}
		e.logger.Debug("EVENT_EXPORTED", "event_id", ev.ID, "topic", ev.GetRoutingKey())
	}
}

// Stop detaches from the bus and flushes what is queued.
func (e *Exporter) Stop() {
	e.stopOnce.Do(func() {
		if e.unsubscribe != nil {
			e.unsubscribe()
		}
		e.mu.Lock()
		e.closed = true
		close(e.queue)
		e.mu.Unlock()
		e.wg.Wait()
	})
}
