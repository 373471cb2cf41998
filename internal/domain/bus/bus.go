/*
Package bus provides the multicast channel that carries message events from
producers to display surfaces.

Key properties:
  - Total order: every subscriber observes every event in the same global
    order. Publishing is serialised through a drain queue, so an event
    published from inside a handler is delivered after the current one.
  - Never completes: Complete is accepted and ignored; the bus lives as long
    as its owner.
  - Explicit lifetime: there is no package-level instance. Each owner (the
    fx graph, a test) constructs its own Bus.
*/
package bus

import (
	"context"
	"log/slog"
	"sync"

	"github.com/webitel/im-notice-service/internal/domain/cause"
	"github.com/webitel/im-notice-service/internal/domain/event"
	"github.com/webitel/im-notice-service/internal/domain/model"
)

// Handler receives events in publication order. It must not block for long:
// delivery is synchronous.
type Handler func(ev *event.MessageEvent)

// Publisher is the producer-side contract of the bus.
type Publisher interface {
	AddMessage(msg model.Message, opts ...AddOption)
	RemoveMessage(msg model.Message)
	RemoveAllMessages()
	Publish(ev *event.MessageEvent)
}

// Subscriber is the consumer-side contract of the bus.
type Subscriber interface {
	Subscribe(h Handler) (unsubscribe func())
}

var (
	_ Publisher  = (*Bus)(nil)
	_ Subscriber = (*Bus)(nil)
)

type subscription struct {
	id uint64
	h  Handler
}

// Bus is a synchronous, totally ordered multicast of message events.
type Bus struct {
	logger     *slog.Logger
	eventLevel slog.Level

	// [SUBSCRIBERS] copy-on-write; publishers iterate a snapshot
	subMu  sync.RWMutex
	subs   []subscription
	nextID uint64

	// [DRAIN_QUEUE] one goroutine at a time delivers queued events
	qMu      sync.Mutex
	queue    []*event.MessageEvent
	draining bool
}

func New(opts ...Option) *Bus {
	b := &Bus{
		logger:     slog.New(slog.DiscardHandler),
		eventLevel: slog.LevelDebug,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// AddMessage publishes one ADD event. When an error payload is attached it
// is transformed into exactly one cause which replaces the message's own
// causes for this event.
func (b *Bus) AddMessage(msg model.Message, opts ...AddOption) {
	var o addOptions
	for _, opt := range opts {
		opt(&o)
	}

	causes := msg.Causes
	if o.err != nil {
		causes = []model.MessageCause{cause.Transform(o.err)}
	}

	b.Publish(event.NewAdd(msg, causes, o.target))
}

// RemoveMessage publishes one REMOVE event; surfaces match it by use case.
func (b *Bus) RemoveMessage(msg model.Message) {
	b.Publish(event.NewRemove(msg))
}

// RemoveAllMessages publishes one REMOVE_ALL event.
func (b *Bus) RemoveAllMessages() {
	b.Publish(event.NewRemoveAll())
}

// Complete is a no-op: the stream only ends with its owner.
func (b *Bus) Complete() {}

// Publish enqueues ev and, unless another call is already draining, delivers
// queued events to every subscriber until the queue is empty.
func (b *Bus) Publish(ev *event.MessageEvent) {
	if ev == nil {
		return
	}

	b.qMu.Lock()
	b.queue = append(b.queue, ev)
	if b.draining {
		b.qMu.Unlock()
		return
	}
	b.draining = true
	b.qMu.Unlock()

	for {
		b.qMu.Lock()
		if len(b.queue) == 0 {
			b.draining = false
			b.qMu.Unlock()
			return
		}
		next := b.queue[0]
		b.queue[0] = nil
		b.queue = b.queue[1:]
		b.qMu.Unlock()

		b.deliver(next)
	}
}

func (b *Bus) deliver(ev *event.MessageEvent) {
	b.subMu.RLock()
	subs := b.subs
	b.subMu.RUnlock()

	b.logger.Log(context.Background(), b.eventLevel, "BUS_EVENT_PUBLISHED",
		"event_id", ev.ID,
		"kind", ev.Kind.String(),
		"use_case_id", ev.UseCaseID(),
		"target", ev.Target.String(),
		"subscribers", len(subs),
	)

	for _, s := range subs {
		b.safeCall(s, ev)
	}
}

// safeCall isolates subscribers: a panicking handler must not starve the rest.
func (b *Bus) safeCall(s subscription, ev *event.MessageEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("BUS_HANDLER_PANIC",
				"subscription", s.id,
				"event_id", ev.ID,
				"err", r,
			)
		}
	}()
	s.h(ev)
}

// Subscribe attaches h. The returned function detaches it; calling it more
// than once is harmless.
func (b *Bus) Subscribe(h Handler) func() {
	b.subMu.Lock()
	b.nextID++
	id := b.nextID
	next := make([]subscription, len(b.subs), len(b.subs)+1)
	copy(next, b.subs)
	b.subs = append(next, subscription{id: id, h: h})
	b.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.unsubscribe(id) })
	}
}

func (b *Bus) unsubscribe(id uint64) {
	b.subMu.Lock()
	defer b.subMu.Unlock()

	next := make([]subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if s.id != id {
			next = append(next, s)
		}
	}
	b.subs = next
}

// SubscriberCount reports the number of attached handlers.
func (b *Bus) SubscriberCount() int {
	b.subMu.RLock()
	defer b.subMu.RUnlock()
	return len(b.subs)
}
