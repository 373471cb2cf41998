package pubsub

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-notice-service/internal/domain/bus"
	"github.com/webitel/im-notice-service/internal/domain/event"
	"github.com/webitel/im-notice-service/internal/domain/model"
)

func TestDeduplicator(t *testing.T) {
	d, err := NewDeduplicator(2)
	require.NoError(t, err)

	assert.True(t, d.FirstSeen("a"))
	assert.False(t, d.FirstSeen("a"))

	d.Remember("b")
	assert.False(t, d.FirstSeen("b"))

	// "a" is evicted by the third id
	d.Remember("c")
	assert.True(t, d.FirstSeen("a"))
	assert.Equal(t, 2, d.Len())

	_, err = NewDeduplicator(0)
	assert.Error(t, err)
}

func TestEventDispatcher_PublishesOnRoutingKey(t *testing.T) {
	f := NewChannelFactory(watermill.NopLogger{})
	t.Cleanup(func() { _ = f.Close() })

	sub, err := f.BuildSubscriber("q", "ex", event.TopicMessageAdded)
	require.NoError(t, err)
	msgs, err := sub.Subscribe(context.Background(), event.TopicMessageAdded)
	require.NoError(t, err)

	pub, err := f.BuildPublisher("ex")
	require.NoError(t, err)
	d := NewEventDispatcher(pub)

	ev := event.NewAdd(model.Message{UseCaseID: "A", Severity: model.SeverityFatal}, nil, model.TargetName("main"))
	require.NoError(t, d.Publish(context.Background(), ev))

	select {
	case msg := <-msgs:
		msg.Ack()
		assert.Equal(t, ev.ID, msg.Metadata.Get("event_id"))

		var got event.MessageEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &got))
		assert.Equal(t, ev.ID, got.ID)
		assert.Equal(t, event.Add, got.Kind)
		assert.Equal(t, model.SeverityFatal, got.Message.Severity)
		assert.Equal(t, "main", got.Target.Name())
	case <-time.After(time.Second):
		t.Fatal("no message published")
	}

	assert.Error(t, d.Publish(context.Background(), nil))
}

func TestExporter_ExportsOnlyLocalEvents(t *testing.T) {
	f := NewChannelFactory(watermill.NopLogger{})
	t.Cleanup(func() { _ = f.Close() })

	msgs, err := f.ch.Subscribe(context.Background(), event.TopicMessageCleared)
	require.NoError(t, err)

	dedup, err := NewDeduplicator(16)
	require.NoError(t, err)

	b := bus.New()
	exp := NewExporter(NewEventDispatcher(f.ch), dedup, slog.New(slog.DiscardHandler), 8)
	exp.Start(b)

	mirrored := event.NewRemoveAll()
	mirrored.Origin = event.OriginBroker
	b.Publish(mirrored)

	local := event.NewRemoveAll()
	b.Publish(local)

	select {
	case msg := <-msgs:
		msg.Ack()
		assert.Equal(t, local.ID, msg.Metadata.Get("event_id"))
	case <-time.After(time.Second):
		t.Fatal("local event was not exported")
	}

	assert.False(t, dedup.FirstSeen(local.ID), "exported id is remembered")
	assert.True(t, dedup.FirstSeen(mirrored.ID))

	exp.Stop()
	exp.Stop()
	assert.Equal(t, 0, b.SubscriberCount())
}
