package amqp

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/google/uuid"
	"github.com/webitel/im-notice-service/config"
	"github.com/webitel/im-notice-service/internal/adapter/pubsub"
	"github.com/webitel/im-notice-service/internal/domain/event"
	"github.com/webitel/im-notice-service/internal/metrics"
	"github.com/webitel/im-notice-service/internal/service"
)

const (
	// ------------------- TOPICS (ROUTING KEYS) -----------------
	TopicCommandAdd       = "im_notice.command.add"
	TopicCommandRemove    = "im_notice.command.remove"
	TopicCommandRemoveAll = "im_notice.command.remove_all"

	// ------------------- QUEUES (CONSUMERS) --------------------
	CommandQueueSuffix = "commands.v1"
	PeerQueueSuffix    = "peers.v1"
	PoisonTopic        = "im_notice.poison"
)

type MessageHandler struct {
	notifier   service.Notifier
	dedup      *pubsub.Deduplicator
	dispatcher pubsub.EventDispatcher
	metrics    *metrics.Metrics
	logger     *slog.Logger
	cfg        config.BrokerConfig
}

func NewMessageHandler(
	notifier service.Notifier,
	dedup *pubsub.Deduplicator,
	dispatcher pubsub.EventDispatcher,
	m *metrics.Metrics,
	logger *slog.Logger,
	cfg *config.Config,
) *MessageHandler {
	return &MessageHandler{
		notifier:   notifier,
		dedup:      dedup,
		dispatcher: dispatcher,
		metrics:    m,
		logger:     logger,
		cfg:        cfg.Broker,
	}
}

func NewWatermillRouter(logger watermill.LoggerAdapter) (*message.Router, error) {
	return message.NewRouter(message.RouterConfig{CloseTimeout: 10 * time.Second}, logger)
}

type route struct {
	name    string
	queue   string
	topic   string
	handler message.NoPublishHandlerFunc
}

// [REGISTRATION_PIPELINE]
func (h *MessageHandler) RegisterHandlers(router *message.Router, subProvider *pubsub.SubscriberProvider) error {
	poison, err := middleware.PoisonQueue(h.dispatcher.Publisher(), PoisonTopic)
	if err != nil {
		return fmt.Errorf("POISON_SETUP_FAILED: %w", err)
	}

	for _, r := range h.routes() {
		sub, err := subProvider.Build(r.queue, h.cfg.Exchange, r.topic)
		if err != nil {
			return err
		}

		router.AddNoPublisherHandler(r.name, r.topic, sub, r.handler).AddMiddleware(
			TraceIDMiddleware,
			LoggingMiddleware(h.logger),
			NewRetryMiddleware(h.logger).Middleware,
			poison,
			middleware.NewThrottle(100, time.Second).Middleware,
			middleware.Timeout(time.Second*30),
		)
	}

	h.logger.Info("AMQP_PIPELINE_READY", "exchange", h.cfg.Exchange, "queue", h.cfg.Queue)
	return nil
}

func (h *MessageHandler) routes() []route {
	// [SHARED_COMMAND_QUEUE]
	// Competing consumers: one node applies a command, peers learn it from
	// the exported event. A queue per node would fold every command twice.
	commandQueue := fmt.Sprintf("%s.%s", h.cfg.Queue, CommandQueueSuffix)

	routes := []route{
		{"ON_ADD_COMMAND", commandQueue + ".add", TopicCommandAdd, Bind(h, h.OnAddCommand)},
		{"ON_REMOVE_COMMAND", commandQueue + ".remove", TopicCommandRemove, Bind(h, h.OnRemoveCommand)},
		{"ON_REMOVE_ALL_COMMAND", commandQueue + ".remove_all", TopicCommandRemoveAll, Bind(h, h.OnRemoveAllCommand)},
	}

	// Peer mirroring only makes sense across a real broker.
	if h.cfg.URL == "" {
		return routes
	}

	// [UNIQUE_HANDLER_QUEUE]
	// Every node needs every peer event.
	// Format: im_notice.peers.v1.b23a8f12.im_notice.message.added
	instanceID := uuid.NewString()[:8]
	for _, topic := range []string{event.TopicMessageAdded, event.TopicMessageRemoved, event.TopicMessageCleared} {
		routes = append(routes, route{
			name:    "ON_PEER_" + topic,
			queue:   fmt.Sprintf("%s.%s.%s.%s", h.cfg.Queue, PeerQueueSuffix, instanceID, topic),
			topic:   topic,
			handler: Bind(h, h.OnPeerEvent),
		})
	}
	return routes
}
