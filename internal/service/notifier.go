package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/webitel/im-notice-service/internal/domain/bus"
	"github.com/webitel/im-notice-service/internal/domain/event"
	"github.com/webitel/im-notice-service/internal/domain/model"
	"github.com/webitel/im-notice-service/internal/metrics"
	"github.com/webitel/im-notice-service/internal/service/dto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/webitel/im-notice-service/internal/service")

// [NOTIFIER] PRODUCER FACADE OVER THE BUS (HTTP and AMQP commands land here)
type Notifier interface {
	Add(ctx context.Context, args dto.AddArgs) error
	Remove(ctx context.Context, useCaseID string) error
	RemoveAll(ctx context.Context) error
	// Mirror republishes an event received from a peer node.
	Mirror(ctx context.Context, ev *event.MessageEvent) error
}

type NotifierService struct {
	bus     bus.Publisher
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewNotifierService(pub bus.Publisher, m *metrics.Metrics, logger *slog.Logger) *NotifierService {
	return &NotifierService{bus: pub, metrics: m, logger: logger}
}

func (s *NotifierService) Add(ctx context.Context, args dto.AddArgs) error {
	_, span := tracer.Start(ctx, "notifier.add", trace.WithAttributes(
		attribute.String("use_case_id", args.Message.UseCaseID),
		attribute.String("severity", args.Message.Severity.String()),
		attribute.String("target", args.Target.String()),
	))
	defer span.End()

	if err := s.validate(args.Message); err != nil {
		return err
	}

	opts := []bus.AddOption{bus.WithTarget(args.Target)}
	if args.Error != nil {
		opts = append(opts, bus.WithError(args.Error))
	}
	s.bus.AddMessage(args.Message, opts...)
	s.metrics.EventPublished(event.Add.String(), string(event.OriginLocal))
	return nil
}

func (s *NotifierService) Remove(ctx context.Context, useCaseID string) error {
	_, span := tracer.Start(ctx, "notifier.remove", trace.WithAttributes(
		attribute.String("use_case_id", useCaseID),
	))
	defer span.End()

	if strings.TrimSpace(useCaseID) == "" {
		s.metrics.EventRejected("empty_use_case")
		return fmt.Errorf("%w: use_case_id is required", dto.ErrInvalidCommand)
	}
	s.bus.RemoveMessage(model.Message{UseCaseID: useCaseID})
	s.metrics.EventPublished(event.Remove.String(), string(event.OriginLocal))
	return nil
}

func (s *NotifierService) RemoveAll(ctx context.Context) error {
	_, span := tracer.Start(ctx, "notifier.remove_all")
	defer span.End()

	s.bus.RemoveAllMessages()
	s.metrics.EventPublished(event.RemoveAll.String(), string(event.OriginLocal))
	return nil
}

func (s *NotifierService) Mirror(ctx context.Context, ev *event.MessageEvent) error {
	_, span := tracer.Start(ctx, "notifier.mirror", trace.WithAttributes(
		attribute.String("event_id", ev.ID),
		attribute.String("kind", ev.Kind.String()),
	))
	defer span.End()

	if ev.Kind != event.RemoveAll && ev.Message == nil {
		s.metrics.EventRejected("missing_message")
		return fmt.Errorf("%w: %s event without message", dto.ErrInvalidCommand, ev.Kind)
	}
	ev.Origin = event.OriginBroker
	s.bus.Publish(ev)
	s.metrics.EventPublished(ev.Kind.String(), string(event.OriginBroker))
	s.logger.Debug("BROKER_EVENT_MIRRORED", "event_id", ev.ID, "kind", ev.Kind.String(), "use_case_id", ev.UseCaseID())
	return nil
}

func (s *NotifierService) validate(msg model.Message) error {
	if strings.TrimSpace(msg.UseCaseID) == "" {
		s.metrics.EventRejected("empty_use_case")
		return fmt.Errorf("%w: use_case_id is required", dto.ErrInvalidCommand)
	}
	if msg.Severity < model.SeverityInfo || msg.Severity > model.SeverityFatal {
		s.metrics.EventRejected("bad_severity")
		return fmt.Errorf("%w: severity %s", dto.ErrInvalidCommand, msg.Severity)
	}
	return nil
}
