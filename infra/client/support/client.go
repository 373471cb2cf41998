// Package support is the HTTP client of the support-ticket web service.
package support

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"github.com/webitel/im-notice-service/config"
	"github.com/webitel/im-notice-service/internal/domain/dialog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

var _ dialog.TicketService = (*Client)(nil)

var ErrUnavailable = errors.New("support: service unavailable")

const maxResponseBytes = 64 << 10

type ticketRequest struct {
	UseCaseID   string   `json:"use_case_id"`
	Description string   `json:"description"`
	Flag        bool     `json:"flag"`
	Attachments []string `json:"attachments"`
	Recipients  []string `json:"recipients"`
}

type supportError struct {
	CauseLocalized string `json:"causeLocalized"`
}

type ticketResponse struct {
	RcSupportErrorPlain *supportError `json:"rcSupportErrorPlain"`
}

// Client submits tickets behind a [RATE_LIMIT] and a [CIRCUIT_BREAKER]:
// a flapping support service must not pile up dialog goroutines.
type Client struct {
	url     string
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	tracer  trace.Tracer
	logger  *slog.Logger
}

func New(cfg config.TicketConfig, logger *slog.Logger) *Client {
	c := &Client{
		url:     cfg.URL,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		tracer:  otel.Tracer("github.com/webitel/im-notice-service/infra/client/support"),
		logger:  logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "support-ticket",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		// [BUSINESS_REJECTION] a localized refusal proves the service is healthy
		IsSuccessful: func(err error) bool {
			var te *dialog.TicketError
			return err == nil || errors.As(err, &te)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("CIRCUIT_BREAKER_STATE_CHANGED", "name", name, "from", from.String(), "to", to.String())
		},
	})
	return c
}

// Submit sends one ticket. A structured refusal is returned as *dialog.TicketError.
func (c *Client) Submit(ctx context.Context, req dialog.TicketRequest) error {
	ctx, span := c.tracer.Start(ctx, "support.submit", trace.WithAttributes(
		attribute.String("use_case_id", req.UseCaseID),
	))
	defer span.End()

	if err := c.limiter.Wait(ctx); err != nil {
		return c.record(span, fmt.Errorf("support: rate limit: %w", err))
	}

	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.post(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return c.record(span, err)
}

func (c *Client) record(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (c *Client) post(ctx context.Context, req dialog.TicketRequest) error {
	body, err := json.Marshal(ticketRequest{
		UseCaseID:   req.UseCaseID,
		Description: req.Description,
		Flag:        req.Flag,
		Attachments: nonNil(req.Attachments),
		Recipients:  nonNil(req.Recipients),
	})
	if err != nil {
		return fmt.Errorf("support: encode: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("support: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("support: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("support: read response: %w", err)
	}

	c.logger.Debug("SUPPORT_RESPONSE",
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	var decoded ticketResponse
	if len(bytes.TrimSpace(raw)) > 0 {
		_ = json.Unmarshal(raw, &decoded)
	}
	if decoded.RcSupportErrorPlain != nil {
		return &dialog.TicketError{CauseLocalized: decoded.RcSupportErrorPlain.CauseLocalized}
	}

	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("support: HTTP %d", resp.StatusCode)
	case resp.StatusCode >= 300:
		text := strings.TrimSpace(string(raw))
		if text == "" {
			text = http.StatusText(resp.StatusCode)
		}
		return &dialog.TicketError{CauseLocalized: text}
	}
	return nil
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
