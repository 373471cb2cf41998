// Package httpsrv owns the HTTP listener serving the REST, WebSocket and
// long-poll routes.
package httpsrv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/webitel/im-notice-service/config"
	httphandler "github.com/webitel/im-notice-service/internal/handler/http"
	"go.uber.org/fx"
)

type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

func New(cfg config.HTTPConfig, handler http.Handler, logger *slog.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              cfg.Address,
			Handler:           handler,
			ReadHeaderTimeout: cfg.ReadTimeout,
			ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
		},
		logger: logger,
	}
}

func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("http listen %s: %w", s.srv.Addr, err)
	}
	go func() {
		if err := s.srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP_SERVE_FAILED", "err", err)
		}
	}()
	s.logger.Info("HTTP_SERVER_STARTED", "addr", lis.Addr().String())
	return nil
}

// Stop waits for in-flight requests; hijacked WebSocket connections end
// when their surfaces shut down.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

var Module = fx.Module("http-server",
	fx.Provide(func(cfg *config.Config, h *httphandler.Handler, logger *slog.Logger) *Server {
		return New(cfg.HTTP, h.Routes(), logger.With("component", "http"))
	}),
	fx.Invoke(func(lc fx.Lifecycle, s *Server, cfg *config.Config) {
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error { return s.Start() },
			OnStop: func(ctx context.Context) error {
				ctx, cancel := context.WithTimeout(ctx, cfg.HTTP.ShutdownTimeout)
				defer cancel()
				return s.Stop(ctx)
			},
		})
	}),
)

