// Package grpcsrv runs the gRPC endpoint of the service: standard health
// checking behind recovery, logging and tracing interceptors.
package grpcsrv

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"runtime/debug"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
)

// ServiceName is the health key of the notice pipeline.
const ServiceName = "webitel.im_notice.v1"

type Server struct {
	addr   string
	srv    *grpc.Server
	health *health.Server
	logger *slog.Logger
	lis    net.Listener
}

// InterceptorLogger adapts slog to the grpc-middleware logging contract.
func InterceptorLogger(l *slog.Logger) logging.Logger {
	return logging.LoggerFunc(func(ctx context.Context, lvl logging.Level, msg string, fields ...any) {
		l.Log(ctx, slog.Level(lvl), msg, fields...)
	})
}

func New(addr string, logger *slog.Logger) *Server {
	// [PANIC_RECOVERY] a handler panic becomes codes.Internal
	recoveryOpts := []recovery.Option{
		recovery.WithRecoveryHandlerContext(func(ctx context.Context, p any) error {
			logger.ErrorContext(ctx, "GRPC_PANIC_RECOVERED", "panic", p, "stack", string(debug.Stack()))
			return status.Errorf(codes.Internal, "internal error")
		}),
	}
	loggingOpts := []logging.Option{
		logging.WithLogOnEvents(logging.FinishCall),
	}

	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			recovery.UnaryServerInterceptor(recoveryOpts...),
			logging.UnaryServerInterceptor(InterceptorLogger(logger), loggingOpts...),
		),
		grpc.ChainStreamInterceptor(
			recovery.StreamServerInterceptor(recoveryOpts...),
			logging.StreamServerInterceptor(InterceptorLogger(logger), loggingOpts...),
		),
	)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	return &Server{addr: addr, srv: srv, health: hs, logger: logger}
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("grpc listen %s: %w", s.addr, err)
	}
	s.lis = lis

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	go func() {
		if err := s.srv.Serve(lis); err != nil {
			s.logger.Error("GRPC_SERVE_FAILED", "err", err)
		}
	}()
	s.logger.Info("GRPC_SERVER_STARTED", "addr", lis.Addr().String())
	return nil
}

// Addr is the bound address, useful when listening on port 0.
func (s *Server) Addr() string {
	if s.lis == nil {
		return s.addr
	}
	return s.lis.Addr().String()
}

// Stop flips health to NOT_SERVING and drains in-flight calls until ctx ends.
func (s *Server) Stop(ctx context.Context) error {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.srv.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.srv.Stop()
	}
	return nil
}
