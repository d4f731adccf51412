// Package admin serves the gRPC health endpoint for the session server.
package admin

import (
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/cory-johannsen/breakshot/internal/config"
)

// ServiceName is the health service name reported for the session server.
const ServiceName = "breakshot.SessionServer"

// Health is a gRPC server exposing grpc.health.v1.Health. It reports
// NOT_SERVING until SetServing(true) is called.
type Health struct {
	cfg    config.AdminConfig
	logger *zap.Logger
	server *grpc.Server
	health *health.Server

	mu        sync.Mutex
	listener  net.Listener
	listening chan struct{}
}

// NewHealth creates a health server for the given admin configuration.
//
// Precondition: logger must be non-nil.
// Postcondition: Both the overall and ServiceName statuses are NOT_SERVING.
func NewHealth(cfg config.AdminConfig, logger *zap.Logger) *Health {
	h := &Health{
		cfg:       cfg,
		logger:    logger,
		server:    grpc.NewServer(),
		health:    health.NewServer(),
		listening: make(chan struct{}),
	}
	healthpb.RegisterHealthServer(h.server, h.health)
	h.SetServing(false)
	return h
}

// SetServing updates the overall and session server statuses.
func (h *Health) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(ServiceName, status)
	h.logger.Info("health status changed", zap.String("status", status.String()))
}

// ListenAndServe binds the admin listener and serves until Stop is called.
func (h *Health) ListenAndServe() error {
	lis, err := net.Listen("tcp", h.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", h.cfg.Addr(), err)
	}
	h.mu.Lock()
	h.listener = lis
	close(h.listening)
	h.mu.Unlock()

	h.logger.Info("admin health server listening", zap.String("addr", lis.Addr().String()))
	return h.server.Serve(lis)
}

// Stop marks every service NOT_SERVING and gracefully stops the gRPC server.
func (h *Health) Stop() {
	h.health.Shutdown()
	h.server.GracefulStop()
}

// Listening is closed once the listener is bound.
func (h *Health) Listening() <-chan struct{} {
	return h.listening
}

// Addr returns the actual listening address, or empty string if not yet listening.
func (h *Health) Addr() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.listener != nil {
		return h.listener.Addr().String()
	}
	return ""
}
