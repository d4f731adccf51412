// Package websocket exposes the session server to browser and WebSocket clients.
// Frames are identical to the TCP transport; each WebSocket message carries one.
package websocket

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	gws "github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cory-johannsen/breakshot/internal/config"
	"github.com/cory-johannsen/breakshot/internal/protocol"
)

// SessionHandler serves one framed client connection until it ends.
type SessionHandler interface {
	Serve(ctx context.Context, t protocol.Transport) error
}

// Gateway is an HTTP server that upgrades requests on one path to WebSocket
// sessions.
type Gateway struct {
	cfg     config.WebSocketConfig
	limits  config.ServerConfig
	handler SessionHandler
	logger  *zap.Logger

	upgrader  gws.Upgrader
	srv       *http.Server
	listening chan struct{}

	// ctx is the parent of every session; Stop cancels it.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	listener net.Listener
	stopped  bool
}

// NewGateway creates a WebSocket gateway. Per-connection timeouts and the frame
// limit are taken from the TCP server settings.
//
// Precondition: handler and logger must be non-nil.
func NewGateway(cfg config.WebSocketConfig, limits config.ServerConfig, handler SessionHandler, logger *zap.Logger) *Gateway {
	ctx, cancel := context.WithCancel(context.Background())
	g := &Gateway{
		cfg:     cfg,
		limits:  limits,
		handler: handler,
		logger:  logger,
		upgrader: gws.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		listening: make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, g)
	g.srv = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	return g
}

// ListenAndServe binds the listener and serves upgrade requests until Stop is called.
//
// Postcondition: Returns nil after Stop, or the listen/serve error.
func (g *Gateway) ListenAndServe() error {
	listener, err := net.Listen("tcp", g.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", g.cfg.Addr(), err)
	}
	g.mu.Lock()
	g.listener = listener
	close(g.listening)
	g.mu.Unlock()

	g.logger.Info("websocket gateway listening",
		zap.String("addr", listener.Addr().String()),
		zap.String("path", g.cfg.Path),
	)
	if err := g.srv.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving websocket: %w", err)
	}
	return nil
}

// ServeHTTP upgrades the request and runs the session on the request goroutine.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("websocket upgrade failed", zap.String("remote_addr", r.RemoteAddr), zap.Error(err))
		return
	}

	g.mu.Lock()
	if g.stopped {
		g.mu.Unlock()
		ws.Close()
		return
	}
	g.wg.Add(1)
	g.mu.Unlock()
	defer g.wg.Done()

	conn := NewConn(ws, g.limits.ReadTimeout, g.limits.WriteTimeout, g.limits.MaxFrameBytes)
	defer conn.Close()

	if err := g.handler.Serve(g.ctx, conn); err != nil {
		g.logger.Debug("websocket session ended", zap.String("remote_addr", r.RemoteAddr), zap.Error(err))
	}
}

// Stop ends every session, shuts the HTTP server down and waits for session
// goroutines to finish.
func (g *Gateway) Stop() {
	g.mu.Lock()
	g.stopped = true
	g.mu.Unlock()

	g.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := g.srv.Shutdown(ctx); err != nil {
		g.logger.Warn("websocket gateway shutdown", zap.Error(err))
	}
	g.wg.Wait()
	g.logger.Info("websocket gateway stopped")
}

// Listening is closed once the listener is bound.
func (g *Gateway) Listening() <-chan struct{} {
	return g.listening
}

// Addr returns the actual listening address, or empty string if not yet listening.
func (g *Gateway) Addr() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.listener != nil {
		return g.listener.Addr().String()
	}
	return ""
}
