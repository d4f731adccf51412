// Package main provides the breakshot session server: a TCP listener for
// table clients, an optional WebSocket gateway, and an optional gRPC health
// endpoint, all sharing one set of rooms.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/cory-johannsen/breakshot/internal/admin"
	"github.com/cory-johannsen/breakshot/internal/config"
	"github.com/cory-johannsen/breakshot/internal/gameserver"
	"github.com/cory-johannsen/breakshot/internal/observability"
	"github.com/cory-johannsen/breakshot/internal/server"
	"github.com/cory-johannsen/breakshot/internal/transport/tcp"
	"github.com/cory-johannsen/breakshot/internal/transport/websocket"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "", "path to configuration file; empty uses defaults and environment")
	statsInterval := flag.Duration("stats-interval", time.Minute, "interval between session statistics log lines; 0 disables")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("loading .env: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting session server",
		zap.String("tcp_addr", cfg.Server.Addr()),
		zap.Int("max_rooms", cfg.Server.MaxRooms),
		zap.Int("max_players", cfg.Server.MaxPlayers),
	)

	srv := gameserver.NewServer(cfg.Server, logger)
	acceptor := tcp.NewAcceptor(cfg.Server, srv, logger)

	lifecycle := server.NewLifecycle(logger)

	lifecycle.Add("tcp", &server.FuncService{
		StartFn: acceptor.ListenAndServe,
		StopFn:  acceptor.Stop,
	})

	if cfg.WebSocket.Enabled {
		gateway := websocket.NewGateway(cfg.WebSocket, cfg.Server, srv, logger)
		lifecycle.Add("websocket", &server.FuncService{
			StartFn: gateway.ListenAndServe,
			StopFn:  gateway.Stop,
		})
	}

	if cfg.Admin.Enabled {
		health := admin.NewHealth(cfg.Admin, logger)
		ready := make(chan struct{})
		lifecycle.Add("health", &server.FuncService{
			StartFn: func() error {
				go func() {
					select {
					case <-acceptor.Listening():
						health.SetServing(true)
					case <-ready:
					}
				}()
				return health.ListenAndServe()
			},
			StopFn: func() {
				close(ready)
				health.SetServing(false)
				health.Stop()
			},
		})
	}

	if *statsInterval > 0 {
		statsDone := make(chan struct{})
		lifecycle.Add("stats", &server.FuncService{
			StartFn: func() error {
				ticker := time.NewTicker(*statsInterval)
				defer ticker.Stop()
				for {
					select {
					case <-ticker.C:
						stats := srv.Stats()
						logger.Info("session stats",
							zap.Int("sessions", stats.Sessions),
							zap.Int("rooms", stats.Rooms),
						)
					case <-statsDone:
						return nil
					}
				}
			},
			StopFn: func() { close(statsDone) },
		})
	}

	logger.Info("session server initialized", zap.Duration("startup", time.Since(start)))

	if err := lifecycle.Run(context.Background()); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
