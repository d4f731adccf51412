// Package main provides a console table client for the breakshot session
// server. It drives the client bridge from typed commands and prints the
// server's events.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/cory-johannsen/breakshot/internal/client"
	"github.com/cory-johannsen/breakshot/internal/command"
	"github.com/cory-johannsen/breakshot/internal/config"
	"github.com/cory-johannsen/breakshot/internal/observability"
)

const updateInterval = 50 * time.Millisecond

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("loading .env: %v", err)
	}

	app := &cli.Command{
		Name:  "tableclient",
		Usage: "play breakshot from a terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to configuration file",
			},
			&cli.StringFlag{
				Name:    "addr",
				Usage:   "session server address as host[:port]; empty starts disconnected",
				Value:   "localhost:7777",
				Sources: cli.EnvVars("BREAKSHOT_ADDR"),
			},
			&cli.StringFlag{
				Name:    "name",
				Usage:   "display name; empty lets the server choose",
				Sources: cli.EnvVars("BREAKSHOT_NAME"),
			},
		},
		Action: run,
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Console output owns stdout; logs go to stderr.
	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer logger.Sync()

	printer := command.NewPrinter(os.Stdout)
	bridge := client.NewBridge(cfg.Client, printer, logger)
	name := cmd.String("name")
	console := command.NewConsole(bridge, command.DefaultRegistry(), os.Stdout, name)

	if addr := cmd.String("addr"); addr != "" {
		host, port := client.ParseAddress(addr)
		fmt.Printf("Connecting to %s:%d...\n", host, port)
		if err := bridge.Connect(host, port, name); err != nil {
			return err
		}
	}
	fmt.Println("Type 'help' for commands.")

	lines := make(chan string)
	go readLines(os.Stdin, lines, logger)

	ticker := time.NewTicker(updateInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			bridge.Disconnect()
			return nil
		case <-ticker.C:
			bridge.Update()
		case line, ok := <-lines:
			if !ok {
				bridge.Disconnect()
				return nil
			}
			if err := console.Execute(line); errors.Is(err, command.ErrQuit) {
				return nil
			}
			bridge.Update()
		}
	}
}

// readLines forwards stdin lines until EOF, then closes out.
func readLines(in *os.File, out chan<- string, logger *zap.Logger) {
	defer close(out)
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		out <- scanner.Text()
	}
	if err := scanner.Err(); err != nil {
		logger.Warn("reading stdin", zap.Error(err))
	}
}
