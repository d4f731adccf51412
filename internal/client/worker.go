package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"syscall"

	"go.uber.org/zap"

	"github.com/cory-johannsen/breakshot/internal/config"
	"github.com/cory-johannsen/breakshot/internal/protocol"
)

// worker owns one connection attempt. It dials, sends CONNECT, then runs a
// reader that pushes every parsed message onto its queue and a writer that
// drains outbound frames. It never invokes host callbacks.
type worker struct {
	cfg    config.ClientConfig
	addr   string
	name   string
	logger *zap.Logger

	queue    *queue
	outbound chan []byte

	// stopping is set by stop before quit is closed; a worker ended by stop
	// synthesizes nothing.
	stopping atomic.Bool
	quit     chan struct{}
	quitOnce sync.Once
	done     chan struct{}
}

func startWorker(cfg config.ClientConfig, addr, name string, logger *zap.Logger) *worker {
	w := &worker{
		cfg:      cfg,
		addr:     addr,
		name:     name,
		logger:   logger.With(zap.String("server_addr", addr)),
		queue:    &queue{},
		outbound: make(chan []byte, cfg.OutboundSize),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go w.run()
	return w
}

// send queues a frame for the writer.
//
// Postcondition: Returns ErrNotConnected once the worker has exited, or
// ErrSendQueueFull when the outbound buffer is full.
func (w *worker) send(frame []byte) error {
	select {
	case <-w.done:
		return ErrNotConnected
	case <-w.quit:
		return ErrNotConnected
	default:
	}
	select {
	case w.outbound <- frame:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// stop asks the worker to flush queued frames and exit without synthesizing a disconnect.
func (w *worker) stop() {
	w.stopping.Store(true)
	w.halt()
}

func (w *worker) halt() {
	w.quitOnce.Do(func() { close(w.quit) })
}

func (w *worker) run() {
	defer close(w.done)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-w.quit:
			cancel()
		case <-ctx.Done():
		}
	}()

	dialer := net.Dialer{Timeout: w.cfg.DialTimeout}
	raw, err := dialer.DialContext(ctx, "tcp", w.addr)
	if err != nil {
		if w.stopping.Load() {
			return
		}
		w.logger.Info("connect failed", zap.Error(err))
		w.halt()
		w.synthesize(protocol.TypeError, protocol.ErrorPayload{Error: describeDialError(err)})
		return
	}

	conn := protocol.NewConn(raw, w.cfg.ReadInterval, w.cfg.WriteTimeout)
	hello, err := protocol.NewMessage(protocol.TypeConnect, protocol.SenderClient, protocol.ConnectRequest{Name: w.name})
	if err == nil {
		err = conn.WriteMessage(hello)
	}
	if err != nil {
		conn.Close()
		w.halt()
		if !w.stopping.Load() {
			w.synthesize(protocol.TypeError, protocol.ErrorPayload{Error: "Connection error: " + err.Error()})
		}
		return
	}
	w.logger.Debug("connected")

	writerDone := make(chan struct{})
	go w.writeLoop(conn, writerDone)

	readErr := w.readLoop(conn)
	if w.stopping.Load() {
		<-writerDone
		conn.Close()
		w.logger.Debug("worker stopped")
		return
	}

	conn.Close()
	w.halt()
	<-writerDone
	w.logger.Info("connection lost", zap.Error(readErr))
	w.synthesize(protocol.TypeDisconnect, map[string]any{"reason": readErr.Error()})
}

// readLoop returns nil when the worker is halted, or the error that ended the connection.
func (w *worker) readLoop(conn *protocol.Conn) error {
	for {
		select {
		case <-w.quit:
			return nil
		default:
		}

		msg, err := conn.ReadMessage()
		switch {
		case err == nil:
			w.queue.push(msg)
		case protocol.IsProtocolError(err):
			w.logger.Warn("dropping malformed frame", zap.Error(err))
		case protocol.IsTimeout(err):
		default:
			if w.stopping.Load() {
				return nil
			}
			return err
		}
	}
}

// writeLoop writes outbound frames until quit, then flushes what is still queued.
func (w *worker) writeLoop(conn *protocol.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case frame := <-w.outbound:
			if err := conn.WriteFrame(frame); err != nil {
				w.logger.Debug("write failed", zap.Error(err))
				conn.Close()
				return
			}
		case <-w.quit:
			for {
				select {
				case frame := <-w.outbound:
					if err := conn.WriteFrame(frame); err != nil {
						return
					}
				default:
					return
				}
			}
		}
	}
}

func (w *worker) synthesize(t protocol.Type, payload any) {
	w.queue.push(protocol.MustMessage(t, protocol.SenderClient, payload))
}

func describeDialError(err error) string {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return "Connection refused"
	}
	return fmt.Sprintf("Connection error: %v", err)
}
