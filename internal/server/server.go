package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mcoot/gamehub/internal/protocol"
	"github.com/mcoot/gamehub/internal/services/auth"
)

// Config holds configuration for the TCP server
type Config struct {
	Addr string
	// IdleTimeout bounds the wait for the next request on a connection
	IdleTimeout time.Duration
	// IOTimeout bounds reading a started frame and writing a response
	IOTimeout       time.Duration
	MaxFrameSize    int
	JanitorInterval time.Duration
}

// DefaultConfig returns sensible defaults for the TCP server
func DefaultConfig() Config {
	return Config{
		Addr:            ":10001",
		IdleTimeout:     10 * time.Minute,
		IOTimeout:       30 * time.Second,
		MaxFrameSize:    protocol.DefaultMaxFrameSize,
		JanitorInterval: time.Minute,
	}
}

// Server accepts client connections and runs one request loop per
// connection
type Server struct {
	cfg        Config
	dispatcher *Dispatcher
	auth       *auth.Service
	logger     *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	closing  bool

	wg         sync.WaitGroup
	nextConnID atomic.Uint64
	stop       chan struct{}
}

// New creates a new TCP server
func New(dispatcher *Dispatcher, authService *auth.Service, cfg Config, logger *slog.Logger) *Server {
	if cfg.MaxFrameSize <= 0 {
		cfg.MaxFrameSize = protocol.DefaultMaxFrameSize
	}
	return &Server{
		cfg:        cfg,
		dispatcher: dispatcher,
		auth:       authService,
		logger:     logger.With(slog.String("component", "server")),
		conns:      make(map[net.Conn]struct{}),
		stop:       make(chan struct{}),
	}
}

// Listen binds the listening socket without accepting yet
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	return nil
}

// Start listens if needed and accepts connections until Shutdown
func (s *Server) Start() error {
	s.mu.Lock()
	ln, closing := s.listener, s.closing
	s.mu.Unlock()
	if closing {
		return nil
	}
	if ln == nil {
		if err := s.Listen(); err != nil {
			return err
		}
		s.mu.Lock()
		ln = s.listener
		s.mu.Unlock()
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown. Transient accept
// failures are retried with a capped backoff.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		_ = ln.Close()
		return nil
	}
	s.listener = ln
	s.wg.Add(1)
	s.mu.Unlock()
	go s.janitor()

	s.logger.Info("starting TCP server", slog.String("addr", ln.Addr().String()))

	var delay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosing() {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("accept: %w", err)
			}
			delay = nextAcceptDelay(delay)
			s.logger.Warn("accept failed, retrying",
				slog.String("error", err.Error()),
				slog.Duration("retry_in", delay))
			select {
			case <-time.After(delay):
			case <-s.stop:
				return nil
			}
			continue
		}
		delay = 0
		if !s.track(conn) {
			_ = conn.Close()
			return nil
		}
		go s.serveConn(conn)
	}
}

const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

func nextAcceptDelay(prev time.Duration) time.Duration {
	if prev == 0 {
		return minAcceptDelay
	}
	return min(prev*2, maxAcceptDelay)
}

// Shutdown stops accepting, closes every connection and waits for
// their loops to finish or ctx to expire
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down TCP server")

	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return nil
	}
	s.closing = true
	close(s.stop)
	if s.listener != nil {
		_ = s.listener.Close()
	}
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info("TCP server stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown error: %w", ctx.Err())
	}
}

// Addr returns the bound address, or the configured one before Listen
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.cfg.Addr
}

// ConnectionCount returns the number of open client connections
func (s *Server) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

// track registers conn and counts its loop in wg
func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn)
}

// serveConn reads one request at a time and writes exactly one response
// before reading the next. Framing errors end the connection.
func (s *Server) serveConn(conn net.Conn) {
	defer s.wg.Done()

	connID := fmt.Sprintf("c%d", s.nextConnID.Add(1))
	logger := s.logger.With(
		slog.String("conn_id", connID),
		slog.String("remote", conn.RemoteAddr().String()),
	)
	logger.Info("client connected")

	defer func() {
		_ = conn.Close()
		s.untrack(conn)
		// Admitted room mutations are not cancelled by the disconnect
		s.dispatcher.Disconnected(context.Background(), connID)
		logger.Info("client disconnected")
	}()

	for {
		if s.cfg.IdleTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))
		}
		size, err := protocol.ReadHeader(conn, s.cfg.MaxFrameSize)
		if err != nil {
			s.logReadError(logger, err)
			return
		}
		if s.cfg.IOTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.cfg.IOTimeout))
		}
		payload, err := protocol.ReadPayload(conn, size)
		if err != nil {
			s.logReadError(logger, err)
			return
		}

		resp := s.dispatcher.Dispatch(context.Background(), connID, payload)
		data, err := json.Marshal(resp)
		if err != nil {
			logger.Error("failed to encode response", slog.String("error", err.Error()))
			return
		}

		if s.cfg.IOTimeout > 0 {
			_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.IOTimeout))
		}
		if err := protocol.WriteFrame(conn, data); err != nil {
			logger.Warn("failed to write response", slog.String("error", err.Error()))
			return
		}
	}
}

func (s *Server) logReadError(logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, io.EOF), s.isClosing():
		return
	case errors.Is(err, os.ErrDeadlineExceeded):
		logger.Info("read deadline exceeded, closing connection")
	case errors.Is(err, protocol.ErrEmptyFrame),
		errors.Is(err, protocol.ErrFrameTooLarge),
		errors.Is(err, protocol.ErrTruncated):
		logger.Warn("malformed frame, closing connection", slog.String("error", err.Error()))
	default:
		logger.Info("connection read failed", slog.String("error", err.Error()))
	}
}

// janitor sweeps expired sessions until Shutdown
func (s *Server) janitor() {
	defer s.wg.Done()
	if s.cfg.JanitorInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.JanitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if n := s.auth.CleanExpiredSessions(); n > 0 {
				s.logger.Info("expired sessions removed", slog.Int("count", n))
			}
		}
	}
}
