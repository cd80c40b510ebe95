// Package server accepts TCP connections and runs each one through the wire
// decoder, a Handler and the wire encoder. One connection carries exactly one
// request: the server reads once, writes the response and closes.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/plexsphere/ipgate/internal/metrics"
	"github.com/plexsphere/ipgate/internal/wire"
)

// Handler produces a response for a decoded request. It must always return a
// non-nil response.
type Handler interface {
	Handle(ctx context.Context, req *wire.Request) *wire.Response
}

// Stats is a point-in-time copy of the server counters.
type Stats struct {
	Connections uint64
	Requests    uint64
	Active      int64
	Malformed   uint64
	Panics      uint64
	IOErrors    uint64
}

type counters struct {
	connections atomic.Uint64
	requests    atomic.Uint64
	active      atomic.Int64
	malformed   atomic.Uint64
	panics      atomic.Uint64
	ioErrors    atomic.Uint64
}

// Server is the rules API listener. All state belongs to the instance.
type Server struct {
	cfg     Config
	handler Handler
	metrics *metrics.Registry
	logger  *slog.Logger
	now     func() time.Time

	stats counters

	ready       chan struct{}
	addr        net.Addr
	metricsAddr net.Addr

	mu    sync.Mutex
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

// NewServer creates a new Server. Config defaults are applied automatically.
// A nil registry gets a fresh one.
func NewServer(cfg Config, handler Handler, reg *metrics.Registry, logger *slog.Logger) *Server {
	cfg.ApplyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	if reg == nil {
		reg = metrics.New()
	}
	return &Server{
		cfg:     cfg,
		handler: handler,
		metrics: reg,
		logger:  logger.With("component", "server"),
		now:     time.Now,
		ready:   make(chan struct{}),
		conns:   make(map[net.Conn]struct{}),
	}
}

// Ready is closed once the listeners are bound.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the bound listen address. It is nil until Ready is closed.
func (s *Server) Addr() net.Addr {
	select {
	case <-s.ready:
		return s.addr
	default:
		return nil
	}
}

// MetricsAddr returns the bound metrics address, or nil when metrics are not
// served.
func (s *Server) MetricsAddr() net.Addr {
	select {
	case <-s.ready:
		return s.metricsAddr
	default:
		return nil
	}
}

// Stats returns a snapshot of the server counters.
func (s *Server) Stats() Stats {
	return Stats{
		Connections: s.stats.connections.Load(),
		Requests:    s.stats.requests.Load(),
		Active:      s.stats.active.Load(),
		Malformed:   s.stats.malformed.Load(),
		Panics:      s.stats.panics.Load(),
		IOErrors:    s.stats.ioErrors.Load(),
	}
}

// ResolveListenAddr returns the address to listen on, replacing the host of
// cfg.Listen with the interface address when cfg.ListenInterface is set.
func ResolveListenAddr(cfg Config) (string, error) {
	if cfg.ListenInterface == "" {
		return cfg.Listen, nil
	}
	_, port, err := net.SplitHostPort(cfg.Listen)
	if err != nil {
		return "", fmt.Errorf("server: listen address %q: %w", cfg.Listen, err)
	}
	ip, err := interfaceAddr(cfg.ListenInterface)
	if err != nil {
		return "", err
	}
	return net.JoinHostPort(ip.String(), port), nil
}

// Start binds the listeners and serves until ctx is cancelled. In-flight
// connections get ShutdownTimeout to finish before they are closed.
func (s *Server) Start(ctx context.Context) error {
	if err := s.cfg.Validate(); err != nil {
		return err
	}

	addr, err := ResolveListenAddr(s.cfg)
	if err != nil {
		return err
	}
	ln, err := listen(ctx, addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", addr, err)
	}

	var metricsServer *http.Server
	var metricsLn net.Listener
	if s.cfg.MetricsListen != "" {
		metricsLn, err = net.Listen("tcp", s.cfg.MetricsListen)
		if err != nil {
			ln.Close()
			return fmt.Errorf("server: listen metrics %s: %w", s.cfg.MetricsListen, err)
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", s.metrics.Handler())
		metricsServer = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		s.metricsAddr = metricsLn.Addr()
	}

	s.addr = ln.Addr()
	close(s.ready)

	s.logger.Info("server started",
		"listen", s.addr.String(),
		"interface", s.cfg.ListenInterface,
		"metrics_listen", s.cfg.MetricsListen,
	)

	// Connection contexts outlive ctx so that in-flight requests can finish
	// during the shutdown grace period.
	connCtx, cancelConns := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelConns()

	var loops sync.WaitGroup

	loops.Add(1)
	go func() {
		defer loops.Done()
		s.acceptLoop(ctx, connCtx, ln)
	}()

	if metricsServer != nil {
		loops.Add(1)
		go func() {
			defer loops.Done()
			if err := metricsServer.Serve(metricsLn); err != http.ErrServerClosed {
				s.logger.Error("metrics server error", "error", err)
			}
		}()
	}

	<-ctx.Done()

	s.logger.Info("server shutting down")

	ln.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer shutdownCancel()

	if metricsServer != nil {
		metricsServer.Shutdown(shutdownCtx)
	}
	loops.Wait()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		s.logger.Warn("shutdown timeout, closing connections", "active", s.stats.active.Load())
		cancelConns()
		s.closeConns()
		<-done
	}

	s.logger.Info("server stopped",
		"connections", s.stats.connections.Load(),
		"requests", s.stats.requests.Load(),
	)

	return ctx.Err()
}

func (s *Server) acceptLoop(ctx, connCtx context.Context, ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("accept failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(50 * time.Millisecond):
			}
			continue
		}

		s.stats.connections.Add(1)
		s.track(conn, true)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.track(conn, false)
			s.serveConn(connCtx, conn)
		}()
	}
}

func (s *Server) track(conn net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
	}
}

func (s *Server) closeConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		conn.Close()
	}
}

// serveConn handles one request. Nothing that happens here may take down the
// listener.
func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	logger := s.logger.With("conn_id", uuid.New().String(), "remote", conn.RemoteAddr().String())

	s.stats.active.Add(1)
	s.metrics.ConnectionsActive.Inc()
	defer func() {
		s.stats.active.Add(-1)
		s.metrics.ConnectionsActive.Dec()
		conn.Close()
	}()

	defer func() {
		if r := recover(); r != nil {
			s.stats.panics.Add(1)
			s.metrics.HandlerPanics.Inc()
			logger.Error("connection handler panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()

	if s.cfg.ReadTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	}

	buf := make([]byte, s.cfg.ReadBufferSize)
	n, err := conn.Read(buf)
	if n == 0 {
		s.stats.ioErrors.Add(1)
		logger.Debug("read failed", "error", err)
		return
	}

	resp, method := s.respond(ctx, buf[:n], logger)
	s.stats.requests.Add(1)
	s.metrics.ObserveRequest(method, resp.StatusCode)

	if _, err := conn.Write(resp.Encode()); err != nil {
		s.stats.ioErrors.Add(1)
		logger.Debug("write failed", "error", err)
		return
	}
	logger.Debug("request served", "method", method, "status", resp.StatusCode, "bytes_in", n)
}

func (s *Server) respond(ctx context.Context, data []byte, logger *slog.Logger) (*wire.Response, string) {
	req, err := wire.DecodeRequest(data)
	if err != nil {
		s.stats.malformed.Add(1)
		s.metrics.MalformedRequests.Inc()
		logger.Info("malformed request", "error", err, "bytes_in", len(data))
		return wire.NewProblemResponse(400, "", "Malformed request", s.now()), "MALFORMED"
	}
	return s.handler.Handle(ctx, req), methodLabel(req.Method)
}

// methodLabel keeps the requests_total method label bounded.
func methodLabel(m string) string {
	switch m {
	case "GET", "HEAD", "PUT", "POST", "DELETE":
		return m
	default:
		return "OTHER"
	}
}
