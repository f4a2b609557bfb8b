package fmitcp

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/fmitcpd/fmitcpd/internal/logger"
)

// Hooks is the observer capability set a Server calls into on connection
// lifecycle events (spec.md §9: "express an observer contract ... not by
// subclassing"). Any field left nil is simply not called.
type Hooks struct {
	OnClientConnect    func(addr string)
	OnClientDisconnect func(addr string)
	OnError            func(addr string, err error)
}

// RequestHandler processes one decoded Request and returns its Response. A
// nil return means the silent-drop policy for an unimplemented operation
// applies (spec.md §9): no reply is sent and the connection stays open.
// Defined here, rather than satisfied by a concrete type in this package,
// so the dispatcher (which must import the simulation adapter and the
// lifecycle state machine) can live in its own package without fmitcp
// importing either back.
type RequestHandler interface {
	Handle(req *Request) *Response
}

// ServerConfig configures a Server.
type ServerConfig struct {
	// Addr is the TCP listen address, e.g. ":3000".
	Addr string

	// Dispatcher handles every decoded request and returns its response.
	Dispatcher RequestHandler

	// Hooks receives connection lifecycle notifications.
	Hooks Hooks

	Logger logger.Logger
}

// Server is the connection server from spec.md §4.E: it accepts clients,
// disables Nagle per connection, and forwards decoded frames to a
// Dispatcher. The reference behavior is single-client with queued
// requests, but nothing here prevents multiple simultaneous clients — each
// connection is served by its own goroutine and owns its own reply stream.
type Server struct {
	config   ServerConfig
	listener net.Listener

	shutdown     chan struct{}
	shutdownOnce sync.Once
	wg           sync.WaitGroup
	ready        chan struct{}
}

// NewServer creates a Server from cfg.
func NewServer(cfg ServerConfig) *Server {
	return &Server{config: cfg, shutdown: make(chan struct{}), ready: make(chan struct{})}
}

// Ready is closed once the listener is bound and Addr is safe to read,
// which happens before Serve's accept loop starts.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Serve starts accepting connections on cfg.Addr. It blocks until ctx is
// cancelled or Stop is called.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("fmitcp: listen %s: %w", s.config.Addr, err)
	}
	s.listener = ln
	close(s.ready)

	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-s.shutdown:
		}
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return nil
			default:
				return fmt.Errorf("fmitcp: accept: %w", err)
			}
		}

		s.wg.Add(1)
		go func(c net.Conn) {
			defer s.wg.Done()
			s.handleConn(c)
		}(conn)
	}
}

// Addr returns the listener's bound address, or "" if not yet listening.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// Stop closes the listener and waits for every in-flight connection
// handler to return.
func (s *Server) Stop() {
	s.shutdownOnce.Do(func() {
		close(s.shutdown)
		if s.listener != nil {
			_ = s.listener.Close()
		}
	})
	s.wg.Wait()
}

func (s *Server) handleConn(conn net.Conn) {
	addr := conn.RemoteAddr().String()
	defer func() { _ = conn.Close() }()

	if tcp, ok := conn.(*net.TCPConn); ok {
		// Latency over throughput (spec.md §4.E): a co-simulation step
		// reply must not wait on Nagle's coalescing timer.
		_ = tcp.SetNoDelay(true)
	}

	if s.config.Hooks.OnClientConnect != nil {
		s.config.Hooks.OnClientConnect(addr)
	}
	defer func() {
		if s.config.Hooks.OnClientDisconnect != nil {
			s.config.Hooks.OnClientDisconnect(addr)
		}
	}()

	for {
		payload, err := ReadFrame(conn)
		if err != nil {
			if s.config.Hooks.OnError != nil {
				s.config.Hooks.OnError(addr, err)
			}
			return
		}
		if IsKeepalive(payload) {
			continue
		}

		req, err := DecodeRequest(payload)
		if err != nil {
			s.config.Logger.Error("fmitcp: decode failed", "client", addr, "error", err)
			continue
		}

		resp := s.config.Dispatcher.Handle(req)
		if resp == nil {
			// Unimplemented op under the silent-drop policy (spec.md §9):
			// no response is sent, the connection stays open.
			continue
		}

		out, err := EncodeResponse(resp)
		if err != nil {
			s.config.Logger.Error("fmitcp: encode failed", "client", addr, "op", resp.Op, "error", err)
			return
		}
		if err := WriteFrame(conn, out); err != nil {
			if s.config.Hooks.OnError != nil {
				s.config.Hooks.OnError(addr, err)
			}
			return
		}
	}
}
