package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"time"
)

// Server owns the TCP accept loop and the set of live sessions. The accept
// loop never blocks on an individual connection: every accepted stream gets
// its own session goroutine.
type Server struct {
	cfg    Config
	reg    *Registry
	router *Router

	mu       sync.Mutex
	ln       net.Listener
	sessions map[*Session]struct{}
	closing  bool
	wg       sync.WaitGroup
}

// New creates a server with its own registry and router.
func New(cfg Config) *Server {
	cfg = sanitizeConfig(cfg)
	reg := NewRegistry()
	return &Server{
		cfg:      cfg,
		reg:      reg,
		router:   NewRouter(reg),
		sessions: make(map[*Session]struct{}),
	}
}

// Registry exposes the shared registry for the admin console and tests.
func (s *Server) Registry() *Registry { return s.reg }

// Start listens on the configured TCP port and launches the accept loop.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", s.cfg.Port, err)
	}
	s.StartListener(ln)
	return nil
}

// StartListener launches the accept loop on an existing listener. Tests use
// this with an ephemeral port.
func (s *Server) StartListener(ln net.Listener) {
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	log.Printf("Server listening for chat connections on %s", ln.Addr())

	s.wg.Add(1)
	go s.acceptLoop(ln)
}

// Addr returns the address the server is listening on, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

func (s *Server) acceptLoop(ln net.Listener) {
	defer s.wg.Done()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				log.Printf("Accept loop stopped: %v", err)
			}
			return
		}
		s.handleStream(conn, conn.RemoteAddr().String())
	}
}

// handleStream runs the connection lifecycle for any accepted byte stream.
// Both the TCP accept loop and the WebSocket gateway feed it.
func (s *Server) handleStream(rwc io.ReadWriteCloser, addr string) {
	conn := NewConn(rwc, addr, s.cfg.MaxMessageSize)
	sess := NewSession(conn, s.router, s.cfg.RateLimit)

	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		_ = rwc.Close()
		return
	}
	s.sessions[sess] = struct{}{}
	s.mu.Unlock()

	log.Printf("Accepted connection %s from %s", conn.ID(), addr)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		sess.Run()

		s.mu.Lock()
		delete(s.sessions, sess)
		s.mu.Unlock()
	}()
}

// Shutdown stops accepting, closes every live connection, and waits for all
// session goroutines to finish or the timeout to pass. Closing a session's
// stream makes its pending blocking receive observe end of stream, so no
// cancellation primitive beyond the close is needed.
func (s *Server) Shutdown(timeout time.Duration) error {
	s.mu.Lock()
	s.closing = true
	ln := s.ln
	active := make([]*Session, 0, len(s.sessions))
	for sess := range s.sessions {
		active = append(active, sess)
	}
	s.mu.Unlock()

	if ln != nil {
		if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			log.Printf("Error closing listener: %v", err)
		}
	}
	for _, sess := range active {
		sess.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Server shutdown completed")
		return nil
	case <-time.After(timeout):
		log.Println("Server shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
