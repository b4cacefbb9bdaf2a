// Package server accepts client TCP connections, runs the encrypted
// handshake, and dispatches framed commands to the service layer. One
// goroutine per connection reads commands; replies and fan-out events share
// the connection through the session's write lock.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/calledit/calledit-server/pkg/events"
	"github.com/calledit/calledit-server/pkg/services"
	"github.com/calledit/calledit-server/pkg/wire"
)

// handshakeTimeout bounds the whole key exchange. Established sessions idle
// without a read deadline.
const handshakeTimeout = 5 * time.Second

// Server owns the listener and the per-connection session loops.
type Server struct {
	addr       string
	users      *services.UserService
	chats      *services.ChatService
	messages   *services.MessageService
	assertions *services.AssertionService
	engine     *events.Engine

	handlers map[string]handlerFunc

	baseCtx context.Context
	cancel  context.CancelFunc

	mu     sync.Mutex
	ln     net.Listener
	conns  map[net.Conn]struct{}
	closed bool

	wg sync.WaitGroup
}

// NewServer wires the command surface to its services.
func NewServer(addr string, users *services.UserService, chats *services.ChatService, messages *services.MessageService, assertions *services.AssertionService, engine *events.Engine) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		addr:       addr,
		users:      users,
		chats:      chats,
		messages:   messages,
		assertions: assertions,
		engine:     engine,
		baseCtx:    ctx,
		cancel:     cancel,
		conns:      make(map[net.Conn]struct{}),
	}
	s.handlers = s.routes()
	return s
}

// Start opens the listener and begins accepting connections in the
// background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	s.wg.Add(1)
	go s.acceptLoop(ln)

	slog.Info("Accepting client sessions", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound listen address once Start has succeeded. Tests
// listen on port 0 and read the real port back from here.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Shutdown stops accepting connections, closes every live session, and waits
// for the session loops to drain or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()

	s.mu.Lock()
	s.closed = true
	ln := s.ln
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()
	if ln != nil {
		_ = ln.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) acceptLoop(ln net.Listener) {
	defer s.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			slog.Warn("Accept failed", "error", err)
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn)
		}()
	}
}

// handleConn runs the handshake and then the session's read loop. Blocks
// until the connection closes.
func (s *Server) handleConn(conn net.Conn) {
	defer func() { _ = conn.Close() }()

	if !s.track(conn) {
		return
	}
	defer s.untrack(conn)

	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
	}

	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	cipher, err := wire.ServerHandshake(conn)
	if err != nil {
		slog.Warn("Handshake failed", "remote", conn.RemoteAddr().String(), "error", err)
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	sess := newSession(conn, cipher)
	slog.Info("Session established", "session_id", sess.id, "remote", conn.RemoteAddr().String())
	defer s.closeSession(sess)

	s.readLoop(sess)
}

// readLoop decodes frames and dispatches commands until EOF, an empty
// command, an undecryptable frame, or a handler ends the session.
func (s *Server) readLoop(sess *Session) {
	for {
		frame, err := wire.ReadFrame(sess.conn)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				slog.Debug("Session read ended", "session_id", sess.id, "error", err)
			}
			return
		}
		if len(frame) == 0 {
			return
		}
		plaintext, err := sess.cipher.Open(frame)
		if err != nil {
			slog.Warn("Dropping session on undecryptable frame", "session_id", sess.id, "error", err)
			return
		}
		if len(plaintext) == 0 {
			return
		}
		if !s.dispatch(s.baseCtx, sess, plaintext) {
			return
		}
	}
}

// closeSession unbinds the session from the event engine.
func (s *Server) closeSession(sess *Session) {
	if uid := sess.UserID(); uid != "" {
		s.engine.Unregister(uid, sess)
	}
	slog.Info("Session closed", "session_id", sess.id, "user_id", sess.UserID())
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn)
}
