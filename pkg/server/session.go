package server

import (
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/calledit/calledit-server/pkg/wire"
)

// Session is one client connection after a completed handshake.
//
// userID is accessed WITHOUT a lock. All reads and writes happen on the
// single goroutine that owns the connection (the read loop and its deferred
// cleanup). The event worker only touches the write path, which has its own
// lock.
type Session struct {
	id     string
	conn   net.Conn
	cipher *wire.Cipher
	userID string

	writeMu sync.Mutex
}

func newSession(conn net.Conn, cipher *wire.Cipher) *Session {
	return &Session{
		id:     uuid.New().String(),
		conn:   conn,
		cipher: cipher,
	}
}

// UserID returns the bound user, or "" before authentication.
func (s *Session) UserID() string { return s.userID }

func (s *Session) authenticated() bool { return s.userID != "" }

// bind attaches the session to an authenticated user.
func (s *Session) bind(userID string) { s.userID = userID }

// send seals one plaintext and writes it as a single frame. Safe for
// concurrent use; command replies and fan-out events interleave here.
func (s *Session) send(plaintext []byte) error {
	body, err := s.cipher.Seal(plaintext)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return wire.WriteFrame(s.conn, body)
}

// reply sends prefix ‖ body as a command response.
func (s *Session) reply(prefix, body string) error {
	return s.send(append([]byte(prefix), body...))
}

// SendEvent implements events.Sink.
func (s *Session) SendEvent(prefix string, data []byte) error {
	return s.send(append([]byte(prefix), data...))
}
