package server

import (
	"errors"
	"io"
	"log"
	"strings"
	"sync"

	"github.com/Tyrowin/parley/internal/protocol"
)

// Handshake decline reasons sent before closing the connection.
const (
	declineVersion     = "Incompatible version. Server speaks protocol version " + protocol.Version + "."
	declineInvalidName = "Invalid display name. Display names must be non-empty and contain no whitespace."
	declineNameTaken   = "Display name is already in use. Please choose another name."
)

// Session drives one connection through its lifecycle:
// Connecting -> Greeting -> Active -> Closed. It owns the receive path of
// its connection; all other goroutines reach the connection only through
// its locked send path.
type Session struct {
	conn    *Conn
	router  *Router
	limiter *rateLimiter
	cleanup sync.Once
}

// NewSession prepares a session for an accepted connection.
func NewSession(conn *Conn, router *Router, limit RateLimitConfig) *Session {
	return &Session{
		conn:    conn,
		router:  router,
		limiter: newRateLimiter(limit.Burst, limit.RefillInterval),
	}
}

// Run executes the lifecycle to completion and then cleans up. It blocks
// until the connection is closed and is meant to be called in its own
// goroutine.
func (s *Session) Run() {
	defer s.Close()

	if s.greet() {
		s.serve()
	}
}

// receive reads the next record. It reports whether the session should
// keep running; malformed frames are logged and skipped, end of stream and
// transport faults end the session.
func (s *Session) receive() (protocol.Record, bool) {
	for {
		rec, err := s.conn.Receive()
		switch {
		case err == nil:
			return rec, true
		case errors.Is(err, protocol.ErrMalformed):
			log.Printf("Ignoring malformed frame from %s: %v", s.conn.RemoteAddr(), err)
		case errors.Is(err, io.EOF):
			return nil, false
		default:
			log.Printf("Connection fault on %s: %v", s.conn.RemoteAddr(), err)
			return nil, false
		}
	}
}

// greet runs the handshake loop. Only a greeting message advances the
// state; everything else recognized is ignored. It reports whether the
// session reached the Active state.
func (s *Session) greet() bool {
	for {
		rec, ok := s.receive()
		if !ok {
			return false
		}

		msg, err := protocol.FromRecord(rec)
		if err != nil {
			log.Printf("Ignoring unrecognized frame from %s during handshake", s.conn.RemoteAddr())
			continue
		}
		greeting, isGreeting := msg.(*protocol.Greeting)
		if !isGreeting {
			continue
		}

		if greeting.Version != protocol.Version {
			s.decline(declineVersion)
			return false
		}

		switch err := s.router.Register(greeting.DisplayName, s.conn); {
		case err == nil:
		case errors.Is(err, ErrNameTaken):
			s.decline(declineNameTaken)
			return false
		default:
			s.decline(declineInvalidName)
			return false
		}

		if err := s.conn.Send(&protocol.GreetingAccept{}); err != nil {
			log.Printf("Failed to accept greeting from %s: %v", s.conn.RemoteAddr(), err)
			return false
		}
		log.Printf("Client %s registered as %q", s.conn.RemoteAddr(), greeting.DisplayName)
		return true
	}
}

func (s *Session) decline(reason string) {
	if err := s.conn.Send(&protocol.GreetingDecline{Reason: reason}); err != nil {
		log.Printf("Failed to decline greeting from %s: %v", s.conn.RemoteAddr(), err)
	}
	log.Printf("Declined handshake from %s: %s", s.conn.RemoteAddr(), reason)
}

// serve runs the Active dispatch loop until the peer disconnects.
func (s *Session) serve() {
	for {
		rec, ok := s.receive()
		if !ok {
			return
		}

		if !s.limiter.allow() {
			s.reply(&protocol.Error{Message: "You are sending messages too quickly."})
			continue
		}

		msg, err := protocol.FromRecord(rec)
		if err != nil {
			s.reply(&protocol.Error{Message: "Unrecognized message."})
			continue
		}

		switch m := msg.(type) {
		case *protocol.Disconnect:
			return
		case *protocol.JoinRoom:
			s.router.Join(m.Name, s.conn)
		case *protocol.LeaveRoom:
			s.router.Leave(m.Name, s.conn)
		case *protocol.RequestRoomList:
			s.router.RoomListFor(s.conn)
		case *protocol.RequestRoomMemberList:
			s.router.MemberListFor(m.Name, s.conn)
		case *protocol.Say:
			s.router.Speak(m.Room, m.Message, s.conn)
		case *protocol.Whisper:
			target, result := s.router.Whisper(m.To, m.Message, s.conn)
			if err := target.Send(result); err != nil {
				log.Printf("Dropping whisper result for %s: %v", target.RemoteAddr(), err)
			}
		default:
			// Recognized but not a client request, e.g. a repeated
			// greeting or server-originated traffic echoed back.
			s.reply(&protocol.Error{Message: "Cannot handle a " + string(msg.MessageType()) + " message."})
		}
	}
}

func (s *Session) reply(m protocol.Message) {
	if err := s.conn.Send(m); err != nil {
		log.Printf("Dropping %s reply for %s: %v", m.MessageType(), s.conn.RemoteAddr(), err)
	}
}

// Close runs cleanup exactly once regardless of which exit path reached
// the Closed state: the connection leaves the directory and every room,
// remaining clients are notified, and the stream is released.
func (s *Session) Close() {
	s.cleanup.Do(func() {
		s.router.Drop(s.conn)
		if err := s.conn.Close(); err != nil && !isExpectedCloseError(err) {
			log.Printf("Error closing connection %s: %v", s.conn.RemoteAddr(), err)
		}
		log.Printf("Connection %s closed", s.conn.RemoteAddr())
	})
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "connection reset by peer")
}
