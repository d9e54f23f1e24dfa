// Package server implements the chat core: connection handles, the shared
// name/room registry, the routing engine, and the per-connection session
// lifecycle, together with the TCP and WebSocket listeners that feed it.
package server

import (
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/Tyrowin/parley/internal/protocol"
)

// Conn wraps one accepted byte stream with the protocol codec and the
// connection's negotiated identity.
//
// The receive path belongs to exactly one session goroutine. The send path
// may be hit concurrently by that session and by routing fan-out triggered
// from other connections, so writes are serialized by an internal lock.
type Conn struct {
	id   string
	addr string
	rwc  io.ReadWriteCloser
	dec  *protocol.Decoder

	writeMu sync.Mutex

	// name is set once by the session goroutine on handshake success,
	// before the connection is published to the registry, and never
	// changes afterward.
	name string
}

// NewConn wraps a stream. addr is used only for logging; maxFrame bounds
// inbound frame size (see protocol.NewDecoder).
func NewConn(rwc io.ReadWriteCloser, addr string, maxFrame int64) *Conn {
	return &Conn{
		id:   uuid.NewString(),
		addr: addr,
		rwc:  rwc,
		dec:  protocol.NewDecoder(rwc, maxFrame),
	}
}

// ID returns a stable identifier for log correlation before the connection
// has a display name.
func (c *Conn) ID() string { return c.id }

// RemoteAddr returns the peer address for logging.
func (c *Conn) RemoteAddr() string { return c.addr }

// Name returns the negotiated display name, or "" before handshake success.
func (c *Conn) Name() string { return c.name }

func (c *Conn) setName(name string) { c.name = name }

// Send encodes the message and writes the frame. A failed write is a
// connection fault and is returned to the caller, never swallowed.
func (c *Conn) Send(m protocol.Message) error {
	frame, err := protocol.Encode(m)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if _, err := c.rwc.Write(frame); err != nil {
		return fmt.Errorf("send %s to %s: %w", m.MessageType(), c.addr, err)
	}
	return nil
}

// Receive reads and parses the next frame. See Decoder.Decode for the
// outcome taxonomy.
func (c *Conn) Receive() (protocol.Record, error) {
	return c.dec.Decode()
}

// Close releases the underlying stream. Any blocked Receive observes the
// close as end of stream.
func (c *Conn) Close() error {
	return c.rwc.Close()
}
