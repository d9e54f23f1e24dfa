// Package client implements the Parley wire protocol from the client side.
// It is a thin wrapper around the codec: dial, greet, fire commands, and
// receive typed messages. The interactive CLI and the integration tests
// are both built on it.
package client

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/Tyrowin/parley/internal/protocol"
)

// DeclinedError reports that the server rejected the greeting.
type DeclinedError struct {
	Reason string
}

func (e *DeclinedError) Error() string {
	return "greeting declined: " + e.Reason
}

// Client is a connection to a Parley server.
type Client struct {
	conn    net.Conn
	dec     *protocol.Decoder
	writeMu sync.Mutex
}

// Dial connects to a server over TCP.
func Dial(host string, port int) (*Client, error) {
	conn, err := net.Dial("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("client.Dial: %w", err)
	}
	return New(conn), nil
}

// New wraps an established connection. Tests use this with in-memory pipes.
func New(conn net.Conn) *Client {
	return &Client{
		conn: conn,
		dec:  protocol.NewDecoder(conn, 0),
	}
}

// Greet performs the handshake. It returns nil on accept and a
// *DeclinedError when the server rejects the greeting.
func (c *Client) Greet(displayName string) error {
	greeting := &protocol.Greeting{Version: protocol.Version, DisplayName: displayName}
	if err := c.send(greeting); err != nil {
		return fmt.Errorf("client.Greet: %w", err)
	}

	for {
		msg, err := c.Receive()
		if err != nil {
			return fmt.Errorf("client.Greet: %w", err)
		}
		switch m := msg.(type) {
		case *protocol.GreetingAccept:
			return nil
		case *protocol.GreetingDecline:
			return &DeclinedError{Reason: m.Reason}
		}
	}
}

// Receive blocks for the next recognized message. Malformed and
// unrecognized frames are skipped; io.EOF reports that the server closed
// the connection.
func (c *Client) Receive() (protocol.Message, error) {
	for {
		rec, err := c.dec.Decode()
		if err != nil {
			if errors.Is(err, protocol.ErrMalformed) {
				continue
			}
			return nil, err
		}

		msg, err := protocol.FromRecord(rec)
		if err != nil {
			continue
		}
		return msg, nil
	}
}

// Join asks to join a room.
func (c *Client) Join(room string) error {
	return c.send(&protocol.JoinRoom{Name: room})
}

// Leave asks to leave a room.
func (c *Client) Leave(room string) error {
	return c.send(&protocol.LeaveRoom{Name: room})
}

// Say sends a message to a room; the empty room name addresses everyone.
func (c *Client) Say(room, message string) error {
	return c.send(&protocol.Say{Room: room, Message: message})
}

// Whisper sends a private message to a single client.
func (c *Client) Whisper(to, message string) error {
	return c.send(&protocol.Whisper{To: to, Message: message})
}

// RequestRoomList asks for the names of all existing rooms.
func (c *Client) RequestRoomList() error {
	return c.send(&protocol.RequestRoomList{})
}

// RequestRoomMembers asks for a room's member names; the empty room name
// asks for every connected client.
func (c *Client) RequestRoomMembers(room string) error {
	return c.send(&protocol.RequestRoomMemberList{Name: room})
}

// Disconnect announces an orderly departure.
func (c *Client) Disconnect() error {
	return c.send(&protocol.Disconnect{})
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) send(m protocol.Message) error {
	frame, err := protocol.Encode(m)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if _, err := c.conn.Write(frame); err != nil {
		return fmt.Errorf("send %s: %w", m.MessageType(), err)
	}
	return nil
}
