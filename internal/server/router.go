package server

import (
	"errors"
	"fmt"
	"log"

	"github.com/Tyrowin/parley/internal/protocol"
)

// Router implements the chat operations against the registry. Operations
// that read registry state and then fan out messages hold the registry
// mutex for the whole read-verify-send sequence, so a concurrent join or
// leave can never race an in-flight broadcast.
type Router struct {
	reg *Registry
}

// NewRouter creates a router over the given registry.
func NewRouter(reg *Registry) *Router {
	return &Router{reg: reg}
}

// deliver sends a message to one connection during fan-out. A failed send
// is logged and otherwise ignored here: the peer's own session will observe
// the broken stream and run cleanup.
func (rt *Router) deliver(c *Conn, m protocol.Message) {
	if err := c.Send(m); err != nil {
		log.Printf("Dropping %s for %s: %v", m.MessageType(), c.RemoteAddr(), err)
	}
}

// Register claims a display name for the connection and announces the
// newcomer to every other registered client. The registry insert and the
// connect notices happen under one lock acquisition so that every client
// observes them in the same order.
func (rt *Router) Register(name string, c *Conn) error {
	rt.reg.mu.Lock()
	defer rt.reg.mu.Unlock()

	if err := rt.reg.registerLocked(name, c); err != nil {
		return err
	}
	c.setName(name)

	notice := &protocol.Notice{Message: fmt.Sprintf("%s connected.", name)}
	for _, peer := range rt.reg.names {
		if peer != c {
			rt.deliver(peer, notice)
		}
	}
	return nil
}

// Drop removes the connection from the directory and every room and
// announces the departure to the remaining clients. Dropping a connection
// that never registered is a silent no-op.
func (rt *Router) Drop(c *Conn) {
	rt.reg.mu.Lock()
	defer rt.reg.mu.Unlock()

	name := c.Name()
	registered := name != "" && rt.reg.names[name] == c
	rt.reg.unregisterLocked(c)
	if !registered {
		return
	}

	notice := &protocol.Notice{Message: fmt.Sprintf("%s disconnected.", name)}
	for _, peer := range rt.reg.names {
		rt.deliver(peer, notice)
	}
}

// Speak delivers a said message to the target scope, excluding the sender.
// An empty room name addresses the default room: every registered
// connection. For a named room the sender must be a member. Failures are
// reported to the sender as an error reply; nothing is broadcast.
func (rt *Router) Speak(room, text string, sender *Conn) {
	if text == "" {
		rt.deliver(sender, &protocol.Error{Message: "Cannot send an empty message."})
		return
	}

	rt.reg.mu.Lock()
	defer rt.reg.mu.Unlock()

	said := &protocol.Said{Room: room, Message: text, Sender: sender.Name()}

	if room == "" {
		for _, peer := range rt.reg.names {
			if peer != sender {
				rt.deliver(peer, said)
			}
		}
		return
	}

	members, ok := rt.reg.rooms[room]
	if !ok {
		rt.deliver(sender, &protocol.Error{Message: fmt.Sprintf("There is no room named %s.", room)})
		return
	}
	if _, member := members[sender]; !member {
		rt.deliver(sender, &protocol.Error{Message: fmt.Sprintf("You are not a member of %s.", room)})
		return
	}
	for peer := range members {
		if peer != sender {
			rt.deliver(peer, said)
		}
	}
}

// Whisper resolves a private message. It returns the connection the result
// must be delivered to together with the message: the recipient and a
// whispered message when the target name is registered, or the sender and
// an error reply when it is not. The caller must deliver to the returned
// connection, which is not necessarily the sender.
func (rt *Router) Whisper(to, text string, sender *Conn) (*Conn, protocol.Message) {
	if text == "" {
		return sender, &protocol.Error{Message: "Cannot send an empty message."}
	}

	rt.reg.mu.Lock()
	defer rt.reg.mu.Unlock()

	target, ok := rt.reg.names[to]
	if !ok {
		return sender, &protocol.Error{Message: fmt.Sprintf("Could not find a client named %s.", to)}
	}
	return target, &protocol.Whispered{To: to, From: sender.Name(), Message: text}
}

// Join adds the requester to a room and replies with success or the
// specific failure.
func (rt *Router) Join(room string, c *Conn) {
	switch err := rt.reg.JoinRoom(room, c); {
	case err == nil:
		rt.deliver(c, &protocol.Success{Message: fmt.Sprintf("Joined room %s.", room)})
	case errors.Is(err, ErrAlreadyMember):
		rt.deliver(c, &protocol.Error{Message: fmt.Sprintf("You are already a member of %s.", room)})
	default:
		rt.deliver(c, &protocol.Error{Message: "Invalid room name. Room names must be non-empty and contain no whitespace."})
	}
}

// Leave removes the requester from a room and replies with success or the
// specific failure.
func (rt *Router) Leave(room string, c *Conn) {
	switch err := rt.reg.LeaveRoom(room, c); {
	case err == nil:
		rt.deliver(c, &protocol.Success{Message: fmt.Sprintf("Left room %s.", room)})
	case errors.Is(err, ErrRoomNotFound):
		rt.deliver(c, &protocol.Error{Message: fmt.Sprintf("There is no room named %s.", room)})
	default:
		rt.deliver(c, &protocol.Error{Message: fmt.Sprintf("You are not a member of %s.", room)})
	}
}

// RoomListFor replies with a snapshot of all existing room names.
func (rt *Router) RoomListFor(c *Conn) {
	rt.deliver(c, &protocol.RoomList{Rooms: rt.reg.ListRooms()})
}

// MemberListFor replies with the member names of a room, where the empty
// room name means every registered client.
func (rt *Router) MemberListFor(room string, c *Conn) {
	members, err := rt.reg.MembersOf(room)
	if err != nil {
		rt.deliver(c, &protocol.Error{Message: fmt.Sprintf("There is no room named %s.", room)})
		return
	}
	rt.deliver(c, &protocol.RoomMemberList{Room: room, Members: members})
}
