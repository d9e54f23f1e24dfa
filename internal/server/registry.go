package server

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry outcome errors. Invalid-name and invalid-room errors carry the
// human-readable reason sent back to the client.
var (
	ErrNameTaken     = errors.New("display name is already in use")
	ErrInvalidName   = errors.New("display names must be non-empty and contain no whitespace")
	ErrInvalidRoom   = errors.New("room names must be non-empty and contain no whitespace")
	ErrRoomNotFound  = errors.New("no such room")
	ErrNotMember     = errors.New("not a member of the room")
	ErrAlreadyMember = errors.New("already a member of the room")
)

// Registry is the single shared-state store for the chat service: the
// directory of display names and the map of room member sets. One mutex
// covers both so that no reader ever observes a connection in a room after
// it has left the directory.
//
// Broadcast fan-out also runs under this mutex (see Router), so a peer that
// blocks on a send can stall unrelated registry operations. That is a
// liveness trade-off, not a safety one: socket buffers keep well-behaved
// peers from holding the lock for long.
type Registry struct {
	mu    sync.Mutex
	names map[string]*Conn
	rooms map[string]map[*Conn]struct{}
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		names: make(map[string]*Conn),
		rooms: make(map[string]map[*Conn]struct{}),
	}
}

func validIdentifier(name string) bool {
	return name != "" && !strings.ContainsAny(name, " \t\r\n\v\f")
}

// RegisterName claims a display name for the connection. It rejects blank
// or whitespace-containing names and names already held by a live
// connection.
func (r *Registry) RegisterName(name string, c *Conn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registerLocked(name, c)
}

func (r *Registry) registerLocked(name string, c *Conn) error {
	if !validIdentifier(name) {
		return ErrInvalidName
	}
	if _, taken := r.names[name]; taken {
		return ErrNameTaken
	}
	r.names[name] = c
	return nil
}

// Unregister removes the connection's directory entry and strips it from
// every room, deleting rooms left empty. It is a no-op for connections
// that were never registered, so cleanup paths may call it freely.
func (r *Registry) Unregister(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unregisterLocked(c)
}

func (r *Registry) unregisterLocked(c *Conn) {
	if c.Name() != "" {
		delete(r.names, c.Name())
	}
	for room, members := range r.rooms {
		delete(members, c)
		if len(members) == 0 {
			delete(r.rooms, room)
		}
	}
}

// JoinRoom adds the connection to the named room, creating the room on
// first join. A duplicate join reports ErrAlreadyMember.
func (r *Registry) JoinRoom(name string, c *Conn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !validIdentifier(name) {
		return ErrInvalidRoom
	}
	members, ok := r.rooms[name]
	if !ok {
		members = make(map[*Conn]struct{})
		r.rooms[name] = members
	}
	if _, present := members[c]; present {
		return ErrAlreadyMember
	}
	members[c] = struct{}{}
	return nil
}

// LeaveRoom removes the connection from the named room, deleting the room
// if it becomes empty.
func (r *Registry) LeaveRoom(name string, c *Conn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[name]
	if !ok {
		return ErrRoomNotFound
	}
	if _, present := members[c]; !present {
		return ErrNotMember
	}
	delete(members, c)
	if len(members) == 0 {
		delete(r.rooms, name)
	}
	return nil
}

// ListRooms returns a sorted snapshot of all room names. A room exists in
// the listing iff it has at least one member.
func (r *Registry) ListRooms() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	rooms := make([]string, 0, len(r.rooms))
	for name := range r.rooms {
		rooms = append(rooms, name)
	}
	sort.Strings(rooms)
	return rooms
}

// MembersOf returns the sorted display names in the named room. The empty
// room name denotes the default room, whose membership is every registered
// connection.
func (r *Registry) MembersOf(name string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.membersLocked(name)
}

func (r *Registry) membersLocked(name string) ([]string, error) {
	if name == "" {
		all := make([]string, 0, len(r.names))
		for display := range r.names {
			all = append(all, display)
		}
		sort.Strings(all)
		return all, nil
	}

	members, ok := r.rooms[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, name)
	}
	names := make([]string, 0, len(members))
	for c := range members {
		names = append(names, c.Name())
	}
	sort.Strings(names)
	return names, nil
}

// ClientCount reports how many connections are registered.
func (r *Registry) ClientCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.names)
}
