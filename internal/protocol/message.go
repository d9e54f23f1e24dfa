// Package protocol defines the chat wire protocol: the message catalogue,
// the structural schemas used to classify inbound payloads, and the
// NUL-framed JSON codec that carries messages over a byte stream.
package protocol

// Version is the protocol version this implementation speaks. Greetings
// carrying any other version string are declined.
const Version = "0.1"

// DefaultPort is the port the server listens on when none is supplied.
const DefaultPort = 2019

// Type identifies a message variant by its wire tag.
type Type string

// Wire tags for every message in the catalogue.
const (
	TypeGreeting         Type = "greeting"
	TypeGreetingResponse Type = "greetingResponse"
	TypeJoinRoom         Type = "joinRoom"
	TypeLeaveRoom        Type = "leaveRoom"
	TypeRequestRoomList  Type = "requestRoomList"
	TypeRoomList         Type = "roomList"
	TypeRequestMembers   Type = "requestRoomMemberList"
	TypeRoomMemberList   Type = "roomMemberList"
	TypeSay              Type = "say"
	TypeSaid             Type = "said"
	TypeWhisper          Type = "whisper"
	TypeWhispered        Type = "whispered"
	TypeDisconnect       Type = "disconnect"
	TypeSuccess          Type = "success"
	TypeError            Type = "error"
	TypeNotice           Type = "notice"
)

// Record is a decoded but not yet classified wire payload. Inbound frames
// are parsed into a Record first and validated against the schema table
// before being promoted to a typed Message.
type Record map[string]any

// Message is the closed set of typed wire messages. Every variant reports
// its wire tag and can lower itself back to a Record for encoding.
type Message interface {
	MessageType() Type
	record() Record
}

// Greeting opens the handshake: the client proposes a protocol version and
// claims a display name.
type Greeting struct {
	Version     string
	DisplayName string
}

// GreetingAccept tells the client its greeting was accepted.
type GreetingAccept struct{}

// GreetingDecline tells the client its greeting was rejected and why. The
// connection is closed after this message.
type GreetingDecline struct {
	Reason string
}

// JoinRoom asks the server to add the sender to the named room.
type JoinRoom struct {
	Name string
}

// LeaveRoom asks the server to remove the sender from the named room.
type LeaveRoom struct {
	Name string
}

// RequestRoomList asks the server for the names of all existing rooms.
type RequestRoomList struct{}

// RoomList carries the names of all existing rooms.
type RoomList struct {
	Rooms []string
}

// RequestRoomMemberList asks for the members of a room. An empty name
// requests the members of the default room, which is every connected client.
type RequestRoomMemberList struct {
	Name string
}

// RoomMemberList carries the display names of a room's members.
type RoomMemberList struct {
	Room    string
	Members []string
}

// Say asks the server to deliver a message to a room. An empty room name
// addresses the default room, which broadcasts to every connected client.
type Say struct {
	Room    string
	Message string
}

// Said delivers a room message to a recipient.
type Said struct {
	Room    string
	Message string
	Sender  string
}

// Whisper asks the server to deliver a private message to a single client.
type Whisper struct {
	To      string
	Message string
}

// Whispered delivers a private message to its recipient.
type Whispered struct {
	To      string
	From    string
	Message string
}

// Disconnect announces that the sender is closing its connection.
type Disconnect struct{}

// Success reports that a request completed.
type Success struct {
	Message string
}

// Error reports that a request failed. It never terminates the connection.
type Error struct {
	Message string
}

// Notice is a server-originated announcement that is not a direct reply to
// any request, such as a peer connecting or disconnecting.
type Notice struct {
	Message string
}

// MessageType implementations.

func (Greeting) MessageType() Type              { return TypeGreeting }
func (GreetingAccept) MessageType() Type        { return TypeGreetingResponse }
func (GreetingDecline) MessageType() Type       { return TypeGreetingResponse }
func (JoinRoom) MessageType() Type              { return TypeJoinRoom }
func (LeaveRoom) MessageType() Type             { return TypeLeaveRoom }
func (RequestRoomList) MessageType() Type       { return TypeRequestRoomList }
func (RoomList) MessageType() Type              { return TypeRoomList }
func (RequestRoomMemberList) MessageType() Type { return TypeRequestMembers }
func (RoomMemberList) MessageType() Type        { return TypeRoomMemberList }
func (Say) MessageType() Type                   { return TypeSay }
func (Said) MessageType() Type                  { return TypeSaid }
func (Whisper) MessageType() Type               { return TypeWhisper }
func (Whispered) MessageType() Type             { return TypeWhispered }
func (Disconnect) MessageType() Type            { return TypeDisconnect }
func (Success) MessageType() Type               { return TypeSuccess }
func (Error) MessageType() Type                 { return TypeError }
func (Notice) MessageType() Type                { return TypeNotice }

func (m Greeting) record() Record {
	return Record{"type": "greeting", "version": m.Version, "displayName": m.DisplayName}
}

func (GreetingAccept) record() Record {
	return Record{"type": "greetingResponse", "response": "accept"}
}

func (m GreetingDecline) record() Record {
	return Record{"type": "greetingResponse", "response": "decline", "reason": m.Reason}
}

func (m JoinRoom) record() Record {
	return Record{"type": "joinRoom", "name": m.Name}
}

func (m LeaveRoom) record() Record {
	return Record{"type": "leaveRoom", "name": m.Name}
}

func (RequestRoomList) record() Record {
	return Record{"type": "requestRoomList"}
}

func (m RoomList) record() Record {
	return Record{"type": "roomList", "rooms": stringsToAny(m.Rooms)}
}

func (m RequestRoomMemberList) record() Record {
	return Record{"type": "requestRoomMemberList", "name": m.Name}
}

func (m RoomMemberList) record() Record {
	return Record{"type": "roomMemberList", "room": m.Room, "members": stringsToAny(m.Members)}
}

func (m Say) record() Record {
	return Record{"type": "say", "room": m.Room, "message": m.Message}
}

func (m Said) record() Record {
	return Record{"type": "said", "room": m.Room, "message": m.Message, "sender": m.Sender}
}

func (m Whisper) record() Record {
	return Record{"type": "whisper", "to": m.To, "message": m.Message}
}

func (m Whispered) record() Record {
	return Record{"type": "whispered", "to": m.To, "from": m.From, "message": m.Message}
}

func (Disconnect) record() Record {
	return Record{"type": "disconnect"}
}

func (m Success) record() Record {
	return Record{"type": "success", "message": m.Message}
}

func (m Error) record() Record {
	return Record{"type": "error", "message": m.Message}
}

func (m Notice) record() Record {
	return Record{"type": "notice", "message": m.Message}
}

func stringsToAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
