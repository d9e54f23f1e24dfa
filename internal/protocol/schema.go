package protocol

import (
	"errors"
	"regexp"
)

// ErrUnrecognized reports that a decoded record matched no schema in the
// catalogue. The connection stays open; the caller decides how to reply.
var ErrUnrecognized = errors.New("protocol: unrecognized message")

// fieldSpec is a predicate over a single field value.
type fieldSpec interface {
	match(v any) bool
}

type literal struct{ want any }

func (l literal) match(v any) bool { return v == l.want }

type pattern struct{ re *regexp.Regexp }

func (p pattern) match(v any) bool {
	s, ok := v.(string)
	return ok && p.re.MatchString(s)
}

type isString struct{}

func (isString) match(v any) bool {
	_, ok := v.(string)
	return ok
}

// isStringArray accepts a JSON array whose elements are all strings.
type isStringArray struct{}

func (isStringArray) match(v any) bool {
	arr, ok := v.([]any)
	if !ok {
		return false
	}
	for _, elem := range arr {
		if _, ok := elem.(string); !ok {
			return false
		}
	}
	return true
}

// schema is a structural predicate over a Record: every declared field must
// be present and pass its spec, and no undeclared field may be present.
// Matching is structural, never based on in-memory type names.
type schema struct {
	fields map[string]fieldSpec
}

func (s schema) match(r Record) bool {
	if len(r) != len(s.fields) {
		return false
	}
	for name, spec := range s.fields {
		v, ok := r[name]
		if !ok || !spec.match(v) {
			return false
		}
	}
	return true
}

// versionPattern accepts dotted numeral strings such as "0.1" or "1.2.3.4".
var versionPattern = pattern{regexp.MustCompile(`^(?:[0-9]+\.)*[0-9]+$`)}

// catalogue lists every schema in protocol order, paired with the
// constructor that promotes a matching record to its typed variant.
// Classification returns the first match. Display and room name fields are
// only type-checked here so the server can answer invalid values with a
// specific error instead of dropping the frame as malformed.
var catalogue = []struct {
	typ   Type
	shape schema
	build func(Record) Message
}{
	{
		TypeGreeting,
		schema{map[string]fieldSpec{
			"type":        literal{"greeting"},
			"version":     versionPattern,
			"displayName": isString{},
		}},
		func(r Record) Message {
			return &Greeting{Version: str(r, "version"), DisplayName: str(r, "displayName")}
		},
	},
	{
		TypeGreetingResponse,
		schema{map[string]fieldSpec{
			"type":     literal{"greetingResponse"},
			"response": literal{"accept"},
		}},
		func(Record) Message { return &GreetingAccept{} },
	},
	{
		TypeGreetingResponse,
		schema{map[string]fieldSpec{
			"type":     literal{"greetingResponse"},
			"response": literal{"decline"},
			"reason":   isString{},
		}},
		func(r Record) Message { return &GreetingDecline{Reason: str(r, "reason")} },
	},
	{
		TypeJoinRoom,
		schema{map[string]fieldSpec{
			"type": literal{"joinRoom"},
			"name": isString{},
		}},
		func(r Record) Message { return &JoinRoom{Name: str(r, "name")} },
	},
	{
		TypeLeaveRoom,
		schema{map[string]fieldSpec{
			"type": literal{"leaveRoom"},
			"name": isString{},
		}},
		func(r Record) Message { return &LeaveRoom{Name: str(r, "name")} },
	},
	{
		TypeRequestRoomList,
		schema{map[string]fieldSpec{
			"type": literal{"requestRoomList"},
		}},
		func(Record) Message { return &RequestRoomList{} },
	},
	{
		TypeRoomList,
		schema{map[string]fieldSpec{
			"type":  literal{"roomList"},
			"rooms": isStringArray{},
		}},
		func(r Record) Message { return &RoomList{Rooms: strSlice(r, "rooms")} },
	},
	{
		TypeRequestMembers,
		schema{map[string]fieldSpec{
			"type": literal{"requestRoomMemberList"},
			"name": isString{},
		}},
		func(r Record) Message { return &RequestRoomMemberList{Name: str(r, "name")} },
	},
	{
		TypeRoomMemberList,
		schema{map[string]fieldSpec{
			"type":    literal{"roomMemberList"},
			"room":    isString{},
			"members": isStringArray{},
		}},
		func(r Record) Message {
			return &RoomMemberList{Room: str(r, "room"), Members: strSlice(r, "members")}
		},
	},
	{
		TypeSay,
		schema{map[string]fieldSpec{
			"type":    literal{"say"},
			"room":    isString{},
			"message": isString{},
		}},
		func(r Record) Message { return &Say{Room: str(r, "room"), Message: str(r, "message")} },
	},
	{
		TypeSaid,
		schema{map[string]fieldSpec{
			"type":    literal{"said"},
			"room":    isString{},
			"message": isString{},
			"sender":  isString{},
		}},
		func(r Record) Message {
			return &Said{Room: str(r, "room"), Message: str(r, "message"), Sender: str(r, "sender")}
		},
	},
	{
		TypeWhisper,
		schema{map[string]fieldSpec{
			"type":    literal{"whisper"},
			"to":      isString{},
			"message": isString{},
		}},
		func(r Record) Message { return &Whisper{To: str(r, "to"), Message: str(r, "message")} },
	},
	{
		TypeWhispered,
		schema{map[string]fieldSpec{
			"type":    literal{"whispered"},
			"to":      isString{},
			"from":    isString{},
			"message": isString{},
		}},
		func(r Record) Message {
			return &Whispered{To: str(r, "to"), From: str(r, "from"), Message: str(r, "message")}
		},
	},
	{
		TypeDisconnect,
		schema{map[string]fieldSpec{
			"type": literal{"disconnect"},
		}},
		func(Record) Message { return &Disconnect{} },
	},
	{
		TypeSuccess,
		schema{map[string]fieldSpec{
			"type":    literal{"success"},
			"message": isString{},
		}},
		func(r Record) Message { return &Success{Message: str(r, "message")} },
	},
	{
		TypeError,
		schema{map[string]fieldSpec{
			"type":    literal{"error"},
			"message": isString{},
		}},
		func(r Record) Message { return &Error{Message: str(r, "message")} },
	},
	{
		TypeNotice,
		schema{map[string]fieldSpec{
			"type":    literal{"notice"},
			"message": isString{},
		}},
		func(r Record) Message { return &Notice{Message: str(r, "message")} },
	},
}

// Classify evaluates the record against every known schema in protocol
// order and reports the wire tag of the first match.
func Classify(r Record) (Type, bool) {
	for _, entry := range catalogue {
		if entry.shape.match(r) {
			return entry.typ, true
		}
	}
	return "", false
}

// FromRecord promotes a decoded record to its typed variant, or returns
// ErrUnrecognized if it matches no schema.
func FromRecord(r Record) (Message, error) {
	for _, entry := range catalogue {
		if entry.shape.match(r) {
			return entry.build(r), nil
		}
	}
	return nil, ErrUnrecognized
}

// str reads a field the schema already verified to be a string.
func str(r Record, key string) string {
	s, _ := r[key].(string)
	return s
}

// strSlice reads a field the schema already verified to be a string array.
func strSlice(r Record, key string) []string {
	arr, _ := r[key].([]any)
	out := make([]string, 0, len(arr))
	for _, elem := range arr {
		s, _ := elem.(string)
		out = append(out, s)
	}
	return out
}
