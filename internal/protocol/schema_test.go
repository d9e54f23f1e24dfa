package protocol_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/parley/internal/protocol"
)

func TestClassifyCatalogue(t *testing.T) {
	cases := []struct {
		name   string
		record protocol.Record
		want   protocol.Type
	}{
		{
			"greeting",
			protocol.Record{"type": "greeting", "version": "0.1", "displayName": "alice"},
			protocol.TypeGreeting,
		},
		{
			"greeting with dotted version",
			protocol.Record{"type": "greeting", "version": "1.2.3.4", "displayName": "Mr. Wonka"},
			protocol.TypeGreeting,
		},
		{
			"accept response",
			protocol.Record{"type": "greetingResponse", "response": "accept"},
			protocol.TypeGreetingResponse,
		},
		{
			"decline response",
			protocol.Record{"type": "greetingResponse", "response": "decline", "reason": "nope"},
			protocol.TypeGreetingResponse,
		},
		{
			"join room",
			protocol.Record{"type": "joinRoom", "name": "lobby"},
			protocol.TypeJoinRoom,
		},
		{
			"leave room",
			protocol.Record{"type": "leaveRoom", "name": "lobby"},
			protocol.TypeLeaveRoom,
		},
		{
			"request room list",
			protocol.Record{"type": "requestRoomList"},
			protocol.TypeRequestRoomList,
		},
		{
			"room list",
			protocol.Record{"type": "roomList", "rooms": []any{"lobby", "dev"}},
			protocol.TypeRoomList,
		},
		{
			"request member list",
			protocol.Record{"type": "requestRoomMemberList", "name": ""},
			protocol.TypeRequestMembers,
		},
		{
			"member list",
			protocol.Record{"type": "roomMemberList", "room": "lobby", "members": []any{"alice"}},
			protocol.TypeRoomMemberList,
		},
		{
			"say",
			protocol.Record{"type": "say", "room": "", "message": "hi"},
			protocol.TypeSay,
		},
		{
			"said",
			protocol.Record{"type": "said", "room": "lobby", "message": "hi", "sender": "alice"},
			protocol.TypeSaid,
		},
		{
			"whisper",
			protocol.Record{"type": "whisper", "to": "bob", "message": "psst"},
			protocol.TypeWhisper,
		},
		{
			"whispered",
			protocol.Record{"type": "whispered", "to": "bob", "from": "alice", "message": "psst"},
			protocol.TypeWhispered,
		},
		{
			"disconnect",
			protocol.Record{"type": "disconnect"},
			protocol.TypeDisconnect,
		},
		{
			"success",
			protocol.Record{"type": "success", "message": "ok"},
			protocol.TypeSuccess,
		},
		{
			"error",
			protocol.Record{"type": "error", "message": "bad"},
			protocol.TypeError,
		},
		{
			"notice",
			protocol.Record{"type": "notice", "message": "bob connected."},
			protocol.TypeNotice,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			typ, ok := protocol.Classify(tc.record)
			require.True(t, ok)
			assert.Equal(t, tc.want, typ)
		})
	}
}

func TestClassifyRejects(t *testing.T) {
	cases := []struct {
		name   string
		record protocol.Record
	}{
		{"unknown type tag", protocol.Record{"type": "shout", "message": "HI"}},
		{"missing field", protocol.Record{"type": "greeting", "version": "0.1"}},
		{
			"extra field on exact schema",
			protocol.Record{"type": "joinRoom", "name": "lobby", "password": "x"},
		},
		{
			"version not a dotted numeral",
			protocol.Record{"type": "greeting", "version": "latest", "displayName": "alice"},
		},
		{
			"version with trailing dot",
			protocol.Record{"type": "greeting", "version": "0.1.", "displayName": "alice"},
		},
		{"non-string field", protocol.Record{"type": "joinRoom", "name": float64(7)}},
		{
			"array with non-string element",
			protocol.Record{"type": "roomList", "rooms": []any{"lobby", float64(1)}},
		},
		{"response neither accept nor decline", protocol.Record{"type": "greetingResponse", "response": "maybe"}},
		{"no type field", protocol.Record{"message": "hi"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, ok := protocol.Classify(tc.record)
			assert.False(t, ok)

			_, err := protocol.FromRecord(tc.record)
			assert.ErrorIs(t, err, protocol.ErrUnrecognized)
		})
	}
}

func TestFromRecordBuildsTypedVariants(t *testing.T) {
	msg, err := protocol.FromRecord(protocol.Record{
		"type": "greeting", "version": "0.1", "displayName": "alice",
	})
	require.NoError(t, err)
	greeting, ok := msg.(*protocol.Greeting)
	require.True(t, ok)
	assert.Equal(t, "0.1", greeting.Version)
	assert.Equal(t, "alice", greeting.DisplayName)

	msg, err = protocol.FromRecord(protocol.Record{
		"type": "roomMemberList", "room": "lobby", "members": []any{"alice", "bob"},
	})
	require.NoError(t, err)
	members, ok := msg.(*protocol.RoomMemberList)
	require.True(t, ok)
	assert.Equal(t, "lobby", members.Room)
	assert.Equal(t, []string{"alice", "bob"}, members.Members)

	msg, err = protocol.FromRecord(protocol.Record{
		"type": "greetingResponse", "response": "decline", "reason": "taken",
	})
	require.NoError(t, err)
	decline, ok := msg.(*protocol.GreetingDecline)
	require.True(t, ok)
	assert.Equal(t, "taken", decline.Reason)
}
