// Package integration contains end-to-end tests that exercise the server
// over real TCP connections: handshake, room traffic, whispers, cleanup,
// and graceful shutdown.
package integration

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/Tyrowin/parley/pkg/client"
	"github.com/Tyrowin/parley/test/testhelpers"

	"github.com/Tyrowin/parley/internal/protocol"
)

func TestGreetingHandshake(t *testing.T) {
	srv, port := testhelpers.StartChatServer(t)

	testhelpers.DialAndGreet(t, port, "alice")
	if got := srv.Registry().ClientCount(); got != 1 {
		t.Errorf("Expected 1 connected client, got %d", got)
	}
}

func TestDuplicateNameDeclined(t *testing.T) {
	_, port := testhelpers.StartChatServer(t)

	testhelpers.DialAndGreet(t, port, "alice")

	second := testhelpers.Dial(t, port)
	err := second.Greet("alice")
	var declined *client.DeclinedError
	if !errors.As(err, &declined) {
		t.Fatalf("Expected a declined greeting, got %v", err)
	}
	if declined.Reason != "Display name is already in use. Please choose another name." {
		t.Errorf("Unexpected decline reason: %q", declined.Reason)
	}

	// The decline is fatal; the server closes the stream.
	if _, err := second.Receive(); !errors.Is(err, io.EOF) {
		t.Errorf("Expected end of stream after decline, got %v", err)
	}
}

func TestRoomTrafficReachesMembersOnly(t *testing.T) {
	_, port := testhelpers.StartChatServer(t)

	alice := testhelpers.DialAndGreet(t, port, "alice")
	bob := testhelpers.DialAndGreet(t, port, "bob")
	carol := testhelpers.DialAndGreet(t, port, "carol")

	mustJoin(t, alice, "lobby")
	mustJoin(t, bob, "lobby")

	if err := alice.Client.Say("lobby", "hello lobby"); err != nil {
		t.Fatalf("Say failed: %v", err)
	}

	said := testhelpers.Expect[*protocol.Said](t, bob)
	if said.Room != "lobby" || said.Sender != "alice" || said.Message != "hello lobby" {
		t.Errorf("Unexpected said delivery: %+v", said)
	}

	testhelpers.ExpectNoSaid(t, carol)
	testhelpers.ExpectNoSaid(t, alice)
}

func TestDefaultRoomBroadcast(t *testing.T) {
	_, port := testhelpers.StartChatServer(t)

	alice := testhelpers.DialAndGreet(t, port, "alice")
	bob := testhelpers.DialAndGreet(t, port, "bob")

	if err := alice.Client.Say("", "hello everyone"); err != nil {
		t.Fatalf("Say failed: %v", err)
	}

	said := testhelpers.Expect[*protocol.Said](t, bob)
	if said.Room != "" || said.Message != "hello everyone" {
		t.Errorf("Unexpected said delivery: %+v", said)
	}
	testhelpers.ExpectNoSaid(t, alice)
}

func TestDefaultRoomMemberList(t *testing.T) {
	_, port := testhelpers.StartChatServer(t)

	alice := testhelpers.DialAndGreet(t, port, "alice")
	testhelpers.DialAndGreet(t, port, "bob")

	if err := alice.Client.RequestRoomMembers(""); err != nil {
		t.Fatalf("Member list request failed: %v", err)
	}

	members := testhelpers.Expect[*protocol.RoomMemberList](t, alice)
	if members.Room != "" {
		t.Errorf("Expected the default room, got %q", members.Room)
	}
	if len(members.Members) != 2 || members.Members[0] != "alice" || members.Members[1] != "bob" {
		t.Errorf("Unexpected member list: %v", members.Members)
	}
}

func TestWhisperAndUnknownRecipient(t *testing.T) {
	_, port := testhelpers.StartChatServer(t)

	alice := testhelpers.DialAndGreet(t, port, "alice")
	bob := testhelpers.DialAndGreet(t, port, "bob")

	if err := alice.Client.Whisper("bob", "psst"); err != nil {
		t.Fatalf("Whisper failed: %v", err)
	}
	whispered := testhelpers.Expect[*protocol.Whispered](t, bob)
	if whispered.From != "alice" || whispered.Message != "psst" {
		t.Errorf("Unexpected whisper delivery: %+v", whispered)
	}

	if err := alice.Client.Whisper("nobody", "hey"); err != nil {
		t.Fatalf("Whisper failed: %v", err)
	}
	errReply := testhelpers.Expect[*protocol.Error](t, alice)
	if errReply.Message != "Could not find a client named nobody." {
		t.Errorf("Unexpected error reply: %q", errReply.Message)
	}
}

func TestCleanupOnDisconnectMessage(t *testing.T) {
	srv, port := testhelpers.StartChatServer(t)

	alice := testhelpers.DialAndGreet(t, port, "alice")
	bob := testhelpers.DialAndGreet(t, port, "bob")
	mustJoin(t, bob, "lobby")

	if err := bob.Client.Disconnect(); err != nil {
		t.Fatalf("Disconnect failed: %v", err)
	}

	testhelpers.ExpectNotice(t, alice, "bob disconnected.")
	testhelpers.WaitFor(t, 2*time.Second, func() bool {
		return srv.Registry().ClientCount() == 1
	})
	if rooms := srv.Registry().ListRooms(); len(rooms) != 0 {
		t.Errorf("Expected the empty room to be dropped, got %v", rooms)
	}
}

func TestCleanupOnDroppedConnection(t *testing.T) {
	srv, port := testhelpers.StartChatServer(t)

	alice := testhelpers.DialAndGreet(t, port, "alice")
	bob := testhelpers.DialAndGreet(t, port, "bob")

	if err := bob.Client.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	testhelpers.ExpectNotice(t, alice, "bob disconnected.")
	testhelpers.WaitFor(t, 2*time.Second, func() bool {
		return srv.Registry().ClientCount() == 1
	})
}

func TestGracefulShutdownClosesClients(t *testing.T) {
	srv, port := testhelpers.StartChatServer(t)

	alice := testhelpers.DialAndGreet(t, port, "alice")

	if err := srv.Shutdown(5 * time.Second); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	// The pump closes the inbox once the server drops the connection.
	testhelpers.WaitFor(t, 2*time.Second, func() bool {
		select {
		case _, ok := <-alice.Inbox:
			return !ok
		default:
			return false
		}
	})
}

func mustJoin(t *testing.T, chatter *testhelpers.Chatter, room string) {
	t.Helper()

	if err := chatter.Client.Join(room); err != nil {
		t.Fatalf("%s: join %q failed: %v", chatter.Name, room, err)
	}
	testhelpers.Expect[*protocol.Success](t, chatter)
}
