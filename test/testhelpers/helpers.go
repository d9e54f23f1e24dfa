// Package testhelpers provides common utilities and helper functions for
// testing the Parley server.
//
// It contains reusable utilities shared by the integration tests: starting
// a server on an ephemeral port, dialing and greeting clients, and reading
// expected message types with timeouts.
package testhelpers

import (
	"net"
	"testing"
	"time"

	"github.com/Tyrowin/parley/internal/protocol"
	"github.com/Tyrowin/parley/internal/server"
	"github.com/Tyrowin/parley/pkg/client"
)

// StartChatServer starts a server on an ephemeral local port and registers
// its shutdown as test cleanup. It returns the server and the port.
func StartChatServer(t *testing.T) (*server.Server, int) {
	t.Helper()

	cfg := server.NewConfig()
	srv := server.New(*cfg)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen on ephemeral port: %v", err)
	}
	srv.StartListener(ln)
	t.Cleanup(func() {
		if err := srv.Shutdown(5 * time.Second); err != nil {
			t.Logf("Server shutdown returned: %v", err)
		}
	})

	return srv, ln.Addr().(*net.TCPAddr).Port
}

// Chatter is a connected test client whose inbound messages are pumped
// into a buffered inbox so broadcasts never stall on an idle reader.
type Chatter struct {
	Client *client.Client
	Inbox  chan protocol.Message
	Name   string
}

// Dial connects a client to the local server without greeting.
func Dial(t *testing.T, port int) *client.Client {
	t.Helper()

	c, err := client.Dial("127.0.0.1", port)
	if err != nil {
		t.Fatalf("Failed to dial server: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// DialAndGreet connects a client, performs the handshake, and starts the
// inbox pump.
func DialAndGreet(t *testing.T, port int, name string) *Chatter {
	t.Helper()

	c := Dial(t, port)
	if err := c.Greet(name); err != nil {
		t.Fatalf("Greeting as %q failed: %v", name, err)
	}

	chatter := &Chatter{Client: c, Inbox: make(chan protocol.Message, 64), Name: name}
	go func() {
		for {
			msg, err := c.Receive()
			if err != nil {
				close(chatter.Inbox)
				return
			}
			chatter.Inbox <- msg
		}
	}()
	return chatter
}

// Expect reads from the chatter's inbox until a message of the wanted type
// arrives, skipping unrelated traffic such as connect notices.
func Expect[T protocol.Message](t *testing.T, chatter *Chatter) T {
	t.Helper()

	deadline := time.After(3 * time.Second)
	for {
		select {
		case msg, ok := <-chatter.Inbox:
			if !ok {
				var zero T
				t.Fatalf("%s: connection closed while waiting for %T", chatter.Name, zero)
			}
			if want, isWanted := msg.(T); isWanted {
				return want
			}
		case <-deadline:
			var zero T
			t.Fatalf("%s: timed out waiting for %T", chatter.Name, zero)
		}
	}
}

// ExpectNotice reads until a notice with the exact text arrives.
func ExpectNotice(t *testing.T, chatter *Chatter, text string) {
	t.Helper()

	deadline := time.After(3 * time.Second)
	for {
		select {
		case msg, ok := <-chatter.Inbox:
			if !ok {
				t.Fatalf("%s: connection closed while waiting for notice %q", chatter.Name, text)
			}
			if notice, isNotice := msg.(*protocol.Notice); isNotice && notice.Message == text {
				return
			}
		case <-deadline:
			t.Fatalf("%s: timed out waiting for notice %q", chatter.Name, text)
		}
	}
}

// ExpectNoSaid asserts that no said delivery is queued for the chatter
// within a short window.
func ExpectNoSaid(t *testing.T, chatter *Chatter) {
	t.Helper()

	for {
		select {
		case msg, ok := <-chatter.Inbox:
			if !ok {
				return
			}
			if said, isSaid := msg.(*protocol.Said); isSaid {
				t.Fatalf("%s: unexpected said delivery: %+v", chatter.Name, said)
			}
		case <-time.After(250 * time.Millisecond):
			return
		}
	}
}

// WaitFor polls a condition until it holds or the deadline passes.
func WaitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("Condition not reached before deadline")
}
