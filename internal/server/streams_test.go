package server_test

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/parley/internal/protocol"
)

// recorderStream is a write-only stream that captures every frame a
// connection sends, for asserting on fan-out without real sockets.
type recorderStream struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool
}

func (s *recorderStream) Read(_ []byte) (int, error) {
	return 0, io.EOF
}

func (s *recorderStream) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, errors.New("stream closed")
	}
	return s.buf.Write(p)
}

func (s *recorderStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// messages decodes every frame captured so far.
func (s *recorderStream) messages(t *testing.T) []protocol.Message {
	t.Helper()

	s.mu.Lock()
	data := append([]byte(nil), s.buf.Bytes()...)
	s.mu.Unlock()

	var out []protocol.Message
	dec := protocol.NewDecoder(bytes.NewReader(data), 0)
	for {
		rec, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)

		msg, err := protocol.FromRecord(rec)
		require.NoError(t, err)
		out = append(out, msg)
	}
}

// saidMessages filters the captured frames down to said deliveries.
func (s *recorderStream) saidMessages(t *testing.T) []*protocol.Said {
	t.Helper()
	var out []*protocol.Said
	for _, msg := range s.messages(t) {
		if said, ok := msg.(*protocol.Said); ok {
			out = append(out, said)
		}
	}
	return out
}

// waitFor polls a condition until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}
