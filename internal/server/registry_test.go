package server_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/parley/internal/server"
)

func newTestConn() *server.Conn {
	return server.NewConn(&recorderStream{}, "test", 0)
}

func TestRegisterNameValidation(t *testing.T) {
	reg := server.NewRegistry()
	conn := newTestConn()

	assert.ErrorIs(t, reg.RegisterName("", conn), server.ErrInvalidName)
	assert.ErrorIs(t, reg.RegisterName("two words", conn), server.ErrInvalidName)
	assert.ErrorIs(t, reg.RegisterName("tab\tname", conn), server.ErrInvalidName)
	assert.NoError(t, reg.RegisterName("alice", conn))
}

func TestRegisterNameUniqueness(t *testing.T) {
	reg := server.NewRegistry()

	require.NoError(t, reg.RegisterName("alice", newTestConn()))
	assert.ErrorIs(t, reg.RegisterName("alice", newTestConn()), server.ErrNameTaken)
}

func TestConcurrentRegistrationHasOneWinner(t *testing.T) {
	reg := server.NewRegistry()

	const attempts = 32
	var wg sync.WaitGroup
	results := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- reg.RegisterName("highlander", newTestConn())
		}()
	}
	wg.Wait()
	close(results)

	var wins int
	for err := range results {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, server.ErrNameTaken)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, reg.ClientCount())
}

func TestRoomExistsOnlyWhileNonEmpty(t *testing.T) {
	reg := server.NewRegistry()
	a, b := newTestConn(), newTestConn()

	assert.Empty(t, reg.ListRooms())

	require.NoError(t, reg.JoinRoom("lobby", a))
	require.NoError(t, reg.JoinRoom("lobby", b))
	assert.Equal(t, []string{"lobby"}, reg.ListRooms())

	require.NoError(t, reg.LeaveRoom("lobby", a))
	assert.Equal(t, []string{"lobby"}, reg.ListRooms())

	require.NoError(t, reg.LeaveRoom("lobby", b))
	assert.Empty(t, reg.ListRooms())

	_, err := reg.MembersOf("lobby")
	assert.ErrorIs(t, err, server.ErrRoomNotFound)
}

func TestJoinRoomValidation(t *testing.T) {
	reg := server.NewRegistry()
	conn := newTestConn()

	assert.ErrorIs(t, reg.JoinRoom("", conn), server.ErrInvalidRoom)
	assert.ErrorIs(t, reg.JoinRoom("two words", conn), server.ErrInvalidRoom)

	require.NoError(t, reg.JoinRoom("lobby", conn))
	assert.ErrorIs(t, reg.JoinRoom("lobby", conn), server.ErrAlreadyMember)
}

func TestLeaveRoomFailures(t *testing.T) {
	reg := server.NewRegistry()
	member, outsider := newTestConn(), newTestConn()

	assert.ErrorIs(t, reg.LeaveRoom("lobby", member), server.ErrRoomNotFound)

	require.NoError(t, reg.JoinRoom("lobby", member))
	assert.ErrorIs(t, reg.LeaveRoom("lobby", outsider), server.ErrNotMember)
}

func TestUnregisterStripsEveryRoom(t *testing.T) {
	reg := server.NewRegistry()
	router := server.NewRouter(reg)

	conn := newTestConn()
	peer := newTestConn()
	require.NoError(t, router.Register("alice", conn))
	require.NoError(t, router.Register("bob", peer))

	require.NoError(t, reg.JoinRoom("a", conn))
	require.NoError(t, reg.JoinRoom("b", conn))
	require.NoError(t, reg.JoinRoom("b", peer))

	reg.Unregister(conn)

	// Room a vanished with its only member; b kept its other member.
	assert.Equal(t, []string{"b"}, reg.ListRooms())

	members, err := reg.MembersOf("b")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, members)

	all, err := reg.MembersOf("")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, all)

	// Unregister is idempotent.
	reg.Unregister(conn)
	assert.Equal(t, 1, reg.ClientCount())
}

func TestMembersOfDefaultRoomIsEveryone(t *testing.T) {
	reg := server.NewRegistry()
	router := server.NewRouter(reg)

	for i := 0; i < 3; i++ {
		require.NoError(t, router.Register(fmt.Sprintf("user%d", i), newTestConn()))
	}

	members, err := reg.MembersOf("")
	require.NoError(t, err)
	assert.Equal(t, []string{"user0", "user1", "user2"}, members)
}
