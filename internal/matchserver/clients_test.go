package matchserver

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcanfell/matchserver/internal/protocol"
)

func registryClient(t *testing.T, id string) *Client {
	t.Helper()
	server, peer := net.Pipe()
	c := NewClient(testPlayer(id), server)
	t.Cleanup(func() {
		c.Close()
		peer.Close()
	})
	return c
}

func TestRegisterRejectsLiveDuplicate(t *testing.T) {
	r := NewRegistry()
	first := registryClient(t, "p1")
	require.NoError(t, r.Register(first))

	err := r.Register(registryClient(t, "p1"))
	assert.ErrorIs(t, err, ErrAlreadyConnected)
	assert.Equal(t, 1, r.Count())

	got, ok := r.Client("p1")
	require.True(t, ok)
	assert.Same(t, first, got)
}

func TestRegisterReplacesDeadSession(t *testing.T) {
	r := NewRegistry()
	first := registryClient(t, "p1")
	require.NoError(t, r.Register(first))

	first.Disconnect("test")
	first.Deliver(protocol.NewControlPacket(protocol.TypePing))
	require.Equal(t, 1, first.MissedCount())

	second := registryClient(t, "p1")
	require.NoError(t, r.Register(second))

	got, ok := r.Client("p1")
	require.True(t, ok)
	assert.Same(t, second, got)
	assert.Equal(t, 1, second.MissedCount(), "the dead session's backlog carries over")
}

func TestBroadcastBuffersForDisconnected(t *testing.T) {
	r := NewRegistry()
	live := registryClient(t, "p1")
	gone := registryClient(t, "p2")
	require.NoError(t, r.Register(live))
	require.NoError(t, r.Register(gone))
	gone.Disconnect("test")

	r.Broadcast(protocol.NewControlPacket(protocol.TypeGameState))

	assert.Equal(t, 1, gone.MissedCount())
	assert.Equal(t, 0, live.MissedCount(), "a live session takes the queue path")
}

func TestClientLookupMiss(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Client("ghost")
	assert.False(t, ok)
}
