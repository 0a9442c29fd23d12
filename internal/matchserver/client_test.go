package matchserver

import (
	"fmt"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcanfell/matchserver/internal/model"
	"github.com/arcanfell/matchserver/internal/protocol"
)

func testPlayer(id string) *model.Player {
	return &model.Player{ID: id, Username: "user-" + id}
}

func pipeClient(t *testing.T, id string) (*Client, net.Conn) {
	t.Helper()
	server, peer := net.Pipe()
	c := NewClient(testPlayer(id), server)
	t.Cleanup(func() {
		c.Close()
		peer.Close()
	})
	return c, peer
}

func numberedPacket(t *testing.T, n int) protocol.Packet {
	t.Helper()
	pkt, err := protocol.NewPacket(protocol.TypeGameState, []byte(fmt.Sprintf("state-%03d", n)))
	require.NoError(t, err)
	return pkt
}

// readWirePacket reassembles one packet from the stream, immune to TCP
// coalescing.
func readWirePacket(t *testing.T, conn net.Conn) protocol.Packet {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	header := make([]byte, protocol.HeaderSize)
	_, err := io.ReadFull(conn, header)
	require.NoError(t, err)

	parsed, err := protocol.ParseHeader(header)
	require.NoError(t, err)

	payload := make([]byte, parsed.PayloadLength)
	_, err = io.ReadFull(conn, payload)
	require.NoError(t, err)

	return protocol.Packet{Header: parsed, Payload: payload}
}

func TestSendPacketWritesWireForm(t *testing.T) {
	c, peer := pipeClient(t, "p1")

	done := make(chan protocol.Packet, 1)
	go func() {
		done <- readWirePacket(t, peer)
	}()

	pkt := numberedPacket(t, 1)
	require.NoError(t, c.SendPacket(pkt))

	got := <-done
	assert.Equal(t, protocol.TypeGameState, got.Header.Type)
	assert.Equal(t, []byte("state-001"), got.Payload)
	assert.True(t, got.VerifyChecksum())
}

func TestSendPacketToClosedTransport(t *testing.T) {
	c, peer := pipeClient(t, "p1")
	peer.Close()
	c.conn.Close()

	err := c.SendPacket(numberedPacket(t, 1))
	assert.ErrorIs(t, err, ErrPacketWrite)
	assert.False(t, c.Connected(), "a failed write drops the transport")

	err = c.SendPacket(numberedPacket(t, 2))
	assert.ErrorIs(t, err, ErrClientGone)
}

func TestMissedQueueDropsOldest(t *testing.T) {
	c, _ := pipeClient(t, "p1")
	c.Disconnect("test")

	for i := 0; i < missedQueueCap+5; i++ {
		c.Deliver(numberedPacket(t, i))
	}

	assert.Equal(t, missedQueueCap, c.MissedCount())
	backlog := c.drainMissed()
	require.Len(t, backlog, missedQueueCap)
	assert.Equal(t, []byte("state-005"), backlog[0].Payload, "the five oldest are gone")
	assert.Equal(t, []byte(fmt.Sprintf("state-%03d", missedQueueCap+4)), backlog[missedQueueCap-1].Payload)
}

func TestDeliverSaturatedQueueDropsTransport(t *testing.T) {
	c, _ := pipeClient(t, "p1")
	// No sender pump is running, so the channel fills up.

	for i := 0; i < broadcastQueueSize; i++ {
		c.Deliver(numberedPacket(t, i))
	}
	require.True(t, c.Connected())
	assert.Equal(t, 0, c.MissedCount())

	c.Deliver(numberedPacket(t, broadcastQueueSize))
	assert.False(t, c.Connected(), "overflow is treated as a dead client")

	// The queued packets move to the missed backlog ahead of the overflow
	// packet, so nothing is lost and order holds.
	assert.Equal(t, broadcastQueueSize+1, c.MissedCount())
	backlog := c.drainMissed()
	assert.Equal(t, []byte("state-000"), backlog[0].Payload)
	assert.Equal(t, []byte(fmt.Sprintf("state-%03d", broadcastQueueSize)), backlog[broadcastQueueSize].Payload)
}

func TestDisconnectMovesQueuedSendsToMissed(t *testing.T) {
	c, _ := pipeClient(t, "p1")
	// No sender pump is running, so these stay in the channel.
	c.Deliver(numberedPacket(t, 0))
	c.Deliver(numberedPacket(t, 1))
	c.Deliver(numberedPacket(t, 2))

	c.Disconnect("test")
	c.Deliver(numberedPacket(t, 3))

	backlog := c.drainMissed()
	require.Len(t, backlog, 4)
	for i, pkt := range backlog {
		assert.Equal(t, []byte(fmt.Sprintf("state-%03d", i)), pkt.Payload)
	}
}

func TestConcurrentSendersKeepFrames(t *testing.T) {
	c, peer := pipeClient(t, "p1")

	const perSender = 10
	packets := make([]protocol.Packet, 2*perSender)
	for i := range packets {
		packets[i] = numberedPacket(t, i)
	}

	read := make(chan struct{})
	go func() {
		defer close(read)
		for range packets {
			pkt := readWirePacket(t, peer)
			assert.True(t, pkt.VerifyChecksum())
		}
	}()

	var wg sync.WaitGroup
	for sender := 0; sender < 2; sender++ {
		sender := sender
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perSender; i++ {
				assert.NoError(t, c.SendPacket(packets[sender*perSender+i]))
			}
		}()
	}
	wg.Wait()
	<-read
}

func TestReconnectSwapsTransport(t *testing.T) {
	c, _ := pipeClient(t, "p1")
	old := c.conn

	c.Disconnect("test")
	require.False(t, c.Connected())

	fresh, peer := net.Pipe()
	defer peer.Close()
	c.Reconnect(fresh)

	assert.True(t, c.Connected())

	// The abandoned read loop reports its dead conn; the new transport
	// stays up.
	c.dropTransport(old, "stale loop exit")
	assert.True(t, c.Connected())

	c.dropTransport(fresh, "real failure")
	assert.False(t, c.Connected())
}

func TestSenderDrainsMissedBeforeFresh(t *testing.T) {
	c, _ := pipeClient(t, "p1")
	c.Disconnect("test")
	c.Deliver(numberedPacket(t, 1))
	c.Deliver(numberedPacket(t, 2))

	fresh, farEnd := net.Pipe()
	defer farEnd.Close()
	c.Reconnect(fresh)

	go c.runSender()
	c.Deliver(numberedPacket(t, 3))

	first := readWirePacket(t, farEnd)
	second := readWirePacket(t, farEnd)
	third := readWirePacket(t, farEnd)

	assert.Equal(t, []byte("state-001"), first.Payload)
	assert.Equal(t, []byte("state-002"), second.Payload)
	assert.Equal(t, []byte("state-003"), third.Payload)
	assert.Equal(t, 0, c.MissedCount())
}
