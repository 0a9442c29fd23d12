package matchserver

import (
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/arcanfell/matchserver/internal/model"
	"github.com/arcanfell/matchserver/internal/protocol"
)

const (
	readBufferSize = 1024

	// Missed broadcast packets kept for a disconnected player. Oldest drop
	// first when the queue is full.
	missedQueueCap = 30

	sendAttempts   = 3
	sendRetryDelay = 500 * time.Millisecond

	broadcastQueueSize = 8
)

var (
	// ErrPacketWrite means every write attempt to the client failed.
	ErrPacketWrite = errors.New("unable to write packet to client")
	// ErrClientGone means the client has no live transport.
	ErrClientGone = errors.New("client transport is disconnected")
)

// Client is one authenticated player session. The session outlives its TCP
// connection: a disconnect flips the connected flag and starts buffering
// broadcasts, a reconnect swaps the transport in place.
type Client struct {
	playerID string
	player   *model.Player

	mu        sync.Mutex
	conn      net.Conn
	addr      string
	connected bool

	// writeMu serializes transport writes: the read loop answers pings and
	// errors on its own goroutine while the sender pump flushes broadcasts.
	writeMu sync.Mutex

	missedMu sync.Mutex
	missed   []protocol.Packet

	sendCh    chan protocol.Packet
	closeCh   chan struct{}
	closeOnce sync.Once
}

// NewClient binds a player identity to its first transport.
func NewClient(player *model.Player, conn net.Conn) *Client {
	return &Client{
		playerID:  player.ID,
		player:    player,
		conn:      conn,
		addr:      conn.RemoteAddr().String(),
		connected: true,
		sendCh:    make(chan protocol.Packet, broadcastQueueSize),
		closeCh:   make(chan struct{}),
	}
}

// PlayerID returns the bound player id.
func (c *Client) PlayerID() string {
	return c.playerID
}

// Player returns the bound roster record.
func (c *Client) Player() *model.Player {
	return c.player
}

// Addr returns the remote address of the current transport.
func (c *Client) Addr() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addr
}

// Connected reports whether the session has a live transport.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Disconnect closes the transport but keeps the session alive for a later
// reconnect. Broadcasts start accumulating in the missed queue.
func (c *Client) Disconnect(reason string) {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return
	}
	c.connected = false
	conn := c.conn
	addr := c.addr
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	c.drainPendingSends()
	slog.Info("client disconnected", "player", c.playerID, "remote", addr, "reason", reason)
}

// Reconnect swaps in a fresh transport. The old connection, if any, is
// closed; its read loop exits on the resulting read error.
func (c *Client) Reconnect(conn net.Conn) {
	c.mu.Lock()
	old := c.conn
	c.conn = conn
	c.addr = conn.RemoteAddr().String()
	c.connected = true
	c.mu.Unlock()

	if old != nil {
		old.Close()
	}
	slog.Info("client reconnected", "player", c.playerID, "remote", conn.RemoteAddr())
}

// dropTransport disconnects only if conn is still the active transport.
// A read loop left behind by a reconnect calls this and finds its conn
// already replaced, leaving the new transport alone.
func (c *Client) dropTransport(conn net.Conn, reason string) {
	c.mu.Lock()
	if c.conn != conn || !c.connected {
		c.mu.Unlock()
		return
	}
	c.connected = false
	addr := c.addr
	c.mu.Unlock()

	conn.Close()
	c.drainPendingSends()
	slog.Info("client transport dropped", "player", c.playerID, "remote", addr, "reason", reason)
}

// Close tears the session down for good at match end.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closeCh)
	})
	c.Disconnect("session closed")
}

// SendPacket writes one packet to the current transport, retrying transient
// failures. Exhausting the attempts disconnects the session and returns
// ErrPacketWrite.
func (c *Client) SendPacket(pkt protocol.Packet) error {
	wire := pkt.Wrap()

	var lastErr error
	for attempt := 1; attempt <= sendAttempts; attempt++ {
		c.mu.Lock()
		conn, connected := c.conn, c.connected
		c.mu.Unlock()
		if !connected || conn == nil {
			return ErrClientGone
		}

		c.writeMu.Lock()
		_, err := conn.Write(wire)
		c.writeMu.Unlock()
		if err == nil {
			slog.Debug("packet sent",
				"player", c.playerID,
				"type", pkt.Header.Type.String(),
				"size", len(wire))
			return nil
		}
		lastErr = err

		if attempt < sendAttempts {
			time.Sleep(sendRetryDelay)
		}
	}

	slog.Warn("giving up on packet write",
		"player", c.playerID,
		"type", pkt.Header.Type.String(),
		"error", lastErr)
	c.Disconnect("write failed")
	return ErrPacketWrite
}

// Deliver hands a broadcast packet to the session. A disconnected session
// buffers it; a session whose send queue is saturated is treated as gone and
// buffers it too.
func (c *Client) Deliver(pkt protocol.Packet) {
	if !c.Connected() {
		c.queueMissed(pkt)
		return
	}

	select {
	case c.sendCh <- pkt:
	default:
		slog.Warn("send queue saturated, dropping transport", "player", c.playerID)
		c.Disconnect("send queue saturated")
		c.queueMissed(pkt)
	}
}

// runSender is the per-session write pump. It drains the missed backlog
// before each fresh packet so a reconnected player catches up in order.
func (c *Client) runSender() {
	for {
		select {
		case <-c.closeCh:
			return
		case pkt := <-c.sendCh:
			c.flush(pkt)
		}
	}
}

func (c *Client) flush(fresh protocol.Packet) {
	backlog := append(c.drainMissed(), fresh)
	for i, pkt := range backlog {
		if err := c.SendPacket(pkt); err != nil {
			c.requeueMissed(backlog[i:])
			return
		}
	}
}

// drainPendingSends moves packets still queued for a dead transport into the
// missed backlog, keeping broadcast order across a reconnect.
func (c *Client) drainPendingSends() {
	for {
		select {
		case pkt := <-c.sendCh:
			c.queueMissed(pkt)
		default:
			return
		}
	}
}

func (c *Client) queueMissed(pkt protocol.Packet) {
	c.missedMu.Lock()
	defer c.missedMu.Unlock()
	if len(c.missed) >= missedQueueCap {
		c.missed = c.missed[1:]
	}
	c.missed = append(c.missed, pkt)
}

func (c *Client) drainMissed() []protocol.Packet {
	c.missedMu.Lock()
	defer c.missedMu.Unlock()
	backlog := c.missed
	c.missed = nil
	return backlog
}

// requeueMissed puts an unsent backlog back at the head of the queue,
// trimming the oldest entries to stay within the cap.
func (c *Client) requeueMissed(pkts []protocol.Packet) {
	c.missedMu.Lock()
	defer c.missedMu.Unlock()
	c.missed = append(append([]protocol.Packet(nil), pkts...), c.missed...)
	if over := len(c.missed) - missedQueueCap; over > 0 {
		c.missed = c.missed[over:]
	}
}

// MissedCount returns how many broadcasts are waiting for a reconnect.
func (c *Client) MissedCount() int {
	c.missedMu.Lock()
	defer c.missedMu.Unlock()
	return len(c.missed)
}

// readPacket performs one read against the transport and parses exactly one
// packet out of it. Anything past the first packet in the read is discarded
// by the framing layer.
func readPacket(conn net.Conn) (protocol.Packet, error) {
	buf := make([]byte, readBufferSize)
	n, err := conn.Read(buf)
	if err != nil {
		return protocol.Packet{}, err
	}
	return protocol.ParsePacket(buf[:n])
}
