package matchserver

import (
	"fmt"
	"net"

	"github.com/google/uuid"

	"github.com/arcanfell/matchserver/internal/protocol"
)

// TemporaryClient wraps a connection that has not identified itself yet. It
// lives exactly long enough to read one handshake packet; anything other
// than a valid Connect or Reconnect closes it.
type TemporaryClient struct {
	id   uuid.UUID
	conn net.Conn
	addr string
}

// NewTemporaryClient tags a fresh connection for handshake logging.
func NewTemporaryClient(conn net.Conn) *TemporaryClient {
	return &TemporaryClient{
		id:   uuid.New(),
		conn: conn,
		addr: conn.RemoteAddr().String(),
	}
}

// ID returns the handshake tag.
func (t *TemporaryClient) ID() uuid.UUID {
	return t.id
}

// Addr returns the remote address.
func (t *TemporaryClient) Addr() string {
	return t.addr
}

// Conn surrenders the underlying connection, for promotion into a Client.
func (t *TemporaryClient) Conn() net.Conn {
	return t.conn
}

// ReadPacket reads and parses exactly one packet.
func (t *TemporaryClient) ReadPacket() (protocol.Packet, error) {
	return readPacket(t.conn)
}

// Send writes one packet back over the unpromoted connection.
func (t *TemporaryClient) Send(pkt protocol.Packet) error {
	if _, err := t.conn.Write(pkt.Wrap()); err != nil {
		return fmt.Errorf("writing handshake packet: %w", err)
	}
	return nil
}

// Close drops the connection.
func (t *TemporaryClient) Close() {
	t.conn.Close()
}
