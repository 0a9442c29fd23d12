package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Wire framing constants. Every packet starts with a fixed 6-byte header:
// type (1), payload length (u16 BE), checksum (u16 BE), sentinel 0x0A.
const (
	HeaderSize = 6
	Sentinel   = 0x0A
	MaxPayload = 0xFFFF
)

// Framing errors. The dispatcher translates these into the matching
// error packets (InvalidHeader / InvalidPacketPayload).
var (
	ErrInvalidHeader = errors.New("invalid packet header")
	ErrInvalidPacket = errors.New("invalid packet")
)

// HeaderType identifies the kind of message carried by a packet.
type HeaderType byte

const (
	TypeDisconnect HeaderType = 0x00
	TypeConnect    HeaderType = 0x01
	TypePing       HeaderType = 0x02
	TypeReconnect  HeaderType = 0x03

	TypeGameState HeaderType = 0x10

	TypePlayCard     HeaderType = 0x11
	TypeAttackPlayer HeaderType = 0x12
	TypeInitServer   HeaderType = 0x13

	TypeFailedToConnectPlayer HeaderType = 0xF0
	TypeInvalidPacketPayload  HeaderType = 0xF1
	TypeInvalidHeader         HeaderType = 0xFA
	TypeAlreadyConnected      HeaderType = 0xFB
	TypeInvalidPlayerData     HeaderType = 0xFC
	TypeInvalidChecksum       HeaderType = 0xFD
	TypeError                 HeaderType = 0xFE
)

var headerTypeNames = map[HeaderType]string{
	TypeDisconnect:            "DISCONNECT",
	TypeConnect:               "CONNECT",
	TypePing:                  "PING",
	TypeReconnect:             "RECONNECT",
	TypeGameState:             "GAME_STATE",
	TypePlayCard:              "PLAY_CARD",
	TypeAttackPlayer:          "ATTACK_PLAYER",
	TypeInitServer:            "INIT_SERVER",
	TypeFailedToConnectPlayer: "FAILED_TO_CONNECT_PLAYER",
	TypeInvalidPacketPayload:  "INVALID_PACKET_PAYLOAD",
	TypeInvalidHeader:         "INVALID_HEADER",
	TypeAlreadyConnected:      "ALREADY_CONNECTED",
	TypeInvalidPlayerData:     "INVALID_PLAYER_DATA",
	TypeInvalidChecksum:       "INVALID_CHECKSUM",
	TypeError:                 "ERROR",
}

// Valid reports whether t is a recognized header type byte.
func (t HeaderType) Valid() bool {
	_, ok := headerTypeNames[t]
	return ok
}

func (t HeaderType) String() string {
	if name, ok := headerTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(0x%02X)", byte(t))
}

// Header is the fixed-size packet header.
type Header struct {
	Type          HeaderType
	PayloadLength uint16
	Checksum      uint16
}

// NewHeader builds a header for the given payload, computing length and
// checksum. The payload must not exceed MaxPayload bytes.
func NewHeader(t HeaderType, payload []byte) Header {
	return Header{
		Type:          t,
		PayloadLength: uint16(len(payload)),
		Checksum:      Checksum(payload),
	}
}

// Bytes serializes the header into its 6-byte wire form.
func (h Header) Bytes() []byte {
	buf := make([]byte, HeaderSize)
	buf[0] = byte(h.Type)
	binary.BigEndian.PutUint16(buf[1:3], h.PayloadLength)
	binary.BigEndian.PutUint16(buf[3:5], h.Checksum)
	buf[5] = Sentinel
	return buf
}

// ParseHeader decodes the first HeaderSize bytes of buf.
// Returns ErrInvalidHeader when the buffer is too short, the sentinel byte
// is wrong, or the type byte is unknown.
func ParseHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d bytes, need %d", ErrInvalidHeader, len(buf), HeaderSize)
	}
	if buf[5] != Sentinel {
		return Header{}, fmt.Errorf("%w: bad sentinel 0x%02X", ErrInvalidHeader, buf[5])
	}

	t := HeaderType(buf[0])
	if !t.Valid() {
		return Header{}, fmt.Errorf("%w: unknown type 0x%02X", ErrInvalidHeader, buf[0])
	}

	return Header{
		Type:          t,
		PayloadLength: binary.BigEndian.Uint16(buf[1:3]),
		Checksum:      binary.BigEndian.Uint16(buf[3:5]),
	}, nil
}
