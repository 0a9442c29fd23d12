package protocol

import "fmt"

// Packet is a framed header plus opaque payload.
type Packet struct {
	Header  Header
	Payload []byte
}

// NewPacket builds a packet for the given payload.
// Fails when the payload exceeds the u16 length field.
func NewPacket(t HeaderType, payload []byte) (Packet, error) {
	if len(payload) > MaxPayload {
		return Packet{}, fmt.Errorf("%w: payload %d exceeds %d bytes", ErrInvalidPacket, len(payload), MaxPayload)
	}
	return Packet{Header: NewHeader(t, payload), Payload: payload}, nil
}

// NewControlPacket builds a payload-less packet (acks and error responses).
func NewControlPacket(t HeaderType) Packet {
	return Packet{Header: NewHeader(t, nil)}
}

// Wrap serializes the packet for transmission: header bytes then payload.
func (p Packet) Wrap() []byte {
	buf := make([]byte, 0, HeaderSize+len(p.Payload))
	buf = append(buf, p.Header.Bytes()...)
	buf = append(buf, p.Payload...)
	return buf
}

// VerifyChecksum reports whether the header checksum matches the payload.
func (p Packet) VerifyChecksum() bool {
	return VerifyChecksum(p.Header.Checksum, p.Payload)
}

// ParsePacket decodes one packet from buf. The buffer must hold the full
// header and at least the declared payload length; trailing bytes beyond the
// declared length are ignored (one packet per read).
func ParsePacket(buf []byte) (Packet, error) {
	if len(buf) < HeaderSize {
		return Packet{}, fmt.Errorf("%w: %d bytes is too short for a packet", ErrInvalidPacket, len(buf))
	}

	header, err := ParseHeader(buf[:HeaderSize])
	if err != nil {
		return Packet{}, err
	}

	body := buf[HeaderSize:]
	if len(body) < int(header.PayloadLength) {
		return Packet{}, fmt.Errorf("%w: declared payload %d, got %d bytes",
			ErrInvalidPacket, header.PayloadLength, len(body))
	}

	payload := make([]byte, header.PayloadLength)
	copy(payload, body[:header.PayloadLength])

	return Packet{Header: header, Payload: payload}, nil
}
