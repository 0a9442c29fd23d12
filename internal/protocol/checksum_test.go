package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChecksumEmptyPayload(t *testing.T) {
	assert.Equal(t, uint16(0), Checksum(nil))
	assert.Equal(t, uint16(0), Checksum([]byte{}))
}

func TestChecksumSingleByte(t *testing.T) {
	assert.Equal(t, uint16(0xAB), Checksum([]byte{0xAB}))
}

func TestChecksumMultipleBytes(t *testing.T) {
	// 0x01 ^ 0x02 = 0x03, 0x03 ^ 0x03 = 0x00
	assert.Equal(t, uint16(0x00), Checksum([]byte{0x01, 0x02, 0x03}))
}

func TestVerifyChecksum(t *testing.T) {
	payload := []byte{0x10, 0x20, 0x30}
	assert.True(t, VerifyChecksum(Checksum(payload), payload))
	assert.False(t, VerifyChecksum(0xFF, payload))
}

// Flipping any single bit of the payload must be detected.
func TestChecksumBitFlipDiscrimination(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	sum := Checksum(payload)

	for i := range payload {
		for bit := 0; bit < 8; bit++ {
			mutated := make([]byte, len(payload))
			copy(mutated, payload)
			mutated[i] ^= 1 << bit
			assert.Falsef(t, VerifyChecksum(sum, mutated),
				"flip of byte %d bit %d went undetected", i, bit)
		}
	}
}
