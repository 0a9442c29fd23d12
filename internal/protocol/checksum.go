package protocol

// Checksum folds every payload byte into a 16-bit XOR accumulator.
// An empty payload yields 0.
func Checksum(payload []byte) uint16 {
	var sum uint16
	for _, b := range payload {
		sum ^= uint16(b)
	}
	return sum
}

// VerifyChecksum reports whether sum matches the computed checksum of payload.
func VerifyChecksum(sum uint16, payload []byte) bool {
	return sum == Checksum(payload)
}
