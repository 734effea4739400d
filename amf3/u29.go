package amf3

// U29 is the variable length integer of AMF3. The low 29 bits of the value
// are written in 1-4 bytes, most significant group first. Every byte but the
// last one has the high bit set. The first three bytes carry 7 bits each,
// the fourth one carries 8 bits.

const (
	u29Mask     = 0x1fffffff
	u29SignBit  = 0x10000000
	u29MaxBytes = 4
)

// u29Size returns the number of bytes putU29 writes for v.
func u29Size(v int32) int {
	u := uint32(v) & u29Mask
	switch {
	case u < 0x80:
		return 1
	case u < 0x4000:
		return 2
	case u < 0x200000:
		return 3
	}
	return 4
}

// putU29 writes v into dst which must have at least u29Size(v) bytes.
// Returns the number of written bytes.
func putU29(dst []byte, v int32) int {
	u := uint32(v) & u29Mask
	switch {
	case u < 0x80:
		dst[0] = byte(u)
		return 1

	case u < 0x4000:
		dst[0] = byte(u>>7) | 0x80
		dst[1] = byte(u & 0x7f)
		return 2

	case u < 0x200000:
		dst[0] = byte(u>>14) | 0x80
		dst[1] = byte(u>>7&0x7f) | 0x80
		dst[2] = byte(u & 0x7f)
		return 3
	}

	dst[0] = byte(u>>22) | 0x80
	dst[1] = byte(u>>15&0x7f) | 0x80
	dst[2] = byte(u>>8&0x7f) | 0x80
	dst[3] = byte(u)
	return 4
}

// readU29 decodes U29 from src. The result is sign extended from bit 28, so
// handles and lengths must be shifted with >> 1 as unsigned values by the caller
// (see handleValue). Returns the number of consumed bytes.
func readU29(src []byte) (int32, int, error) {
	var acc uint32
	for i := 0; i < u29MaxBytes; i++ {
		if i >= len(src) {
			return 0, 0, errMalformed("truncated U29")
		}
		b := uint32(src[i])
		if i == u29MaxBytes-1 {
			acc = acc<<8 | b
			return signExtend29(acc), i + 1, nil
		}
		if b < 0x80 {
			acc = acc<<7 | b
			return signExtend29(acc), i + 1, nil
		}
		acc = acc<<7 | b&0x7f
	}
	// unreachable
	return 0, 0, errMalformed("truncated U29")
}

func signExtend29(acc uint32) int32 {
	v := int32(acc & u29Mask)
	if v&u29SignBit != 0 {
		v -= u29SignBit << 1
	}
	return v
}

// handleValue returns the upper 28 bits of the ref-or-length handle as
// unsigned value.
func handleValue(handle int32) int {
	return int((uint32(handle) & u29Mask) >> 1)
}

// isInline reports whether the handle defines a new value (low bit set)
// rather than referencing a table entry.
func isInline(handle int32) bool {
	return handle&1 == 1
}

// AppendU29 appends U29 encoding of v to dst.
func AppendU29(dst []byte, v int32) []byte {
	var buf [u29MaxBytes]byte
	n := putU29(buf[:], v)
	return append(dst, buf[:n]...)
}

// DecodeU29 decodes U29 from the beginning of b. Returns the signed 29-bit
// value and the number of consumed bytes.
func DecodeU29(b []byte) (int32, int, error) {
	return readU29(b)
}
