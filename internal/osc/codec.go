package osc

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
)

// ErrNonASCII is returned when an address or string payload contains
// characters the OSC string encoding cannot represent.
var ErrNonASCII = fmt.Errorf("string is not ASCII")

// padBytesNeeded determines how many zero bytes are needed to fill up to
// the next 4-byte boundary.
func padBytesNeeded(elementLen int) int {
	return (4 - (elementLen % 4)) % 4
}

// paddedStringLen returns the encoded size of s: the string, one null
// terminator, and padding to a multiple of 4.
func paddedStringLen(s string) int {
	n := len(s) + 1
	return n + padBytesNeeded(n)
}

// isASCII reports whether s contains only 7-bit characters.
func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7F {
			return false
		}
	}
	return true
}

// EncodeString encodes s as an OSC string: the ASCII bytes, one null
// terminator, and additional null bytes up to the next multiple of 4.
// Non-ASCII input is rejected rather than lossily truncated.
func EncodeString(s string) ([]byte, error) {
	if !isASCII(s) {
		return nil, fmt.Errorf("encode %q: %w", s, ErrNonASCII)
	}
	b := make([]byte, paddedStringLen(s))
	copy(b, s)
	return b, nil
}

// putPaddedString writes s as an OSC string at b[0:] and returns the
// number of bytes written. The caller guarantees capacity; the padding
// region is explicitly zeroed so reused buffers cannot leak stale bytes.
func putPaddedString(b []byte, s string) int {
	n := copy(b, s)
	total := n + 1 + padBytesNeeded(n+1)
	for i := n; i < total; i++ {
		b[i] = 0
	}
	return total
}

// Pad appends zero bytes so the slice length is a multiple of 4. A length
// already aligned is returned unchanged.
func Pad(b []byte) []byte {
	return append(b, make([]byte, padBytesNeeded(len(b)))...)
}

// EncodeInt32 writes v big-endian into b[0:4].
func EncodeInt32(b []byte, v int32) {
	binary.BigEndian.PutUint32(b, uint32(v))
}

// DecodeInt32 reads a big-endian int32 from b[0:4] without mutating b.
func DecodeInt32(b []byte) int32 {
	return int32(binary.BigEndian.Uint32(b))
}

// EncodeFloat32 writes v big-endian into b[0:4].
func EncodeFloat32(b []byte, v float32) {
	binary.BigEndian.PutUint32(b, math.Float32bits(v))
}

// DecodeFloat32 reads a big-endian float32 from b[0:4] without mutating b.
func DecodeFloat32(b []byte) float32 {
	return math.Float32frombits(binary.BigEndian.Uint32(b))
}

// ParameterAddress builds the full OSC address for a parameter name.
func ParameterAddress(name string) string {
	return ParameterAddressPrefix + name
}

// ParameterName extracts the bare parameter name from an address under
// the parameter namespace. Returns false for any other address.
func ParameterName(addr string) (string, bool) {
	name, ok := strings.CutPrefix(addr, ParameterAddressPrefix)
	if !ok || name == "" {
		return "", false
	}
	return name, true
}

// IsAvatarChange reports whether addr is the avatar change address,
// either exactly or with a single trailing path segment.
func IsAvatarChange(addr string) bool {
	if addr == AvatarChangeAddress {
		return true
	}
	rest, ok := strings.CutPrefix(addr, AvatarChangeAddress+"/")
	return ok && rest != "" && !strings.Contains(rest, "/")
}

// ParseAvatarID parses the string payload of an /avatar/change message
// into a GUID, stripping the well-known avtr_ prefix if present.
func ParseAvatarID(payload string) (uuid.UUID, error) {
	raw := strings.TrimPrefix(payload, AvatarIDPrefix)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("parse avatar id %q: %w", payload, err)
	}
	return id, nil
}
