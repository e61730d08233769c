package osc

import "fmt"

// ErrUnsupportedType is returned when a Value kind has no OSC encoding.
// Hitting it indicates a programmer error, not a network condition.
var ErrUnsupportedType = fmt.Errorf("unsupported OSC type")

// MessageSize returns the encoded size of a parameter message for the
// given address and value kind. The result is always a multiple of 4.
func MessageSize(address string, kind Kind) (int, error) {
	n := paddedStringLen(address) + 4 // address block + type tag block
	switch kind {
	case KindInt32, KindFloat32:
		return n + 4, nil
	case KindBool:
		return n, nil
	default:
		return 0, fmt.Errorf("message size for kind %s: %w", kind, ErrUnsupportedType)
	}
}

// WriteMessageAt encodes a complete OSC message at buf[off:] and returns
// the number of bytes written. The message is the padded address block,
// a 4-byte type tag block, and a 4-byte big-endian payload for numeric
// kinds (booleans carry their truth in the tag character alone). Bytes
// outside [off, off+n) are never touched.
func WriteMessageAt(buf []byte, off int, address string, v Value) (int, error) {
	if !isASCII(address) {
		return 0, fmt.Errorf("write message %q: %w", address, ErrNonASCII)
	}

	size, err := MessageSize(address, v.Kind())
	if err != nil {
		return 0, fmt.Errorf("write message %q: %w", address, err)
	}
	if off < 0 || off+size > len(buf) {
		return 0, fmt.Errorf("write message %q: need %d bytes at offset %d, have %d", address, size, off, len(buf))
	}

	n := off
	n += putPaddedString(buf[n:], address)

	// Type tag block: ',' + tag + two nulls.
	buf[n] = ','
	buf[n+2] = 0
	buf[n+3] = 0
	switch v.Kind() {
	case KindInt32:
		buf[n+1] = TagInt32
		EncodeInt32(buf[n+4:], v.Int32())
	case KindFloat32:
		buf[n+1] = TagFloat32
		EncodeFloat32(buf[n+4:], v.Float32())
	case KindBool:
		if v.Bool() {
			buf[n+1] = TagTrue
		} else {
			buf[n+1] = TagFalse
		}
	}

	return size, nil
}

// BuildMessage allocates and encodes a complete OSC message for the
// given address and value.
func BuildMessage(address string, v Value) ([]byte, error) {
	size, err := MessageSize(address, v.Kind())
	if err != nil {
		return nil, fmt.Errorf("build message %q: %w", address, err)
	}

	buf := make([]byte, size)
	if _, err := WriteMessageAt(buf, 0, address, v); err != nil {
		return nil, err
	}
	return buf, nil
}

// BuildParameterMessage encodes a message addressed at a parameter name
// under the avatar parameter namespace.
func BuildParameterMessage(name string, v Value) ([]byte, error) {
	return BuildMessage(ParameterAddress(name), v)
}
