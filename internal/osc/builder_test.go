package osc

import (
	"bytes"
	"errors"
	"testing"
)

func TestBuildMessageInt(t *testing.T) {
	msg, err := BuildMessage("/avatar/parameters/VF", Int32Value(42))
	if err != nil {
		t.Fatalf("BuildMessage: %v", err)
	}

	// "/avatar/parameters/VF" is 21 chars -> 24-byte address block,
	// 4-byte tag block, 4-byte payload.
	if len(msg) != 32 {
		t.Fatalf("message length = %d, want 32", len(msg))
	}
	if len(msg)%4 != 0 {
		t.Errorf("message length not 4-byte aligned")
	}
	if !bytes.Equal(msg[24:28], []byte{',', 'i', 0, 0}) {
		t.Errorf("tag block = %v, want ,i", msg[24:28])
	}
	if !bytes.Equal(msg[28:], []byte{0, 0, 0, 42}) {
		t.Errorf("payload = %v, want [0 0 0 42]", msg[28:])
	}
}

func TestBuildMessageFloat(t *testing.T) {
	msg, err := BuildMessage("/a", Float32Value(0.5))
	if err != nil {
		t.Fatalf("BuildMessage: %v", err)
	}

	// 2-char address -> 4-byte block, tag block, 4-byte payload.
	if len(msg) != 12 {
		t.Fatalf("message length = %d, want 12", len(msg))
	}
	if msg[4] != ',' || msg[5] != 'f' {
		t.Errorf("tag block = %v, want ,f", msg[4:8])
	}
	if got := DecodeFloat32(msg[8:]); got != 0.5 {
		t.Errorf("payload decodes to %g, want 0.5", got)
	}
}

func TestBuildMessageBool(t *testing.T) {
	tests := []struct {
		value bool
		tag   byte
	}{
		{true, 'T'},
		{false, 'F'},
	}

	for _, tt := range tests {
		msg, err := BuildMessage("/a", BoolValue(tt.value))
		if err != nil {
			t.Fatalf("BuildMessage: %v", err)
		}
		// Booleans carry no payload: address block + tag block only.
		if len(msg) != 8 {
			t.Fatalf("message length = %d, want 8", len(msg))
		}
		if msg[4] != ',' || msg[5] != tt.tag {
			t.Errorf("tag block = %v, want ,%c", msg[4:8], tt.tag)
		}
	}
}

func TestBuildMessageInvalidKind(t *testing.T) {
	_, err := BuildMessage("/a", Value{})
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
}

func TestBuildMessageNonASCIIAddress(t *testing.T) {
	_, err := BuildMessage("/avätar", Int32Value(1))
	if !errors.Is(err, ErrNonASCII) {
		t.Fatalf("expected ErrNonASCII, got %v", err)
	}
}

func TestWriteMessageAt(t *testing.T) {
	buf := make([]byte, 64)
	for i := range buf {
		buf[i] = 0xEE // sentinel to detect out-of-range writes
	}

	n, err := WriteMessageAt(buf, 8, "/a", Int32Value(7))
	if err != nil {
		t.Fatalf("WriteMessageAt: %v", err)
	}
	if n != 12 {
		t.Fatalf("bytes written = %d, want 12", n)
	}

	// Bytes outside [8, 20) must be untouched.
	for i := 0; i < 8; i++ {
		if buf[i] != 0xEE {
			t.Fatalf("byte %d before offset was modified", i)
		}
	}
	for i := 8 + n; i < len(buf); i++ {
		if buf[i] != 0xEE {
			t.Fatalf("byte %d past the message was modified", i)
		}
	}

	want, err := BuildMessage("/a", Int32Value(7))
	if err != nil {
		t.Fatalf("BuildMessage: %v", err)
	}
	if !bytes.Equal(buf[8:8+n], want) {
		t.Errorf("in-place message %v differs from allocated %v", buf[8:8+n], want)
	}
}

func TestWriteMessageAtZeroesPadding(t *testing.T) {
	buf := make([]byte, 32)
	for i := range buf {
		buf[i] = 0xEE
	}

	n, err := WriteMessageAt(buf, 0, "/ab", BoolValue(true))
	if err != nil {
		t.Fatalf("WriteMessageAt: %v", err)
	}
	// Address block is "/ab\0"; padding within the message must be
	// zero even in a dirty reused buffer.
	if buf[3] != 0 {
		t.Errorf("address terminator not zeroed: %v", buf[:n])
	}
	if buf[n-2] != 0 || buf[n-1] != 0 {
		t.Errorf("tag block padding not zeroed: %v", buf[:n])
	}
}

func TestWriteMessageAtBounds(t *testing.T) {
	buf := make([]byte, 10) // too small for any message at offset 0
	if _, err := WriteMessageAt(buf, 0, "/avatar/parameters/X", Int32Value(1)); err == nil {
		t.Fatal("expected error for undersized buffer")
	}
	if _, err := WriteMessageAt(buf, -1, "/a", BoolValue(true)); err == nil {
		t.Fatal("expected error for negative offset")
	}
}

func TestMessageSize(t *testing.T) {
	tests := []struct {
		addr string
		kind Kind
		want int
	}{
		{"/a", KindInt32, 12},
		{"/a", KindFloat32, 12},
		{"/a", KindBool, 8},
		{"/abc", KindBool, 12}, // 4-char address needs a full pad block
	}

	for _, tt := range tests {
		got, err := MessageSize(tt.addr, tt.kind)
		if err != nil {
			t.Fatalf("MessageSize(%q, %s): %v", tt.addr, tt.kind, err)
		}
		if got != tt.want {
			t.Errorf("MessageSize(%q, %s) = %d, want %d", tt.addr, tt.kind, got, tt.want)
		}
	}

	if _, err := MessageSize("/a", KindInvalid); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("expected ErrUnsupportedType for invalid kind, got %v", err)
	}
}
