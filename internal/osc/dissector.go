package osc

import (
	"bytes"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Message is one complete OSC message recovered from the inbound stream.
// Value is bound for the i/f/T/F tags, Str for the s tag.
type Message struct {
	Address string
	Tag     byte
	Value   Value
	Str     string
}

// Dissector scans an accumulated byte stream for complete OSC messages.
// It is an incremental binary parser: padded address block, 4-byte type
// tag block, then a fixed or null-terminated payload depending on the
// tag. Scanning stops at the first incomplete trailing message so the
// caller can retain the remainder for the next receive cycle.
type Dissector struct {
	logger zerolog.Logger
}

// NewDissector creates a new stream dissector.
func NewDissector() *Dissector {
	return &Dissector{
		logger: log.With().Str("component", "dissector").Logger(),
	}
}

// Dissect extracts complete messages from stream in order. It returns
// the messages, the number of bytes consumed, and the number of bytes
// dropped while resynchronizing past malformed data. Bytes past the
// consumed count belong to an incomplete trailing message and must be
// carried into the next cycle's stream.
func (d *Dissector) Dissect(stream []byte) (msgs []Message, consumed, dropped int) {
	c := 0
	for c < len(stream) {
		// An OSC address always starts with '/'. Anything else is
		// damage from a lost datagram; skip to the next candidate.
		if stream[c] != '/' {
			idx := bytes.IndexByte(stream[c:], '/')
			if idx < 0 {
				idx = len(stream) - c
			}
			d.logger.Warn().Int("bytes", idx).Msg("skipping malformed stream data")
			dropped += idx
			c += idx
			continue
		}

		msg, n, complete := d.parseOne(stream[c:])
		if !complete {
			// Incomplete trailing message: stop here and keep the
			// whole remainder, including this message's bytes.
			break
		}
		c += n
		if msg != nil {
			msgs = append(msgs, *msg)
		} else {
			dropped += n
		}
	}
	return msgs, c, dropped
}

// parseOne parses a single message at the start of b. It returns the
// message (nil when the bytes were structurally consumed but carry no
// decodable message), the number of bytes it spans, and whether the
// message was complete. Numeric values are never produced from a
// payload shorter than 4 bytes.
func (d *Dissector) parseOne(b []byte) (*Message, int, bool) {
	nul := bytes.IndexByte(b, 0)
	if nul < 0 {
		return nil, 0, false // address terminator not received yet
	}

	addr := string(b[:nul])
	p := nul + 1 + padBytesNeeded(nul+1)
	if len(b) < p+4 {
		return nil, 0, false // type tag block not received yet
	}

	if b[p] != ',' {
		d.logger.Warn().Str("address", addr).Msg("message without type tag block")
		return nil, p, true
	}
	tag := b[p+1]
	p += 4

	switch tag {
	case TagInt32:
		if len(b) < p+bit32Size {
			return nil, 0, false
		}
		return &Message{Address: addr, Tag: tag, Value: Int32Value(DecodeInt32(b[p:]))}, p + bit32Size, true

	case TagFloat32:
		if len(b) < p+bit32Size {
			return nil, 0, false
		}
		return &Message{Address: addr, Tag: tag, Value: Float32Value(DecodeFloat32(b[p:]))}, p + bit32Size, true

	case TagTrue:
		return &Message{Address: addr, Tag: tag, Value: BoolValue(true)}, p, true

	case TagFalse:
		return &Message{Address: addr, Tag: tag, Value: BoolValue(false)}, p, true

	case TagString:
		snul := bytes.IndexByte(b[p:], 0)
		if snul < 0 {
			return nil, 0, false
		}
		total := p + snul + 1 + padBytesNeeded(snul+1)
		if len(b) < total {
			return nil, 0, false
		}
		return &Message{Address: addr, Tag: tag, Str: string(b[p : p+snul])}, total, true

	default:
		// Unknown tag means an unknown payload length; give up on this
		// message and let the resync logic find the next address.
		d.logger.Warn().Str("address", addr).Str("tag", string(tag)).Msg("unsupported type tag")
		return nil, p, true
	}
}
