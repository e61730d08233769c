// Package osc implements the restricted Open Sound Control wire format
// used for avatar parameter exchange: int32, float32, boolean and string
// atoms, big-endian numeric payloads, and 4-byte aligned blocks. Bundles,
// timetags and address pattern matching are intentionally not supported.
package osc

// Type tag characters for the supported OSC atoms.
const (
	TagInt32   byte = 'i'
	TagFloat32 byte = 'f'
	TagTrue    byte = 'T'
	TagFalse   byte = 'F'
	TagString  byte = 's'
)

// Address namespace for the avatar parameter protocol.
const (
	ParameterAddressPrefix = "/avatar/parameters/"
	AvatarChangeAddress    = "/avatar/change"
)

// AvatarIDPrefix is the well-known prefix carried by avatar identifiers
// in /avatar/change payloads. It is stripped before GUID parsing.
const AvatarIDPrefix = "avtr_"

// MaxPacketSize is the size of the shared send buffer and the upper bound
// for a single receive cycle's reassembly stream.
const MaxPacketSize = 65536

// MaxBatchSize is the maximum number of parameters in one batched send.
const MaxBatchSize = 256

const bit32Size = 4
