package wire

import (
	"encoding/binary"
	"fmt"
)

// HeaderSize is the length of the fixed frame header: a two-byte total
// length (inclusive of the header itself), a one-byte marker, a
// one-byte version, and a two-byte command.
const HeaderSize = 6

// Marker is the constant first-header-byte-after-length used to detect
// protocol skew on the first message of a session.
const Marker uint8 = 0xFF

// Version is the only wire version this client speaks.
const Version uint8 = 2

// Header is the fixed 6-byte frame header. Length includes HeaderSize.
type Header struct {
	Length  uint16
	Marker  uint8
	Version uint8
	Command Command
}

// Encode writes the header into the first HeaderSize bytes of b.
// b must be at least HeaderSize bytes long.
func (h Header) Encode(b []byte) {
	binary.BigEndian.PutUint16(b[0:2], h.Length)
	b[2] = h.Marker
	b[3] = h.Version
	binary.BigEndian.PutUint16(b[4:6], uint16(h.Command))
}

// DecodeHeader parses the fixed header from b, which must be at least
// HeaderSize bytes. It does not validate marker/version/length; callers
// validate per spec (see zclient's dispatcher) so that the rejection
// reason can be logged with full context.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("wire: short header: got %d bytes, need %d", len(b), HeaderSize)
	}
	return Header{
		Length:  binary.BigEndian.Uint16(b[0:2]),
		Marker:  b[2],
		Version: b[3],
		Command: Command(binary.BigEndian.Uint16(b[4:6])),
	}, nil
}

// Validate reports whether the header satisfies the wire contract: the
// constant marker and version, and a length no smaller than the header
// itself.
func (h Header) Validate() error {
	if h.Marker != Marker {
		return fmt.Errorf("wire: bad marker: got 0x%02X, want 0x%02X", h.Marker, Marker)
	}
	if h.Version != Version {
		return fmt.Errorf("wire: bad version: got %d, want %d", h.Version, Version)
	}
	if h.Length < HeaderSize {
		return fmt.Errorf("wire: length %d shorter than header size %d", h.Length, HeaderSize)
	}
	return nil
}

// PatchLength rewrites the length field of an already-encoded frame in
// place, used after the body has been serialized and the final size is
// known.
func PatchLength(frame []byte) {
	binary.BigEndian.PutUint16(frame[0:2], uint16(len(frame)))
}
