package wire

import (
	"encoding/binary"
	"fmt"
	"net"
)

// AddressFamily tags the address family of a decoded payload.
type AddressFamily uint8

const (
	FamilyIPv4 AddressFamily = 2
	FamilyIPv6 AddressFamily = 10
)

// addrByteLen returns the number of address bytes carried on the wire
// for family, per prefix_blen in spec.
func addrByteLen(family AddressFamily) (int, error) {
	switch family {
	case FamilyIPv4:
		return 4, nil
	case FamilyIPv6:
		return 16, nil
	default:
		return 0, fmt.Errorf("wire: unknown address family %d", family)
	}
}

// RouterIDUpdate is the decoded payload of an inbound router-id
// notification.
type RouterIDUpdate struct {
	Family    AddressFamily
	Address   net.IP
	PrefixLen uint8
}

// DecodeRouterIDUpdate parses a router-id-update body.
func DecodeRouterIDUpdate(body []byte) (*RouterIDUpdate, error) {
	if len(body) < 1 {
		return nil, fmt.Errorf("wire: empty router-id-update body")
	}
	family := AddressFamily(body[0])
	alen, err := addrByteLen(family)
	if err != nil {
		return nil, err
	}
	if len(body) < 1+alen+1 {
		return nil, fmt.Errorf("wire: short router-id-update body: %d bytes", len(body))
	}
	addr := make([]byte, alen)
	copy(addr, body[1:1+alen])
	return &RouterIDUpdate{
		Family:    family,
		Address:   net.IP(addr),
		PrefixLen: body[1+alen],
	}, nil
}

// InterfaceAddrEncoding selects how the hardware-address trailer of an
// interface-add message is carried on the wire. The protocol is not
// self-describing here (spec §9 Open Questions); the encoding in use
// must be agreed out-of-band with the peer and configured accordingly.
type InterfaceAddrEncoding uint8

const (
	// EncodingHWAddrLen is a length-prefixed hardware address
	// (hw_addr_len:u32, hw_addr:[hw_addr_len]). Self-describing and
	// portable; this module fully implements it.
	EncodingHWAddrLen InterfaceAddrEncoding = iota
	// EncodingSockaddrDL is a platform sockaddr_dl blob, as produced by
	// BSD-derived zebra daemons. Accepted as a configuration value but
	// not decoded by this module (see ErrUnsupportedEncoding).
	EncodingSockaddrDL
)

// ErrUnsupportedEncoding is returned by DecodeInterfaceAdd when asked to
// decode EncodingSockaddrDL, which this module does not implement.
var ErrUnsupportedEncoding = fmt.Errorf("wire: sockaddr_dl interface-add encoding is not implemented")

// interfaceNameLen is the fixed, NUL-padded width of an interface name
// on the wire.
const interfaceNameLen = 20

// InterfaceEvent is the decoded payload of an inbound INTERFACE_ADD or
// interface-state notification. HWAddr is only populated when decoding
// an add event with EncodingHWAddrLen.
type InterfaceEvent struct {
	Name      string
	IfIndex   uint32
	Status    uint8
	Flags     uint64
	Metric    uint32
	MTU       uint32
	MTU6      uint32
	Bandwidth uint32
	HWAddr    []byte
}

// DecodeInterfaceEvent parses an interface-state notification body,
// which carries no hardware-address trailer.
func DecodeInterfaceEvent(body []byte) (*InterfaceEvent, error) {
	return decodeInterfaceEvent(body, false, EncodingHWAddrLen)
}

// DecodeInterfaceAdd parses an INTERFACE_ADD notification body,
// including its trailing hardware-address section, using encoding to
// interpret that trailer.
func DecodeInterfaceAdd(body []byte, encoding InterfaceAddrEncoding) (*InterfaceEvent, error) {
	return decodeInterfaceEvent(body, true, encoding)
}

func decodeInterfaceEvent(body []byte, withHWAddr bool, encoding InterfaceAddrEncoding) (*InterfaceEvent, error) {
	const fixedLen = interfaceNameLen + 4 + 1 + 8 + 4 + 4 + 4 + 4
	if len(body) < fixedLen {
		return nil, fmt.Errorf("wire: short interface-event body: got %d bytes, need %d", len(body), fixedLen)
	}

	ev := &InterfaceEvent{}
	off := 0
	nameBytes := body[off : off+interfaceNameLen]
	off += interfaceNameLen
	if nul := indexByte(nameBytes, 0); nul >= 0 {
		ev.Name = string(nameBytes[:nul])
	} else {
		ev.Name = string(nameBytes)
	}

	ev.IfIndex = binary.BigEndian.Uint32(body[off : off+4])
	off += 4
	ev.Status = body[off]
	off++
	// Big-endian, like every other field; historical peers wrote this
	// u64 in host byte order.
	ev.Flags = binary.BigEndian.Uint64(body[off : off+8])
	off += 8
	ev.Metric = binary.BigEndian.Uint32(body[off : off+4])
	off += 4
	ev.MTU = binary.BigEndian.Uint32(body[off : off+4])
	off += 4
	ev.MTU6 = binary.BigEndian.Uint32(body[off : off+4])
	off += 4
	ev.Bandwidth = binary.BigEndian.Uint32(body[off : off+4])
	off += 4

	if !withHWAddr {
		return ev, nil
	}

	switch encoding {
	case EncodingHWAddrLen:
		if off+4 > len(body) {
			return nil, fmt.Errorf("wire: interface-add body truncated before hw_addr_len")
		}
		hwLen := binary.BigEndian.Uint32(body[off : off+4])
		off += 4
		if off+int(hwLen) > len(body) {
			return nil, fmt.Errorf("wire: interface-add body truncated in hw_addr")
		}
		ev.HWAddr = append([]byte(nil), body[off:off+int(hwLen)]...)
		return ev, nil
	case EncodingSockaddrDL:
		return nil, ErrUnsupportedEncoding
	default:
		return nil, fmt.Errorf("wire: unknown interface-addr encoding %d", encoding)
	}
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

// InterfaceAddress is the decoded payload of an inbound interface
// address add/delete notification. Destination is nil when the wire
// carried an all-zero destination (meaning "no destination").
type InterfaceAddress struct {
	IfIndex     uint32
	Flags       uint8
	Family      AddressFamily
	Addr        net.IP
	PrefixLen   uint8
	Destination net.IP
}

// DecodeInterfaceAddress parses an interface-address add/delete body.
func DecodeInterfaceAddress(body []byte) (*InterfaceAddress, error) {
	if len(body) < 4+1+1 {
		return nil, fmt.Errorf("wire: short interface-address body: %d bytes", len(body))
	}
	ia := &InterfaceAddress{
		IfIndex: binary.BigEndian.Uint32(body[0:4]),
		Flags:   body[4],
		Family:  AddressFamily(body[5]),
	}
	alen, err := addrByteLen(ia.Family)
	if err != nil {
		return nil, err
	}
	off := 6
	if off+alen+1+alen > len(body) {
		return nil, fmt.Errorf("wire: interface-address body truncated")
	}
	addr := make([]byte, alen)
	copy(addr, body[off:off+alen])
	ia.Addr = net.IP(addr)
	off += alen
	ia.PrefixLen = body[off]
	off++

	dest := body[off : off+alen]
	if !allZero(dest) {
		destCopy := make([]byte, alen)
		copy(destCopy, dest)
		ia.Destination = net.IP(destCopy)
	}

	return ia, nil
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
