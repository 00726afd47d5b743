package wire

import (
	"encoding/binary"
	"fmt"
	"net"
)

// MessageFlag is a bitset carried in a route message's message_flags
// byte, indicating which optional sections follow the prefix.
type MessageFlag uint8

const (
	MessageFlagNextHop  MessageFlag = 1 << 0
	MessageFlagIfIndex  MessageFlag = 1 << 1
	MessageFlagDistance MessageFlag = 1 << 2
	MessageFlagMetric   MessageFlag = 1 << 3
)

// ZebraFlag is a bitset of route attributes, carried in a route
// message's zebra_flags byte.
type ZebraFlag uint8

const (
	ZebraFlagBlackhole ZebraFlag = 1 << 0
	ZebraFlagReject    ZebraFlag = 1 << 1
)

// NextHopType tags an entry in a route's nexthop section.
type NextHopType uint8

const (
	NextHopTypeIPv4      NextHopType = 1
	NextHopTypeIPv6      NextHopType = 2
	NextHopTypeIfIndex   NextHopType = 3
	NextHopTypeBlackhole NextHopType = 4
)

// NextHop is one entry of a route's nexthop section: either an IP
// address on an interface, a bare interface index, or (alone, and only
// for IPv4 blackhole routes) the blackhole sentinel.
type NextHop struct {
	Type    NextHopType
	Addr    net.IP // set for NextHopTypeIPv4/IPv6
	IfIndex uint32 // set for NextHopTypeIfIndex
}

// Route describes the body of an IPV4_ROUTE_{ADD,DELETE} or
// IPV6_ROUTE_{ADD,DELETE} message. The address length is passed to
// EncodeRoute/DecodeRoute as addrLen: 4 for IPv4 routes and 16 for
// IPv6 routes; both reject any other value.
type Route struct {
	RouteType    uint8
	ZebraFlags   ZebraFlag
	MessageFlags MessageFlag
	SAFI         uint16
	Prefix       net.IP
	PrefixLen    uint8
	NextHops     []NextHop
	Distance     uint8
	Metric       uint32
}

// psize returns ceil(n/8), the number of bytes needed to hold a prefix
// of n bits.
func psize(n uint8) int {
	return (int(n) + 7) / 8
}

// EncodeRoute serializes r as a route-message body for the given
// address length (4 for IPv4, 16 for IPv6). The returned bytes do not
// include the frame header; callers prepend one via Header.Encode and
// PatchLength.
func EncodeRoute(r *Route, addrLen int) ([]byte, error) {
	if addrLen != 4 && addrLen != 16 {
		return nil, fmt.Errorf("wire: invalid route address length %d", addrLen)
	}
	if int(r.PrefixLen) > addrLen*8 {
		return nil, fmt.Errorf("wire: prefix length %d exceeds address length %d bytes", r.PrefixLen, addrLen)
	}

	buf := make([]byte, 0, 32)
	buf = append(buf, r.RouteType, uint8(r.ZebraFlags), uint8(r.MessageFlags))
	var safi [2]byte
	binary.BigEndian.PutUint16(safi[:], r.SAFI)
	buf = append(buf, safi[:]...)
	buf = append(buf, r.PrefixLen)

	pb := psize(r.PrefixLen)
	prefixBytes := make([]byte, pb)
	if r.Prefix != nil {
		addr := normalizeAddr(r.Prefix, addrLen)
		copy(prefixBytes, addr[:pb])
	}
	buf = append(buf, prefixBytes...)

	if r.MessageFlags&MessageFlagNextHop != 0 {
		if addrLen == 4 && r.ZebraFlags&ZebraFlagBlackhole != 0 {
			buf = append(buf, 1, uint8(NextHopTypeBlackhole))
		} else {
			buf = append(buf, uint8(len(r.NextHops)))
			for _, nh := range r.NextHops {
				switch nh.Type {
				case NextHopTypeIPv4, NextHopTypeIPv6:
					buf = append(buf, uint8(nh.Type))
					addr := normalizeAddr(nh.Addr, addrLen)
					buf = append(buf, addr...)
				case NextHopTypeIfIndex:
					var ifx [4]byte
					binary.BigEndian.PutUint32(ifx[:], nh.IfIndex)
					buf = append(buf, uint8(NextHopTypeIfIndex))
					buf = append(buf, ifx[:]...)
				default:
					return nil, fmt.Errorf("wire: unsupported nexthop type %d in non-blackhole route", nh.Type)
				}
			}
		}
	}

	if r.MessageFlags&MessageFlagDistance != 0 {
		buf = append(buf, r.Distance)
	}
	if r.MessageFlags&MessageFlagMetric != 0 {
		var m [4]byte
		binary.BigEndian.PutUint32(m[:], r.Metric)
		buf = append(buf, m[:]...)
	}

	return buf, nil
}

// normalizeAddr returns addr as exactly addrLen bytes (4 or 16), using
// net.IP's own v4/v6 conversions so callers may pass either form.
func normalizeAddr(addr net.IP, addrLen int) []byte {
	if addrLen == 4 {
		if v4 := addr.To4(); v4 != nil {
			return v4
		}
		return make([]byte, 4)
	}
	if v6 := addr.To16(); v6 != nil {
		return v6
	}
	return make([]byte, 16)
}

// DecodeRoute parses a route-message body produced by EncodeRoute.
func DecodeRoute(body []byte, addrLen int) (*Route, error) {
	if addrLen != 4 && addrLen != 16 {
		return nil, fmt.Errorf("wire: invalid route address length %d", addrLen)
	}
	if len(body) < 5 {
		return nil, fmt.Errorf("wire: route body too short: %d bytes", len(body))
	}

	r := &Route{
		RouteType:    body[0],
		ZebraFlags:   ZebraFlag(body[1]),
		MessageFlags: MessageFlag(body[2]),
		SAFI:         binary.BigEndian.Uint16(body[3:5]),
	}
	off := 5
	if off >= len(body) {
		return nil, fmt.Errorf("wire: route body truncated before prefix length")
	}
	r.PrefixLen = body[off]
	off++

	pb := psize(r.PrefixLen)
	if off+pb > len(body) {
		return nil, fmt.Errorf("wire: route body truncated in prefix bytes")
	}
	prefix := make([]byte, addrLen)
	copy(prefix, body[off:off+pb])
	r.Prefix = net.IP(prefix)
	off += pb

	if r.MessageFlags&MessageFlagNextHop != 0 {
		if off >= len(body) {
			return nil, fmt.Errorf("wire: route body truncated before nexthop count")
		}
		count := int(body[off])
		off++
		for i := 0; i < count; i++ {
			if off >= len(body) {
				return nil, fmt.Errorf("wire: route body truncated in nexthop %d", i)
			}
			t := NextHopType(body[off])
			off++
			switch t {
			case NextHopTypeBlackhole:
				r.NextHops = append(r.NextHops, NextHop{Type: t})
			case NextHopTypeIPv4, NextHopTypeIPv6:
				if off+addrLen > len(body) {
					return nil, fmt.Errorf("wire: route body truncated in nexthop address %d", i)
				}
				addr := make([]byte, addrLen)
				copy(addr, body[off:off+addrLen])
				off += addrLen
				r.NextHops = append(r.NextHops, NextHop{Type: t, Addr: net.IP(addr)})
			case NextHopTypeIfIndex:
				if off+4 > len(body) {
					return nil, fmt.Errorf("wire: route body truncated in nexthop ifindex %d", i)
				}
				ifx := binary.BigEndian.Uint32(body[off : off+4])
				off += 4
				r.NextHops = append(r.NextHops, NextHop{Type: t, IfIndex: ifx})
			default:
				return nil, fmt.Errorf("wire: unknown nexthop type %d", t)
			}
		}
	}

	if r.MessageFlags&MessageFlagDistance != 0 {
		if off >= len(body) {
			return nil, fmt.Errorf("wire: route body truncated before distance")
		}
		r.Distance = body[off]
		off++
	}
	if r.MessageFlags&MessageFlagMetric != 0 {
		if off+4 > len(body) {
			return nil, fmt.Errorf("wire: route body truncated before metric")
		}
		r.Metric = binary.BigEndian.Uint32(body[off : off+4])
		off += 4
	}

	return r, nil
}
