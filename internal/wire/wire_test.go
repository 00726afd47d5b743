package wire

import (
	"math/rand"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWire_Header_EncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()
	h := Header{Length: 42, Marker: Marker, Version: Version, Command: CommandHello}
	b := make([]byte, HeaderSize)
	h.Encode(b)

	got, err := DecodeHeader(b)
	require.NoError(t, err)
	require.Equal(t, h, got)
	require.NoError(t, got.Validate())
}

func TestWire_Header_ValidateRejectsBadMarkerVersionOrLength(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		h    Header
	}{
		{"bad marker", Header{Length: HeaderSize, Marker: 0x00, Version: Version}},
		{"bad version", Header{Length: HeaderSize, Marker: Marker, Version: 1}},
		{"short length", Header{Length: HeaderSize - 1, Marker: Marker, Version: Version}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Error(t, tc.h.Validate())
		})
	}
}

func TestWire_Messages_ScenarioFreshStartBytes(t *testing.T) {
	t.Parallel()

	hello := EncodeHello(9)
	require.Equal(t, []byte{0x00, 0x07, Marker, Version, 0x00, 0x17, 0x09}, hello)

	routerID := EncodeRouterIDAdd()
	require.Equal(t, []byte{0x00, 0x06, Marker, Version, 0x00, 0x18}, routerID)

	ifaceAdd := EncodeInterfaceAdd()
	require.Equal(t, []byte{0x00, 0x06, Marker, Version, 0x00, 0x01}, ifaceAdd)
}

func TestWire_Route_BlackholeIPv4ProducesSingleSentinelNextHop(t *testing.T) {
	t.Parallel()

	_, prefix, err := net.ParseCIDR("10.0.0.0/8")
	require.NoError(t, err)

	r := &Route{
		RouteType:    1,
		ZebraFlags:   ZebraFlagBlackhole,
		MessageFlags: MessageFlagNextHop,
		SAFI:         1,
		Prefix:       prefix.IP,
		PrefixLen:    8,
	}
	frameBytes, err := EncodeIPv4RouteAdd(r)
	require.NoError(t, err)

	h, err := DecodeHeader(frameBytes)
	require.NoError(t, err)
	require.NoError(t, h.Validate())
	require.Equal(t, CommandIPv4RouteAdd, h.Command)
	require.EqualValues(t, len(frameBytes), h.Length)

	body := frameBytes[HeaderSize:]
	// route_type, zebra_flags, message_flags, safi(2), prefix_len, prefix(1 byte for /8),
	// nexthop_count, nexthop_type
	require.Equal(t, uint8(1), body[7]) // nexthop_count
	require.Equal(t, uint8(NextHopTypeBlackhole), body[8])
	require.Len(t, body, 9)
}

func TestWire_Route_EncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()
	rnd := rand.New(rand.NewSource(1))

	for i := 0; i < 200; i++ {
		addrLen := 4
		if i%2 == 0 {
			addrLen = 16
		}
		prefixLen := uint8(rnd.Intn(addrLen*8 + 1))

		nhCount := rnd.Intn(3)
		var nhs []NextHop
		for j := 0; j < nhCount; j++ {
			addr := randAddr(rnd, addrLen)
			nt := NextHopTypeIPv4
			if addrLen == 16 {
				nt = NextHopTypeIPv6
			}
			nhs = append(nhs, NextHop{Type: nt, Addr: addr})
		}
		ifCount := rnd.Intn(2)
		for j := 0; j < ifCount; j++ {
			nhs = append(nhs, NextHop{Type: NextHopTypeIfIndex, IfIndex: rnd.Uint32()})
		}

		msgFlags := MessageFlag(0)
		if len(nhs) > 0 {
			msgFlags |= MessageFlagNextHop
		}
		var distance uint8
		if rnd.Intn(2) == 0 {
			msgFlags |= MessageFlagDistance
			distance = uint8(rnd.Intn(256))
		}
		var metric uint32
		if rnd.Intn(2) == 0 {
			msgFlags |= MessageFlagMetric
			metric = rnd.Uint32()
		}

		want := &Route{
			RouteType:    uint8(rnd.Intn(256)),
			ZebraFlags:   ZebraFlag(rnd.Intn(256)) &^ ZebraFlagBlackhole,
			MessageFlags: msgFlags,
			SAFI:         uint16(rnd.Intn(65536)),
			Prefix:       randAddr(rnd, addrLen),
			PrefixLen:    prefixLen,
			NextHops:     nhs,
			Distance:     distance,
			Metric:       metric,
		}
		truncatePrefix(want.Prefix, addrLen, prefixLen)

		body, err := EncodeRoute(want, addrLen)
		require.NoError(t, err)

		got, err := DecodeRoute(body, addrLen)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func randAddr(rnd *rand.Rand, addrLen int) net.IP {
	b := make([]byte, addrLen)
	rnd.Read(b)
	return net.IP(b)
}

// truncatePrefix zeroes bits beyond prefixLen, matching what a
// PSIZE-bounded wire encoding can actually preserve, so round-trip
// comparisons don't fail on bits that were never written to the wire.
func truncatePrefix(ip net.IP, addrLen int, prefixLen uint8) {
	full := psize(prefixLen)
	for i := full; i < addrLen; i++ {
		ip[i] = 0
	}
	if prefixLen%8 != 0 && full > 0 {
		mask := byte(0xFF << (8 - prefixLen%8))
		ip[full-1] &= mask
	}
}

func TestWire_RouterIDUpdate_DecodeRoundTrip(t *testing.T) {
	t.Parallel()

	body := append([]byte{byte(FamilyIPv4)}, net.IPv4(192, 0, 2, 1).To4()...)
	body = append(body, 24)

	got, err := DecodeRouterIDUpdate(body)
	require.NoError(t, err)
	require.Equal(t, FamilyIPv4, got.Family)
	require.True(t, got.Address.Equal(net.IPv4(192, 0, 2, 1)))
	require.EqualValues(t, 24, got.PrefixLen)
}

func TestWire_InterfaceAddress_AllZeroDestinationElided(t *testing.T) {
	t.Parallel()

	body := make([]byte, 0, 16)
	body = append(body, 0, 0, 0, 7) // ifindex
	body = append(body, 0x01)       // flags
	body = append(body, byte(FamilyIPv4))
	body = append(body, net.IPv4(10, 1, 1, 1).To4()...)
	body = append(body, 24)
	body = append(body, 0, 0, 0, 0) // destination: all-zero

	got, err := DecodeInterfaceAddress(body)
	require.NoError(t, err)
	require.Nil(t, got.Destination)
	require.True(t, got.Addr.Equal(net.IPv4(10, 1, 1, 1)))
}

func TestWire_InterfaceAdd_HWAddrLenEncodingRoundTrip(t *testing.T) {
	t.Parallel()

	body := make([]byte, 0, 64)
	name := make([]byte, interfaceNameLen)
	copy(name, "eth0")
	body = append(body, name...)
	body = append(body, 0, 0, 0, 3) // ifindex
	body = append(body, 1)          // status
	body = append(body, 0, 0, 0, 0, 0, 0, 0, 0x41) // flags
	body = append(body, 0, 0, 0, 0) // metric
	body = append(body, 0, 0, 5, 0xDC) // mtu
	body = append(body, 0, 0, 5, 0xDC) // mtu6
	body = append(body, 0, 0, 0, 0) // bandwidth
	body = append(body, 0, 0, 0, 6) // hw_addr_len
	body = append(body, 0xDE, 0xAD, 0xBE, 0xEF, 0x00, 0x01)

	got, err := DecodeInterfaceAdd(body, EncodingHWAddrLen)
	require.NoError(t, err)
	require.Equal(t, "eth0", got.Name)
	require.EqualValues(t, 3, got.IfIndex)
	require.EqualValues(t, 0x41, got.Flags)
	require.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x00, 0x01}, got.HWAddr)

	_, err = DecodeInterfaceAdd(body, EncodingSockaddrDL)
	require.ErrorIs(t, err, ErrUnsupportedEncoding)
}
