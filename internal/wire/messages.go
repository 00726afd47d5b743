package wire

import "fmt"

// frame builds a complete, length-patched wire frame for cmd with the
// given body (which may be empty).
func frame(cmd Command, body []byte) []byte {
	buf := make([]byte, HeaderSize+len(body))
	h := Header{Marker: Marker, Version: Version, Command: cmd}
	h.Encode(buf)
	copy(buf[HeaderSize:], body)
	PatchLength(buf)
	return buf
}

// EncodeHello encodes a HELLO frame announcing the caller's own
// route-source type. Only sent when a redistribute-default type is set.
func EncodeHello(routeType uint8) []byte {
	return frame(CommandHello, []byte{routeType})
}

// EncodeRouterIDAdd encodes an empty-body ROUTER_ID_ADD request.
func EncodeRouterIDAdd() []byte {
	return frame(CommandRouterIDAdd, nil)
}

// EncodeInterfaceAdd encodes an empty-body INTERFACE_ADD request.
func EncodeInterfaceAdd() []byte {
	return frame(CommandInterfaceAdd, nil)
}

// EncodeRedistributeAdd encodes a subscribe request for routeType.
func EncodeRedistributeAdd(routeType uint8) []byte {
	return frame(CommandRedistributeAdd, []byte{routeType})
}

// EncodeRedistributeDelete encodes an unsubscribe request for routeType.
func EncodeRedistributeDelete(routeType uint8) []byte {
	return frame(CommandRedistributeDelete, []byte{routeType})
}

// EncodeRedistributeDefaultAdd encodes an empty-body default-route
// redistribution subscribe request.
func EncodeRedistributeDefaultAdd() []byte {
	return frame(CommandRedistributeDefaultAdd, nil)
}

// EncodeRedistributeDefaultDelete encodes an empty-body default-route
// redistribution unsubscribe request.
func EncodeRedistributeDefaultDelete() []byte {
	return frame(CommandRedistributeDefaultDelete, nil)
}

// EncodeIPv4RouteAdd encodes an IPV4_ROUTE_ADD frame.
func EncodeIPv4RouteAdd(r *Route) ([]byte, error) {
	return encodeRouteFrame(CommandIPv4RouteAdd, r, 4)
}

// EncodeIPv4RouteDelete encodes an IPV4_ROUTE_DELETE frame.
func EncodeIPv4RouteDelete(r *Route) ([]byte, error) {
	return encodeRouteFrame(CommandIPv4RouteDelete, r, 4)
}

// EncodeIPv6RouteAdd encodes an IPV6_ROUTE_ADD frame.
func EncodeIPv6RouteAdd(r *Route) ([]byte, error) {
	return encodeRouteFrame(CommandIPv6RouteAdd, r, 16)
}

// EncodeIPv6RouteDelete encodes an IPV6_ROUTE_DELETE frame.
func EncodeIPv6RouteDelete(r *Route) ([]byte, error) {
	return encodeRouteFrame(CommandIPv6RouteDelete, r, 16)
}

func encodeRouteFrame(cmd Command, r *Route, addrLen int) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("wire: nil route")
	}
	body, err := EncodeRoute(r, addrLen)
	if err != nil {
		return nil, err
	}
	return frame(cmd, body), nil
}
