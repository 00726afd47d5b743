// Package wire implements the Z-protocol wire codec: the fixed header,
// typed message bodies, and the big-endian binary layout shared by every
// frame exchanged with the kernel-route manager.
package wire

// Command identifies the body format and semantics of a frame.
type Command uint16

// Wire command codes. Values are implementation constants: stable across
// this module's lifetime, but not required to match any other zapi
// implementation's numbering.
const (
	CommandInterfaceAdd             Command = 0x0001
	CommandInterfaceDelete          Command = 0x0002
	CommandInterfaceAddressAdd      Command = 0x0003
	CommandInterfaceAddressDelete   Command = 0x0004
	CommandInterfaceUp              Command = 0x0005
	CommandInterfaceDown            Command = 0x0006
	CommandIPv4RouteAdd             Command = 0x0007
	CommandIPv4RouteDelete          Command = 0x0008
	CommandIPv6RouteAdd             Command = 0x0009
	CommandIPv6RouteDelete          Command = 0x000A
	CommandRedistributeAdd          Command = 0x000B
	CommandRedistributeDelete       Command = 0x000C
	CommandRedistributeDefaultAdd   Command = 0x000D
	CommandRedistributeDefaultDelete Command = 0x000E
	CommandRouterIDUpdate           Command = 0x0010
	CommandHello                    Command = 0x0017
	CommandRouterIDAdd              Command = 0x0018
)

func (c Command) String() string {
	if s, ok := commandNames[c]; ok {
		return s
	}
	return "Unknown"
}

var commandNames = map[Command]string{
	CommandInterfaceAdd:              "InterfaceAdd",
	CommandInterfaceDelete:           "InterfaceDelete",
	CommandInterfaceAddressAdd:       "InterfaceAddressAdd",
	CommandInterfaceAddressDelete:    "InterfaceAddressDelete",
	CommandInterfaceUp:               "InterfaceUp",
	CommandInterfaceDown:             "InterfaceDown",
	CommandIPv4RouteAdd:              "IPv4RouteAdd",
	CommandIPv4RouteDelete:           "IPv4RouteDelete",
	CommandIPv6RouteAdd:              "IPv6RouteAdd",
	CommandIPv6RouteDelete:           "IPv6RouteDelete",
	CommandRedistributeAdd:           "RedistributeAdd",
	CommandRedistributeDelete:        "RedistributeDelete",
	CommandRedistributeDefaultAdd:    "RedistributeDefaultAdd",
	CommandRedistributeDefaultDelete: "RedistributeDefaultDelete",
	CommandRouterIDUpdate:            "RouterIDUpdate",
	CommandHello:                     "Hello",
	CommandRouterIDAdd:               "RouterIDAdd",
}
