package zclient

import "net"

// Interface is the minimal view of a kernel network interface the
// registry exposes back to decoded wire events.
type Interface struct {
	Name    string
	IfIndex uint32
}

// InterfaceRegistry is the external collaborator consulted when the
// dispatcher decodes an interface or interface-address event. It is
// out of scope for this module to implement (the host embeds its own
// kernel-facing lookup/registration, e.g. over netlink); a nil
// Config.Registry means decoded events still reach the caller's
// Handler but the registry call site is skipped entirely.
type InterfaceRegistry interface {
	LookupByIndex(ifindex uint32) (Interface, bool)
	GetByName(name string) (Interface, bool)
	ConnectedAddByPrefix(ifindex uint32, addr net.IP, prefixLen uint8) error
}
