package zclient

import (
	"github.com/openrib/zapi/internal/iobuf"
	"github.com/openrib/zapi/internal/wire"
)

// RedistOp selects a subscribe or unsubscribe direction for Redistribute/RedistributeDefault.
type RedistOp int

const (
	RedistAdd RedistOp = iota
	RedistDelete
)

// Redistribute updates local subscription bookkeeping for routeType and,
// when connected, sends the corresponding REDISTRIBUTE_ADD/DELETE
// message. It is set-idempotent: asking for a state the client is
// already in is a silent no-op, matching spec's "calling redistribute
// twice sends exactly one network message" property. Once the client
// has gone dormant after repeated connect failures, it returns
// ErrDormant without touching subscription bookkeeping or doing I/O.
func (c *Client) Redistribute(op RedistOp, routeType uint8) error {
	c.assertOwnerGoroutine()
	if c.closed.Load() {
		return ErrClosed
	}
	if c.state == StateFailing {
		return ErrDormant
	}
	want := op == RedistAdd
	if c.redist[routeType] == want {
		return nil
	}
	c.redist[routeType] = want

	if c.conn == nil {
		return nil
	}
	if want {
		return c.sendFrame(wire.EncodeRedistributeAdd(routeType))
	}
	return c.sendFrame(wire.EncodeRedistributeDelete(routeType))
}

// RedistributeDefault is Redistribute's analog for default-route
// redistribution subscription.
func (c *Client) RedistributeDefault(op RedistOp) error {
	c.assertOwnerGoroutine()
	if c.closed.Load() {
		return ErrClosed
	}
	if c.state == StateFailing {
		return ErrDormant
	}
	want := op == RedistAdd
	if c.defaultInfo == want {
		return nil
	}
	c.defaultInfo = want

	if c.conn == nil {
		return nil
	}
	if want {
		return c.sendFrame(wire.EncodeRedistributeDefaultAdd())
	}
	return c.sendFrame(wire.EncodeRedistributeDefaultDelete())
}

// RouteIPv4 encodes and enqueues an IPV4_ROUTE_ADD or IPV4_ROUTE_DELETE
// message, selected by cmd (wire.CommandIPv4RouteAdd or
// wire.CommandIPv4RouteDelete).
func (c *Client) RouteIPv4(cmd wire.Command, r *wire.Route) error {
	c.assertOwnerGoroutine()
	if c.closed.Load() {
		return ErrClosed
	}
	if c.state == StateFailing {
		return ErrDormant
	}
	var framed []byte
	var err error
	switch cmd {
	case wire.CommandIPv4RouteAdd:
		framed, err = wire.EncodeIPv4RouteAdd(r)
	case wire.CommandIPv4RouteDelete:
		framed, err = wire.EncodeIPv4RouteDelete(r)
	default:
		return &unsupportedCommandError{cmd}
	}
	if err != nil {
		return err
	}
	return c.sendFrame(framed)
}

// RouteIPv6 is RouteIPv4's analog for 16-byte addresses.
func (c *Client) RouteIPv6(cmd wire.Command, r *wire.Route) error {
	c.assertOwnerGoroutine()
	if c.closed.Load() {
		return ErrClosed
	}
	if c.state == StateFailing {
		return ErrDormant
	}
	var framed []byte
	var err error
	switch cmd {
	case wire.CommandIPv6RouteAdd:
		framed, err = wire.EncodeIPv6RouteAdd(r)
	case wire.CommandIPv6RouteDelete:
		framed, err = wire.EncodeIPv6RouteDelete(r)
	default:
		return &unsupportedCommandError{cmd}
	}
	if err != nil {
		return err
	}
	return c.sendFrame(framed)
}

// SendMessage flushes whatever is currently queued in the write
// buffer, returning ErrDisconnected if the transport is closed.
// Outbound methods already attempt an immediate drain on enqueue; this
// is for callers that want to force a flush attempt explicitly (e.g.
// after arming write-readiness elsewhere).
func (c *Client) SendMessage() error {
	c.assertOwnerGoroutine()
	if c.closed.Load() {
		return ErrClosed
	}
	if c.state == StateFailing {
		return ErrDormant
	}
	if c.conn == nil {
		return ErrDisconnected
	}
	status, err := c.writeBuf.FlushAvailable(connWriter{conn: c.conn})
	if status == iobuf.StatusError {
		return err
	}
	return nil
}

type unsupportedCommandError struct{ cmd wire.Command }

func (e *unsupportedCommandError) Error() string {
	return "zclient: unsupported command for this route family: " + e.cmd.String()
}
