// Package transport creates and wraps the non-blocking stream socket
// the client speaks the Z protocol over: a UNIX-domain socket by
// default, or a loopback TCP socket when configured for that mode. All
// read/write syscalls are translated into a small ternary result so
// callers never have to special-case EAGAIN/EWOULDBLOCK themselves.
package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
	"time"
)

// Network selects the socket family used to reach the route manager.
type Network int

const (
	// NetworkUnix dials a UNIX-domain stream socket at a filesystem
	// path. This is the default.
	NetworkUnix Network = iota
	// NetworkTCP dials loopback TCP on a well-known port, used when the
	// peer is compiled for TCP instead of a UNIX socket.
	NetworkTCP
)

// DefaultUnixPath is the compiled-in default socket path, overridable
// via Config.SockPath.
const DefaultUnixPath = "/var/run/zapi/zapi.sock"

// DefaultTCPPort is the well-known loopback port used in NetworkTCP mode.
const DefaultTCPPort = 2600

// ErrAgain is returned by the iobuf.Reader adapter in package zclient
// to signal ResultAgain through an interface whose contract is
// expressed as (n, error) rather than the ternary Result type. (The
// Writer adapter reports ResultAgain as (0, nil) instead.)
var ErrAgain = errors.New("transport: would block")

// Result is the ternary outcome of a non-blocking socket operation.
type Result int

const (
	// ResultOK means the operation made progress; n (for reads/writes)
	// reports how much.
	ResultOK Result = iota
	// ResultAgain means the socket would have blocked; no progress was
	// made and the caller should re-arm and retry later.
	ResultAgain
	// ResultClosed means the peer closed the connection (read returned
	// EOF).
	ResultClosed
	// ResultError means a fatal, non-retryable error occurred.
	ResultError
)

// Conn wraps a connected, non-blocking stream socket.
type Conn struct {
	nc net.Conn
}

// Dialer creates a Conn for a given network/address, matching the
// teacher's pattern of wrapping net.Dial behind a small, injectable
// interface so tests can substitute a fake (see
// controlplane/telemetry/internal/gnmitunnel's Dialer seam).
type Dialer interface {
	Dial(network Network, addr string) (*Conn, error)
}

// netDialer is the production Dialer, backed by net.Dial.
type netDialer struct{}

// NewDialer returns the default Dialer, which dials real sockets.
func NewDialer() Dialer { return netDialer{} }

func (netDialer) Dial(network Network, addr string) (*Conn, error) {
	var nc net.Conn
	var err error
	switch network {
	case NetworkUnix:
		nc, err = net.Dial("unix", addr)
	case NetworkTCP:
		nc, err = net.Dial("tcp", addr)
	default:
		return nil, fmt.Errorf("transport: unknown network %d", network)
	}
	if err != nil {
		return nil, err
	}
	return newConn(nc)
}

func newConn(nc net.Conn) (*Conn, error) {
	// Per-call short deadlines are how the stdlib net package exposes
	// non-blocking semantics; a zero read/write deadline would block
	// indefinitely, and a deadline already in the past fails every call
	// before it touches the socket, so every Read/Write below arms a
	// one-millisecond deadline and treats a timeout as "would block".
	return &Conn{nc: nc}, nil
}

// NewConnFromNetConn wraps an already-connected net.Conn (e.g. one side
// of a net.Pipe, or a *net.TCPConn accepted by a test server) as a
// transport.Conn.
func NewConnFromNetConn(nc net.Conn) *Conn {
	return &Conn{nc: nc}
}

// Close closes the underlying socket.
func (c *Conn) Close() error {
	if c.nc == nil {
		return nil
	}
	return c.nc.Close()
}

// Read attempts a single non-blocking read into p.
func (c *Conn) Read(p []byte) (int, Result, error) {
	// net.Pipe refuses deadlines with io.ErrClosedPipe once either end is
	// closed; the read below then returns at once, reporting a peer
	// close as EOF.
	if err := c.nc.SetReadDeadline(time.Now().Add(time.Millisecond)); err != nil && !errors.Is(err, io.ErrClosedPipe) {
		return 0, ResultError, err
	}
	n, err := c.nc.Read(p)
	if err == nil {
		return n, ResultOK, nil
	}
	if n > 0 {
		return n, ResultOK, nil
	}
	if errors.Is(err, io.EOF) {
		return 0, ResultClosed, nil
	}
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return 0, ResultAgain, nil
	}
	return 0, ResultError, err
}

// Write attempts a single non-blocking write of p.
func (c *Conn) Write(p []byte) (int, Result, error) {
	if err := c.nc.SetWriteDeadline(time.Now().Add(time.Millisecond)); err != nil {
		return 0, ResultError, err
	}
	n, err := c.nc.Write(p)
	if err == nil {
		return n, ResultOK, nil
	}
	if n > 0 {
		return n, ResultOK, nil
	}
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return 0, ResultAgain, nil
	}
	return 0, ResultError, err
}

// FD returns the raw file descriptor backing the connection, for a
// reactor to register readiness interest on directly. The descriptor
// remains owned by the wrapped net.Conn; callers must not close it
// themselves, only observe readability/writability.
func (c *Conn) FD() (int, error) {
	sc, ok := c.nc.(syscall.Conn)
	if !ok {
		return 0, fmt.Errorf("transport: %T does not expose a raw file descriptor", c.nc)
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return 0, err
	}
	var fd int
	ctrlErr := raw.Control(func(fdPtr uintptr) { fd = int(fdPtr) })
	if ctrlErr != nil {
		return 0, ctrlErr
	}
	return fd, nil
}

// ValidateSockPath checks that path exists and is a UNIX socket file,
// per spec's serv_path_set: an invalid path is rejected at set time
// rather than silently accepted.
func ValidateSockPath(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("transport: cannot stat socket path %q: %w", path, err)
	}
	if fi.Mode()&os.ModeSocket == 0 {
		return fmt.Errorf("transport: %q is not a socket file", path)
	}
	return nil
}
