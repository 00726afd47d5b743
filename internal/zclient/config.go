package zclient

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/openrib/zapi/internal/iobuf"
	"github.com/openrib/zapi/internal/reactor"
	"github.com/openrib/zapi/internal/transport"
	"github.com/openrib/zapi/internal/wire"
)

// Config configures a Client at construction. Zero-value fields take
// the documented defaults; New validates the combination and rejects
// an invalid SockPath eagerly (matching serv_path_set's "rejects paths
// that do not resolve to a socket file").
type Config struct {
	// Network selects UNIX (default) or TCP transport.
	Network transport.Network
	// SockPath overrides transport.DefaultUnixPath when Network is
	// NetworkUnix. Left empty, the compiled-in default is used.
	SockPath string
	// TCPAddr overrides the loopback address used when Network is
	// NetworkTCP. Left empty, "127.0.0.1:<transport.DefaultTCPPort>" is used.
	TCPAddr string

	// RedistDefaultSet and RedistDefault name the caller's own
	// route-source type, which is never requested back (the
	// loop-prevention invariant in the data model).
	RedistDefaultSet bool
	RedistDefault    uint8

	// DefaultInformation requests default-route redistribution on connect.
	DefaultInformation bool

	// InterfaceAddrEncoding selects how an inbound INTERFACE_ADD
	// hardware-address trailer is decoded. Defaults to
	// wire.EncodingHWAddrLen.
	InterfaceAddrEncoding wire.InterfaceAddrEncoding

	// Registry is consulted by the dispatcher when it decodes an
	// interface or interface-address event. Nil skips the registry
	// call entirely; decoded events still reach Handlers.
	Registry InterfaceRegistry

	// Handlers is the initial command-to-callback table, populated by
	// the embedder before Run (spec: "slots nullable"). Use
	// Client.RegisterHandler to add more after construction.
	Handlers map[wire.Command]Handler

	// Reactor is the event back-end. Nil constructs a
	// reactor.ThreadPool internally (the documented "no reactor means
	// use thread back-end" default).
	Reactor reactor.Reactor

	// Dialer creates the outbound connection. Nil uses transport.NewDialer().
	Dialer transport.Dialer

	// Logger receives structured transition/error logs. Nil uses slog.Default().
	Logger *slog.Logger

	// NowFunc overrides time.Now for deterministic backoff/timer tests.
	NowFunc func() time.Time

	// ReadBufferCapacity overrides iobuf.DefaultCapacity.
	ReadBufferCapacity int
}

// Handler processes one dispatched inbound frame's body for a given command.
type Handler func(cmd wire.Command, c *Client, body []byte) error

func (cfg *Config) setDefaults() {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.NowFunc == nil {
		cfg.NowFunc = time.Now
	}
	if cfg.Dialer == nil {
		cfg.Dialer = transport.NewDialer()
	}
	if cfg.ReadBufferCapacity <= 0 {
		cfg.ReadBufferCapacity = iobuf.DefaultCapacity
	}
	if cfg.Handlers == nil {
		cfg.Handlers = make(map[wire.Command]Handler)
	}
	if cfg.TCPAddr == "" {
		cfg.TCPAddr = fmt.Sprintf("127.0.0.1:%d", transport.DefaultTCPPort)
	}
}

// validateSockPath enforces serv_path_set's contract: an override that
// doesn't resolve to a socket file is rejected, not fatally, by
// warning and falling back to the compiled-in default path.
func (cfg *Config) validateSockPath() {
	if cfg.Network != transport.NetworkUnix || cfg.SockPath == "" {
		return
	}
	if err := transport.ValidateSockPath(cfg.SockPath); err != nil {
		cfg.Logger.Warn("zclient: rejecting invalid sock path override, using default", "path", cfg.SockPath, "error", err)
		cfg.SockPath = ""
	}
}

func (cfg *Config) dialAddr() string {
	if cfg.Network == transport.NetworkTCP {
		return cfg.TCPAddr
	}
	if cfg.SockPath != "" {
		return cfg.SockPath
	}
	return transport.DefaultUnixPath
}
