// Package zclient implements the Z-protocol client: the connection
// state machine, inbound dispatcher, and outbound request API that sit
// on top of internal/wire, internal/iobuf, internal/transport, and
// internal/reactor.
package zclient

import (
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/openrib/zapi/internal/iobuf"
	"github.com/openrib/zapi/internal/reactor"
	"github.com/openrib/zapi/internal/transport"
	"github.com/openrib/zapi/internal/wire"
)

// State is one of the five connection-lifecycle states.
type State int

const (
	StateDisabled State = iota
	StateScheduled
	StateConnecting
	StateConnected
	StateFailing
)

func (s State) String() string {
	switch s {
	case StateDisabled:
		return "disabled"
	case StateScheduled:
		return "scheduled"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailing:
		return "failing"
	default:
		return "unknown"
	}
}

// AssertGoroutineAffinity, when true, makes outbound API methods panic
// if called from a goroutine other than the one that invoked Run. It
// costs a runtime.Callers-free goroutine-id parse per call and is
// meant for debug builds/tests, not production (mirrors the teacher's
// choice to document single-goroutine ownership rather than lock it).
var AssertGoroutineAffinity = false

// Client is one Z-protocol connection handle. Every field below is
// touched only from the reactor goroutine once Run has started;
// nothing here is guarded by a mutex, by design (spec's single-
// threaded cooperative concurrency model).
type Client struct {
	log    *slog.Logger
	cfg    Config
	dialer transport.Dialer
	rx     reactor.Reactor
	ownsRx bool
	now    func() time.Time

	conn     *transport.Conn
	readBuf  *iobuf.ReadBuffer
	writeBuf *iobuf.WriteBuffer

	state     State
	failCount int

	redistDefaultSet bool
	redistDefault    uint8
	redist           map[uint8]bool
	defaultInfo      bool

	handlers map[wire.Command]Handler
	registry InterfaceRegistry
	encoding wire.InterfaceAddrEncoding

	pendingBodyLen int // 0 while in header phase, declared length while in body phase

	readTok  reactor.Token
	writeTok reactor.Token
	timerTok reactor.Token

	running   atomic.Bool
	closed    atomic.Bool
	ownerGoID uint64
	onClosed  chan struct{}
}

// New constructs a Client from cfg but does not start it; call Run to
// begin the connection state machine.
func New(cfg Config) (*Client, error) {
	cfg.setDefaults()
	cfg.validateSockPath()

	c := &Client{
		log:      cfg.Logger,
		cfg:      cfg,
		dialer:   cfg.Dialer,
		now:      cfg.NowFunc,
		readBuf:  iobuf.NewReadBuffer(cfg.ReadBufferCapacity),
		writeBuf: iobuf.NewWriteBuffer(),
		state:    StateDisabled,
		redist:   make(map[uint8]bool),
		handlers: make(map[wire.Command]Handler, len(cfg.Handlers)),
		registry: cfg.Registry,
		encoding: cfg.InterfaceAddrEncoding,
	}
	for k, v := range cfg.Handlers {
		c.handlers[k] = v
	}

	if cfg.RedistDefaultSet {
		c.redistDefaultSet = true
		c.redistDefault = cfg.RedistDefault
		c.redist[cfg.RedistDefault] = true
	}
	c.defaultInfo = cfg.DefaultInformation

	if cfg.Reactor != nil {
		c.rx = cfg.Reactor
	} else {
		c.rx = reactor.NewThreadPool(reactor.NowFunc(cfg.NowFunc))
		c.ownsRx = true
	}

	return c, nil
}

// RegisterHandler installs or replaces the handler for cmd. A nil fn
// clears the slot, restoring the default silent-drop behavior.
func (c *Client) RegisterHandler(cmd wire.Command, fn Handler) {
	if fn == nil {
		delete(c.handlers, cmd)
		return
	}
	c.handlers[cmd] = fn
}

// State reports the client's current connection-lifecycle state.
func (c *Client) State() State { return c.state }

// FailCount reports the number of consecutive connect/IO failures
// since the last successful connection.
func (c *Client) FailCount() int { return c.failCount }

// Run starts the state machine: it arms an immediate connect attempt
// and returns once the client has been permanently closed via Close.
// Run must be called at most once per Client.
func (c *Client) Run() error {
	if c.closed.Load() {
		return ErrClosed
	}
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	c.ownerGoID = goroutineID()
	metricConnected.Set(0)
	metricDormant.Set(0)

	done := make(chan struct{})
	c.onClosed = done

	c.state = StateDisabled
	c.enable()

	<-done
	return nil
}

// enable transitions Disabled -> Scheduled and arms an immediate connect.
func (c *Client) enable() {
	c.state = StateScheduled
	c.failCount = 0
	tok, err := c.rx.ArmTimerAt(c.now(), c.onConnectTimer)
	if err != nil {
		c.log.Error("zclient: failed to arm initial connect", "error", err)
		return
	}
	c.timerTok = tok
}

// onConnectTimer fires when a Scheduled state's connect timer expires
// (immediately on init, or after a backoff delay on retry).
func (c *Client) onConnectTimer() {
	c.timerTok = 0
	if c.closed.Load() {
		return
	}
	c.state = StateConnecting
	metricConnectAttempts.Inc()

	conn, err := c.dialer.Dial(c.cfg.Network, c.cfg.dialAddr())
	if err != nil {
		c.log.Debug("zclient: connect failed, scheduling retry", "error", err, "fail_count", c.failCount+1)
		c.scheduleRetryAfterFailure()
		return
	}

	c.conn = conn
	c.failCount = 0
	metricFailCount.Set(0)
	c.readBuf.Reset()
	c.pendingBodyLen = 0

	if err := c.handshake(); err != nil {
		c.log.Warn("zclient: handshake failed, disconnecting", "error", err)
		c.transitionToFailing(err)
		return
	}

	tok, err := c.rx.ArmRead(c.connFD(), c.onReadable)
	if err != nil {
		c.log.Error("zclient: failed to arm read", "error", err)
		c.transitionToFailing(err)
		return
	}
	c.readTok = tok
	c.state = StateConnected
	metricConnected.Set(1)
	c.log.Info("zclient: connected", "network", c.cfg.Network, "addr", c.cfg.dialAddr())
}

// handshake performs the strict-order on-connect sequence (spec §4.E):
// HELLO (if redist_default set) -> ROUTER_ID_ADD -> INTERFACE_ADD ->
// REDISTRIBUTE_ADD per subscribed non-default type (ascending order) ->
// REDISTRIBUTE_DEFAULT_ADD if enabled. Any send error aborts immediately.
func (c *Client) handshake() error {
	if c.redistDefaultSet {
		if err := c.sendFrame(wire.EncodeHello(c.redistDefault)); err != nil {
			return fmt.Errorf("hello: %w", err)
		}
	}
	if err := c.sendFrame(wire.EncodeRouterIDAdd()); err != nil {
		return fmt.Errorf("router-id-add: %w", err)
	}
	if err := c.sendFrame(wire.EncodeInterfaceAdd()); err != nil {
		return fmt.Errorf("interface-add: %w", err)
	}
	for _, t := range c.subscribedNonDefaultTypesSorted() {
		if err := c.sendFrame(wire.EncodeRedistributeAdd(t)); err != nil {
			return fmt.Errorf("redistribute-add(%d): %w", t, err)
		}
	}
	if c.defaultInfo {
		if err := c.sendFrame(wire.EncodeRedistributeDefaultAdd()); err != nil {
			return fmt.Errorf("redistribute-default-add: %w", err)
		}
	}
	return nil
}

func (c *Client) subscribedNonDefaultTypesSorted() []uint8 {
	var types []uint8
	for t, on := range c.redist {
		if !on {
			continue
		}
		if c.redistDefaultSet && t == c.redistDefault {
			continue
		}
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// scheduleRetryAfterFailure increments fail_count and arms ConnectRetry
// per the 10s/60s/dormant backoff schedule, or goes dormant.
func (c *Client) scheduleRetryAfterFailure() {
	c.failCount++
	metricFailCount.Set(float64(c.failCount))
	c.state = StateScheduled

	at, ok := reactor.NextRetryAt(c.now(), c.failCount)
	if !ok {
		c.log.Error("zclient: giving up after repeated connect failures", "fail_count", c.failCount)
		metricDormant.Set(1)
		c.state = StateFailing
		return
	}
	tok, err := c.rx.ArmTimerAt(at, c.onConnectTimer)
	if err != nil {
		c.log.Error("zclient: failed to arm connect retry", "error", err)
		return
	}
	c.timerTok = tok
}

// transitionToFailing implements the Failing state: disarm events,
// close the socket, reset buffers, and schedule a retry.
func (c *Client) transitionToFailing(cause error) {
	c.log.Debug("zclient: connection failing", "error", cause)
	c.disarmAll()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.readBuf.Reset()
	c.pendingBodyLen = 0
	metricConnected.Set(0)
	c.scheduleRetryAfterFailure()
}

func (c *Client) disarmAll() {
	if c.readTok != 0 {
		c.rx.Disarm(c.readTok)
		c.readTok = 0
	}
	if c.writeTok != 0 {
		c.rx.Disarm(c.writeTok)
		c.writeTok = 0
	}
	if c.timerTok != 0 {
		c.rx.Disarm(c.timerTok)
		c.timerTok = 0
	}
}

// Stop disables the client without scheduling a retry: socket is
// closed, fail_count is left untouched, and a later call to Run again
// (on a fresh Client) or re-enabling would restart the machine.
func (c *Client) Stop() {
	c.disarmAll()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.state = StateDisabled
	metricConnected.Set(0)
}

// Close permanently stops the client and releases its reactor if the
// client constructed it itself. After Close, all outbound methods and
// Run return ErrClosed.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.Stop()
	var err error
	if c.ownsRx {
		err = c.rx.Close()
	}
	if c.onClosed != nil {
		close(c.onClosed)
	}
	return err
}

// connFD returns the raw file descriptor backing the current
// connection, for reactor registration. Reactor back-ends only ever
// observe this fd's readiness; transport.Conn's own deadline-based
// Read/Write remains the sole path that actually consumes bytes, so
// sharing the fd with a second poll/epoll registration is safe.
func (c *Client) connFD() int {
	fd, err := c.conn.FD()
	if err != nil {
		c.log.Error("zclient: connection does not expose a raw fd", "error", err)
		return -1
	}
	return fd
}
