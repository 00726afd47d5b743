package zclient

import (
	"errors"
	"fmt"

	"github.com/openrib/zapi/internal/iobuf"
	"github.com/openrib/zapi/internal/transport"
	"github.com/openrib/zapi/internal/wire"
)

// connReader adapts transport.Conn's ternary Read into the (n, error)
// contract iobuf.Reader expects: ResultAgain surfaces as transport.ErrAgain
// (a non-nil error FillFrom passes straight through, never mistaken for
// the "no more capacity requested" (0, nil) case), ResultClosed surfaces
// as iobuf.ErrClosed.
type connReader struct{ conn *transport.Conn }

func (r connReader) Read(p []byte) (int, error) {
	n, res, err := r.conn.Read(p)
	switch res {
	case transport.ResultOK:
		return n, nil
	case transport.ResultAgain:
		return 0, transport.ErrAgain
	case transport.ResultClosed:
		return 0, iobuf.ErrClosed
	default:
		if err == nil {
			err = fmt.Errorf("transport: read error")
		}
		return 0, err
	}
}

// connWriter adapts transport.Conn's ternary Write into the (n, error)
// contract iobuf.Writer expects: ResultAgain surfaces as (0, nil), a
// normal "no progress yet" partial write that WriteBuffer leaves
// queued; ResultClosed/ResultError surface as a non-nil error.
type connWriter struct{ conn *transport.Conn }

func (w connWriter) Write(p []byte) (int, error) {
	n, res, err := w.conn.Write(p)
	switch res {
	case transport.ResultOK:
		return n, nil
	case transport.ResultAgain:
		return 0, nil
	case transport.ResultClosed:
		return 0, iobuf.ErrClosed
	default:
		if err == nil {
			err = fmt.Errorf("transport: write error")
		}
		return 0, err
	}
}

// onReadable is armed on the reactor as the read-ready callback. It
// drives the two-phase header/body read (spec §4.F), dispatching each
// complete frame and moving on to the next header, until the socket
// would block, closes, or the client stops being connected.
func (c *Client) onReadable() {
	c.readTok = 0
	if c.conn == nil {
		return
	}
	r := connReader{conn: c.conn}

	for {
		target := wire.HeaderSize
		if c.pendingBodyLen > 0 {
			target = c.pendingBodyLen
		}
		need := c.readBuf.RemainingToFill(target)
		if need <= 0 {
			if done := c.advancePhase(target); done {
				return // transitioned to Failing or connection dropped; no re-arm
			}
			continue
		}

		_, err := c.readBuf.FillFrom(r, need)
		if err != nil {
			if errors.Is(err, transport.ErrAgain) {
				c.rearmRead()
				return
			}
			c.log.Warn("zclient: read failed, disconnecting", "error", err)
			c.transitionToFailing(err)
			return
		}
	}
}

// advancePhase is called once RemainingToFill(target) reaches zero. In
// the header phase it parses and validates the header, possibly
// growing the buffer and switching to the body phase. In the body
// phase it dispatches the completed frame and resets for the next
// header. Returns true if the client transitioned to Failing or a
// handler left it without a connection (caller must stop looping and
// must not re-arm Read).
func (c *Client) advancePhase(target int) bool {
	if c.pendingBodyLen == 0 {
		h, err := wire.DecodeHeader(c.readBuf.Bytes())
		if err != nil {
			c.log.Warn("zclient: short header", "error", err)
			c.transitionToFailing(err)
			return true
		}
		if err := h.Validate(); err != nil {
			c.log.Warn("zclient: header rejected", "error", err)
			c.transitionToFailing(err)
			return true
		}
		if int(h.Length) > c.readBuf.Capacity() {
			c.readBuf.Grow(int(h.Length))
		}
		c.pendingBodyLen = int(h.Length)
		return false
	}

	frame := c.readBuf.Bytes()
	h, err := wire.DecodeHeader(frame)
	if err != nil {
		c.transitionToFailing(err)
		return true
	}
	body := frame[wire.HeaderSize:h.Length]
	c.dispatch(h.Command, body)

	if c.conn == nil {
		// A handler stopped/closed the client; do not reset/re-arm.
		return true
	}
	c.readBuf.Reset()
	c.pendingBodyLen = 0
	return false
}

// dispatch looks up and invokes the handler registered for cmd,
// recovering a panicking handler into a logged error rather than
// letting it crash the reactor goroutine (teacher idiom:
// probing.probingWorker.runProbe's recover()-into-outcome pattern).
func (c *Client) dispatch(cmd wire.Command, body []byte) {
	if c.registry != nil {
		c.notifyRegistry(cmd, body)
	}

	fn, ok := c.handlers[cmd]
	if !ok {
		c.log.Debug("zclient: no handler for command, dropping", "command", cmd.String())
		metricUnknownCommand.WithLabelValues(cmd.String()).Inc()
		return
	}
	metricFramesReceived.WithLabelValues(cmd.String()).Inc()

	defer func() {
		if r := recover(); r != nil {
			metricHandlerPanics.Inc()
			c.log.Error("zclient: handler panicked, dropping frame", "command", cmd.String(), "panic", r)
		}
	}()
	if err := fn(cmd, c, body); err != nil {
		c.log.Warn("zclient: handler returned error", "command", cmd.String(), "error", err)
	}
}

// notifyRegistry calls through to Config.Registry for the two
// command kinds it can act on (spec §4.L): an interface add publishes
// nothing back to the kernel by itself (Registry only exposes lookup
// and connected-address registration), but an interface-address add
// with a non-empty prefix is forwarded via ConnectedAddByPrefix. A
// destination of all-zero bytes already decodes to a nil Destination
// (wire.DecodeInterfaceAddress), so this only ever calls through when
// there's an address to register.
func (c *Client) notifyRegistry(cmd wire.Command, body []byte) {
	switch cmd {
	case wire.CommandInterfaceAddressAdd:
		ia, err := wire.DecodeInterfaceAddress(body)
		if err != nil {
			c.log.Debug("zclient: registry skipped, bad interface-address body", "error", err)
			return
		}
		if ia.Addr == nil {
			return
		}
		if err := c.registry.ConnectedAddByPrefix(ia.IfIndex, ia.Addr, ia.PrefixLen); err != nil {
			c.log.Warn("zclient: registry ConnectedAddByPrefix failed", "ifindex", ia.IfIndex, "error", err)
		}
	case wire.CommandInterfaceAdd:
		ev, err := wire.DecodeInterfaceAdd(body, c.encoding)
		if err != nil {
			c.log.Debug("zclient: registry skipped, bad interface-add body", "error", err)
			return
		}
		if _, ok := c.registry.GetByName(ev.Name); !ok {
			c.log.Debug("zclient: interface not yet known to registry", "name", ev.Name, "ifindex", ev.IfIndex)
		}
	}
}

func (c *Client) rearmRead() {
	if c.conn == nil {
		return
	}
	tok, err := c.rx.ArmRead(c.connFD(), c.onReadable)
	if err != nil {
		c.log.Error("zclient: failed to re-arm read", "error", err)
		return
	}
	c.readTok = tok
}

// sendFrame enqueues framed bytes into the write buffer and attempts
// an immediate drain. If bytes remain pending, write-readiness is
// armed so onWritable resumes the drain later.
func (c *Client) sendFrame(framed []byte) error {
	if c.conn == nil {
		return ErrDisconnected
	}
	status, err := c.writeBuf.Write(framed, connWriter{conn: c.conn})
	switch status {
	case iobuf.StatusEmpty:
		return nil
	case iobuf.StatusPending:
		c.armWriteIfNeeded()
		return nil
	default:
		return err
	}
}

func (c *Client) armWriteIfNeeded() {
	if c.writeTok != 0 || c.conn == nil {
		return
	}
	tok, err := c.rx.ArmWrite(c.connFD(), c.onWritable)
	if err != nil {
		c.log.Error("zclient: failed to arm write", "error", err)
		return
	}
	c.writeTok = tok
}

// onWritable is armed on the reactor as the write-ready callback; it
// resumes draining the write buffer.
func (c *Client) onWritable() {
	c.writeTok = 0
	if c.conn == nil {
		return
	}
	status, err := c.writeBuf.FlushAvailable(connWriter{conn: c.conn})
	switch status {
	case iobuf.StatusEmpty:
		return
	case iobuf.StatusPending:
		c.armWriteIfNeeded()
	default:
		c.log.Warn("zclient: write failed, disconnecting", "error", err)
		c.transitionToFailing(err)
	}
}
