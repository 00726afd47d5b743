package zclient

import (
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openrib/zapi/internal/transport"
	"github.com/openrib/zapi/internal/wire"
)

func newBareClient(t *testing.T, rx *fakeReactor) *Client {
	t.Helper()
	c, err := New(Config{
		Reactor: rx,
		Dialer:  &fixedDialer{err: errors.New("unused in this test")},
	})
	require.NoError(t, err)
	return c
}

// drainWrites fires f's armed write callback until nothing remains
// armed (StatusEmpty reached) or the deadline passes, mirroring the
// retry-loop idiom transport_test.go uses around the transport's
// one-millisecond write deadlines.
func drainWrites(f *fakeReactor, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for f.writeFn != nil && time.Now().Before(deadline) {
		fn := f.writeFn
		f.writeFn = nil
		fn()
		time.Sleep(time.Millisecond)
	}
}

func readExactly(t *testing.T, r io.Reader, n int) <-chan []byte {
	t.Helper()
	ch := make(chan []byte, 1)
	go func() {
		buf := make([]byte, n)
		if _, err := io.ReadFull(r, buf); err != nil {
			ch <- nil
			return
		}
		ch <- buf
	}()
	return ch
}

func TestZClient_Handshake_FreshStartBytes(t *testing.T) {
	t.Parallel()
	clientSide, serverSide := net.Pipe()
	defer clientSide.Close()
	defer serverSide.Close()

	expected := append([]byte{}, wire.EncodeHello(9)...)
	expected = append(expected, wire.EncodeRouterIDAdd()...)
	expected = append(expected, wire.EncodeInterfaceAdd()...)
	got := readExactly(t, serverSide, len(expected))

	f := newFakeReactor()
	dialer := &fixedDialer{conn: transport.NewConnFromNetConn(clientSide)}
	c, err := New(Config{
		Reactor:          f,
		Dialer:           dialer,
		RedistDefaultSet: true,
		RedistDefault:    9,
	})
	require.NoError(t, err)

	c.onConnectTimer()
	require.Equal(t, StateConnected, c.State())
	drainWrites(f, 2*time.Second)

	select {
	case b := <-got:
		require.NotNil(t, b, "server never received the expected number of bytes")
		require.Equal(t, expected, b)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for handshake bytes")
	}
}

func TestZClient_Handshake_SubscriptionReplayOrder(t *testing.T) {
	t.Parallel()
	clientSide, serverSide := net.Pipe()
	defer clientSide.Close()
	defer serverSide.Close()

	// No HELLO (RedistDefaultSet false): ROUTER_ID_ADD, INTERFACE_ADD,
	// then REDISTRIBUTE_ADD for types 2 and 7 in ascending order.
	expected := append([]byte{}, wire.EncodeRouterIDAdd()...)
	expected = append(expected, wire.EncodeInterfaceAdd()...)
	expected = append(expected, wire.EncodeRedistributeAdd(2)...)
	expected = append(expected, wire.EncodeRedistributeAdd(7)...)
	got := readExactly(t, serverSide, len(expected))

	f := newFakeReactor()
	dialer := &fixedDialer{conn: transport.NewConnFromNetConn(clientSide)}
	c, err := New(Config{Reactor: f, Dialer: dialer})
	require.NoError(t, err)
	c.redist[7] = true
	c.redist[2] = true

	c.onConnectTimer()
	require.Equal(t, StateConnected, c.State())
	drainWrites(f, 2*time.Second)

	select {
	case b := <-got:
		require.NotNil(t, b)
		require.Equal(t, expected, b)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for replayed subscriptions")
	}
}

func TestZClient_Redistribute_IdempotentSubscribe(t *testing.T) {
	t.Parallel()
	clientSide, serverSide := net.Pipe()
	defer clientSide.Close()

	f := newFakeReactor()
	c := newBareClient(t, f)
	c.conn = transport.NewConnFromNetConn(clientSide)

	readDone := make(chan []byte, 1)
	go func() {
		data, _ := io.ReadAll(serverSide)
		readDone <- data
	}()

	require.NoError(t, c.Redistribute(RedistAdd, 5))
	drainWrites(f, time.Second)
	require.NoError(t, c.Redistribute(RedistAdd, 5))
	drainWrites(f, time.Second)

	require.NoError(t, clientSide.Close())
	require.NoError(t, serverSide.Close())

	select {
	case got := <-readDone:
		require.Equal(t, wire.EncodeRedistributeAdd(5), got)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server-side read to complete")
	}
}

func TestZClient_RouteIPv4_BlackholeBytes(t *testing.T) {
	t.Parallel()
	clientSide, serverSide := net.Pipe()
	defer clientSide.Close()

	f := newFakeReactor()
	c := newBareClient(t, f)
	c.conn = transport.NewConnFromNetConn(clientSide)

	route := &wire.Route{
		RouteType:    9,
		ZebraFlags:   wire.ZebraFlagBlackhole,
		MessageFlags: wire.MessageFlagNextHop,
		SAFI:         1,
		Prefix:       net.ParseIP("10.0.0.0").To4(),
		PrefixLen:    8,
	}
	expected, err := wire.EncodeIPv4RouteAdd(route)
	require.NoError(t, err)

	readDone := make(chan []byte, 1)
	go func() {
		data, _ := io.ReadAll(serverSide)
		readDone <- data
	}()

	require.NoError(t, c.RouteIPv4(wire.CommandIPv4RouteAdd, route))
	drainWrites(f, time.Second)
	require.NoError(t, clientSide.Close())
	require.NoError(t, serverSide.Close())

	select {
	case got := <-readDone:
		require.Equal(t, expected, got)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for route bytes")
	}
}

func TestZClient_PartialReadRecovery(t *testing.T) {
	t.Parallel()
	clientSide, serverSide := net.Pipe()
	defer clientSide.Close()
	defer serverSide.Close()

	f := newFakeReactor()
	c := newBareClient(t, f)
	c.conn = transport.NewConnFromNetConn(clientSide)

	route := &wire.Route{
		RouteType:    3,
		MessageFlags: wire.MessageFlagDistance,
		SAFI:         1,
		Prefix:       net.ParseIP("192.0.2.0").To4(),
		PrefixLen:    24,
		Distance:     110,
	}
	framed, err := wire.EncodeIPv4RouteAdd(route)
	require.NoError(t, err)
	require.Greater(t, len(framed), 3, "need at least a few bytes to split across two writes")

	var gotBody []byte
	c.RegisterHandler(wire.CommandIPv4RouteAdd, func(cmd wire.Command, cl *Client, body []byte) error {
		gotBody = append([]byte(nil), body...)
		return nil
	})

	go func() {
		mid := len(framed) / 2
		_ = serverSide.SetWriteDeadline(time.Now().Add(2 * time.Second))
		_, _ = serverSide.Write(framed[:mid])
		time.Sleep(5 * time.Millisecond)
		_, _ = serverSide.Write(framed[mid:])
	}()

	deadline := time.Now().Add(2 * time.Second)
	c.onReadable()
	for gotBody == nil && time.Now().Before(deadline) {
		if f.readFn != nil {
			fn := f.readFn
			f.readFn = nil
			fn()
		}
		time.Sleep(time.Millisecond)
	}

	require.NotNil(t, gotBody, "handler was never invoked with a complete frame")
	require.Equal(t, framed[wire.HeaderSize:], gotBody)
}

func TestZClient_HeaderRejection_BadMarker(t *testing.T) {
	t.Parallel()
	clientSide, serverSide := net.Pipe()
	defer clientSide.Close()
	defer serverSide.Close()

	f := newFakeReactor()
	c := newBareClient(t, f)
	c.conn = transport.NewConnFromNetConn(clientSide)

	bad := make([]byte, wire.HeaderSize)
	h := wire.Header{Length: wire.HeaderSize, Marker: 0x00, Version: wire.Version, Command: wire.CommandHello}
	h.Encode(bad)

	go func() {
		_ = serverSide.SetWriteDeadline(time.Now().Add(2 * time.Second))
		_, _ = serverSide.Write(bad)
	}()

	deadline := time.Now().Add(2 * time.Second)
	c.onReadable()
	for c.State() != StateScheduled && time.Now().Before(deadline) {
		if f.readFn != nil {
			fn := f.readFn
			f.readFn = nil
			fn()
		}
		time.Sleep(time.Millisecond)
	}

	require.Equal(t, StateScheduled, c.State())
	require.Equal(t, 1, c.FailCount())
	require.Nil(t, c.conn, "a rejected header must close the connection")
}

func TestZClient_PermanentFailure_DormantAfterTenFailures(t *testing.T) {
	t.Parallel()
	f := newFakeReactor()
	dialer := &fixedDialer{err: errors.New("connection refused")}
	c, err := New(Config{Reactor: f, Dialer: dialer})
	require.NoError(t, err)

	// NextRetryAt is evaluated against the post-increment fail count, so
	// dormancy (DormantThreshold=10) kicks in on the 10th consecutive
	// failure. Retries after the first attempt are driven through the
	// fake reactor, so the recorded timer callback is consumed as it fires.
	c.onConnectTimer()
	for i := 1; i < 10; i++ {
		f.fireTimer()
	}

	require.Equal(t, 10, dialer.calls)
	require.Equal(t, 10, c.FailCount())
	require.Equal(t, StateFailing, c.State())
	require.Nil(t, f.timerFn, "a dormant client must not schedule another retry")

	require.ErrorIs(t, c.Redistribute(RedistAdd, 4), ErrDormant)
	require.ErrorIs(t, c.RedistributeDefault(RedistAdd), ErrDormant)
}

func TestZClient_Redistribute_ErrClosedAfterClose(t *testing.T) {
	t.Parallel()
	f := newFakeReactor()
	c := newBareClient(t, f)
	require.NoError(t, c.Close())

	require.ErrorIs(t, c.Redistribute(RedistAdd, 4), ErrClosed)
	require.ErrorIs(t, c.RedistributeDefault(RedistAdd), ErrClosed)
}

func TestZClient_OversizedFrame_BufferGrows(t *testing.T) {
	t.Parallel()
	f := newFakeReactor()
	c := newBareClient(t, f)

	startCap := c.readBuf.Capacity()
	bigLen := startCap + 512

	header := make([]byte, wire.HeaderSize)
	h := wire.Header{Length: uint16(bigLen), Marker: wire.Marker, Version: wire.Version, Command: wire.CommandIPv4RouteAdd}
	h.Encode(header)
	_, err := c.readBuf.FillFrom(sliceReader{b: header}, wire.HeaderSize)
	require.NoError(t, err)

	done := c.advancePhase(wire.HeaderSize)
	require.False(t, done)
	require.Equal(t, bigLen, c.pendingBodyLen)
	require.GreaterOrEqual(t, c.readBuf.Capacity(), bigLen)
}

// sliceReader is a one-shot iobuf.Reader over a fixed byte slice, used
// to drive FillFrom without a real or fake socket.
type sliceReader struct{ b []byte }

func (r sliceReader) Read(p []byte) (int, error) {
	n := copy(p, r.b)
	return n, nil
}
