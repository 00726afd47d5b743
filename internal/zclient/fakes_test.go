package zclient

import (
	"time"

	"github.com/openrib/zapi/internal/reactor"
	"github.com/openrib/zapi/internal/transport"
)

// fakeReactor records the single outstanding read/write/timer callback
// at a time, matching the data model's own invariant ("at most one
// outstanding connect timer; at most one outstanding read or write arm
// per handle") so tests can fire them deterministically instead of
// waiting on a real poller or timer.
type fakeReactor struct {
	nextTok  uint64
	timerFn  func()
	readFn   func()
	writeFn  func()
	closed   bool
}

func newFakeReactor() *fakeReactor { return &fakeReactor{} }

func (f *fakeReactor) alloc() reactor.Token {
	f.nextTok++
	return reactor.Token(f.nextTok)
}

func (f *fakeReactor) ArmRead(fd int, fn func()) (reactor.Token, error) {
	f.readFn = fn
	return f.alloc(), nil
}

func (f *fakeReactor) ArmWrite(fd int, fn func()) (reactor.Token, error) {
	f.writeFn = fn
	return f.alloc(), nil
}

func (f *fakeReactor) ArmTimerAt(at time.Time, fn func()) (reactor.Token, error) {
	f.timerFn = fn
	return f.alloc(), nil
}

func (f *fakeReactor) Disarm(t reactor.Token) {}

func (f *fakeReactor) Close() error {
	f.closed = true
	return nil
}

// fireTimer invokes and clears the currently armed timer callback, if any.
func (f *fakeReactor) fireTimer() {
	fn := f.timerFn
	f.timerFn = nil
	if fn != nil {
		fn()
	}
}

// fixedDialer returns a preconstructed connection or a fixed error,
// counting how many times Dial was called.
type fixedDialer struct {
	conn  *transport.Conn
	err   error
	calls int
}

func (d *fixedDialer) Dial(network transport.Network, addr string) (*transport.Conn, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	return d.conn, nil
}
