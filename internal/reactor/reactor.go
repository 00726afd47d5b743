// Package reactor collapses the Z-protocol client's two historical
// event back-ends — a polling reactor and a callback-thread scheduler —
// behind one interface, selected once at construction and fixed for the
// handle's lifetime (spec §4.D, §9). Callers above this package never
// branch on which back-end is in use.
package reactor

import (
	"errors"
	"time"
)

// ErrReactorClosed is returned by any Arm* call made after Close.
var ErrReactorClosed = errors.New("reactor: closed")

// Token identifies an armed event so it can later be disarmed. The zero
// Token is never returned by an Arm* call and is always safe to pass to
// Disarm as a no-op, which lets callers disarm unconditionally without
// tracking whether they ever armed in the first place.
type Token uint64

// Reactor arms and disarms the three kinds of events the client needs:
// read-readiness and write-readiness on a socket file descriptor, and a
// one-shot timer at an absolute deadline. All operations are idempotent
// on Disarm and safe to call only from the reactor's own callback
// goroutine (single-threaded cooperative model, spec §5).
type Reactor interface {
	// ArmRead invokes fn at most once, the next time fd becomes
	// readable, then automatically disarms (level-triggered re-arm for
	// Read is the caller's responsibility per spec §4.D: "re-arm after
	// each successful frame").
	ArmRead(fd int, fn func()) (Token, error)

	// ArmWrite invokes fn at most once, the next time fd becomes
	// writable, then automatically disarms.
	ArmWrite(fd int, fn func()) (Token, error)

	// ArmTimerAt invokes fn once at or after the given absolute time.
	ArmTimerAt(at time.Time, fn func()) (Token, error)

	// Disarm cancels a previously armed event. It is idempotent: calling
	// Disarm twice, or on a Token that already fired, or on the zero
	// Token, is a safe no-op.
	Disarm(t Token)

	// Close stops the reactor's run loop and releases its resources.
	// No armed callback fires after Close returns.
	Close() error
}

// NowFunc returns the current time. Back-ends accept an injectable
// NowFunc (default time.Now) so timer-scheduling tests can run without
// real sleeps, mirroring the teacher's probing.IntervalConfig.NowFunc
// idiom.
type NowFunc func() time.Time
