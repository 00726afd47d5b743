package zclient

import "errors"

var (
	// ErrAlreadyRunning is returned by Run when Run has already been
	// called on this client; a Client runs at most once, and neither
	// Stop nor dormancy makes it runnable again.
	ErrAlreadyRunning = errors.New("zclient: already running")

	// ErrClosed is returned by outbound API methods and Run once the
	// client has been permanently stopped via Close.
	ErrClosed = errors.New("zclient: closed")

	// ErrDisconnected is returned by outbound methods when no socket is
	// currently connected; the caller is expected to rely on
	// subscription replay rather than retry the send by hand.
	ErrDisconnected = errors.New("zclient: not connected")

	// ErrDormant is returned by outbound API methods once fail_count has
	// reached the dormant threshold and no further automatic retry will
	// be scheduled; callers get a discoverable reason instead of a
	// silent no-op.
	ErrDormant = errors.New("zclient: dormant after repeated connect failures")
)
