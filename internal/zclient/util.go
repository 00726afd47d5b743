package zclient

import (
	"bytes"
	"runtime"
	"strconv"
)

// goroutineID extracts the calling goroutine's id by parsing the
// leading "goroutine N " of a runtime.Stack dump. It is only used when
// AssertGoroutineAffinity is enabled; the parse cost is paid solely by
// debug builds and tests, never by the production read/write path.
func goroutineID() uint64 {
	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)
	buf = buf[:n]
	const prefix = "goroutine "
	if !bytes.HasPrefix(buf, []byte(prefix)) {
		return 0
	}
	buf = buf[len(prefix):]
	if sp := bytes.IndexByte(buf, ' '); sp >= 0 {
		buf = buf[:sp]
	}
	id, err := strconv.ParseUint(string(buf), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// assertOwnerGoroutine panics if AssertGoroutineAffinity is enabled and
// the caller is not running on the goroutine that called Run, matching
// spec's warning that outbound methods must be marshaled onto the
// executor rather than called from arbitrary goroutines.
func (c *Client) assertOwnerGoroutine() {
	if !AssertGoroutineAffinity || !c.running.Load() {
		return
	}
	if id := goroutineID(); id != 0 && c.ownerGoID != 0 && id != c.ownerGoID {
		panic("zclient: outbound API called off the reactor goroutine")
	}
}
