//go:build linux

package reactor

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

// Poll is the polling reactor back-end ("nexus"): a single goroutine
// owns one poll(2) call covering every armed file descriptor plus a
// self-pipe used to interrupt a blocking wait whenever a new event is
// armed or disarmed from outside the loop. Timers are tracked in a
// sorted slice and checked against the poll timeout on every
// iteration, avoiding a dependency on a separate timer goroutine per
// handle.
type Poll struct {
	mu      sync.Mutex
	reads   map[int]pollWatch
	writes  map[int]pollWatch
	timers  []pollTimer
	nextTok uint64
	now     NowFunc

	wakeR, wakeW int
	closed       atomic.Bool
	loopDone     chan struct{}
}

type pollWatch struct {
	tok Token
	fn  func()
}

type pollTimer struct {
	tok Token
	at  time.Time
	fn  func()
}

// NewPoll starts a Poll reactor. If now is nil, time.Now is used.
func NewPoll(now NowFunc) (*Poll, error) {
	if now == nil {
		now = time.Now
	}
	fds, err := unixPipe2NonblockCloexec()
	if err != nil {
		return nil, err
	}
	p := &Poll{
		reads:    make(map[int]pollWatch),
		writes:   make(map[int]pollWatch),
		now:      now,
		wakeR:    fds[0],
		wakeW:    fds[1],
		loopDone: make(chan struct{}),
	}
	go p.loop()
	return p, nil
}

func unixPipe2NonblockCloexec() ([2]int, error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return fds, err
	}
	return fds, nil
}

func (p *Poll) wake() {
	var b [1]byte
	_, _ = unix.Write(p.wakeW, b[:])
}

func (p *Poll) allocToken() Token {
	return Token(atomic.AddUint64(&p.nextTok, 1))
}

// ArmRead implements Reactor.
func (p *Poll) ArmRead(fd int, fn func()) (Token, error) {
	if p.closed.Load() {
		return 0, ErrReactorClosed
	}
	p.mu.Lock()
	tok := p.allocToken()
	p.reads[fd] = pollWatch{tok: tok, fn: fn}
	p.mu.Unlock()
	p.wake()
	return tok, nil
}

// ArmWrite implements Reactor.
func (p *Poll) ArmWrite(fd int, fn func()) (Token, error) {
	if p.closed.Load() {
		return 0, ErrReactorClosed
	}
	p.mu.Lock()
	tok := p.allocToken()
	p.writes[fd] = pollWatch{tok: tok, fn: fn}
	p.mu.Unlock()
	p.wake()
	return tok, nil
}

// ArmTimerAt implements Reactor.
func (p *Poll) ArmTimerAt(at time.Time, fn func()) (Token, error) {
	if p.closed.Load() {
		return 0, ErrReactorClosed
	}
	p.mu.Lock()
	tok := p.allocToken()
	p.timers = append(p.timers, pollTimer{tok: tok, at: at, fn: fn})
	sort.Slice(p.timers, func(i, j int) bool { return p.timers[i].at.Before(p.timers[j].at) })
	p.mu.Unlock()
	p.wake()
	return tok, nil
}

// Disarm implements Reactor.
func (p *Poll) Disarm(t Token) {
	if t == 0 {
		return
	}
	p.mu.Lock()
	for fd, w := range p.reads {
		if w.tok == t {
			delete(p.reads, fd)
		}
	}
	for fd, w := range p.writes {
		if w.tok == t {
			delete(p.writes, fd)
		}
	}
	for i, tm := range p.timers {
		if tm.tok == t {
			p.timers = append(p.timers[:i], p.timers[i+1:]...)
			break
		}
	}
	p.mu.Unlock()
	p.wake()
}

// Close implements Reactor.
func (p *Poll) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	p.wake()
	<-p.loopDone
	_ = unix.Close(p.wakeR)
	_ = unix.Close(p.wakeW)
	return nil
}

func (p *Poll) loop() {
	defer close(p.loopDone)
	drain := make([]byte, 64)
	for {
		if p.closed.Load() {
			return
		}

		p.mu.Lock()
		timeoutMs := -1
		if len(p.timers) > 0 {
			d := p.timers[0].at.Sub(p.now())
			if d < 0 {
				d = 0
			}
			timeoutMs = int(d / time.Millisecond)
		}
		pfds := make([]unix.PollFd, 0, 1+len(p.reads)+len(p.writes))
		pfds = append(pfds, unix.PollFd{Fd: int32(p.wakeR), Events: unix.POLLIN})
		fdIndex := make(map[int]int, len(p.reads)+len(p.writes))
		for fd := range p.reads {
			fdIndex[fd] |= 1
		}
		for fd := range p.writes {
			fdIndex[fd] |= 2
		}
		for fd, mask := range fdIndex {
			var ev int16
			if mask&1 != 0 {
				ev |= unix.POLLIN
			}
			if mask&2 != 0 {
				ev |= unix.POLLOUT
			}
			pfds = append(pfds, unix.PollFd{Fd: int32(fd), Events: ev})
		}
		p.mu.Unlock()

		_, err := unix.Poll(pfds, timeoutMs)
		if err != nil && err != unix.EINTR {
			return
		}

		if p.closed.Load() {
			return
		}

		now := p.now()
		var due []func()
		p.mu.Lock()
		i := 0
		for i < len(p.timers) && !p.timers[i].at.After(now) {
			due = append(due, p.timers[i].fn)
			i++
		}
		if i > 0 {
			p.timers = p.timers[i:]
		}
		p.mu.Unlock()
		for _, fn := range due {
			fn()
		}

		if pfds[0].Revents&unix.POLLIN != 0 {
			for {
				n, _ := unix.Read(p.wakeR, drain)
				if n <= 0 {
					break
				}
			}
		}

		var fired []func()
		p.mu.Lock()
		for _, pfd := range pfds[1:] {
			if pfd.Revents == 0 {
				continue
			}
			fd := int(pfd.Fd)
			if pfd.Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
				if w, ok := p.reads[fd]; ok {
					delete(p.reads, fd)
					fired = append(fired, w.fn)
				}
			}
			if pfd.Revents&(unix.POLLOUT|unix.POLLERR) != 0 {
				if w, ok := p.writes[fd]; ok {
					delete(p.writes, fd)
					fired = append(fired, w.fn)
				}
			}
		}
		p.mu.Unlock()
		for _, fn := range fired {
			fn()
		}
	}
}
