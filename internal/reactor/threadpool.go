package reactor

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

// pollWaitChunk bounds each blocking unix.Poll call so an armed
// read/write worker goroutine can notice Disarm/Close without needing
// the kernel to support cancellable polls.
const pollWaitChunk = 200 * time.Millisecond

// ThreadPool is the callback-thread reactor back-end: every armed
// read or write spawns a dedicated goroutine that blocks in a
// readiness poll, and every armed timer is a standalone time.Timer.
// All three funnel their firing into one dispatch goroutine so
// callbacks still execute one at a time, preserving the single
// cooperative-goroutine model even though readiness detection itself
// runs on a thread per armed event (grounded on probing.probingWorker's
// reusable-timer run loop and pim.Server's ticker/done-channel
// shutdown idiom).
type ThreadPool struct {
	mu      sync.Mutex
	entries map[Token]*tpEntry
	nextTok uint64
	now     NowFunc

	dispatch chan func()
	done     chan struct{}
	closed   atomic.Bool
	wg       sync.WaitGroup
}

type tpKind int

const (
	tpKindRead tpKind = iota
	tpKindWrite
	tpKindTimer
)

type tpEntry struct {
	kind  tpKind
	stop  chan struct{}
	timer *time.Timer
}

// NewThreadPool starts a ThreadPool reactor. If now is nil, time.Now is used.
func NewThreadPool(now NowFunc) *ThreadPool {
	if now == nil {
		now = time.Now
	}
	p := &ThreadPool{
		entries:  make(map[Token]*tpEntry),
		now:      now,
		dispatch: make(chan func()),
		done:     make(chan struct{}),
	}
	p.wg.Add(1)
	go p.runDispatcher()
	return p
}

func (p *ThreadPool) runDispatcher() {
	defer p.wg.Done()
	for {
		select {
		case <-p.done:
			return
		case fn := <-p.dispatch:
			fn()
		}
	}
}

func (p *ThreadPool) allocToken() Token {
	return Token(atomic.AddUint64(&p.nextTok, 1))
}

func (p *ThreadPool) armFD(fd int, events int16, kind tpKind, fn func()) (Token, error) {
	if p.closed.Load() {
		return 0, ErrReactorClosed
	}
	tok := p.allocToken()
	stop := make(chan struct{})
	p.mu.Lock()
	p.entries[tok] = &tpEntry{kind: kind, stop: stop}
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		pfd := []unix.PollFd{{Fd: int32(fd), Events: events}}
		for {
			select {
			case <-stop:
				return
			case <-p.done:
				return
			default:
			}
			n, err := unix.Poll(pfd, int(pollWaitChunk/time.Millisecond))
			if err != nil {
				if err == unix.EINTR {
					continue
				}
				return
			}
			if n <= 0 {
				continue
			}
			if pfd[0].Revents == 0 {
				continue
			}
			select {
			case <-stop:
				return
			case <-p.done:
				return
			case p.dispatch <- fn:
			}
			return
		}
	}()
	return tok, nil
}

// ArmRead implements Reactor.
func (p *ThreadPool) ArmRead(fd int, fn func()) (Token, error) {
	return p.armFD(fd, unix.POLLIN, tpKindRead, fn)
}

// ArmWrite implements Reactor.
func (p *ThreadPool) ArmWrite(fd int, fn func()) (Token, error) {
	return p.armFD(fd, unix.POLLOUT, tpKindWrite, fn)
}

// ArmTimerAt implements Reactor.
func (p *ThreadPool) ArmTimerAt(at time.Time, fn func()) (Token, error) {
	if p.closed.Load() {
		return 0, ErrReactorClosed
	}
	tok := p.allocToken()
	d := at.Sub(p.now())
	if d < 0 {
		d = 0
	}
	entry := &tpEntry{kind: tpKindTimer}
	p.mu.Lock()
	p.entries[tok] = entry
	p.mu.Unlock()

	entry.timer = time.AfterFunc(d, func() {
		select {
		case <-p.done:
			return
		case p.dispatch <- fn:
		}
	})
	return tok, nil
}

// Disarm implements Reactor.
func (p *ThreadPool) Disarm(t Token) {
	if t == 0 {
		return
	}
	p.mu.Lock()
	entry, ok := p.entries[t]
	if ok {
		delete(p.entries, t)
	}
	p.mu.Unlock()
	if !ok {
		return
	}
	switch entry.kind {
	case tpKindTimer:
		entry.timer.Stop()
	default:
		close(entry.stop)
	}
}

// Close implements Reactor.
func (p *ThreadPool) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	p.mu.Lock()
	for tok, entry := range p.entries {
		delete(p.entries, tok)
		if entry.kind == tpKindTimer {
			entry.timer.Stop()
		} else {
			close(entry.stop)
		}
	}
	p.mu.Unlock()
	close(p.done)
	p.wg.Wait()
	return nil
}
