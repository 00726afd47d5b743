//go:build linux

package reactor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestReactor_Poll_ArmReadFiresOnData(t *testing.T) {
	t.Parallel()
	var fds [2]int
	require.NoError(t, unix.Pipe(fds[:]))
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	p, err := NewPoll(nil)
	require.NoError(t, err)
	defer p.Close()

	fired := make(chan struct{}, 1)
	_, err = p.ArmRead(fds[0], func() { fired <- struct{}{} })
	require.NoError(t, err)

	_, err = unix.Write(fds[1], []byte("x"))
	require.NoError(t, err)

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("read callback did not fire")
	}
}

func TestReactor_Poll_ArmTimerAtFiresAfterDeadline(t *testing.T) {
	t.Parallel()
	p, err := NewPoll(nil)
	require.NoError(t, err)
	defer p.Close()

	fired := make(chan struct{}, 1)
	_, err = p.ArmTimerAt(time.Now().Add(20*time.Millisecond), func() { fired <- struct{}{} })
	require.NoError(t, err)

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("timer callback did not fire")
	}
}

func TestReactor_Poll_DisarmPreventsCallback(t *testing.T) {
	t.Parallel()
	p, err := NewPoll(nil)
	require.NoError(t, err)
	defer p.Close()

	fired := make(chan struct{}, 1)
	tok, err := p.ArmTimerAt(time.Now().Add(50*time.Millisecond), func() { fired <- struct{}{} })
	require.NoError(t, err)
	p.Disarm(tok)

	select {
	case <-fired:
		t.Fatal("disarmed timer fired")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestReactor_Poll_ArmAfterCloseReturnsError(t *testing.T) {
	t.Parallel()
	p, err := NewPoll(nil)
	require.NoError(t, err)
	require.NoError(t, p.Close())

	_, err = p.ArmTimerAt(time.Now(), func() {})
	require.ErrorIs(t, err, ErrReactorClosed)
}
