package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu          sync.Mutex
	connects    int
	disconnects int
	errs        []error
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnConnect: func() {
			r.mu.Lock()
			r.connects++
			r.mu.Unlock()
		},
		OnDisconnect: func() {
			r.mu.Lock()
			r.disconnects++
			r.mu.Unlock()
		},
		OnError: func(err error) {
			r.mu.Lock()
			r.errs = append(r.errs, err)
			r.mu.Unlock()
		},
	}
}

func (r *recorder) tooManyCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, err := range r.errs {
		if errors.Is(err, ErrTooManyErrors) {
			n++
		}
	}
	return n
}

func TestConnEdgeCallbacks(t *testing.T) {
	rec := &recorder{}
	c := NewConn(rec.callbacks())

	assert.Equal(t, Disconnected, c.State())

	c.To(Connecting)
	assert.Equal(t, 0, rec.connects)

	c.To(Connected)
	c.To(Listening)
	assert.Equal(t, 1, rec.connects)
	assert.True(t, c.Connected())

	// Reauthenticating is still an up state, not a new session.
	c.To(Reauthenticating)
	c.To(Connected)
	assert.Equal(t, 1, rec.connects)

	c.To(Disconnected)
	assert.Equal(t, 1, rec.disconnects)
	assert.False(t, c.Connected())
}

func TestReauthenticatingAfterTeardownIsNotAConnection(t *testing.T) {
	rec := &recorder{}
	c := NewConn(rec.callbacks())

	c.To(Connecting)
	c.To(Listening)
	c.To(Disconnected)

	// Refreshing a rejected token happens with no session behind it; the
	// state label changes but no connect edge fires.
	c.To(Reauthenticating)
	assert.False(t, c.Connected())
	assert.Equal(t, Reauthenticating, c.State())
	assert.Equal(t, 1, rec.connects)
	assert.Equal(t, 1, rec.disconnects)

	// Same when the login failed before the session ever came up.
	c.To(Disconnected)
	c.To(Connecting)
	c.To(Reauthenticating)
	assert.False(t, c.Connected())
	assert.Equal(t, 1, rec.connects)
	assert.Equal(t, 1, rec.disconnects)

	// The next real session still fires its edges.
	c.To(Connecting)
	c.To(Listening)
	assert.True(t, c.Connected())
	assert.Equal(t, 2, rec.connects)
	c.To(Disconnected)
	assert.Equal(t, 2, rec.disconnects)
}

func TestFailEscalatesOnce(t *testing.T) {
	rec := &recorder{}
	c := NewConn(rec.callbacks())
	c.To(Connected)
	c.To(Listening)

	readErr := errors.New("read timeout")
	for i := 0; i < 4; i++ {
		assert.False(t, c.Fail(readErr))
	}
	assert.True(t, c.Fail(readErr))

	// Five transient errors, exactly one escalation, one disconnect.
	assert.Equal(t, Disconnected, c.State())
	assert.Equal(t, 1, rec.tooManyCount())
	assert.Equal(t, 1, rec.disconnects)
	assert.Len(t, rec.errs, 6) // 5 transient + 1 escalation

	// Further failures on the dead connection change nothing.
	assert.True(t, c.Fail(readErr))
	assert.Equal(t, 1, rec.tooManyCount())
	assert.Len(t, rec.errs, 6)
}

func TestResetClearsErrorCount(t *testing.T) {
	c := NewConn(Callbacks{})
	c.To(Connected)

	c.Fail(errors.New("hiccup"))
	c.Fail(errors.New("hiccup"))
	assert.Equal(t, 2, c.Errors())

	c.Reset()
	assert.Equal(t, 0, c.Errors())

	// A fresh session also clears the count.
	for i := 0; i < 3; i++ {
		c.Fail(errors.New("hiccup"))
	}
	c.To(Disconnected)
	c.To(Connected)
	assert.Equal(t, 0, c.Errors())
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	b := &Backoff{Base: time.Second, Max: 10 * time.Second}

	assert.Equal(t, 1*time.Second, b.Next())
	assert.Equal(t, 2*time.Second, b.Next())
	assert.Equal(t, 4*time.Second, b.Next())
	assert.Equal(t, 8*time.Second, b.Next())
	assert.Equal(t, 10*time.Second, b.Next())
	assert.Equal(t, 10*time.Second, b.Next())

	b.Reset()
	assert.Equal(t, 1*time.Second, b.Next())
}

func TestLinear(t *testing.T) {
	assert.Equal(t, time.Second, Linear(time.Second, 0))
	assert.Equal(t, time.Second, Linear(time.Second, 1))
	assert.Equal(t, 3*time.Second, Linear(time.Second, 3))
}

func TestSleepUnblocksOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan bool, 1)
	go func() {
		done <- Sleep(ctx, time.Minute)
	}()

	cancel()
	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Sleep did not unblock on cancellation")
	}

	require.True(t, Sleep(context.Background(), time.Millisecond))
}
