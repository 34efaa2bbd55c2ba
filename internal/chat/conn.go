package chat

import "sync"

// State is an adapter connection state.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Listening
	Reauthenticating
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Listening:
		return "listening"
	case Reauthenticating:
		return "reauthenticating"
	default:
		return "unknown"
	}
}

// Conn tracks one adapter's connection state and consecutive transient
// errors. A session counts as up once it enters Connected or Listening and
// stays up until Disconnected; Connecting and Reauthenticating never change
// that, so a token refresh mid-session keeps the session up while a refresh
// after a failed login does not invent one. OnConnect and OnDisconnect fire
// on the up edges, once per session.
type Conn struct {
	mu        sync.Mutex
	cb        Callbacks
	state     State
	up        bool
	errors    int
	threshold int
	escalated bool
}

// NewConn creates a connection tracker with the default error threshold.
func NewConn(cb Callbacks) *Conn {
	return &Conn{cb: cb, threshold: DefaultErrorThreshold}
}

// State returns the current state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connected reports whether the adapter has a live session.
func (c *Conn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.up
}

// Errors returns the current consecutive error count.
func (c *Conn) Errors() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errors
}

// To transitions to state s, firing edge callbacks outside the lock.
func (c *Conn) To(s State) {
	c.mu.Lock()
	c.state = s
	wasUp := c.up
	switch s {
	case Connected, Listening:
		c.up = true
	case Disconnected:
		c.up = false
	}
	isUp := c.up
	if isUp && !wasUp {
		c.errors = 0
		c.escalated = false
	}
	c.mu.Unlock()

	switch {
	case isUp && !wasUp:
		if c.cb.OnConnect != nil {
			c.cb.OnConnect()
		}
	case wasUp && !isUp:
		if c.cb.OnDisconnect != nil {
			c.cb.OnDisconnect()
		}
	}
}

// Fail records one transient error, surfaces it via OnError, and reports
// whether the threshold has been reached. Crossing the threshold emits a
// single ErrTooManyErrors event and moves the connection to Disconnected;
// further Fail calls on the dead connection are ignored.
func (c *Conn) Fail(err error) bool {
	c.mu.Lock()
	if c.escalated {
		c.mu.Unlock()
		return true
	}
	c.errors++
	escalate := c.errors >= c.threshold
	if escalate {
		c.escalated = true
	}
	c.mu.Unlock()

	if c.cb.OnError != nil {
		c.cb.OnError(err)
	}
	if escalate {
		if c.cb.OnError != nil {
			c.cb.OnError(ErrTooManyErrors)
		}
		c.To(Disconnected)
	}
	return escalate
}

// Reset clears the consecutive error count after a successful operation.
func (c *Conn) Reset() {
	c.mu.Lock()
	c.errors = 0
	c.escalated = false
	c.mu.Unlock()
}
