package chat

import "time"

// Retry policy, applied uniformly by all adapters: inside a session each
// transient error sleeps Base scaled linearly by the consecutive error count;
// when a whole session fails the next connect attempt is delayed
// exponentially, capped at Max. A successful session resets the schedule.

// Backoff produces exponentially growing delays between session restarts.
type Backoff struct {
	Base time.Duration
	Max  time.Duration

	attempt int
}

// Next returns the delay before the next connect attempt. The first call
// returns Base; each subsequent call doubles it up to Max.
func (b *Backoff) Next() time.Duration {
	base := b.Base
	if base <= 0 {
		base = time.Second
	}
	max := b.Max
	if max <= 0 {
		max = time.Minute
	}

	d := base << b.attempt
	if d >= max || d <= 0 {
		return max
	}
	b.attempt++
	return d
}

// Reset restarts the schedule after a successful session.
func (b *Backoff) Reset() {
	b.attempt = 0
}

// Linear returns the in-session delay after n consecutive transient errors.
func Linear(base time.Duration, n int) time.Duration {
	if n < 1 {
		n = 1
	}
	return base * time.Duration(n)
}
