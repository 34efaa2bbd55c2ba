// Package chat defines the contract every platform adapter implements: a
// uniform callback set for delivering events, a lifecycle of Run/Stop, and a
// shared connection state machine with bounded error escalation.
package chat

import (
	"context"
	"errors"
	"time"
)

// ErrTooManyErrors is surfaced exactly once when an adapter gives up after
// the consecutive-error threshold, instead of retrying forever.
var ErrTooManyErrors = errors.New("too many consecutive errors")

// DefaultErrorThreshold is the number of consecutive transient errors that
// forces a disconnect.
const DefaultErrorThreshold = 5

// Callbacks is the delivery contract between an adapter and the pipeline.
// Adapters invoke these from their own goroutine; receivers must not block.
type Callbacks struct {
	OnConnect    func()
	OnDisconnect func()
	OnError      func(err error)
	OnMessage    func(id, author, text string, privileged bool)
}

// Adapter is one platform chat source. Run blocks until the context is
// cancelled or the adapter gives up; Stop is idempotent and safe to call from
// any goroutine while Run is mid-read.
type Adapter interface {
	Run(ctx context.Context) error
	Stop()
}

// Sleep waits for d or until ctx is cancelled, reporting false on
// cancellation. Adapters use it for every retry and poll delay so Stop
// unblocks them within one interval.
func Sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
