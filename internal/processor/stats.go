package processor

import "sync/atomic"

// Stats owns the pipeline counters. Adapters, the processor and the playback
// worker all increment it from their own goroutines; the display only ever
// sees read-only snapshots delivered through the mailbox.
type Stats struct {
	messages atomic.Int64
	spoken   atomic.Int64
	spam     atomic.Int64
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Messages int64 `json:"messages"`
	Spoken   int64 `json:"spoken"`
	Spam     int64 `json:"spam"`
}

func (s *Stats) AddMessage() { s.messages.Add(1) }
func (s *Stats) AddSpoken()  { s.spoken.Add(1) }
func (s *Stats) AddSpam()    { s.spam.Add(1) }

// Reset zeroes all counters.
func (s *Stats) Reset() {
	s.messages.Store(0)
	s.spoken.Store(0)
	s.spam.Store(0)
}

func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Messages: s.messages.Load(),
		Spoken:   s.spoken.Load(),
		Spam:     s.spam.Load(),
	}
}
