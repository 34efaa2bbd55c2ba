package playback

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/fjudin/chatvoice/internal/chat"
	"github.com/fjudin/chatvoice/internal/mailbox"
	"github.com/fjudin/chatvoice/internal/processor"
	"github.com/fjudin/chatvoice/internal/queue"
	"github.com/fjudin/chatvoice/internal/speech"
)

const pollInterval = 100 * time.Millisecond

// Worker pops finished clips off the audio queue and plays them in order. A
// paused worker leaves the queue untouched so nothing is lost while muted.
type Worker struct {
	in     *queue.Queue[speech.Clip]
	out    Output
	box    *mailbox.Mailbox
	stats  *processor.Stats
	log    *log.Logger
	paused atomic.Bool

	delay atomic.Int64 // nanoseconds between clips
}

func NewWorker(in *queue.Queue[speech.Clip], out Output, stats *processor.Stats, box *mailbox.Mailbox, delay time.Duration) *Worker {
	w := &Worker{
		in:    in,
		out:   out,
		box:   box,
		stats: stats,
		log:   log.With("component", "playback"),
	}
	w.delay.Store(int64(delay))
	return w
}

// SetPaused toggles playback. Pausing does not interrupt the clip already
// playing; it stops the worker from starting the next one.
func (w *Worker) SetPaused(paused bool) {
	w.paused.Store(paused)
}

func (w *Worker) Paused() bool {
	return w.paused.Load()
}

// SetDelay changes the pause inserted between consecutive clips.
func (w *Worker) SetDelay(d time.Duration) {
	w.delay.Store(int64(d))
}

// Run loops until ctx is cancelled. Playback errors are reported and the
// worker moves on to the next clip.
func (w *Worker) Run(ctx context.Context) {
	w.log.Info("playback worker started")
	for {
		if w.paused.Load() {
			if !chat.Sleep(ctx, pollInterval) {
				return
			}
			continue
		}

		clip, ok := w.in.TryPop()
		if !ok {
			if !chat.Sleep(ctx, pollInterval) {
				return
			}
			continue
		}

		w.play(clip)

		if !chat.Sleep(ctx, time.Duration(w.delay.Load())) {
			return
		}
	}
}

func (w *Worker) play(clip speech.Clip) {
	w.box.Post(mailbox.Speaking(true))
	defer w.box.Post(mailbox.Speaking(false))

	if err := w.out.Play(clip.Samples, clip.SampleRate); err != nil {
		w.log.Error("playback failed", "err", err)
		w.box.Post(mailbox.Systemf(mailbox.LevelError, "playback error: %v", err))
		return
	}
	w.stats.AddSpoken()
}
