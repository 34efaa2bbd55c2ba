package speech

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/fjudin/chatvoice/internal/mailbox"
	"github.com/fjudin/chatvoice/internal/queue"
)

// DefaultPollInterval is how often the synthesis worker checks its queue.
const DefaultPollInterval = 200 * time.Millisecond

// Synthesizer is the single consumer of the announcement queue. It pops one
// announcement at a time, invokes the engine under an exclusive lock (the
// model is not reentrant), postprocesses the waveform, and pushes the clip
// onto the audio queue. Synthesis failures are reported and skipped; they
// never stop the worker.
type Synthesizer struct {
	in   *queue.Queue[Announcement]
	out  *queue.Queue[Clip]
	box  *mailbox.Mailbox
	poll time.Duration
	log  *log.Logger

	// modelMu serializes engine access. It is also taken when the voice is
	// hot-swapped from outside the worker so a swap can't tear a synthesis
	// call in progress.
	modelMu sync.Mutex
	engine  Engine
	voice   string
	accent  bool

	paramMu sync.Mutex
	volume  float64
	rate    float64
}

// NewSynthesizer creates the synthesis worker. volume is a fraction
// (1.0 = unchanged), rate the speech speed factor.
func NewSynthesizer(in *queue.Queue[Announcement], out *queue.Queue[Clip], engine Engine, voice string, accent bool, volume, rate float64, box *mailbox.Mailbox) *Synthesizer {
	return &Synthesizer{
		in:     in,
		out:    out,
		box:    box,
		poll:   DefaultPollInterval,
		log:    log.With("component", "synthesizer"),
		engine: engine,
		voice:  voice,
		accent: accent,
		volume: volume,
		rate:   rate,
	}
}

// SetVoice swaps the voice, waiting out any synthesis call in progress.
func (s *Synthesizer) SetVoice(voice string, accent bool) {
	s.modelMu.Lock()
	s.voice = voice
	s.accent = accent
	s.modelMu.Unlock()
}

// SetVolume updates the playback volume fraction for future clips.
func (s *Synthesizer) SetVolume(volume float64) {
	s.paramMu.Lock()
	s.volume = volume
	s.paramMu.Unlock()
}

// SetRate updates the speech rate factor for future clips.
func (s *Synthesizer) SetRate(rate float64) {
	s.paramMu.Lock()
	s.rate = rate
	s.paramMu.Unlock()
}

// Run loops until ctx is cancelled, finishing at most one in-flight item.
func (s *Synthesizer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		ann, ok := s.in.TryPop()
		if !ok {
			if !sleep(ctx, s.poll) {
				return
			}
			continue
		}

		s.synthesize(ctx, ann)
	}
}

func (s *Synthesizer) synthesize(ctx context.Context, ann Announcement) {
	s.modelMu.Lock()
	samples, sampleRate, err := s.engine.Synthesize(ctx, ann.SpeechText, s.voice, s.accent)
	s.modelMu.Unlock()

	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.log.Warn("synthesis failed", "author", ann.Author, "err", err)
		s.box.Post(mailbox.Systemf(mailbox.LevelError, "TTS error: %v", err))
		return
	}

	s.paramMu.Lock()
	volume, rate := s.volume, s.rate
	s.paramMu.Unlock()

	processed := Postprocess(samples, volume, rate)
	if len(processed) == 0 {
		return
	}

	s.out.Push(Clip{Samples: processed, SampleRate: sampleRate})
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
