// Package playback drains the audio queue: one clip at a time, paced by a
// configurable inter-message delay, gated by a pause flag.
package playback

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/fjudin/chatvoice/internal/speech"
)

// Output is the audio device boundary. Play blocks until the clip has
// finished; Stop interrupts the current clip from any goroutine.
type Output interface {
	Play(samples []float64, sampleRate int) error
	Stop()
}

// OtoOutput plays clips through the system audio device. The oto context is
// created once at a fixed sample rate; clips at a different rate are
// resampled before conversion to 16-bit PCM.
type OtoOutput struct {
	ctx        *oto.Context
	sampleRate int

	mu      sync.Mutex
	current *oto.Player
	stopped bool
}

// NewOtoOutput initializes the audio device, blocking until it is ready.
func NewOtoOutput(sampleRate int) (*OtoOutput, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   50 * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("create audio context: %w", err)
	}
	<-ready

	return &OtoOutput{ctx: ctx, sampleRate: sampleRate}, nil
}

// Play converts the waveform to PCM and blocks until playback drains.
func (o *OtoOutput) Play(samples []float64, sampleRate int) error {
	if len(samples) == 0 {
		return nil
	}
	if sampleRate != o.sampleRate && sampleRate > 0 {
		samples = speech.Resample(samples, float64(sampleRate)/float64(o.sampleRate))
	}

	player := o.ctx.NewPlayer(bytes.NewReader(toPCM16(samples)))

	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		player.Close()
		return nil
	}
	o.current = player
	o.mu.Unlock()

	player.Play()
	for player.IsPlaying() {
		time.Sleep(10 * time.Millisecond)
	}

	o.mu.Lock()
	o.current = nil
	o.mu.Unlock()

	if err := player.Close(); err != nil {
		return fmt.Errorf("close player: %w", err)
	}
	return nil
}

// Stop interrupts the clip currently playing, if any. Playback started after
// Stop returns proceeds normally.
func (o *OtoOutput) Stop() {
	o.mu.Lock()
	player := o.current
	o.mu.Unlock()

	if player != nil {
		player.Pause()
	}
}

// Close releases the device for good; subsequent Play calls are no-ops.
func (o *OtoOutput) Close() {
	o.mu.Lock()
	o.stopped = true
	player := o.current
	o.mu.Unlock()

	if player != nil {
		player.Pause()
	}
}

// toPCM16 converts [-1,1] float samples to little-endian signed 16-bit PCM,
// clipping out-of-range values.
func toPCM16(samples []float64) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		v := int16(s * 32767)
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
	return out
}
