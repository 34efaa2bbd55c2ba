package speech

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fjudin/chatvoice/internal/mailbox"
	"github.com/fjudin/chatvoice/internal/queue"
)

func newTestSynthesizer(engine Engine) (*Synthesizer, *queue.Queue[Announcement], *queue.Queue[Clip], *mailbox.Mailbox) {
	in := queue.New[Announcement](5)
	out := queue.New[Clip](5)
	box := mailbox.New()
	s := NewSynthesizer(in, out, engine, "en_0", false, 1.0, 1.0, box)
	s.poll = 5 * time.Millisecond
	return s, in, out, box
}

func TestSynthesizerConsumesInOrder(t *testing.T) {
	engine := &MockEngine{Waveform: []float64{0.5, -0.5}, Rate: 48000}
	s, in, out, _ := newTestSynthesizer(engine)

	in.Push(Announcement{SpeechText: "first"})
	in.Push(Announcement{SpeechText: "second"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return out.Len() == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, []string{"first", "second"}, engine.Calls())

	clip, ok := out.TryPop()
	require.True(t, ok)
	assert.Equal(t, 48000, clip.SampleRate)
	assert.InDelta(t, 1.0, clip.Samples[0], 1e-9) // normalized
}

func TestSynthesizerFailureIsNotFatal(t *testing.T) {
	engine := &MockEngine{Err: errors.New("model exploded")}
	s, in, out, box := newTestSynthesizer(engine)

	in.Push(Announcement{SpeechText: "bad"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	// The failure is reported and the item dropped.
	require.Eventually(t, func() bool { return box.Len() > 0 }, time.Second, 5*time.Millisecond)

	// The worker keeps going: a good item after the failure still flows.
	engine.mu.Lock()
	engine.Err = nil
	engine.Waveform = []float64{1}
	engine.Rate = 48000
	engine.mu.Unlock()

	in.Push(Announcement{SpeechText: "good"})
	require.Eventually(t, func() bool { return out.Len() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done

	events := box.Drain()
	require.NotEmpty(t, events)
	assert.Equal(t, mailbox.KindSystem, events[0].Kind)
	assert.Equal(t, mailbox.LevelError, events[0].Level)
	assert.Contains(t, events[0].Text, "model exploded")
}

func TestSynthesizerAppliesVolumeAndRate(t *testing.T) {
	wave := make([]float64, 100)
	for i := range wave {
		wave[i] = 2.0
	}
	engine := &MockEngine{Waveform: wave, Rate: 48000}
	s, in, out, _ := newTestSynthesizer(engine)
	s.SetVolume(0.5)
	s.SetRate(2.0)

	in.Push(Announcement{SpeechText: "scaled"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return out.Len() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	clip, _ := out.TryPop()
	assert.Equal(t, 50, len(clip.Samples))
	assert.InDelta(t, 0.5, clip.Samples[10], 1e-9)
}

func TestSynthesizerStopsWithinPollInterval(t *testing.T) {
	engine := &MockEngine{Waveform: []float64{1}, Rate: 48000}
	s, _, _, _ := newTestSynthesizer(engine)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancellation")
	}
}
