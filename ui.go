package main

import (
	"github.com/charmbracelet/log"

	"github.com/fjudin/chatvoice/internal/mailbox"
	"github.com/fjudin/chatvoice/internal/transcript"
)

// consoleSink renders mailbox events to the terminal and mirrors chat
// traffic into the transcript when recording is on.
type consoleSink struct {
	log      *log.Logger
	recorder *transcript.Recorder
}

func newConsoleSink(recorder *transcript.Recorder) *consoleSink {
	return &consoleSink{
		log:      log.With("component", "ui"),
		recorder: recorder,
	}
}

func (c *consoleSink) Apply(e mailbox.Event) {
	switch e.Kind {
	case mailbox.KindChat:
		c.log.Info("chat", "platform", e.Platform, "author", e.Author, "text", e.Text)
		c.record(e, transcript.StatusSpoken)
	case mailbox.KindFiltered:
		c.log.Debug("filtered", "platform", e.Platform, "author", e.Author, "reason", e.Reason)
		c.record(e, e.Reason)
	case mailbox.KindState:
		if e.Connected {
			c.log.Info("connected", "platform", e.Platform)
		} else {
			c.log.Warn("disconnected", "platform", e.Platform)
		}
	case mailbox.KindSystem:
		switch e.Level {
		case mailbox.LevelError:
			c.log.Error(e.Text)
		case mailbox.LevelSuccess:
			c.log.Info(e.Text)
		default:
			c.log.Info(e.Text)
		}
	case mailbox.KindSpeaking:
		c.log.Debug("speaking", "on", e.Speaking)
	case mailbox.KindStats:
		c.log.Info("counters",
			"messages", e.Stats.Messages,
			"spoken", e.Stats.Spoken,
			"spam", e.Stats.Spam,
			"queued", e.Stats.Queued)
	}
}

func (c *consoleSink) record(e mailbox.Event, status string) {
	if c.recorder == nil {
		return
	}
	c.recorder.Record(transcript.Entry{
		Time:     e.Time,
		Platform: e.Platform,
		Author:   e.Author,
		Text:     e.Text,
		Status:   status,
	})
}
