package mailbox

import (
	"fmt"
	"time"

	"github.com/fjudin/chatvoice/internal/message"
)

// Kind classifies a display event.
type Kind string

const (
	// KindChat is a message that passed all filters and will be spoken.
	KindChat Kind = "chat"
	// KindFiltered is a message rejected by a filter, shown greyed out.
	KindFiltered Kind = "filtered"
	// KindState is an adapter connection state change.
	KindState Kind = "state"
	// KindSystem is free-form status or error text.
	KindSystem Kind = "system"
	// KindSpeaking toggles the speaking indicator.
	KindSpeaking Kind = "speaking"
	// KindStats is a counters snapshot.
	KindStats Kind = "stats"
)

// Level grades system events for display styling.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Stats is a read-only snapshot of the pipeline counters.
type Stats struct {
	Messages int64
	Spoken   int64
	Spam     int64
	Queued   int
}

// Event is a single display update. Only the fields relevant to its Kind are
// set.
type Event struct {
	Kind      Kind
	Time      time.Time
	Platform  message.Platform
	Author    string
	Text      string
	Reason    string // filter reason, e.g. "spam", "stop-word", "toxicity"
	Level     Level
	Connected bool
	Speaking  bool
	Stats     Stats
}

// Chat builds an event for a message that will be announced.
func Chat(platform message.Platform, author, text string) Event {
	return Event{Kind: KindChat, Platform: platform, Author: author, Text: text}
}

// Filtered builds an event for a rejected message.
func Filtered(platform message.Platform, author, text, reason string) Event {
	return Event{Kind: KindFiltered, Platform: platform, Author: author, Text: text, Reason: reason}
}

// State builds a connection state change event for one adapter.
func State(platform message.Platform, connected bool) Event {
	return Event{Kind: KindState, Platform: platform, Connected: connected}
}

// Systemf builds a formatted system event.
func Systemf(level Level, format string, args ...any) Event {
	return Event{Kind: KindSystem, Level: level, Text: fmt.Sprintf(format, args...)}
}

// Speaking builds a speaking indicator event.
func Speaking(on bool) Event {
	return Event{Kind: KindSpeaking, Speaking: on}
}

// StatsEvent builds a counters snapshot event.
func StatsEvent(s Stats) Event {
	return Event{Kind: KindStats, Stats: s}
}
