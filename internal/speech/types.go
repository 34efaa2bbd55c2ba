// Package speech converts filter-surviving chat messages into playable audio
// clips. It holds the announcement and clip types exchanged between pipeline
// stages, the synthesis engine boundary, and the synthesis worker.
package speech

import "github.com/fjudin/chatvoice/internal/message"

// Announcement is a processed chat message ready for synthesis. It is created
// by the processor, consumed exactly once by the synthesis worker, and never
// mutated after creation.
type Announcement struct {
	ID       string
	Platform message.Platform
	Author   string
	// DisplayText is what the display shows, only lightly cleaned.
	DisplayText string
	// SpeechText is the transformed string handed to the engine: length
	// clamped, numbers spelled out, optional author/platform prefix.
	SpeechText string
}

// Clip is a normalized, volume- and rate-adjusted waveform ready for
// playback. Ownership transfers from the synthesis worker to the playback
// worker and the clip is discarded after it plays.
type Clip struct {
	Samples    []float64
	SampleRate int
}
