package message

import "time"

// Platform identifies the chat service a message came from.
type Platform string

const (
	PlatformYouTube Platform = "youtube"
	PlatformTwitch  Platform = "twitch"
	PlatformKick    Platform = "kick"
)

// ChatMessage is a raw inbound chat message as delivered by a platform adapter.
// It is immutable after construction and consumed exactly once by the processor.
type ChatMessage struct {
	ID         string
	Platform   Platform
	Author     string
	Text       string
	Privileged bool // owner, moderator or subscriber/sponsor
	ReceivedAt time.Time
}

// Key returns the deduplication key. Message IDs are only unique within a
// platform, so the key includes it.
func (m ChatMessage) Key() string {
	return string(m.Platform) + ":" + m.ID
}
