package player

import "github.com/echomood/player/internal/domain/track"

// EventType represents a playback event type.
type EventType int

const (
	EventTrackChanged   EventType = iota // Current track changed
	EventStateChanged                    // Playback status changed (play/pause)
	EventQueueExhausted                  // Every track in the queue is marked bad
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventTrackChanged:
		return "track_changed"
	case EventStateChanged:
		return "state_changed"
	case EventQueueExhausted:
		return "queue_exhausted"
	default:
		return "unknown"
	}
}

// Event represents a playback event.
type Event struct {
	Type   EventType
	Track  *track.Track // Current track (nil for some events)
	Status Status       // Current playback status
}
