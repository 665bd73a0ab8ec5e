// Package player provides playback control with integrated queue management.
package player

import "github.com/echomood/player/internal/domain/track"

// Status represents the playback status.
type Status int

const (
	StatusIdle    Status = iota // No track selected
	StatusPlaying               // Track is playing
	StatusPaused                // Track loaded but not playing
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	default:
		return "unknown"
	}
}

// Snapshot is a point-in-time copy of the shared playback state.
type Snapshot struct {
	Status   Status
	Index    int     // -1 when no track is selected
	Progress float64 // Seconds elapsed within the current track
	Duration float64 // Seconds, authoritative once the output reports metadata
	Volume   float64 // 0.0 - 1.0
	QueueLen int
	Track    *track.Track // Current track, nil when idle
}
