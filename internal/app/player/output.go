package player

import (
	"context"

	"github.com/cockroachdb/errors"
)

// Errors
var (
	// ErrPlaybackRejected means the output refused to start playing
	// (platform policy, missing audio device). Not fatal.
	ErrPlaybackRejected = errors.New("playback rejected by output")
)

// OutputEventType represents an audio output event type.
type OutputEventType int

const (
	OutputPosition OutputEventType = iota // Playback position advanced
	OutputMetadata                        // Duration became known
	OutputEnded                           // Source exhausted
	OutputError                           // Decode or network failure; track is unplayable
)

// OutputEvent represents an event from the audio output.
type OutputEvent struct {
	Type    OutputEventType
	Seconds float64 // Position for OutputPosition, duration for OutputMetadata
	Err     error   // Set for OutputError
}

// Tap exposes the live frequency-domain spectrum of the audio output.
type Tap interface {
	// BinCount returns the number of frequency bins.
	BinCount() int
	// FrequencyData fills buf with per-bin byte magnitudes (0-255) and
	// returns the number of bins written.
	FrequencyData(buf []byte) int
}

// Output is the audio decode/output unit. It owns exactly one playable
// source at a time.
type Output interface {
	// Load replaces the current source without starting playback. Any
	// in-flight load of a previous source is abandoned.
	Load(streamURL string)
	// Play starts or resumes playback. Returns ErrPlaybackRejected when
	// the platform refuses; callers must not assume success.
	Play(ctx context.Context) error
	Pause()
	// Seek sets the position directly; the caller clamps.
	Seek(seconds float64)
	SetVolume(level float64)
	// AttachTap attaches the frequency-analysis tap. Attaching must not
	// mute the output; repeated calls return the same tap.
	AttachTap() (Tap, error)
	// Events delivers position, metadata, end-of-track and error events.
	Events() <-chan OutputEvent
	Close() error
}
