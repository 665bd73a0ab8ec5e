//go:build !cgo

package audio

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/echomood/player/internal/app/player"
)

// AudioAvailable indicates whether audio playback is supported in this build.
// Audio requires CGO for the native sound libraries.
const AudioAvailable = false

// Output is a silent output for builds without cgo. Sources load as
// empty and every play attempt is rejected, so the controller keeps its
// queue state without ever producing sound.
type Output struct {
	events chan player.OutputEvent
	tap    *spectrumTap
}

// New creates a silent output.
func New() *Output {
	return &Output{
		events: make(chan player.OutputEvent, 1),
		tap:    newSpectrumTap(),
	}
}

// Load is a no-op when cgo is disabled.
func (o *Output) Load(streamURL string) {}

// Play always rejects when cgo is disabled.
func (o *Output) Play(_ context.Context) error {
	return errors.WithStack(player.ErrPlaybackRejected)
}

// Pause is a no-op when cgo is disabled.
func (o *Output) Pause() {}

// Seek is a no-op when cgo is disabled.
func (o *Output) Seek(seconds float64) {}

// SetVolume is a no-op when cgo is disabled.
func (o *Output) SetVolume(level float64) {}

// AttachTap returns a tap that only ever reports silence.
func (o *Output) AttachTap() (player.Tap, error) {
	return o.tap, nil
}

// Events never delivers anything when cgo is disabled.
func (o *Output) Events() <-chan player.OutputEvent {
	return o.events
}

// Close releases the event channel.
func (o *Output) Close() error {
	close(o.events)
	return nil
}
