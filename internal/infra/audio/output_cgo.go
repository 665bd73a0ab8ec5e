//go:build (linux && cgo) || windows || darwin

package audio

import (
	"bytes"
	"context"
	"io"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	zlog "github.com/rs/zerolog/log"

	"github.com/echomood/player/internal/app/player"
)

// AudioAvailable indicates whether audio playback is supported in this build.
const AudioAvailable = true

const (
	outputSampleRate = beep.SampleRate(44100)
	positionInterval = 500 * time.Millisecond
	eventBuffer      = 32

	// Volume mapping. The exponent feeds effects.Volume with Base 2, so
	// minVolumeExp is the attenuation applied at the bottom of the
	// perceptual curve before the output goes fully silent.
	minVolumeExp = -8.0
	volumeCurve  = 0.5
)

// Output plays MP3 streams fetched over HTTP through the platform
// speaker. It implements player.Output and owns at most one decoded
// source at a time.
type Output struct {
	mu sync.Mutex

	client *http.Client
	events chan player.OutputEvent

	ctx    context.Context
	cancel context.CancelFunc

	tap *spectrumTap

	// generation invalidates in-flight loads: each Load bumps it, and a
	// fetch goroutine only commits its result while it still matches.
	generation uint64

	speakerReady bool

	streamer  beep.StreamSeekCloser
	format    beep.Format
	resampled beep.Streamer
	volume    *effects.Volume
	ctrl      *beep.Ctrl

	level    float64
	wantPlay bool
	loaded   bool
	closed   bool
}

// New creates an audio output. No speaker resources are acquired until
// the first source finishes loading.
func New() *Output {
	ctx, cancel := context.WithCancel(context.Background())
	o := &Output{
		client: &http.Client{
			Timeout: 2 * time.Minute,
		},
		events: make(chan player.OutputEvent, eventBuffer),
		ctx:    ctx,
		cancel: cancel,
		level:  1.0,
	}
	go o.positionLoop()
	return o
}

// Load replaces the current source without starting playback. The fetch
// and decode run in the background; any previous in-flight load is
// abandoned.
func (o *Output) Load(streamURL string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.generation++
	gen := o.generation
	o.stopLocked()
	go o.fetch(gen, streamURL)
}

// Play starts or resumes playback. When the source is still loading the
// request is remembered and playback starts as soon as decoding
// finishes.
func (o *Output) Play(_ context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return errors.WithStack(player.ErrPlaybackRejected)
	}
	o.wantPlay = true
	if o.loaded {
		speaker.Lock()
		o.ctrl.Paused = false
		speaker.Unlock()
	}
	return nil
}

// Pause suspends playback. Safe to call at any time.
func (o *Output) Pause() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.wantPlay = false
	if o.loaded {
		speaker.Lock()
		o.ctrl.Paused = true
		speaker.Unlock()
	}
}

// Seek sets the playback position in seconds.
func (o *Output) Seek(seconds float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.loaded {
		return
	}
	speaker.Lock()
	err := o.streamer.Seek(o.format.SampleRate.N(secondsToDuration(seconds)))
	speaker.Unlock()
	if err != nil {
		zlog.Warn().Err(err).Float64("seconds", seconds).Msg("audio: seek failed")
	}
}

// SetVolume sets the output level in [0,1] on a perceptual curve.
func (o *Output) SetVolume(level float64) {
	if level < 0 {
		level = 0
	} else if level > 1 {
		level = 1
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.level = level
	if o.volume == nil {
		return
	}
	speaker.Lock()
	o.volume.Volume = levelToExponent(level)
	o.volume.Silent = level == 0
	speaker.Unlock()
}

// AttachTap attaches the frequency-analysis tap. The tap survives track
// changes; repeated calls return the same tap.
func (o *Output) AttachTap() (player.Tap, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.tap == nil {
		o.tap = newSpectrumTap()
		if o.loaded {
			// Splice the capture into the running chain.
			speaker.Lock()
			o.volume.Streamer = o.tap.capture(o.resampled)
			speaker.Unlock()
		}
	}
	return o.tap, nil
}

// Events delivers position, metadata, end-of-track and error events.
func (o *Output) Events() <-chan player.OutputEvent {
	return o.events
}

// Close releases the source and stops all background work.
func (o *Output) Close() error {
	o.cancel()
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil
	}
	o.closed = true
	o.generation++
	o.stopLocked()
	close(o.events)
	return nil
}

// fetch downloads and decodes one source, then commits it if its
// generation is still current.
func (o *Output) fetch(gen uint64, streamURL string) {
	data, err := o.download(streamURL)
	if err != nil {
		o.emitError(gen, err)
		return
	}

	streamer, format, err := mp3.Decode(nopCloser{bytes.NewReader(data)})
	if err != nil {
		o.emitError(gen, errors.Wrap(err, "failed to decode stream"))
		return
	}

	o.mu.Lock()
	if o.closed || gen != o.generation {
		o.mu.Unlock()
		streamer.Close()
		return
	}

	if !o.speakerReady {
		if err := speaker.Init(outputSampleRate, outputSampleRate.N(time.Second/10)); err != nil {
			o.mu.Unlock()
			streamer.Close()
			o.emitError(gen, errors.Wrap(err, "failed to initialize speaker"))
			return
		}
		o.speakerReady = true
	}

	o.streamer = streamer
	o.format = format
	o.resampled = beep.Resample(4, format.SampleRate, outputSampleRate, streamer)

	chain := o.resampled
	if o.tap != nil {
		o.tap.reset()
		chain = o.tap.capture(chain)
	}

	o.volume = &effects.Volume{
		Streamer: chain,
		Base:     2,
		Volume:   levelToExponent(o.level),
		Silent:   o.level == 0,
	}
	o.ctrl = &beep.Ctrl{Streamer: o.volume, Paused: !o.wantPlay}
	o.loaded = true

	speaker.Play(beep.Seq(o.ctrl, beep.Callback(func() {
		// The callback runs on the speaker goroutine with its lock
		// held; taking o.mu there would deadlock against stopLocked.
		go o.onEnded(gen)
	})))

	duration := format.SampleRate.D(streamer.Len()).Seconds()
	o.sendLocked(player.OutputEvent{Type: player.OutputMetadata, Seconds: duration})
	o.mu.Unlock()
}

func (o *Output) download(streamURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(o.ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch stream")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("unexpected stream status: %s", resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read stream body")
	}
	return data, nil
}

func (o *Output) onEnded(gen uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed || gen != o.generation || !o.loaded {
		return
	}
	o.sendLocked(player.OutputEvent{Type: player.OutputEnded})
}

func (o *Output) emitError(gen uint64, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed || gen != o.generation {
		return
	}
	o.sendLocked(player.OutputEvent{Type: player.OutputError, Err: err})
}

func (o *Output) positionLoop() {
	ticker := time.NewTicker(positionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-o.ctx.Done():
			return
		case <-ticker.C:
		}
		o.mu.Lock()
		if !o.closed && o.loaded && o.wantPlay {
			speaker.Lock()
			pos := o.streamer.Position()
			speaker.Unlock()
			seconds := o.format.SampleRate.D(pos).Seconds()
			o.sendLocked(player.OutputEvent{Type: player.OutputPosition, Seconds: seconds})
		}
		o.mu.Unlock()
	}
}

// sendLocked drops the event if the consumer is not keeping up.
func (o *Output) sendLocked(ev player.OutputEvent) {
	select {
	case o.events <- ev:
	default:
		zlog.Debug().Int("type", int(ev.Type)).Msg("audio: event channel full, dropping")
	}
}

// stopLocked tears down the current source. Must be called with o.mu held.
func (o *Output) stopLocked() {
	if o.speakerReady {
		speaker.Clear()
	}
	if o.streamer != nil {
		o.streamer.Close()
		o.streamer = nil
	}
	o.ctrl = nil
	o.volume = nil
	o.resampled = nil
	o.loaded = false
}

func levelToExponent(level float64) float64 {
	if level <= 0 {
		return minVolumeExp
	}
	if level >= 1 {
		return 0
	}
	return (1 - math.Pow(level, volumeCurve)) * minVolumeExp
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

// nopCloser adapts a bytes.Reader to the io.ReadCloser the decoder wants.
type nopCloser struct {
	*bytes.Reader
}

func (nopCloser) Close() error { return nil }
