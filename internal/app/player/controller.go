package player

import (
	"context"
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/echomood/player/internal/domain/track"
)

// BadList is the registry of tracks known to fail playback.
// Implemented by badlist.Registry.
type BadList interface {
	MarkBad(trackID string)
	IsBad(trackID string) bool
}

// Config holds controller configuration.
type Config struct {
	// StreamURL builds the stream URL for a track id.
	StreamURL func(trackID string) string
	// Volume is the initial volume level (0.0 - 1.0).
	Volume float64
	// ReloadDelay is how long after an unplayable-track error the Recover
	// hook fires. The coarse fail-safe for systemic catalog failures.
	ReloadDelay time.Duration
	// Recover is invoked once ReloadDelay elapses after a playback error.
	// Optional; typically re-fetches the queue and re-creates the engine.
	Recover func()
}

// Controller is the playback queue state machine. It owns the queue, the
// current index and the shared playback state, and is the only writer of
// all three.
type Controller struct {
	mu sync.Mutex

	out Output
	bad BadList
	cfg Config

	queue        []track.Track
	currentIndex int
	status       Status
	progress     float64
	duration     float64
	volume       float64

	tap         Tap
	tapAttached bool

	reloadTimer *time.Timer

	eventCh chan Event

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new controller and starts consuming output events.
func New(out Output, bad BadList, cfg Config) *Controller {
	if cfg.StreamURL == nil {
		panic("player: Config.StreamURL is required")
	}
	if cfg.ReloadDelay <= 0 {
		cfg.ReloadDelay = 10 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		out:          out,
		bad:          bad,
		cfg:          cfg,
		queue:        make([]track.Track, 0),
		currentIndex: -1,
		status:       StatusIdle,
		volume:       clamp01(cfg.Volume),
		eventCh:      make(chan Event, 16),
		ctx:          ctx,
		cancel:       cancel,
	}
	out.SetVolume(c.volume)

	go c.pump()
	return c
}

// Events returns the event channel.
func (c *Controller) Events() <-chan Event {
	return c.eventCh
}

// PlayTrack selects a track and starts playback. A non-empty newQueue
// atomically replaces the queue first; the track is located by id in the
// now-current queue, falling back to index 0 when absent. An empty
// newQueue means "play within the existing queue".
func (c *Controller) PlayTrack(trk track.Track, newQueue []track.Track) {
	c.mu.Lock()
	defer c.mu.Unlock()

	replaced := false
	if len(newQueue) > 0 {
		c.queue = make([]track.Track, len(newQueue))
		copy(c.queue, newQueue)
		replaced = true
	}
	if len(c.queue) == 0 {
		return
	}

	_, idx, found := lo.FindIndexOf(c.queue, func(t track.Track) bool {
		return t.ID == trk.ID
	})
	if !found {
		idx = 0
	}

	wasPaused := c.status == StatusPaused
	c.status = StatusPlaying

	if replaced || idx != c.currentIndex {
		c.setIndexLocked(idx)
		return
	}

	// Same track, same queue: never reload; just resume if needed.
	if wasPaused {
		go c.playAsync()
	}
	c.sendEventLocked(Event{Type: EventStateChanged, Track: c.currentTrackLocked(), Status: c.status})
}

// TogglePlay pauses when playing and resumes when paused. No-op when no
// track is selected. Resume failures (autoplay policy) are logged and
// leave the status paused.
func (c *Controller) TogglePlay(ctx context.Context) {
	c.mu.Lock()

	if c.currentIndex < 0 {
		c.mu.Unlock()
		return
	}

	if c.status == StatusPlaying {
		c.out.Pause()
		c.status = StatusPaused
		c.sendEventLocked(Event{Type: EventStateChanged, Track: c.currentTrackLocked(), Status: c.status})
		c.mu.Unlock()
		return
	}

	trk := c.currentTrackLocked()
	c.mu.Unlock()

	// Play suspends pending platform confirmation; hold no lock across it.
	if err := c.out.Play(ctx); err != nil {
		zlog.Warn().Msgf("player: resume rejected: %v", err)
		return
	}

	c.mu.Lock()
	c.status = StatusPlaying
	c.sendEventLocked(Event{Type: EventStateChanged, Track: trk, Status: c.status})
	c.mu.Unlock()
}

// Next advances to the next playable track, wrapping around and skipping
// entries in the bad-track registry.
func (c *Controller) Next() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.advanceLocked(+1, true)
}

// Prev moves to the previous playable track, wrapping around and skipping
// entries in the bad-track registry.
func (c *Controller) Prev() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.advanceLocked(-1, true)
}

// Seek sets the playback position. Progress updates immediately without
// waiting for the output to confirm.
func (c *Controller) Seek(seconds float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.currentIndex < 0 {
		return
	}
	c.out.Seek(seconds)
	c.progress = seconds
}

// SkipBy seeks relative to the current position, clamped to the track.
func (c *Controller) SkipBy(deltaSeconds float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.currentIndex < 0 {
		return
	}

	limit := c.duration
	if trk := c.currentTrackLocked(); trk != nil && trk.Duration > limit {
		limit = trk.Duration
	}

	pos := c.progress + deltaSeconds
	if pos < 0 {
		pos = 0
	}
	if pos > limit {
		pos = limit
	}
	c.out.Seek(pos)
	c.progress = pos
}

// SetVolume sets the output volume, clamped to [0,1].
func (c *Controller) SetVolume(level float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.volume = clamp01(level)
	c.out.SetVolume(c.volume)
}

// GetSnapshot returns a copy of the current playback state.
func (c *Controller) GetSnapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		Status:   c.status,
		Index:    c.currentIndex,
		Progress: c.progress,
		Duration: c.duration,
		Volume:   c.volume,
		QueueLen: len(c.queue),
		Track:    c.currentTrackLocked(),
	}
}

// GetCurrentTrack returns the currently selected track.
func (c *Controller) GetCurrentTrack() (track.Track, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if trk := c.currentTrackLocked(); trk != nil {
		return *trk, true
	}
	return track.Track{}, false
}

// GetQueue returns a copy of the queue.
func (c *Controller) GetQueue() []track.Track {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]track.Track, len(c.queue))
	copy(out, c.queue)
	return out
}

// GetTap returns the frequency-analysis tap, nil until the first track
// load attaches it.
func (c *Controller) GetTap() Tap {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tap
}

// Close stops the event pump, cancels any pending recover and releases
// the audio output.
func (c *Controller) Close() {
	c.cancel()

	// Events are only sent while holding the lock, so closing under it
	// cannot race a send.
	c.mu.Lock()
	if c.reloadTimer != nil {
		c.reloadTimer.Stop()
		c.reloadTimer = nil
	}
	close(c.eventCh)
	c.mu.Unlock()

	if err := c.out.Close(); err != nil {
		zlog.Warn().Msgf("player: failed to close output: %v", err)
	}
}

// pump consumes output events for the lifetime of the controller.
func (c *Controller) pump() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case ev, ok := <-c.out.Events():
			if !ok {
				return
			}
			switch ev.Type {
			case OutputPosition:
				c.mu.Lock()
				c.progress = ev.Seconds
				c.mu.Unlock()
			case OutputMetadata:
				c.mu.Lock()
				c.duration = ev.Seconds
				c.mu.Unlock()
			case OutputEnded:
				// Natural completion uses the same skip-bad traversal
				c.Next()
			case OutputError:
				c.handleOutputError(ev.Err)
			}
		}
	}
}

// handleOutputError reacts to an unplayable current track: mark it bad,
// try to advance, force playback off, and arm the coarse recover timer.
func (c *Controller) handleOutputError(cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	trk := c.currentTrackLocked()
	if trk != nil {
		zlog.Warn().Msgf("player: track %s unplayable: %v", trk.ID, cause)
		c.bad.MarkBad(trk.ID)
	} else {
		zlog.Warn().Msgf("player: output error with no current track: %v", cause)
	}

	// Advance without autoplay: playback stays off after an error even
	// when the skip lands on a playable track.
	c.advanceLocked(+1, false)
	if c.status == StatusPlaying {
		c.status = StatusPaused
	}

	c.scheduleRecoverLocked()
}

// advanceLocked steps the index by dir with wraparound, skipping tracks in
// the bad-track registry, at most len(queue) attempts. When every track is
// bad it leaves the index unchanged and turns playback off.
func (c *Controller) advanceLocked(dir int, autoplay bool) {
	n := len(c.queue)
	if n == 0 {
		return
	}

	idx := c.currentIndex
	for attempts := 0; attempts < n; attempts++ {
		idx = ((idx+dir)%n + n) % n
		if c.bad.IsBad(c.queue[idx].ID) {
			continue
		}
		if autoplay {
			c.status = StatusPlaying
		} else if c.status == StatusPlaying {
			c.status = StatusPaused
		}
		c.setIndexLocked(idx)
		return
	}

	// Every candidate is marked bad: terminal no-playable-track condition
	if c.currentIndex >= 0 {
		c.status = StatusPaused
	} else {
		c.status = StatusIdle
	}
	c.sendEventLocked(Event{Type: EventQueueExhausted, Status: c.status})
}

// setIndexLocked commits a track change and triggers its load-and-maybe-
// play side effect. The commit happens before the side effect so a rapid
// second change always observes the latest state.
func (c *Controller) setIndexLocked(idx int) {
	c.currentIndex = idx
	c.progress = 0
	c.duration = 0

	trk := c.queue[idx]
	c.out.Load(c.cfg.StreamURL(trk.ID))

	if !c.tapAttached {
		tap, err := c.out.AttachTap()
		if err != nil {
			// Best effort; playback continues without a visual signal
			zlog.Warn().Msgf("player: failed to attach analysis tap: %v", err)
		} else {
			c.tap = tap
			c.tapAttached = true
		}
	}

	if c.status == StatusPlaying {
		go c.playAsync()
	}

	c.sendEventLocked(Event{Type: EventTrackChanged, Track: &trk, Status: c.status})
}

// playAsync invokes Play off the control path. Rejection is logged and
// never flips the playing flag; only the error path does that.
func (c *Controller) playAsync() {
	if err := c.out.Play(c.ctx); err != nil {
		zlog.Warn().Msgf("player: autoplay prevented or failed: %v", err)
	}
}

// scheduleRecoverLocked arms the recover timer. A second error while one
// is pending does not stack another.
func (c *Controller) scheduleRecoverLocked() {
	if c.cfg.Recover == nil || c.reloadTimer != nil {
		return
	}

	zlog.Info().Msgf("player: scheduling recover in %s", c.cfg.ReloadDelay)
	c.reloadTimer = time.AfterFunc(c.cfg.ReloadDelay, func() {
		c.mu.Lock()
		c.reloadTimer = nil
		c.mu.Unlock()
		c.cfg.Recover()
	})
}

func (c *Controller) currentTrackLocked() *track.Track {
	if c.currentIndex < 0 || c.currentIndex >= len(c.queue) {
		return nil
	}
	trk := c.queue[c.currentIndex]
	return &trk
}

// sendEventLocked sends an event without blocking.
func (c *Controller) sendEventLocked(e Event) {
	select {
	case <-c.ctx.Done():
		return
	default:
	}
	select {
	case c.eventCh <- e:
	case <-c.ctx.Done():
	default:
		// Channel full, drop event
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
