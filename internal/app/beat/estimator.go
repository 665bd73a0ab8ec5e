// Package beat provides the frequency-band beat level estimator that
// drives the visualizer.
package beat

import (
	"context"
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/echomood/player/internal/app/player"
)

// Estimation constants, calibrated against the visualizer. The sub-band
// near the spectrum start tracks percussive/bass energy rather than
// full-spectrum noise.
const (
	bandStart   = 2
	bandEnd     = 20
	calibration = 180.0
	retention   = 0.85

	defaultFrameInterval = 16 * time.Millisecond // ~60 fps frame clock
)

// TapSource provides the current frequency-analysis tap. The tap may be
// nil until the audio output attaches one; ticks are no-ops until then.
// Implemented by player.Controller.
type TapSource interface {
	GetTap() player.Tap
}

// Estimator continuously samples the output spectrum and maintains a
// smoothed scalar level in [0,1].
type Estimator struct {
	mu    sync.Mutex
	level float64
	buf   []byte

	source   TapSource
	interval time.Duration

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// New creates a new estimator sampling from source.
func New(source TapSource) *Estimator {
	return &Estimator{
		source:   source,
		interval: defaultFrameInterval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs the sampling loop until ctx is cancelled or Stop is called.
// A per-tick failure never stops subsequent ticks.
func (e *Estimator) Start(ctx context.Context) {
	go func() {
		defer close(e.done)

		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-e.stop:
				return
			case <-ticker.C:
				e.tick()
			}
		}
	}()
}

// Stop cancels the sampling loop and waits for it to exit.
func (e *Estimator) Stop() {
	e.stopOnce.Do(func() { close(e.stop) })
	<-e.done
}

// Level returns the current smoothed beat level in [0,1].
func (e *Estimator) Level() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.level
}

func (e *Estimator) tick() {
	defer func() {
		if r := recover(); r != nil {
			// Swallowed: the loop must survive any tap failure
			zlog.Debug().Msgf("beat: tick panic recovered: %v", r)
		}
	}()

	tap := e.source.GetTap()
	if tap == nil {
		return
	}

	bins := tap.BinCount()
	if bins <= bandStart {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.buf) != bins {
		e.buf = make([]byte, bins)
	}
	n := tap.FrequencyData(e.buf)
	if n <= bandStart {
		return
	}

	end := bandEnd
	if n < end {
		end = n
	}

	var sum float64
	for i := bandStart; i < end; i++ {
		sum += float64(e.buf[i])
	}
	avg := sum / float64(end-bandStart)

	level := avg / calibration
	if level > 1 {
		level = 1
	}

	e.level = e.level*retention + level*(1-retention)
}
