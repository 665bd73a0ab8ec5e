package player

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echomood/player/internal/domain/track"
)

// fakeOutput is a scripted audio output for controller tests.
type fakeOutput struct {
	mu         sync.Mutex
	loads      []string
	playCalls  int
	pauseCalls int
	seeks      []float64
	volume     float64
	playErr    error
	tapErr     error
	events     chan OutputEvent
	closed     bool
}

func newFakeOutput() *fakeOutput {
	return &fakeOutput{events: make(chan OutputEvent, 16)}
}

func (f *fakeOutput) Load(streamURL string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads = append(f.loads, streamURL)
}

func (f *fakeOutput) Play(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playCalls++
	return f.playErr
}

func (f *fakeOutput) Pause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pauseCalls++
}

func (f *fakeOutput) Seek(seconds float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seeks = append(f.seeks, seconds)
}

func (f *fakeOutput) SetVolume(level float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volume = level
}

func (f *fakeOutput) AttachTap() (Tap, error) {
	if f.tapErr != nil {
		return nil, f.tapErr
	}
	return fakeTap{}, nil
}

func (f *fakeOutput) Events() <-chan OutputEvent { return f.events }

func (f *fakeOutput) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeOutput) loadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.loads)
}

func (f *fakeOutput) lastLoad() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.loads) == 0 {
		return ""
	}
	return f.loads[len(f.loads)-1]
}

func (f *fakeOutput) plays() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.playCalls
}

type fakeTap struct{}

func (fakeTap) BinCount() int                { return 128 }
func (fakeTap) FrequencyData(buf []byte) int { return len(buf) }

// fakeBadList is an in-memory BadList.
type fakeBadList struct {
	mu  sync.Mutex
	ids map[string]bool
}

func newFakeBadList(ids ...string) *fakeBadList {
	b := &fakeBadList{ids: make(map[string]bool)}
	for _, id := range ids {
		b.ids[id] = true
	}
	return b
}

func (b *fakeBadList) MarkBad(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ids[id] = true
}

func (b *fakeBadList) IsBad(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ids[id]
}

func testQueue() []track.Track {
	return []track.Track{
		{ID: "A", Title: "Alpha"},
		{ID: "B", Title: "Beta"},
		{ID: "C", Title: "Gamma"},
	}
}

func testStreamURL(id string) string {
	return "https://catalog.test/v1/tracks/" + id + "/stream?app_name=EchoMood"
}

func newTestController(t *testing.T, out *fakeOutput, bad BadList, cfg Config) *Controller {
	t.Helper()
	if cfg.StreamURL == nil {
		cfg.StreamURL = testStreamURL
	}
	if bad == nil {
		bad = newFakeBadList()
	}
	c := New(out, bad, cfg)
	t.Cleanup(c.Close)
	return c
}

func TestController_PlayTrack_SelectsRequestedTrack(t *testing.T) {
	out := newFakeOutput()
	c := newTestController(t, out, nil, Config{Volume: 0.8})

	q := testQueue()
	c.PlayTrack(q[1], q)

	snap := c.GetSnapshot()
	assert.Equal(t, 1, snap.Index)
	assert.Equal(t, StatusPlaying, snap.Status)
	assert.Equal(t, 3, snap.QueueLen)
	require.NotNil(t, snap.Track)
	assert.Equal(t, "B", snap.Track.ID)

	assert.Equal(t, testStreamURL("B"), out.lastLoad())
	require.Eventually(t, func() bool { return out.plays() == 1 },
		time.Second, 5*time.Millisecond)
}

func TestController_PlayTrack_FallsBackToIndexZero(t *testing.T) {
	out := newFakeOutput()
	c := newTestController(t, out, nil, Config{})

	c.PlayTrack(track.Track{ID: "missing"}, testQueue())

	snap := c.GetSnapshot()
	assert.Equal(t, 0, snap.Index)
	assert.Equal(t, StatusPlaying, snap.Status)
	assert.Equal(t, testStreamURL("A"), out.lastLoad())
}

func TestController_PlayTrack_EmptyReplacementUsesExistingQueue(t *testing.T) {
	out := newFakeOutput()
	c := newTestController(t, out, nil, Config{})

	q := testQueue()
	c.PlayTrack(q[0], q)
	c.PlayTrack(q[2], nil)

	snap := c.GetSnapshot()
	assert.Equal(t, 2, snap.Index)
	assert.Equal(t, testStreamURL("C"), out.lastLoad())
}

func TestController_PlayTrack_EmptyQueueIsNoop(t *testing.T) {
	out := newFakeOutput()
	c := newTestController(t, out, nil, Config{})

	c.PlayTrack(track.Track{ID: "A"}, nil)

	snap := c.GetSnapshot()
	assert.Equal(t, -1, snap.Index)
	assert.Equal(t, StatusIdle, snap.Status)
	assert.Equal(t, 0, out.loadCount())
}

func TestController_PlayTrack_UnchangedIndexDoesNotReload(t *testing.T) {
	out := newFakeOutput()
	c := newTestController(t, out, nil, Config{})

	q := testQueue()
	c.PlayTrack(q[1], q)
	require.Equal(t, 1, out.loadCount())

	c.PlayTrack(q[1], nil)
	assert.Equal(t, 1, out.loadCount())
	assert.Equal(t, 1, c.GetSnapshot().Index)
}

func TestController_Next_Wraparound(t *testing.T) {
	out := newFakeOutput()
	c := newTestController(t, out, nil, Config{})

	q := testQueue()
	c.PlayTrack(q[2], q)
	c.Next()

	assert.Equal(t, 0, c.GetSnapshot().Index)
	assert.Equal(t, testStreamURL("A"), out.lastLoad())
}

func TestController_Prev_Wraparound(t *testing.T) {
	out := newFakeOutput()
	c := newTestController(t, out, nil, Config{})

	q := testQueue()
	c.PlayTrack(q[0], q)
	c.Prev()

	assert.Equal(t, 2, c.GetSnapshot().Index)
}

func TestController_Next_SkipsBadTracks(t *testing.T) {
	out := newFakeOutput()
	bad := newFakeBadList("B")
	c := newTestController(t, out, bad, Config{})

	q := testQueue()
	c.PlayTrack(q[0], q)
	c.Next()

	snap := c.GetSnapshot()
	assert.Equal(t, 2, snap.Index, "B is bad, next from A lands on C")
	assert.Equal(t, StatusPlaying, snap.Status)
}

func TestController_Next_AllBadStopsPlayback(t *testing.T) {
	out := newFakeOutput()
	bad := newFakeBadList("A", "B", "C")
	c := newTestController(t, out, bad, Config{})

	// A is selectable via PlayTrack (explicit request ignores the registry)
	q := testQueue()
	c.PlayTrack(q[0], q)
	loadsBefore := out.loadCount()

	c.Next()

	snap := c.GetSnapshot()
	assert.Equal(t, 0, snap.Index, "index unchanged when every track is bad")
	assert.NotEqual(t, StatusPlaying, snap.Status)
	assert.Equal(t, loadsBefore, out.loadCount(), "no load attempted")
}

func TestController_NextPrev_EmptyQueueIsNoop(t *testing.T) {
	out := newFakeOutput()
	c := newTestController(t, out, nil, Config{})

	c.Next()
	c.Prev()

	snap := c.GetSnapshot()
	assert.Equal(t, -1, snap.Index)
	assert.Equal(t, StatusIdle, snap.Status)
}

func TestController_ErrorRecovery(t *testing.T) {
	out := newFakeOutput()
	bad := newFakeBadList()
	recovered := make(chan struct{}, 2)
	c := newTestController(t, out, bad, Config{
		ReloadDelay: 20 * time.Millisecond,
		Recover:     func() { recovered <- struct{}{} },
	})

	q := testQueue()
	c.PlayTrack(q[1], q)

	out.events <- OutputEvent{Type: OutputError, Err: assert.AnError}

	require.Eventually(t, func() bool { return bad.IsBad("B") },
		time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		snap := c.GetSnapshot()
		return snap.Index == 2 && snap.Status != StatusPlaying
	}, time.Second, 5*time.Millisecond, "skips to C with playback forced off")

	assert.Equal(t, testStreamURL("C"), out.lastLoad(), "next track loads without autoplay")

	select {
	case <-recovered:
	case <-time.After(time.Second):
		t.Fatal("recover hook did not fire")
	}
}

func TestController_ErrorDoesNotStackRecovers(t *testing.T) {
	out := newFakeOutput()
	var mu sync.Mutex
	fires := 0
	c := newTestController(t, out, newFakeBadList(), Config{
		ReloadDelay: 50 * time.Millisecond,
		Recover: func() {
			mu.Lock()
			fires++
			mu.Unlock()
		},
	})

	q := testQueue()
	c.PlayTrack(q[0], q)

	out.events <- OutputEvent{Type: OutputError, Err: assert.AnError}
	out.events <- OutputEvent{Type: OutputError, Err: assert.AnError}

	time.Sleep(150 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, fires, "one pending recover at a time")
}

func TestController_EndedAdvances(t *testing.T) {
	out := newFakeOutput()
	c := newTestController(t, out, nil, Config{})

	q := testQueue()
	c.PlayTrack(q[0], q)

	out.events <- OutputEvent{Type: OutputEnded}

	require.Eventually(t, func() bool { return c.GetSnapshot().Index == 1 },
		time.Second, 5*time.Millisecond)
	assert.Equal(t, StatusPlaying, c.GetSnapshot().Status)
}

func TestController_PositionAndMetadataEvents(t *testing.T) {
	out := newFakeOutput()
	c := newTestController(t, out, nil, Config{})

	q := testQueue()
	c.PlayTrack(q[0], q)

	out.events <- OutputEvent{Type: OutputMetadata, Seconds: 180}
	out.events <- OutputEvent{Type: OutputPosition, Seconds: 42.5}

	require.Eventually(t, func() bool {
		snap := c.GetSnapshot()
		return snap.Duration == 180 && snap.Progress == 42.5
	}, time.Second, 5*time.Millisecond)
}

func TestController_TrackChangeResetsProgress(t *testing.T) {
	out := newFakeOutput()
	c := newTestController(t, out, nil, Config{})

	q := testQueue()
	c.PlayTrack(q[0], q)

	out.events <- OutputEvent{Type: OutputMetadata, Seconds: 180}
	out.events <- OutputEvent{Type: OutputPosition, Seconds: 99}
	require.Eventually(t, func() bool { return c.GetSnapshot().Progress == 99 },
		time.Second, 5*time.Millisecond)

	c.Next()

	snap := c.GetSnapshot()
	assert.Zero(t, snap.Progress)
	assert.Zero(t, snap.Duration)
}

func TestController_SeekIsOptimistic(t *testing.T) {
	out := newFakeOutput()
	c := newTestController(t, out, nil, Config{})

	q := testQueue()
	c.PlayTrack(q[0], q)
	c.Seek(33)

	assert.Equal(t, 33.0, c.GetSnapshot().Progress)
	out.mu.Lock()
	assert.Equal(t, []float64{33}, out.seeks)
	out.mu.Unlock()
}

func TestController_SkipBy_Clamps(t *testing.T) {
	out := newFakeOutput()
	c := newTestController(t, out, nil, Config{})

	q := []track.Track{{ID: "A", Duration: 100}}
	c.PlayTrack(q[0], q)

	// Below zero clamps to zero
	c.SkipBy(-10)
	assert.Zero(t, c.GetSnapshot().Progress)

	// Above the known duration clamps to it; metadata has not arrived so
	// the track's own duration is the limit
	c.SkipBy(500)
	assert.Equal(t, 100.0, c.GetSnapshot().Progress)

	// Authoritative metadata extends the limit
	out.events <- OutputEvent{Type: OutputMetadata, Seconds: 120}
	require.Eventually(t, func() bool { return c.GetSnapshot().Duration == 120 },
		time.Second, 5*time.Millisecond)
	c.SkipBy(500)
	assert.Equal(t, 120.0, c.GetSnapshot().Progress)
}

func TestController_TogglePlay(t *testing.T) {
	out := newFakeOutput()
	c := newTestController(t, out, nil, Config{})

	// No current track: no-op
	c.TogglePlay(context.Background())
	assert.Equal(t, StatusIdle, c.GetSnapshot().Status)

	q := testQueue()
	c.PlayTrack(q[0], q)

	c.TogglePlay(context.Background())
	assert.Equal(t, StatusPaused, c.GetSnapshot().Status)
	out.mu.Lock()
	assert.Equal(t, 1, out.pauseCalls)
	out.mu.Unlock()

	c.TogglePlay(context.Background())
	assert.Equal(t, StatusPlaying, c.GetSnapshot().Status)
}

func TestController_TogglePlay_RejectionKeepsPaused(t *testing.T) {
	out := newFakeOutput()
	c := newTestController(t, out, nil, Config{})

	q := testQueue()
	c.PlayTrack(q[0], q)
	c.TogglePlay(context.Background()) // pause

	out.mu.Lock()
	out.playErr = ErrPlaybackRejected
	out.mu.Unlock()

	c.TogglePlay(context.Background()) // resume attempt fails
	assert.Equal(t, StatusPaused, c.GetSnapshot().Status)
}

func TestController_SetVolume_Clamps(t *testing.T) {
	out := newFakeOutput()
	c := newTestController(t, out, nil, Config{Volume: 0.8})

	c.SetVolume(1.7)
	assert.Equal(t, 1.0, c.GetSnapshot().Volume)

	c.SetVolume(-2)
	assert.Equal(t, 0.0, c.GetSnapshot().Volume)
}

func TestController_TapAttachedOnce(t *testing.T) {
	out := newFakeOutput()
	c := newTestController(t, out, nil, Config{})

	assert.Nil(t, c.GetTap())

	q := testQueue()
	c.PlayTrack(q[0], q)
	tap := c.GetTap()
	require.NotNil(t, tap)

	c.Next()
	assert.Equal(t, tap, c.GetTap())
}

func TestController_SkipBadTermination(t *testing.T) {
	// K of N tracks bad: repeated Next() visits only good tracks within
	// N steps per call.
	out := newFakeOutput()
	bad := newFakeBadList("B")
	c := newTestController(t, out, bad, Config{})

	q := testQueue()
	c.PlayTrack(q[0], q)

	seen := make([]int, 0, 6)
	for i := 0; i < 6; i++ {
		c.Next()
		seen = append(seen, c.GetSnapshot().Index)
	}
	assert.Equal(t, []int{2, 0, 2, 0, 2, 0}, seen)
}
