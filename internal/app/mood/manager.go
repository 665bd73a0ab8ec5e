// Package mood maps predicted emotions onto catalog genres and records
// mood observations on the user profile.
package mood

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/echomood/player/internal/domain/track"
	"github.com/echomood/player/internal/domain/user"
	"github.com/echomood/player/internal/infra/account"
)

// emotionToGenre maps a predicted emotion label onto a genre query.
var emotionToGenre = map[string]string{
	"angry":    "rock",
	"disgust":  "metal",
	"fear":     "ambient",
	"happy":    "pop",
	"neutral":  "chill",
	"sad":      "acoustic",
	"surprise": "electronic",
}

// GenreFor returns the genre for an emotion label, defaulting to pop.
func GenreFor(label string) string {
	if g, ok := emotionToGenre[strings.ToLower(label)]; ok {
		return g
	}
	return "pop"
}

// AccountService is the subset of the account client used for mood updates.
type AccountService interface {
	UpdateMood(ctx context.Context, userID, mood string) (*account.Response, error)
}

// ProfileSink receives reconciled user profiles.
// Implemented by likes.Synchronizer.
type ProfileSink interface {
	SetUser(u *user.User)
}

// Catalog is the subset of the catalog client used to build mood playlists.
type Catalog interface {
	Search(ctx context.Context, query string, limit int) ([]track.Track, error)
}

// Manager applies mood observations and assembles mood playlists. Stale
// responses are discarded by comparing against the latest issued request
// sequence number.
type Manager struct {
	svc     AccountService
	profile ProfileSink
	catalog Catalog

	seqMu sync.Mutex
	seq   uint64
}

// NewManager creates a mood manager.
func NewManager(svc AccountService, profile ProfileSink, catalog Catalog) *Manager {
	return &Manager{
		svc:     svc,
		profile: profile,
		catalog: catalog,
	}
}

// Apply records a mood observation for the user. When the backend returns
// an updated profile and no newer Apply has been issued meanwhile, the
// profile is handed to the sink; a superseded response is discarded.
// Failures are non-fatal to callers keeping a locally predicted mood.
func (m *Manager) Apply(ctx context.Context, userID, label string) error {
	seq := m.nextSeq()

	resp, err := m.svc.UpdateMood(ctx, userID, strings.ToLower(label))
	if err != nil {
		zlog.Warn().Msgf("mood: update failed for %q: %v", label, err)
		return errors.Wrap(err, "mood update failed")
	}

	if m.isStale(seq) {
		zlog.Debug().Msgf("mood: discarding stale response for %q", label)
		return nil
	}

	if resp != nil && resp.User != nil && m.profile != nil {
		m.profile.SetUser(resp.User)
	}
	return nil
}

// Playlist searches the catalog for the genre mapped to label and returns
// the limit most-favorited matches.
func (m *Manager) Playlist(ctx context.Context, label string, limit int) ([]track.Track, error) {
	if limit <= 0 {
		limit = 10
	}

	genre := GenreFor(label)
	found, err := m.catalog.Search(ctx, genre, 60)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to search genre %q", genre)
	}

	sorted := make([]track.Track, len(found))
	copy(sorted, found)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].FavoriteCount > sorted[j].FavoriteCount
	})

	if limit < len(sorted) {
		sorted = sorted[:limit]
	}
	return sorted, nil
}

func (m *Manager) nextSeq() uint64 {
	m.seqMu.Lock()
	defer m.seqMu.Unlock()
	m.seq++
	return m.seq
}

func (m *Manager) isStale(seq uint64) bool {
	m.seqMu.Lock()
	defer m.seqMu.Unlock()
	return seq != m.seq
}
