// Package likes maintains the liked-song set and reconciles it with the
// account service.
package likes

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/echomood/player/internal/domain/track"
	"github.com/echomood/player/internal/domain/user"
	"github.com/echomood/player/internal/infra/account"
	"github.com/echomood/player/internal/infra/store"
)

const userStoreKey = "user"

// AccountService is the subset of the account client used for like sync.
type AccountService interface {
	AddLike(ctx context.Context, userID, songID string) (*account.Response, error)
	RemoveLike(ctx context.Context, userID, songID string) (*account.Response, error)
}

// TrackSource provides the currently selected track.
// Implemented by player.Controller.
type TrackSource interface {
	GetCurrentTrack() (track.Track, bool)
}

// Synchronizer owns the liked-song set for the signed-in user. Local
// state mutates only after a confirmed round-trip; when the backend
// returns an updated profile, that profile is the source of truth.
type Synchronizer struct {
	mu    sync.Mutex
	usr   *user.User
	liked map[string]struct{}

	svc    AccountService
	tracks TrackSource
	st     *store.Store
}

// New creates a synchronizer, seeding the user and liked-song set from
// the locally cached profile when one exists.
func New(svc AccountService, tracks TrackSource, st *store.Store) *Synchronizer {
	s := &Synchronizer{
		liked:  make(map[string]struct{}),
		svc:    svc,
		tracks: tracks,
		st:     st,
	}

	var cached user.User
	if err := st.Get(userStoreKey, &cached); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			zlog.Warn().Msgf("likes: failed to load cached profile: %v", err)
		}
		return s
	}
	s.usr = &cached
	s.liked = deriveSet(cached.LikedSongs)
	return s
}

// SetUser replaces the cached profile and rederives the liked-song set.
func (s *Synchronizer) SetUser(u *user.User) {
	s.mu.Lock()
	s.usr = u
	s.liked = deriveSet(u.LikedSongs)
	s.mu.Unlock()

	if err := s.st.Put(userStoreKey, u); err != nil {
		zlog.Warn().Msgf("likes: failed to cache profile: %v", err)
	}
}

// Logout clears the signed-in user, the liked-song set and the cached profile.
func (s *Synchronizer) Logout() {
	s.mu.Lock()
	s.usr = nil
	s.liked = make(map[string]struct{})
	s.mu.Unlock()

	if err := s.st.Delete(userStoreKey); err != nil {
		zlog.Warn().Msgf("likes: failed to clear cached profile: %v", err)
	}
}

// GetUser returns the cached profile.
func (s *Synchronizer) GetUser() (*user.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usr, s.usr != nil
}

// IsLiked reports whether the track id (normalized) is in the liked set.
func (s *Synchronizer) IsLiked(trackID string) bool {
	if trackID == "" {
		return false
	}
	nid := NormalizeSongID(trackID)

	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.liked[nid]
	return ok
}

// Size returns the number of liked songs.
func (s *Synchronizer) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.liked)
}

// ToggleLikeCurrent flips the like state of the current track through the
// account service. No-op without a current track or signed-in user. On
// endpoint failure local state is left unchanged.
func (s *Synchronizer) ToggleLikeCurrent(ctx context.Context) error {
	trk, ok := s.tracks.GetCurrentTrack()
	if !ok {
		return nil
	}

	s.mu.Lock()
	if s.usr == nil {
		s.mu.Unlock()
		return nil
	}
	userID := s.usr.ID
	nid := NormalizeSongID(trk.ID)
	_, already := s.liked[nid]
	s.mu.Unlock()

	var resp *account.Response
	var err error
	if already {
		resp, err = s.svc.RemoveLike(ctx, userID, nid)
	} else {
		resp, err = s.svc.AddLike(ctx, userID, nid)
	}
	if err != nil {
		zlog.Warn().Msgf("likes: toggle failed for %s: %v", nid, err)
		return errors.Wrap(err, "like sync failed")
	}

	if resp != nil && resp.User != nil {
		// Reconcile: the returned profile replaces everything local
		s.SetUser(resp.User)
		return nil
	}

	s.mu.Lock()
	if already {
		delete(s.liked, nid)
	} else {
		s.liked[nid] = struct{}{}
	}
	s.mu.Unlock()
	return nil
}

func deriveSet(ids []string) map[string]struct{} {
	return lo.SliceToMap(ids, func(id string) (string, struct{}) {
		return NormalizeSongID(id), struct{}{}
	})
}
