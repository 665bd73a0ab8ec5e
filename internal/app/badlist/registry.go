// Package badlist provides the durable registry of unplayable tracks.
//
// Streaming URLs from the catalog occasionally 403 or expire. Without this
// registry the queue traversal would retry the same broken entry forever.
package badlist

import (
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/echomood/player/internal/infra/store"
)

const storeKey = "badTracks"

// Registry is a persisted set of track ids known to fail playback.
// Membership is by exact id equality; ids are opaque strings.
type Registry struct {
	mu  sync.RWMutex
	ids map[string]struct{}
	st  *store.Store
}

// Open loads the registry from the store. A missing or unreadable entry
// starts the registry empty.
func Open(st *store.Store) *Registry {
	r := &Registry{
		ids: make(map[string]struct{}),
		st:  st,
	}

	var saved []string
	if err := st.Get(storeKey, &saved); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			zlog.Warn().Msgf("badlist: failed to load persisted ids: %v", err)
		}
		return r
	}
	for _, id := range saved {
		r.ids[id] = struct{}{}
	}
	return r
}

// MarkBad records a track id as unplayable and persists the set.
// Persistence failures are logged, never fatal.
func (r *Registry) MarkBad(trackID string) {
	if trackID == "" {
		return
	}

	r.mu.Lock()
	r.ids[trackID] = struct{}{}
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	if err := r.st.Put(storeKey, snapshot); err != nil {
		zlog.Warn().Msgf("badlist: failed to persist ids: %v", err)
	}
}

// IsBad reports whether a track id is known to fail playback.
func (r *Registry) IsBad(trackID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ids[trackID]
	return ok
}

// Size returns the number of registered ids.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ids)
}

// Reset clears the registry and its persisted state.
func (r *Registry) Reset() {
	r.mu.Lock()
	r.ids = make(map[string]struct{})
	r.mu.Unlock()

	if err := r.st.Put(storeKey, []string{}); err != nil {
		zlog.Warn().Msgf("badlist: failed to persist reset: %v", err)
	}
}

func (r *Registry) snapshotLocked() []string {
	out := make([]string, 0, len(r.ids))
	for id := range r.ids {
		out = append(out, id)
	}
	return out
}
