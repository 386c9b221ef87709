// Package registry keeps the in-memory index of persisted clips.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Penitant/app-voice-recorder/internal/clipname"
	"github.com/Penitant/app-voice-recorder/internal/storage"
)

// ErrNotFound reports that no clip with the requested id is known.
var ErrNotFound = errors.New("clip not found in registry")

// Clip is one persisted recording with its decoded metadata.
type Clip struct {
	ID          string        `json:"id"`
	Path        string        `json:"path"`
	DisplayName string        `json:"display_name"`
	Duration    time.Duration `json:"duration"`
	CreatedAt   time.Time     `json:"created_at"`
}

// Registry holds the authoritative snapshot of known clips, rebuilt wholesale
// from the storage directory on each Refresh. Observers see either the old or
// the new full list, never a partial one.
type Registry struct {
	store *storage.Store

	mu    sync.RWMutex
	clips []Clip
}

// New creates an empty Registry over the given store. Call Refresh to
// populate it.
func New(store *storage.Store) *Registry {
	return &Registry{store: store}
}

// Refresh re-scans the storage directory, decodes every filename and replaces
// the snapshot atomically, sorted by creation time descending.
func (r *Registry) Refresh() error {
	names, err := r.store.ListClips()
	if err != nil {
		return fmt.Errorf("failed to scan recordings directory: %w", err)
	}

	clips := make([]Clip, 0, len(names))
	for _, name := range names {
		meta, ok := clipname.Decode(name)
		if !ok {
			slog.Warn("Registering clip with fallback metadata", "name", name)
		}
		clips = append(clips, Clip{
			ID:          meta.ID,
			Path:        r.store.Path(name),
			DisplayName: name,
			Duration:    meta.Duration,
			CreatedAt:   meta.CreatedAt,
		})
	}

	// Stable: equal timestamps keep their relative listing order.
	sort.SliceStable(clips, func(i, j int) bool {
		return clips[i].CreatedAt.After(clips[j].CreatedAt)
	})

	r.mu.Lock()
	r.clips = clips
	r.mu.Unlock()

	slog.Debug("Registry refreshed", "clips", len(clips))
	return nil
}

// Clips returns a copy of the current snapshot.
func (r *Registry) Clips() []Clip {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Clip, len(r.clips))
	copy(out, r.clips)
	return out
}

// Get returns the clip with the given id.
func (r *Registry) Get(id string) (Clip, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.clips {
		if c.ID == id {
			return c, nil
		}
	}
	return Clip{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Delete removes the clip's backing file and drops it from the snapshot. A
// backing file that is already gone is reported and the entry is still
// removed, not treated as a crash.
func (r *Registry) Delete(id string) error {
	clip, err := r.Get(id)
	if err != nil {
		return err
	}

	if err := r.store.Remove(clip.DisplayName); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("failed to delete clip %s: %w", id, err)
		}
		slog.Warn("Clip file already absent, removing registry entry", "clip", id)
	}

	r.mu.Lock()
	kept := r.clips[:0]
	for _, c := range r.clips {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	r.clips = kept
	r.mu.Unlock()

	slog.Info("Clip deleted", "clip", id)
	return nil
}
