package track

import (
	"sort"
	"sync"
	"time"

	"github.com/ironsheep/numscan/internal/geometry"
)

// Store is the concurrently accessed value -> Track mapping.
//
// Writes are serialized; reads proceed concurrently with each other. Tracks are
// stored by value and replaced wholesale, so every read sees either the state
// before or after an update, never a mix.
type Store struct {
	mu     sync.RWMutex
	policy Policy
	tracks map[string]Track
}

// NewStore creates an empty store.
func NewStore(p Policy) *Store {
	return &Store{
		policy: p,
		tracks: make(map[string]Track),
	}
}

// Policy returns the store's lifecycle policy.
func (s *Store) Policy() Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.policy
}

// SetPolicy replaces the lifecycle policy for subsequent updates.
func (s *Store) SetPolicy(p Policy) {
	s.mu.Lock()
	s.policy = p
	s.mu.Unlock()
}

// UpsertFromDetector creates the track for value if absent, or applies a
// detector hit to it. created is true when a new track was made.
func (s *Store) UpsertFromDetector(value string, region geometry.Rect, now time.Time) (t Track, created bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.tracks[value]
	if !ok {
		t = NewTrack(value, region, now, s.policy)
		s.tracks[value] = t
		return t, true
	}
	t = existing.Detected(region, now, s.policy)
	s.tracks[value] = t
	return t, false
}

// AdvanceFromTracker applies a tracker result to the track for value. It is a
// no-op returning ok=false when no such track exists, e.g. after Clear.
func (s *Store) AdvanceFromTracker(value string, obs Observation, now time.Time) (t Track, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.tracks[value]
	if !ok {
		return Track{}, false
	}
	t = existing.Advanced(obs, now, s.policy)
	s.tracks[value] = t
	return t, true
}

// EvictStale removes every stale track and returns them sorted by value.
// Calling it again with no intervening update returns nothing.
func (s *Store) EvictStale(now time.Time) []Track {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []Track
	for value, t := range s.tracks {
		if t.Stale(now, s.policy) {
			removed = append(removed, t)
			delete(s.tracks, value)
		}
	}
	sortTracks(removed)
	return removed
}

// Clear removes every track and returns them sorted by value.
func (s *Store) Clear() []Track {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := make([]Track, 0, len(s.tracks))
	for _, t := range s.tracks {
		removed = append(removed, t)
	}
	s.tracks = make(map[string]Track)
	sortTracks(removed)
	return removed
}

// Snapshot returns a consistent point-in-time copy of all tracks sorted by value.
func (s *Store) Snapshot() []Track {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Track, 0, len(s.tracks))
	for _, t := range s.tracks {
		out = append(out, t)
	}
	sortTracks(out)
	return out
}

// Centers returns the region center of every track keyed by value.
func (s *Store) Centers() map[string]geometry.Point {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]geometry.Point, len(s.tracks))
	for v, t := range s.tracks {
		out[v] = t.Region.Center()
	}
	return out
}

// Get returns the track for value.
func (s *Store) Get(value string) (Track, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tracks[value]
	return t, ok
}

// Len returns the number of live tracks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tracks)
}

func sortTracks(ts []Track) {
	sort.Slice(ts, func(i, j int) bool {
		return ts[i].Value < ts[j].Value
	})
}
