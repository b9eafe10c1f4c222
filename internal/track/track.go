package track

import (
	"time"

	"github.com/google/uuid"

	"github.com/ironsheep/numscan/internal/config"
	"github.com/ironsheep/numscan/internal/geometry"
)

// Policy holds the lifecycle thresholds.
type Policy struct {
	AcceptConfidence float64       // Minimum tracker confidence for an advance to count as a hit
	LockHits         int           // Consecutive hits needed before a track is locked
	MaxMisses        int           // Consecutive tracker misses before eviction
	Timeout          time.Duration // Time since last accepted update before eviction
}

// PolicyFromTuning builds a Policy from a loaded TuningConfig.
func PolicyFromTuning(cfg *config.TuningConfig) Policy {
	return Policy{
		AcceptConfidence: cfg.GetTrackerAcceptConfidence(),
		LockHits:         cfg.GetLockHits(),
		MaxMisses:        cfg.GetMaxMissFrames(),
		Timeout:          cfg.GetTrackTimeout(),
	}
}

// Observation is one tracker advance result. Found is false when the tracker
// lost the object or failed.
type Observation struct {
	Region     geometry.Rect
	Confidence float64
	Found      bool
}

// Track is the state for one recognized value.
type Track struct {
	// Value is the recognized token. Never changes after creation.
	Value string `json:"value"`

	// RenderID identifies the presented artifact for this track. The engine
	// never interprets it; the presentation layer keys its drawables on it.
	RenderID uuid.UUID `json:"render_id"`

	Region      geometry.Rect `json:"region"`
	FirstSeenAt time.Time     `json:"first_seen_at"`
	LastSeenAt  time.Time     `json:"last_seen_at"`

	// Lifecycle counters
	HitCount  int  `json:"hit_count"`  // Consecutive accepted updates, saturates at Policy.LockHits
	MissCount int  `json:"miss_count"` // Consecutive rejected tracker updates
	Locked    bool `json:"locked"`     // Latched once HitCount reaches Policy.LockHits
}

// NewTrack creates a track from a first detector hit.
func NewTrack(value string, region geometry.Rect, now time.Time, p Policy) Track {
	t := Track{
		Value:       value,
		RenderID:    uuid.New(),
		Region:      region.Clamp(),
		FirstSeenAt: now,
		LastSeenAt:  now,
		HitCount:    1,
	}
	t.Locked = p.LockHits <= 1
	return t
}

// Detected applies a detector hit. A detector hit always heals the miss streak.
func (t Track) Detected(region geometry.Rect, now time.Time, p Policy) Track {
	t.Region = region.Clamp()
	t.touch(now)
	t.MissCount = 0
	t.hit(p)
	return t
}

// Advanced applies one tracker result. Results that are missing, below the
// acceptance threshold, or entirely outside the frame count as a miss and leave
// region and LastSeenAt alone.
func (t Track) Advanced(obs Observation, now time.Time, p Policy) Track {
	region := obs.Region.Clamp()
	if !obs.Found || obs.Confidence < p.AcceptConfidence || region.IsEmpty() {
		t.MissCount++
		t.HitCount = 0
		return t
	}
	t.Region = region
	t.touch(now)
	t.MissCount = 0
	t.hit(p)
	return t
}

// Stale reports whether the track must be evicted at now.
func (t Track) Stale(now time.Time, p Policy) bool {
	if p.MaxMisses > 0 && t.MissCount >= p.MaxMisses {
		return true
	}
	return p.Timeout > 0 && now.Sub(t.LastSeenAt) > p.Timeout
}

// Age returns how long the track has existed at now.
func (t Track) Age(now time.Time) time.Duration {
	return now.Sub(t.FirstSeenAt)
}

func (t *Track) touch(now time.Time) {
	if now.After(t.LastSeenAt) {
		t.LastSeenAt = now
	}
}

func (t *Track) hit(p Policy) {
	if p.LockHits < 1 || t.HitCount < p.LockHits {
		t.HitCount++
	}
	if t.HitCount >= p.LockHits {
		t.Locked = true
	}
}
