package fusion

import (
	"time"

	"github.com/google/uuid"

	"github.com/ironsheep/numscan/internal/geometry"
)

// EventKind names a lifecycle event.
type EventKind string

const (
	TrackAppeared  EventKind = "track_appeared"
	TrackUpdated   EventKind = "track_updated"
	TrackRemoved   EventKind = "track_removed"
	ValueCollected EventKind = "value_collected"
)

// Event is delivered to the presentation sink.
type Event struct {
	Kind     EventKind `json:"kind"`
	Value    string    `json:"value"`
	RenderID uuid.UUID `json:"render_id"`

	// Position is the smoothed label anchor in display coordinates. Set for
	// TrackAppeared and TrackUpdated only.
	Position geometry.Point `json:"position"`

	// Display is the unsmoothed projected region.
	Display geometry.DisplayRect `json:"display"`

	HitCount int       `json:"hit_count"`
	Locked   bool      `json:"locked"`
	At       time.Time `json:"at"`
}

// Sink receives engine events. Emit is called with the engine's delivery lock
// held and must not call back into the engine.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

// Emit calls f.
func (f SinkFunc) Emit(e Event) {
	f(e)
}

// MultiSink fans events out to several sinks in order.
type MultiSink []Sink

// Emit delivers e to every non-nil sink.
func (m MultiSink) Emit(e Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(e)
		}
	}
}

type discardSink struct{}

func (discardSink) Emit(Event) {}
