package fusion

import (
	"context"
	"image"
	"time"

	"github.com/ironsheep/numscan/internal/detection"
	"github.com/ironsheep/numscan/internal/geometry"
	"github.com/ironsheep/numscan/internal/track"
)

// Frame is one video frame delivered by the frame source.
type Frame struct {
	Image     image.Image
	Timestamp time.Time // zero means "use the engine clock"
	Seq       uint64
}

// Detector is the external text-recognition capability.
type Detector interface {
	// Detect returns the recognized lines in img. An error means "no detections
	// this frame" and is never fatal.
	Detect(ctx context.Context, img image.Image) ([]detection.Candidate, error)
}

// Tracker is the external single-object visual tracking capability. It creates
// one stateful handle per value.
type Tracker interface {
	Start(value string, img image.Image, region geometry.Rect) (TrackHandle, error)
}

// TrackHandle advances one tracked object.
type TrackHandle interface {
	// Track locates the object in img. Observation.Found is false when the
	// object was lost.
	Track(ctx context.Context, img image.Image) (track.Observation, error)
	Close() error
}

// DetectorFunc adapts a function to Detector.
type DetectorFunc func(ctx context.Context, img image.Image) ([]detection.Candidate, error)

// Detect calls f.
func (f DetectorFunc) Detect(ctx context.Context, img image.Image) ([]detection.Candidate, error) {
	return f(ctx, img)
}
