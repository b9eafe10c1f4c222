package fusion

import (
	"github.com/ironsheep/numscan/internal/config"
	"github.com/ironsheep/numscan/internal/detection"
	"github.com/ironsheep/numscan/internal/geometry"
	"github.com/ironsheep/numscan/internal/track"
)

// Config holds the engine tunables.
type Config struct {
	DetectorCadence    int // Run the detector on every Nth frame
	TrackerParallelism int // Concurrent tracker handle advances per frame
	SmoothingAlpha     float64

	// Display is the viewport events are projected into. The default is the
	// unit square, so positions equal normalized coordinates.
	Display geometry.DisplayTransform

	// ExclusionBand is the height, in display units, of the bottom band where
	// labels are not emitted.
	ExclusionBand float64

	Track track.Policy
	Match detection.Policy
}

// DefaultConfig returns the configuration built from the config defaults.
func DefaultConfig() Config {
	return ConfigFromTuning(config.EmptyTuningConfig())
}

// ConfigFromTuning builds a Config from a loaded TuningConfig.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		DetectorCadence:    cfg.GetDetectorCadence(),
		TrackerParallelism: cfg.GetTrackerParallelism(),
		SmoothingAlpha:     cfg.GetSmoothingAlpha(),
		Display:            geometry.DisplayTransform{Width: 1, Height: 1},
		ExclusionBand:      cfg.GetExclusionBandHeight(),
		Track:              track.PolicyFromTuning(cfg),
		Match:              detection.PolicyFromTuning(cfg),
	}
}

func (c Config) normalized() Config {
	if c.DetectorCadence < 1 {
		c.DetectorCadence = 1
	}
	if c.TrackerParallelism < 1 {
		c.TrackerParallelism = 1
	}
	if c.SmoothingAlpha < 0 || c.SmoothingAlpha >= 1 {
		c.SmoothingAlpha = config.DefaultSmoothingAlpha
	}
	if !c.Display.Valid() {
		c.Display = geometry.DisplayTransform{Width: 1, Height: 1}
	}
	if c.ExclusionBand < 0 {
		c.ExclusionBand = 0
	}
	return c
}
