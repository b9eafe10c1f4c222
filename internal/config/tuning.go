// Package config loads the tuning surface for the scanning engine.
//
// Every field is optional. Fields omitted from a JSON file fall back to the
// defaults returned by the Get* accessors, so partial configs are safe.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Defaults for every tunable.
const (
	DefaultDetectorCadence         = 3
	DefaultTrackerAcceptConfidence = 0.3
	DefaultMaxMissFrames           = 6
	DefaultTrackTimeout            = "1s"
	DefaultLockHits                = 3
	DefaultSmoothingAlpha          = 0.8
	DefaultMinDigits               = 4
	DefaultMaxDigits               = 6
	DefaultYearMin                 = 1900
	DefaultYearMax                 = 2099
	DefaultRejectYears             = true
	DefaultExclusionBandHeight     = 0.0
	DefaultDuplicateTieFraction    = 0.15
	DefaultMinDetectionConfidence  = 0.0
	DefaultTrackerParallelism      = 4
	DefaultOCRLanguage             = "eng"
	DefaultOCRUpscale              = 1.0
	DefaultOCRContrast             = 20.0
	DefaultOCRSharpen              = true
	DefaultTrackerSearchScale      = 2.0
)

// TuningConfig is the root configuration for tuning parameters.
type TuningConfig struct {
	// Fusion engine
	DetectorCadence         *int     `json:"detector_cadence,omitempty"`
	TrackerAcceptConfidence *float64 `json:"tracker_accept_confidence,omitempty"`
	MaxMissFrames           *int     `json:"max_miss_frames,omitempty"`
	TrackTimeout            *string  `json:"track_timeout,omitempty"` // duration string like "300ms"
	LockHits                *int     `json:"lock_hits,omitempty"`
	SmoothingAlpha          *float64 `json:"smoothing_alpha,omitempty"`
	ExclusionBandHeight     *float64 `json:"exclusion_band_height,omitempty"`
	TrackerParallelism      *int     `json:"tracker_parallelism,omitempty"`

	// Detection matcher
	MinDigits              *int     `json:"min_digits,omitempty"`
	MaxDigits              *int     `json:"max_digits,omitempty"`
	RejectYears            *bool    `json:"reject_years,omitempty"`
	YearMin                *int     `json:"year_min,omitempty"`
	YearMax                *int     `json:"year_max,omitempty"`
	DuplicateTieFraction   *float64 `json:"duplicate_tie_fraction,omitempty"`
	MinDetectionConfidence *float64 `json:"min_detection_confidence,omitempty"`

	// Capabilities
	OCRLanguage        *string  `json:"ocr_language,omitempty"`
	OCRUpscale         *float64 `json:"ocr_upscale,omitempty"`
	OCRContrast        *float64 `json:"ocr_contrast,omitempty"`
	OCRSharpen         *bool    `json:"ocr_sharpen,omitempty"`
	TrackerSearchScale *float64 `json:"tracker_search_scale,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field populated from
// the package defaults.
func DefaultTuningConfig() *TuningConfig {
	return &TuningConfig{
		DetectorCadence:         ptrInt(DefaultDetectorCadence),
		TrackerAcceptConfidence: ptrFloat64(DefaultTrackerAcceptConfidence),
		MaxMissFrames:           ptrInt(DefaultMaxMissFrames),
		TrackTimeout:            ptrString(DefaultTrackTimeout),
		LockHits:                ptrInt(DefaultLockHits),
		SmoothingAlpha:          ptrFloat64(DefaultSmoothingAlpha),
		ExclusionBandHeight:     ptrFloat64(DefaultExclusionBandHeight),
		TrackerParallelism:      ptrInt(DefaultTrackerParallelism),
		MinDigits:               ptrInt(DefaultMinDigits),
		MaxDigits:               ptrInt(DefaultMaxDigits),
		RejectYears:             ptrBool(DefaultRejectYears),
		YearMin:                 ptrInt(DefaultYearMin),
		YearMax:                 ptrInt(DefaultYearMax),
		DuplicateTieFraction:    ptrFloat64(DefaultDuplicateTieFraction),
		MinDetectionConfidence:  ptrFloat64(DefaultMinDetectionConfidence),
		OCRLanguage:             ptrString(DefaultOCRLanguage),
		OCRUpscale:              ptrFloat64(DefaultOCRUpscale),
		OCRContrast:             ptrFloat64(DefaultOCRContrast),
		OCRSharpen:              ptrBool(DefaultOCRSharpen),
		TrackerSearchScale:      ptrFloat64(DefaultTrackerSearchScale),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.DetectorCadence != nil && *c.DetectorCadence < 1 {
		return fmt.Errorf("detector_cadence must be >= 1, got %d", *c.DetectorCadence)
	}
	if c.TrackerAcceptConfidence != nil {
		if v := *c.TrackerAcceptConfidence; v < 0 || v > 1 {
			return fmt.Errorf("tracker_accept_confidence must be between 0 and 1, got %f", v)
		}
	}
	if c.MaxMissFrames != nil && *c.MaxMissFrames < 1 {
		return fmt.Errorf("max_miss_frames must be >= 1, got %d", *c.MaxMissFrames)
	}
	if c.TrackTimeout != nil && *c.TrackTimeout != "" {
		d, err := time.ParseDuration(*c.TrackTimeout)
		if err != nil {
			return fmt.Errorf("invalid track_timeout '%s': %w", *c.TrackTimeout, err)
		}
		if d <= 0 {
			return fmt.Errorf("track_timeout must be positive, got %s", d)
		}
	}
	if c.LockHits != nil && *c.LockHits < 1 {
		return fmt.Errorf("lock_hits must be >= 1, got %d", *c.LockHits)
	}
	if c.SmoothingAlpha != nil {
		if v := *c.SmoothingAlpha; v < 0 || v >= 1 {
			return fmt.Errorf("smoothing_alpha must be in [0, 1), got %f", v)
		}
	}
	if c.ExclusionBandHeight != nil && *c.ExclusionBandHeight < 0 {
		return fmt.Errorf("exclusion_band_height must be >= 0, got %f", *c.ExclusionBandHeight)
	}
	if c.TrackerParallelism != nil && *c.TrackerParallelism < 1 {
		return fmt.Errorf("tracker_parallelism must be >= 1, got %d", *c.TrackerParallelism)
	}
	if c.GetMinDigits() < 1 || c.GetMaxDigits() < c.GetMinDigits() {
		return fmt.Errorf("digit range invalid: min_digits=%d max_digits=%d", c.GetMinDigits(), c.GetMaxDigits())
	}
	if c.GetYearMax() < c.GetYearMin() {
		return fmt.Errorf("year range invalid: year_min=%d year_max=%d", c.GetYearMin(), c.GetYearMax())
	}
	if c.DuplicateTieFraction != nil {
		if v := *c.DuplicateTieFraction; v < 0 || v > 1 {
			return fmt.Errorf("duplicate_tie_fraction must be between 0 and 1, got %f", v)
		}
	}
	if c.MinDetectionConfidence != nil {
		if v := *c.MinDetectionConfidence; v < 0 || v > 1 {
			return fmt.Errorf("min_detection_confidence must be between 0 and 1, got %f", v)
		}
	}
	if c.OCRUpscale != nil && *c.OCRUpscale <= 0 {
		return fmt.Errorf("ocr_upscale must be positive, got %f", *c.OCRUpscale)
	}
	if c.OCRContrast != nil {
		if v := *c.OCRContrast; v < -100 || v > 100 {
			return fmt.Errorf("ocr_contrast must be between -100 and 100, got %f", v)
		}
	}
	if c.TrackerSearchScale != nil && *c.TrackerSearchScale < 1 {
		return fmt.Errorf("tracker_search_scale must be >= 1, got %f", *c.TrackerSearchScale)
	}
	return nil
}

func (c *TuningConfig) GetDetectorCadence() int {
	if c.DetectorCadence == nil {
		return DefaultDetectorCadence
	}
	return *c.DetectorCadence
}

func (c *TuningConfig) GetTrackerAcceptConfidence() float64 {
	if c.TrackerAcceptConfidence == nil {
		return DefaultTrackerAcceptConfidence
	}
	return *c.TrackerAcceptConfidence
}

func (c *TuningConfig) GetMaxMissFrames() int {
	if c.MaxMissFrames == nil {
		return DefaultMaxMissFrames
	}
	return *c.MaxMissFrames
}

// GetTrackTimeout returns the parsed track timeout. An unparsable value falls
// back to the default; Validate rejects those before they get here.
func (c *TuningConfig) GetTrackTimeout() time.Duration {
	s := DefaultTrackTimeout
	if c.TrackTimeout != nil && *c.TrackTimeout != "" {
		s = *c.TrackTimeout
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		d, _ = time.ParseDuration(DefaultTrackTimeout)
	}
	return d
}

func (c *TuningConfig) GetLockHits() int {
	if c.LockHits == nil {
		return DefaultLockHits
	}
	return *c.LockHits
}

func (c *TuningConfig) GetSmoothingAlpha() float64 {
	if c.SmoothingAlpha == nil {
		return DefaultSmoothingAlpha
	}
	return *c.SmoothingAlpha
}

func (c *TuningConfig) GetExclusionBandHeight() float64 {
	if c.ExclusionBandHeight == nil {
		return DefaultExclusionBandHeight
	}
	return *c.ExclusionBandHeight
}

func (c *TuningConfig) GetTrackerParallelism() int {
	if c.TrackerParallelism == nil {
		return DefaultTrackerParallelism
	}
	return *c.TrackerParallelism
}

func (c *TuningConfig) GetMinDigits() int {
	if c.MinDigits == nil {
		return DefaultMinDigits
	}
	return *c.MinDigits
}

func (c *TuningConfig) GetMaxDigits() int {
	if c.MaxDigits == nil {
		return DefaultMaxDigits
	}
	return *c.MaxDigits
}

func (c *TuningConfig) GetRejectYears() bool {
	if c.RejectYears == nil {
		return DefaultRejectYears
	}
	return *c.RejectYears
}

func (c *TuningConfig) GetYearMin() int {
	if c.YearMin == nil {
		return DefaultYearMin
	}
	return *c.YearMin
}

func (c *TuningConfig) GetYearMax() int {
	if c.YearMax == nil {
		return DefaultYearMax
	}
	return *c.YearMax
}

func (c *TuningConfig) GetDuplicateTieFraction() float64 {
	if c.DuplicateTieFraction == nil {
		return DefaultDuplicateTieFraction
	}
	return *c.DuplicateTieFraction
}

func (c *TuningConfig) GetMinDetectionConfidence() float64 {
	if c.MinDetectionConfidence == nil {
		return DefaultMinDetectionConfidence
	}
	return *c.MinDetectionConfidence
}

func (c *TuningConfig) GetOCRLanguage() string {
	if c.OCRLanguage == nil || *c.OCRLanguage == "" {
		return DefaultOCRLanguage
	}
	return *c.OCRLanguage
}

func (c *TuningConfig) GetOCRUpscale() float64 {
	if c.OCRUpscale == nil {
		return DefaultOCRUpscale
	}
	return *c.OCRUpscale
}

func (c *TuningConfig) GetOCRContrast() float64 {
	if c.OCRContrast == nil {
		return DefaultOCRContrast
	}
	return *c.OCRContrast
}

func (c *TuningConfig) GetOCRSharpen() bool {
	if c.OCRSharpen == nil {
		return DefaultOCRSharpen
	}
	return *c.OCRSharpen
}

func (c *TuningConfig) GetTrackerSearchScale() float64 {
	if c.TrackerSearchScale == nil {
		return DefaultTrackerSearchScale
	}
	return *c.TrackerSearchScale
}
