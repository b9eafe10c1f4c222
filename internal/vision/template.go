package vision

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"math"
	"sync"

	"gocv.io/x/gocv"

	"github.com/ironsheep/numscan/internal/config"
	"github.com/ironsheep/numscan/internal/fusion"
	"github.com/ironsheep/numscan/internal/geometry"
	"github.com/ironsheep/numscan/internal/track"
)

// ErrClosed is returned by a handle after Close.
var ErrClosed = errors.New("vision: handle closed")

const (
	defaultRefreshConfidence = 0.85
	minTemplateSide          = 4
)

// Options configures a TemplateTracker.
type Options struct {
	// SearchScale is the search window size relative to the last region.
	SearchScale float64

	// AcceptConfidence is the score at or above which a handle moves its
	// search window to the match.
	AcceptConfidence float64

	// RefreshConfidence is the score at or above which the template is
	// replaced by the matched patch.
	RefreshConfidence float64
}

// OptionsFromTuning builds Options from a TuningConfig.
func OptionsFromTuning(cfg *config.TuningConfig) Options {
	return Options{
		SearchScale:       cfg.GetTrackerSearchScale(),
		AcceptConfidence:  cfg.GetTrackerAcceptConfidence(),
		RefreshConfidence: defaultRefreshConfidence,
	}
}

// TemplateTracker creates template-matching handles. It is stateless and safe
// for concurrent use.
type TemplateTracker struct {
	opts Options
}

// NewTemplateTracker returns a tracker with opts, filling zero fields with
// defaults.
func NewTemplateTracker(opts Options) *TemplateTracker {
	if opts.SearchScale < 1 {
		opts.SearchScale = config.DefaultTrackerSearchScale
	}
	if opts.AcceptConfidence <= 0 {
		opts.AcceptConfidence = config.DefaultTrackerAcceptConfidence
	}
	if opts.RefreshConfidence <= 0 {
		opts.RefreshConfidence = defaultRefreshConfidence
	}
	return &TemplateTracker{opts: opts}
}

// Start captures the template for value from region of img.
func (t *TemplateTracker) Start(value string, img image.Image, region geometry.Rect) (fusion.TrackHandle, error) {
	frame, err := grayMat(img)
	if err != nil {
		return nil, err
	}
	defer frame.Close()

	px := region.ToPixels(matBounds(frame))
	if px.Dx() < minTemplateSide || px.Dy() < minTemplateSide {
		return nil, fmt.Errorf("region for %s too small to track: %dx%d px", value, px.Dx(), px.Dy())
	}

	roi := frame.Region(px)
	defer roi.Close()

	return &templateHandle{
		value:  value,
		opts:   t.opts,
		tmpl:   roi.Clone(),
		region: region.Clamp(),
	}, nil
}

type templateHandle struct {
	value string
	opts  Options

	mu     sync.Mutex
	tmpl   gocv.Mat
	region geometry.Rect
	closed bool
}

// Track finds the template near the last accepted region.
func (h *templateHandle) Track(ctx context.Context, img image.Image) (track.Observation, error) {
	if err := ctx.Err(); err != nil {
		return track.Observation{}, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return track.Observation{}, ErrClosed
	}

	frame, err := grayMat(img)
	if err != nil {
		return track.Observation{}, err
	}
	defer frame.Close()

	bounds := matBounds(frame)
	window := h.region.Scale(h.opts.SearchScale).ToPixels(bounds)
	tw, th := h.tmpl.Cols(), h.tmpl.Rows()
	if window.Dx() < tw || window.Dy() < th {
		// Search window no longer fits the template; the object left the frame.
		return track.Observation{}, nil
	}

	roi := frame.Region(window)
	defer roi.Close()
	result := gocv.NewMat()
	defer result.Close()
	mask := gocv.NewMat()
	defer mask.Close()

	gocv.MatchTemplate(roi, h.tmpl, &result, gocv.TmCcoeffNormed, mask)
	_, maxVal, _, maxLoc := gocv.MinMaxLoc(result)
	confidence := score(maxVal)

	px := image.Rect(window.Min.X+maxLoc.X, window.Min.Y+maxLoc.Y, window.Min.X+maxLoc.X+tw, window.Min.Y+maxLoc.Y+th)
	region := geometry.FromPixels(px, bounds)

	if confidence >= h.opts.AcceptConfidence {
		h.region = region
	}
	if confidence >= h.opts.RefreshConfidence {
		patch := frame.Region(px)
		next := patch.Clone()
		patch.Close()
		h.tmpl.Close()
		h.tmpl = next
	}

	return track.Observation{Region: region, Confidence: confidence, Found: true}, nil
}

// Close releases the template.
func (h *templateHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	return h.tmpl.Close()
}

// score maps a correlation coefficient to a confidence in [0,1]. Flat windows
// yield NaN, which counts as no match.
func score(v float32) float64 {
	f := float64(v)
	if math.IsNaN(f) || f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// grayMat converts img to an 8-bit single channel Mat with a zero origin.
func grayMat(img image.Image) (gocv.Mat, error) {
	if img == nil {
		return gocv.Mat{}, fmt.Errorf("no frame")
	}
	b := img.Bounds()
	gray, ok := img.(*image.Gray)
	if !ok || b.Min != (image.Point{}) {
		gray = image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	}
	m, err := gocv.ImageGrayToMatGray(gray)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("failed to convert frame: %w", err)
	}
	return m, nil
}

func matBounds(m gocv.Mat) image.Rectangle {
	return image.Rect(0, 0, m.Cols(), m.Rows())
}
