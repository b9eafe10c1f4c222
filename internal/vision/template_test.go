package vision

import (
	"context"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/ironsheep/numscan/internal/config"
	"github.com/ironsheep/numscan/internal/geometry"
)

var frameSize = image.Rect(0, 0, 200, 150)

// texturedFrame returns a flat gray frame with a deterministic textured patch
// at patch.
func texturedFrame(patch image.Rectangle) *image.Gray {
	img := image.NewGray(frameSize)
	for y := 0; y < frameSize.Dy(); y++ {
		for x := 0; x < frameSize.Dx(); x++ {
			img.SetGray(x, y, color.Gray{Y: 128})
		}
	}
	for y := patch.Min.Y; y < patch.Max.Y; y++ {
		for x := patch.Min.X; x < patch.Max.X; x++ {
			lx, ly := x-patch.Min.X, y-patch.Min.Y
			img.SetGray(x, y, color.Gray{Y: uint8((lx*37 + ly*91 + lx*ly*13) % 251)})
		}
	}
	return img
}

func near(a, b geometry.Rect, eps float64) bool {
	return math.Abs(a.X-b.X) < eps && math.Abs(a.Y-b.Y) < eps &&
		math.Abs(a.W-b.W) < eps && math.Abs(a.H-b.H) < eps
}

func TestTemplateTracker_FollowsMovingPatch(t *testing.T) {
	start := image.Rect(50, 40, 80, 60)
	moved := start.Add(image.Pt(6, 3))

	tracker := NewTemplateTracker(OptionsFromTuning(config.EmptyTuningConfig()))
	h, err := tracker.Start("1001", texturedFrame(start), geometry.FromPixels(start, frameSize))
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer h.Close()

	obs, err := h.Track(context.Background(), texturedFrame(moved))
	if err != nil {
		t.Fatalf("Track failed: %v", err)
	}
	if !obs.Found {
		t.Fatal("expected the patch to be found")
	}
	if obs.Confidence < 0.9 {
		t.Errorf("Confidence: got %.3f, want >= 0.9", obs.Confidence)
	}
	want := geometry.FromPixels(moved, frameSize)
	if !near(obs.Region, want, 0.01) {
		t.Errorf("Region: got %+v, want %+v", obs.Region, want)
	}
}

func TestTemplateTracker_LostPatchHasLowConfidence(t *testing.T) {
	start := image.Rect(50, 40, 80, 60)

	tracker := NewTemplateTracker(Options{})
	h, err := tracker.Start("1001", texturedFrame(start), geometry.FromPixels(start, frameSize))
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer h.Close()

	// The patch moved far outside the search window.
	obs, err := h.Track(context.Background(), texturedFrame(image.Rect(150, 110, 180, 130)))
	if err != nil {
		t.Fatalf("Track failed: %v", err)
	}
	if obs.Confidence >= config.DefaultTrackerAcceptConfidence {
		t.Errorf("Confidence on a flat window: got %.3f", obs.Confidence)
	}
}

func TestTemplateTracker_StartErrors(t *testing.T) {
	tracker := NewTemplateTracker(Options{})
	img := texturedFrame(image.Rect(50, 40, 80, 60))

	if _, err := tracker.Start("1001", img, geometry.Rect{X: 0.5, Y: 0.5, W: 0.001, H: 0.001}); err == nil {
		t.Error("expected error for a region smaller than the minimum template")
	}
	if _, err := tracker.Start("1001", nil, geometry.Rect{W: 0.5, H: 0.5}); err == nil {
		t.Error("expected error for a nil frame")
	}
}

func TestTemplateHandle_Close(t *testing.T) {
	start := image.Rect(50, 40, 80, 60)
	tracker := NewTemplateTracker(Options{})
	h, err := tracker.Start("1001", texturedFrame(start), geometry.FromPixels(start, frameSize))
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if err := h.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, err := h.Track(context.Background(), texturedFrame(start)); err != ErrClosed {
		t.Errorf("Track after Close: got %v, want ErrClosed", err)
	}
}

func TestScore(t *testing.T) {
	tests := []struct {
		in   float32
		want float64
	}{
		{float32(math.NaN()), 0},
		{-0.4, 0},
		{0.5, 0.5},
		{1.2, 1},
	}
	for _, tt := range tests {
		if got := score(tt.in); math.Abs(got-tt.want) > 1e-6 {
			t.Errorf("score(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
