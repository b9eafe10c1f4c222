package geometry

import (
	"math"
	"testing"
)

func TestToDisplayRect(t *testing.T) {
	tf := DisplayTransform{Width: 400, Height: 800}
	r := Rect{X: 0.25, Y: 0.5, W: 0.5, H: 0.1}

	got := ToDisplayRect(r, tf)
	want := DisplayRect{X: 100, Y: 400, W: 200, H: 80}
	if !displayNear(got, want) {
		t.Errorf("ToDisplayRect = %+v, want %+v", got, want)
	}
}

func TestToDisplayRect_FlipAndOffset(t *testing.T) {
	tf := DisplayTransform{Width: 100, Height: 100, OffsetX: 10, OffsetY: 20, FlipY: true}
	r := Rect{X: 0, Y: 0, W: 0.1, H: 0.2}

	got := ToDisplayRect(r, tf)
	want := DisplayRect{X: 10, Y: 100, W: 10, H: 20}
	if !displayNear(got, want) {
		t.Errorf("ToDisplayRect = %+v, want %+v", got, want)
	}
}

func TestToDisplayRect_Malformed(t *testing.T) {
	tf := DisplayTransform{Width: 100, Height: 100}
	r := Rect{X: math.NaN(), Y: 2, W: 0.5, H: math.Inf(-1)}

	got := ToDisplayRect(r, tf)
	for _, v := range []float64{got.X, got.Y, got.W, got.H} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("non-finite output %+v", got)
		}
	}
	if got != ToDisplayRect(r, tf) {
		t.Error("repeated conversion should be stable")
	}

	if zero := ToDisplayRect(Rect{W: 1, H: 1}, DisplayTransform{}); zero != (DisplayRect{}) {
		t.Errorf("degenerate transform should give zero rect, got %+v", zero)
	}
}

func TestToNormalizedRect_Inverse(t *testing.T) {
	transforms := []DisplayTransform{
		{Width: 390, Height: 844},
		{Width: 1920, Height: 1080, OffsetX: 5, OffsetY: 7, FlipY: true},
	}
	r := Rect{X: 0.1, Y: 0.3, W: 0.25, H: 0.05}

	for _, tf := range transforms {
		back := ToNormalizedRect(ToDisplayRect(r, tf), tf)
		if !rectNear(back, r) {
			t.Errorf("round trip with %+v = %+v, want %+v", tf, back, r)
		}
	}
}

func displayNear(a, b DisplayRect) bool {
	const eps = 1e-9
	return math.Abs(a.X-b.X) < eps && math.Abs(a.Y-b.Y) < eps &&
		math.Abs(a.W-b.W) < eps && math.Abs(a.H-b.H) < eps
}
