package geometry

import (
	"image"
	"math"
)

// Point is a 2D position, normalized or display depending on context.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Distance returns the euclidean distance between two points.
func (p Point) Distance(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Rect is a bounding region in normalized [0,1] coordinates.
type Rect struct {
	X float64 `json:"x"` // Left edge
	Y float64 `json:"y"` // Top edge
	W float64 `json:"w"` // Width
	H float64 `json:"h"` // Height
}

// Clamp returns r with NaN/Inf components zeroed and the region clipped to the
// unit square. Parts outside the square are cut away, so a region lying
// entirely outside comes back empty.
func (r Rect) Clamp() Rect {
	x, w := clipSpan(finite(r.X), finite(r.W))
	y, h := clipSpan(finite(r.Y), finite(r.H))
	return Rect{X: x, Y: y, W: w, H: h}
}

// clipSpan intersects [lo, lo+size] with [0, 1].
func clipSpan(lo, size float64) (float64, float64) {
	if size < 0 {
		size = 0
	}
	if lo < 0 {
		size += lo
		lo = 0
	}
	if lo > 1 {
		lo = 1
	}
	if lo+size > 1 {
		size = 1 - lo
	}
	if size < 0 {
		size = 0
	}
	return lo, size
}

// Area returns W*H.
func (r Rect) Area() float64 {
	return r.W * r.H
}

// IsEmpty reports whether the region has no area.
func (r Rect) IsEmpty() bool {
	return r.W <= 0 || r.H <= 0
}

// Center returns the midpoint of the region.
func (r Rect) Center() Point {
	return Point{X: r.X + r.W/2, Y: r.Y + r.H/2}
}

// Union returns the smallest region containing both r and o.
func (r Rect) Union(o Rect) Rect {
	x1 := math.Min(r.X, o.X)
	y1 := math.Min(r.Y, o.Y)
	x2 := math.Max(r.X+r.W, o.X+o.W)
	y2 := math.Max(r.Y+r.H, o.Y+o.H)
	return Rect{X: x1, Y: y1, W: x2 - x1, H: y2 - y1}
}

// Scale grows (positive scale > 1) or shrinks the region around its center and
// clamps the result.
func (r Rect) Scale(scale float64) Rect {
	c := r.Center()
	w := r.W * scale
	h := r.H * scale
	return Rect{X: c.X - w/2, Y: c.Y - h/2, W: w, H: h}.Clamp()
}

// FromPixels normalizes a pixel rectangle against the bounds of the frame it was
// found in.
func FromPixels(px image.Rectangle, bounds image.Rectangle) Rect {
	bw := float64(bounds.Dx())
	bh := float64(bounds.Dy())
	if bw <= 0 || bh <= 0 {
		return Rect{}
	}
	return Rect{
		X: float64(px.Min.X-bounds.Min.X) / bw,
		Y: float64(px.Min.Y-bounds.Min.Y) / bh,
		W: float64(px.Dx()) / bw,
		H: float64(px.Dy()) / bh,
	}.Clamp()
}

// ToPixels maps a normalized region back onto a frame's pixel bounds. The result
// is always contained in bounds.
func (r Rect) ToPixels(bounds image.Rectangle) image.Rectangle {
	c := r.Clamp()
	bw := float64(bounds.Dx())
	bh := float64(bounds.Dy())
	x1 := bounds.Min.X + int(math.Floor(c.X*bw))
	y1 := bounds.Min.Y + int(math.Floor(c.Y*bh))
	x2 := bounds.Min.X + int(math.Ceil((c.X+c.W)*bw))
	y2 := bounds.Min.Y + int(math.Ceil((c.Y+c.H)*bh))
	return image.Rect(x1, y1, x2, y2).Intersect(bounds)
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
