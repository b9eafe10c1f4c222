package geometry

// DisplayTransform describes the display viewport a normalized region is
// projected into.
type DisplayTransform struct {
	// Width and Height of the viewport in display units.
	Width  float64 `json:"width"`
	Height float64 `json:"height"`

	// OffsetX and OffsetY position the viewport inside the display.
	OffsetX float64 `json:"offset_x"`
	OffsetY float64 `json:"offset_y"`

	// FlipY is set when the capability reports regions with a bottom-left origin.
	FlipY bool `json:"flip_y"`
}

// Valid reports whether the transform has a usable viewport.
func (t DisplayTransform) Valid() bool {
	return finite(t.Width) > 0 && finite(t.Height) > 0
}

// DisplayRect is a region in display units.
type DisplayRect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Center returns the midpoint of the display region.
func (d DisplayRect) Center() Point {
	return Point{X: d.X + d.W/2, Y: d.Y + d.H/2}
}

// ToDisplayRect projects a normalized region into display coordinates.
//
// The input is clamped first, so NaN or out-of-range components never propagate.
// A degenerate transform (zero or negative size) yields the zero DisplayRect.
func ToDisplayRect(r Rect, t DisplayTransform) DisplayRect {
	if !t.Valid() {
		return DisplayRect{}
	}
	c := r.Clamp()
	y := c.Y
	if t.FlipY {
		y = 1 - c.Y - c.H
	}
	return DisplayRect{
		X: finite(t.OffsetX) + c.X*t.Width,
		Y: finite(t.OffsetY) + y*t.Height,
		W: c.W * t.Width,
		H: c.H * t.Height,
	}
}

// ToNormalizedRect is the inverse of ToDisplayRect.
func ToNormalizedRect(d DisplayRect, t DisplayTransform) Rect {
	if !t.Valid() {
		return Rect{}
	}
	r := Rect{
		X: (d.X - finite(t.OffsetX)) / t.Width,
		Y: (d.Y - finite(t.OffsetY)) / t.Height,
		W: d.W / t.Width,
		H: d.H / t.Height,
	}
	if t.FlipY {
		r.Y = 1 - r.Y - r.H
	}
	return r.Clamp()
}
