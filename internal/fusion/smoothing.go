package fusion

import "github.com/ironsheep/numscan/internal/geometry"

// Smooth blends the previous rendered position toward next:
// alpha*previous + (1-alpha)*next.
func Smooth(previous, next geometry.Point, alpha float64) geometry.Point {
	return geometry.Point{
		X: alpha*previous.X + (1-alpha)*next.X,
		Y: alpha*previous.Y + (1-alpha)*next.Y,
	}
}

// smoother remembers the last rendered position per value. Not safe for
// concurrent use; the engine guards it.
type smoother struct {
	alpha float64
	last  map[string]geometry.Point
}

func newSmoother(alpha float64) *smoother {
	return &smoother{alpha: alpha, last: make(map[string]geometry.Point)}
}

// update returns the position to render for value. The first observation of a
// value is rendered as-is.
func (s *smoother) update(value string, p geometry.Point) geometry.Point {
	prev, ok := s.last[value]
	if ok {
		p = Smooth(prev, p, s.alpha)
	}
	s.last[value] = p
	return p
}

func (s *smoother) forget(value string) {
	delete(s.last, value)
}

func (s *smoother) reset() {
	s.last = make(map[string]geometry.Point)
}
