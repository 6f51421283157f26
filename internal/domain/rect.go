package domain

// Rect is an axis-aligned rectangle in world units.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Intersects reports whether two rectangles overlap. Edges are treated
// as half-open intervals: rectangles that merely share an edge do not
// intersect.
func (r Rect) Intersects(other Rect) bool {
	if r.X+r.Width <= other.X || other.X+other.Width <= r.X {
		return false
	}
	if r.Y+r.Height <= other.Y || other.Y+other.Height <= r.Y {
		return false
	}
	return true
}
