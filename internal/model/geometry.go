package model

// Rect represents window geometry in screen coordinates
type Rect struct {
	X      int `json:"x" yaml:"x"`
	Y      int `json:"y" yaml:"y"`
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Point represents a screen position
type Point struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// Size represents window dimensions
type Size struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Origin returns the top-left corner of the rectangle
func (r Rect) Origin() Point {
	return Point{X: r.X, Y: r.Y}
}

// Size returns the dimensions of the rectangle
func (r Rect) Size() Size {
	return Size{Width: r.Width, Height: r.Height}
}

// SmallerThan reports whether either dimension falls below the given minimum
func (r Rect) SmallerThan(min Size) bool {
	return r.Width < min.Width || r.Height < min.Height
}

// Within reports whether every component of r differs from other by less
// than tolerance.
func (r Rect) Within(other Rect, tolerance int) bool {
	return absDiff(r.X, other.X) < tolerance &&
		absDiff(r.Y, other.Y) < tolerance &&
		absDiff(r.Width, other.Width) < tolerance &&
		absDiff(r.Height, other.Height) < tolerance
}

func absDiff(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}
