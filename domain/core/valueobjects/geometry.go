package valueobjects

import (
	"math"

	pkgerrors "mindcanvas-backend/pkg/errors"
)

// Point is a value object representing a position on the canvas
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NewPoint creates a point with validation
func NewPoint(x, y float64) (Point, error) {
	if !isValidCoordinate(x) || !isValidCoordinate(y) {
		return Point{}, pkgerrors.NewValidationError("invalid coordinates: must be finite numbers")
	}
	return Point{X: x, Y: y}, nil
}

// DistanceTo calculates the Euclidean distance to another point
func (p Point) DistanceTo(other Point) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Rect is an axis-aligned rectangle with a top-left origin
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// NewRect creates a rectangle with validation
func NewRect(x, y, width, height float64) (Rect, error) {
	if !isValidCoordinate(x) || !isValidCoordinate(y) {
		return Rect{}, pkgerrors.NewValidationError("invalid rectangle origin: must be finite numbers")
	}
	if width < 0 || height < 0 || !isValidCoordinate(width) || !isValidCoordinate(height) {
		return Rect{}, pkgerrors.NewValidationError("rectangle dimensions must be finite and non-negative")
	}
	return Rect{X: x, Y: y, Width: width, Height: height}, nil
}

// Right returns the x coordinate of the right edge
func (r Rect) Right() float64 {
	return r.X + r.Width
}

// Bottom returns the y coordinate of the bottom edge
func (r Rect) Bottom() float64 {
	return r.Y + r.Height
}

// Center returns the center point of the rectangle
func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// IsZero checks if the rectangle is the zero value
func (r Rect) IsZero() bool {
	return r.X == 0 && r.Y == 0 && r.Width == 0 && r.Height == 0
}

// Intersects reports whether two rectangles overlap. Rectangles that merely
// touch along an edge do not intersect.
func (r Rect) Intersects(other Rect) bool {
	return r.X < other.Right() &&
		other.X < r.Right() &&
		r.Y < other.Bottom() &&
		other.Y < r.Bottom()
}

// Contains reports whether the point lies inside the rectangle
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X < r.Right() && p.Y >= r.Y && p.Y < r.Bottom()
}

// Union returns the minimal rectangle covering both rectangles
func (r Rect) Union(other Rect) Rect {
	minX := math.Min(r.X, other.X)
	minY := math.Min(r.Y, other.Y)
	maxX := math.Max(r.Right(), other.Right())
	maxY := math.Max(r.Bottom(), other.Bottom())
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// Expand grows the rectangle by the given margin on all sides
func (r Rect) Expand(margin float64) Rect {
	return Rect{
		X:      r.X - margin,
		Y:      r.Y - margin,
		Width:  r.Width + 2*margin,
		Height: r.Height + 2*margin,
	}
}

// isValidCoordinate checks if a coordinate is a valid finite number
func isValidCoordinate(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
