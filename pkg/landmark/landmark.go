// Package landmark defines the facial landmark sets consumed by the focus estimator.
package landmark

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

// ErrMalformed is returned for sets that cannot be indexed safely:
// a point count that matches no known layout, or non-finite coordinates.
var ErrMalformed = errors.New("malformed landmark set")

// Point is a single landmark in normalized frame coordinates (0-1).
// Z is optional depth; 2D providers leave it at zero.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z,omitempty"`
}

// Vec returns the point as an r3 vector.
func (p Point) Vec() r3.Vector {
	return r3.Vector{X: p.X, Y: p.Y, Z: p.Z}
}

// Finite reports whether all coordinates are finite numbers.
func (p Point) Finite() bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsNaN(p.Z) &&
		!math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0) && !math.IsInf(p.Z, 0)
}

// Distance returns the euclidean distance between two points.
func Distance(a, b Point) float64 {
	return a.Vec().Distance(b.Vec())
}

// Midpoint returns the point halfway between a and b.
func Midpoint(a, b Point) Point {
	m := a.Vec().Add(b.Vec()).Mul(0.5)
	return Point{X: m.X, Y: m.Y, Z: m.Z}
}

// Set is one frame's complete landmark set for a single face.
// A nil *Set means no face was detected in the frame.
type Set struct {
	Points []Point `json:"points"`
}

// FromPoints wraps a point slice.
func FromPoints(points []Point) *Set {
	return &Set{Points: points}
}

// Len returns the number of points.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Points)
}

// Layout returns the layout matching the set's point count.
func (s *Set) Layout() (Layout, error) {
	return ForSize(s.Len())
}

// At returns the point at index i.
func (s *Set) At(i int) Point {
	return s.Points[i]
}

// Validate checks that the set matches a known layout and that every
// point the estimator reads is finite. Coincident points are not an
// error here; they are handled as degenerate geometry downstream.
func (s *Set) Validate() (Layout, error) {
	layout, err := s.Layout()
	if err != nil {
		return Layout{}, err
	}
	for _, idx := range layout.Indices() {
		if !s.Points[idx].Finite() {
			return Layout{}, fmt.Errorf("%w: non-finite point at index %d", ErrMalformed, idx)
		}
	}
	return layout, nil
}
