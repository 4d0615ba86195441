package core

import (
	"fmt"
	"math"
)

// Point is a real-valued position on the ground plane, in pixel units
type Point struct {
	X, Y float64
}

// NewPoint creates a new Point
func NewPoint(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Add returns the sum of two points
func (p Point) Add(other Point) Point {
	return Point{p.X + other.X, p.Y + other.Y}
}

// Subtract returns the difference of two points
func (p Point) Subtract(other Point) Point {
	return Point{p.X - other.X, p.Y - other.Y}
}

// Multiply returns the point scaled by a scalar
func (p Point) Multiply(scalar float64) Point {
	return Point{p.X * scalar, p.Y * scalar}
}

// Length returns the distance from the origin
func (p Point) Length() float64 {
	return math.Hypot(p.X, p.Y)
}

// Distance returns the Euclidean distance between two points
func (p Point) Distance(other Point) float64 {
	return p.Subtract(other).Length()
}

// Round returns the nearest integer pixel
func (p Point) Round() Pixel {
	return Pixel{X: int(math.Round(p.X)), Y: int(math.Round(p.Y))}
}

func (p Point) String() string {
	return fmt.Sprintf("(%.2f, %.2f)", p.X, p.Y)
}

// Pixel is an integer pixel coordinate, X is the column and Y the row
type Pixel struct {
	X, Y int
}

// Add offsets the pixel by another pixel
func (p Pixel) Add(other Pixel) Pixel {
	return Pixel{p.X + other.X, p.Y + other.Y}
}

// Scale multiplies both coordinates by n
func (p Pixel) Scale(n int) Pixel {
	return Pixel{p.X * n, p.Y * n}
}

// Point converts the pixel to a ground position
func (p Pixel) Point() Point {
	return Point{float64(p.X), float64(p.Y)}
}

// Distance returns the Euclidean distance between two pixels
func (p Pixel) Distance(other Pixel) float64 {
	return math.Hypot(float64(p.X-other.X), float64(p.Y-other.Y))
}

func (p Pixel) String() string {
	return fmt.Sprintf("(%d, %d)", p.X, p.Y)
}
