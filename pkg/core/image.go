package core

import (
	"errors"
	"image"
)

// ErrSizeMismatch is returned when two images with different bounds are combined
var ErrSizeMismatch = errors.New("image size mismatch")

// LinearImage holds one linear intensity per pixel in row-major order.
// Once produced it is treated as read-only and shared between readers.
type LinearImage struct {
	Width  int
	Height int
	Pix    []float64
}

// NewLinearImage allocates a black image
func NewLinearImage(width, height int) *LinearImage {
	return &LinearImage{
		Width:  width,
		Height: height,
		Pix:    make([]float64, width*height),
	}
}

// Bounds returns the image rectangle
func (m *LinearImage) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.Width, m.Height)
}

// InBounds reports whether the pixel lies inside the image
func (m *LinearImage) InBounds(p Pixel) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < m.Width && p.Y < m.Height
}

// At returns the intensity at column x, row y
func (m *LinearImage) At(x, y int) float64 {
	return m.Pix[y*m.Width+x]
}

// AtPixel returns the intensity at p
func (m *LinearImage) AtPixel(p Pixel) float64 {
	return m.Pix[p.Y*m.Width+p.X]
}

// Set stores the intensity at column x, row y
func (m *LinearImage) Set(x, y int, v float64) {
	m.Pix[y*m.Width+x] = v
}

// Row returns the slice backing row y
func (m *LinearImage) Row(y int) []float64 {
	return m.Pix[y*m.Width : (y+1)*m.Width]
}

// Clone returns a deep copy
func (m *LinearImage) Clone() *LinearImage {
	pix := make([]float64, len(m.Pix))
	copy(pix, m.Pix)
	return &LinearImage{Width: m.Width, Height: m.Height, Pix: pix}
}

// SquaredDifference returns the summed squared difference between two images
func (m *LinearImage) SquaredDifference(other *LinearImage) (float64, error) {
	if m.Width != other.Width || m.Height != other.Height {
		return 0, ErrSizeMismatch
	}
	sum := 0.0
	for i, v := range m.Pix {
		d := v - other.Pix[i]
		sum += d * d
	}
	return sum, nil
}
