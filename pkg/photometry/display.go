package photometry

import (
	"image"
	"image/color"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/df07/go-light-estimator/pkg/core"
)

// ToGray gamma-encodes a linear image and rescales it so the brightest pixel
// maps to 255. An all-black image stays black.
func ToGray(m *core.LinearImage) *image.Gray {
	out := image.NewGray(m.Bounds())
	if len(m.Pix) == 0 {
		return out
	}

	encoded := make([]float64, len(m.Pix))
	for i, v := range m.Pix {
		encoded[i] = LinearToSRGB(Clamp(v, 0, 1))
	}

	peak := floats.Max(encoded)
	if peak <= 0 {
		return out
	}
	scale := 255 / peak
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			v := math.Round(encoded[y*m.Width+x] * scale)
			out.SetGray(x, y, color.Gray{Y: uint8(Clamp(v, 0, 255))})
		}
	}
	return out
}

// FromGray decodes any image into linear intensities through its gray value
func FromGray(img image.Image) *core.LinearImage {
	bounds := img.Bounds()
	m := core.NewLinearImage(bounds.Dx(), bounds.Dy())
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			g := color.GrayModel.Convert(img.At(x+bounds.Min.X, y+bounds.Min.Y)).(color.Gray)
			m.Set(x, y, SRGBToLinear(float64(g.Y)/255))
		}
	}
	return m
}

// Encoding is how a photograph was stored
type Encoding int

const (
	// Display is 8-bit sRGB with the brightest pixel exposed to 255
	Display Encoding = iota
	// Linear16 is 16-bit gray holding linear intensities without exposure
	Linear16
)

func (e Encoding) String() string {
	switch e {
	case Display:
		return "display"
	case Linear16:
		return "linear16"
	default:
		return "unknown"
	}
}

// RoundTrip returns m as it reads back after being stored with encoding e
func (e Encoding) RoundTrip(m *core.LinearImage) *core.LinearImage {
	if e == Linear16 {
		return FromGray16(ToGray16(m))
	}
	return FromGray(ToGray(m))
}

// ToGray16 stores clamped linear intensities as 16-bit gray, without gamma or exposure
func ToGray16(m *core.LinearImage) *image.Gray16 {
	out := image.NewGray16(m.Bounds())
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			v := math.Round(Clamp(m.At(x, y), 0, 1) * 65535)
			out.SetGray16(x, y, color.Gray16{Y: uint16(v)})
		}
	}
	return out
}

// FromGray16 reads 16-bit gray as linear intensities
func FromGray16(img *image.Gray16) *core.LinearImage {
	bounds := img.Bounds()
	m := core.NewLinearImage(bounds.Dx(), bounds.Dy())
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			m.Set(x, y, float64(img.Gray16At(x+bounds.Min.X, y+bounds.Min.Y).Y)/65535)
		}
	}
	return m
}
