package loaders

import (
	"fmt"
	"image"
	_ "image/jpeg" // JPEG decoder
	"image/png"
	"os"
	"path/filepath"

	"github.com/df07/go-light-estimator/pkg/core"
	"github.com/df07/go-light-estimator/pkg/photometry"
)

// LoadImage loads a PNG or JPEG image
func LoadImage(filename string) (image.Image, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open image file: %w", err)
	}
	defer file.Close()

	// Auto-detects PNG/JPEG from the file header
	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// LoadLinear loads a photograph as linear intensities. 16-bit grayscale PNGs
// are read as already linear; everything else is treated as display-encoded
// and decoded through its sRGB gray value.
func LoadLinear(filename string) (*core.LinearImage, error) {
	m, _, err := LoadReference(filename)
	return m, err
}

// LoadReference loads a photograph like LoadLinear and reports how it was stored
func LoadReference(filename string) (*core.LinearImage, photometry.Encoding, error) {
	img, err := LoadImage(filename)
	if err != nil {
		return nil, photometry.Display, err
	}
	if g16, ok := img.(*image.Gray16); ok {
		return photometry.FromGray16(g16), photometry.Linear16, nil
	}
	return photometry.FromGray(img), photometry.Display, nil
}

// SavePNG writes the display encoding of a linear image (8-bit sRGB, auto-exposed)
func SavePNG(filename string, m *core.LinearImage) error {
	return writePNG(filename, photometry.ToGray(m))
}

// SaveLinearPNG writes linear intensities losslessly enough for re-estimation
// as a 16-bit grayscale PNG, without gamma or exposure
func SaveLinearPNG(filename string, m *core.LinearImage) error {
	return writePNG(filename, photometry.ToGray16(m))
}

// LoadLinearPNG reads an image written by SaveLinearPNG
func LoadLinearPNG(filename string) (*core.LinearImage, error) {
	img, err := LoadImage(filename)
	if err != nil {
		return nil, err
	}
	g16, ok := img.(*image.Gray16)
	if !ok {
		return nil, fmt.Errorf("%s is not a 16-bit grayscale PNG", filepath.Base(filename))
	}
	return photometry.FromGray16(g16), nil
}

func writePNG(filename string, img image.Image) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create image file: %w", err)
	}
	if err := png.Encode(file, img); err != nil {
		file.Close()
		return fmt.Errorf("failed to encode PNG: %w", err)
	}
	return file.Close()
}
