package loaders

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/df07/go-light-estimator/pkg/core"
	"github.com/df07/go-light-estimator/pkg/photometry"
)

func gradientImage() *core.LinearImage {
	m := core.NewLinearImage(16, 8)
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			m.Set(x, y, float64(x*m.Height+y+1)/float64(m.Width*m.Height))
		}
	}
	return m
}

// TestLoadLinearDecodesGray creates an 8-bit PNG and verifies the sRGB decode
func TestLoadLinearDecodesGray(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "photo.png")

	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	img.Set(1, 0, color.RGBA{R: 128, G: 128, B: 128, A: 255})

	f, err := os.Create(testFile)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	m, err := LoadLinear(testFile)
	require.NoError(t, err)
	require.Equal(t, 2, m.Width)
	require.Equal(t, 1, m.Height)

	assert.InDelta(t, 1.0, m.At(0, 0), 1e-9)
	assert.InDelta(t, photometry.SRGBToLinear(128.0/255), m.At(1, 0), 1e-9)
}

func TestSavePNGRoundTrip(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "out", "render.png")
	m := gradientImage()

	require.NoError(t, SavePNG(testFile, m))
	loaded, err := LoadLinear(testFile)
	require.NoError(t, err)

	// Auto-exposure maps the brightest pixel to white
	assert.InDelta(t, 1.0, loaded.At(15, 7), 1e-9)
	assert.InDelta(t, m.At(3, 2), loaded.At(3, 2), 0.01)
}

func TestLinearPNGRoundTrip(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "render16.png")
	m := gradientImage()

	require.NoError(t, SaveLinearPNG(testFile, m))

	loaded, err := LoadLinearPNG(testFile)
	require.NoError(t, err)
	for i := range m.Pix {
		assert.InDelta(t, m.Pix[i], loaded.Pix[i], 1.0/65535)
	}

	// LoadLinear recognizes 16-bit files as linear
	viaLinear, err := LoadLinear(testFile)
	require.NoError(t, err)
	assert.Equal(t, loaded.Pix, viaLinear.Pix)
}

func TestLoadReferenceReportsEncoding(t *testing.T) {
	dir := t.TempDir()
	m := gradientImage()

	display := filepath.Join(dir, "render.png")
	require.NoError(t, SavePNG(display, m))
	_, encoding, err := LoadReference(display)
	require.NoError(t, err)
	assert.Equal(t, photometry.Display, encoding)

	linear := filepath.Join(dir, "render_linear.png")
	require.NoError(t, SaveLinearPNG(linear, m))
	loaded, encoding, err := LoadReference(linear)
	require.NoError(t, err)
	assert.Equal(t, photometry.Linear16, encoding)
	assert.Equal(t, photometry.Linear16.RoundTrip(m).Pix, loaded.Pix)

	_, _, err = LoadReference(filepath.Join(dir, "missing.png"))
	assert.Error(t, err)
}

func TestLoadLinearPNGRejects8Bit(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "render8.png")
	require.NoError(t, SavePNG(testFile, gradientImage()))

	_, err := LoadLinearPNG(testFile)
	assert.Error(t, err)
}

func TestLoadImageErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadImage(filepath.Join(dir, "missing.png"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.png")
	require.NoError(t, os.WriteFile(bad, []byte("not an image"), 0644))
	_, err = LoadImage(bad)
	assert.Error(t, err)
}
