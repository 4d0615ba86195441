package renderer

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/df07/go-light-estimator/pkg/core"
)

// RenderStats contains statistics about a rendered image
type RenderStats struct {
	TotalPixels   int     // Total number of pixels rendered
	Min           float64 // Darkest linear intensity
	Max           float64 // Brightest linear intensity
	Mean          float64 // Average linear intensity
	ClampedPixels int     // Pixels sitting exactly on 0 or 1 after clamping
}

// computeStats summarises a rendered image
func computeStats(img *core.LinearImage) RenderStats {
	stats := RenderStats{TotalPixels: len(img.Pix)}
	if len(img.Pix) == 0 {
		return stats
	}
	stats.Min = floats.Min(img.Pix)
	stats.Max = floats.Max(img.Pix)
	stats.Mean = stat.Mean(img.Pix, nil)
	for _, v := range img.Pix {
		if v <= 0 || v >= 1 {
			stats.ClampedPixels++
		}
	}
	return stats
}
