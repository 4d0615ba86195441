package scoring

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/df07/go-light-estimator/pkg/config"
	"github.com/df07/go-light-estimator/pkg/core"
	"github.com/df07/go-light-estimator/pkg/photometry"
	"github.com/df07/go-light-estimator/pkg/renderer"
)

// Scorer renders candidate parameters and measures them against a photograph
type Scorer struct {
	renderer *renderer.Renderer
	logger   core.Logger
}

// NewScorer creates a scorer. The render config's noise flag is ignored:
// candidates are always rendered noiseless.
func NewScorer(cfg config.Config, logger core.Logger) *Scorer {
	if logger == nil {
		logger = core.NopLogger{}
	}
	cfg.Render.Noise = false
	return &Scorer{renderer: renderer.NewRenderer(cfg, nil), logger: logger}
}

// Score returns the summed squared linear difference between the reference
// and the candidate stored with the reference's encoding
func (s *Scorer) Score(reference *core.LinearImage, encoding photometry.Encoding, p Params) (float64, error) {
	light := p.Light()
	if err := light.Validate(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}

	img, _ := s.renderer.Render(light)
	candidate := encoding.RoundTrip(img)

	ssd, err := reference.SquaredDifference(candidate)
	if err != nil {
		return 0, fmt.Errorf("reference is %dx%d, render is %dx%d: %w",
			reference.Width, reference.Height, candidate.Width, candidate.Height, err)
	}
	s.logger.Printf("Score %.6f for %v\n", ssd, p)
	return ssd, nil
}

// Comparison holds the errors between two solutions, normalised by the image
// diagonal (location, height) and by each solution's brightest albedo
type Comparison struct {
	LocationError   float64
	HeightError     float64
	AlbedoError     [config.PatchCount]float64
	MeanAlbedoError float64
	MaxAlbedoError  float64
}

// Compare measures how far b is from a
func Compare(a, b Params, diagonal float64) Comparison {
	var c Comparison
	if diagonal > 0 {
		c.LocationError = a.Position.Distance(b.Position) / diagonal
		c.HeightError = math.Abs(a.Height-b.Height) / diagonal
	}

	na, nb := NormalizeAlbedo(a.Albedo), NormalizeAlbedo(b.Albedo)
	floats.SubTo(c.AlbedoError[:], nb[:], na[:])
	for i, e := range c.AlbedoError {
		c.AlbedoError[i] = math.Abs(e)
	}
	c.MeanAlbedoError = stat.Mean(c.AlbedoError[:], nil)
	c.MaxAlbedoError = floats.Max(c.AlbedoError[:])
	return c
}

// NormalizeAlbedo divides every albedo by the largest one
func NormalizeAlbedo(albedo [config.PatchCount]float64) [config.PatchCount]float64 {
	out := albedo
	peak := floats.Max(out[:])
	if peak > 0 {
		floats.Scale(1/peak, out[:])
	}
	return out
}
