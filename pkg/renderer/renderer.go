package renderer

import (
	"math/rand"

	"github.com/df07/go-light-estimator/pkg/config"
	"github.com/df07/go-light-estimator/pkg/core"
	"github.com/df07/go-light-estimator/pkg/photometry"
	"github.com/df07/go-light-estimator/pkg/scene"
	"github.com/df07/go-light-estimator/pkg/workpool"
)

// Renderer produces linear intensity images of the patch grid
type Renderer struct {
	grid   *scene.Grid
	config config.RenderConfig
	// numWorkers bounds the row tasks (0 = use CPU count)
	numWorkers int
	logger     core.Logger
}

// NewRenderer creates a renderer for the configured grid
func NewRenderer(cfg config.Config, logger core.Logger) *Renderer {
	if logger == nil {
		logger = core.NopLogger{}
	}
	return &Renderer{
		grid:       scene.NewGrid(cfg.Grid),
		config:     cfg.Render,
		numWorkers: cfg.NumWorkers,
		logger:     logger,
	}
}

// Grid returns the patch layout the renderer draws
func (r *Renderer) Grid() *scene.Grid {
	return r.grid
}

// Render draws the scene lit by light. Rows are rendered in parallel into
// disjoint slices of a fresh image; noise for each row comes from its own
// generator so the result does not depend on scheduling.
func (r *Renderer) Render(light scene.LightSource) (*core.LinearImage, RenderStats) {
	width, height := r.grid.Width(), r.grid.Height()
	img := core.NewLinearImage(width, height)

	workpool.Run(height, r.numWorkers, func(y int) {
		r.renderRow(img.Row(y), y, light)
	})

	stats := computeStats(img)
	r.logger.Printf("Rendered %dx%d (light on=%v at %v, h=%.1f): mean %.4f, range [%.4f, %.4f], %d clamped\n",
		width, height, light.On, light.Position, light.Height, stats.Mean, stats.Min, stats.Max, stats.ClampedPixels)
	return img, stats
}

// renderRow fills one row of the output image
func (r *Renderer) renderRow(row []float64, y int, light scene.LightSource) {
	var random *rand.Rand
	if r.config.Noise {
		random = rand.New(rand.NewSource(rowSeed(r.config.Seed, y)))
	}

	for x := range row {
		patch := r.grid.PatchIndex(x, y)
		reflectance := r.grid.Reflectance[patch]

		// An unlit scene shows the flat base reflectance
		intensity := 1.0
		if light.On {
			dist := light.Position.Distance(core.NewPoint(float64(x), float64(y)))
			intensity = photometry.Intensity(dist, light.Height, r.config.Luminosity, light.Albedo[patch])
		}

		noise := 0.0
		if random != nil {
			noise = random.NormFloat64() * r.config.NoiseSigma
		}
		row[x] = photometry.Composite(reflectance, intensity, noise)
	}
}

// rowSeed derives a per-row noise seed
func rowSeed(seed int64, y int) int64 {
	return seed*1000003 + int64(y)
}
