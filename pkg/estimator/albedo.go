package estimator

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/df07/go-light-estimator/pkg/config"
	"github.com/df07/go-light-estimator/pkg/core"
	"github.com/df07/go-light-estimator/pkg/photometry"
	"github.com/df07/go-light-estimator/pkg/scene"
)

// ErrNoHeight is returned when albedo estimation runs without a light height
var ErrNoHeight = errors.New("albedo estimation needs a positive light height")

// AlbedoResult holds the pairwise ratio matrix and the relative albedos
type AlbedoResult struct {
	// Ratios[i][j] estimates albedo_i / albedo_j
	Ratios *mat.Dense
	// Measured marks ratios read directly from border pixels
	Measured [config.PatchCount][config.PatchCount]bool
	// Complete is false when some ratio could not be measured or propagated
	Complete bool
	// Albedo is each patch's albedo as a fraction of the brightest patch
	Albedo    [config.PatchCount]float64
	Brightest int
	Dimmest   int
}

// AlbedoEstimator recovers relative patch albedos from brightness ratios
// across patch borders, with the angular falloff divided out
type AlbedoEstimator struct {
	grid   *scene.Grid
	config config.AlbedoConfig
	logger core.Logger
}

// NewAlbedoEstimator creates an albedo estimator
func NewAlbedoEstimator(cfg config.Config, logger core.Logger) *AlbedoEstimator {
	if logger == nil {
		logger = core.NopLogger{}
	}
	return &AlbedoEstimator{
		grid:   scene.NewGrid(cfg.Grid),
		config: cfg.Albedo,
		logger: logger,
	}
}

// Estimate measures every adjacent patch pair, propagates the ratios until
// the matrix is dense and expresses each albedo relative to the brightest
// patch
func (ae *AlbedoEstimator) Estimate(img *core.LinearImage, location core.Pixel, height float64) (AlbedoResult, error) {
	if height <= 0 {
		return AlbedoResult{}, ErrNoHeight
	}

	ratios := newRatioMatrix()
	origin := location.Point()

	for _, adj := range scene.Adjacencies() {
		var measured []float64
		for _, pair := range ae.grid.BorderPairs(adj, ae.config.BorderSamples) {
			if !img.InBounds(pair[0]) || !img.InBounds(pair[1]) {
				continue
			}
			a := normalizedBrightness(img, origin, height, pair[0])
			b := normalizedBrightness(img, origin, height, pair[1])
			if a > 0 && b > 0 {
				measured = append(measured, a/b)
			}
		}
		if len(measured) == 0 {
			continue
		}
		ratios.set(adj.A, adj.B, stat.Mean(measured, nil))
	}
	result := AlbedoResult{Measured: ratios.known}

	ratios.propagate(scene.CenterPatch)
	result.Ratios = ratios.m
	result.Complete = ratios.dense()

	result.Brightest, result.Dimmest = ratios.extremes(ae.config.RatioTolerance)
	for p := 0; p < config.PatchCount; p++ {
		if ratios.known[p][result.Brightest] {
			result.Albedo[p] = ratios.m.At(p, result.Brightest)
		}
	}

	ae.logger.Printf("Albedo: brightest patch %d, dimmest patch %d (%.3f), complete=%v\n",
		result.Brightest, result.Dimmest, result.Albedo[result.Dimmest], result.Complete)
	return result, nil
}

// normalizedBrightness divides the pixel intensity by cos(angle)^3
func normalizedBrightness(img *core.LinearImage, origin core.Point, height float64, p core.Pixel) float64 {
	falloff := photometry.Falloff(origin.Distance(p.Point()), height)
	if falloff <= 0 {
		return 0
	}
	return img.AtPixel(p) / falloff
}

// ratioMatrix is a 9x9 albedo ratio matrix with a record of filled cells
type ratioMatrix struct {
	m     *mat.Dense
	known [config.PatchCount][config.PatchCount]bool
}

func newRatioMatrix() *ratioMatrix {
	r := &ratioMatrix{m: mat.NewDense(config.PatchCount, config.PatchCount, nil)}
	for i := 0; i < config.PatchCount; i++ {
		r.m.Set(i, i, 1)
		r.known[i][i] = true
	}
	return r
}

// set stores ratio[i][j] and its reciprocal in the mirror cell
func (r *ratioMatrix) set(i, j int, v float64) {
	r.m.Set(i, j, v)
	r.m.Set(j, i, 1/v)
	r.known[i][j] = true
	r.known[j][i] = true
}

// propagate fills unknown cells through ratio[i][j] = ratio[i][k] * ratio[k][j],
// trying the given pivot first and then every other patch until nothing changes
func (r *ratioMatrix) propagate(pivot int) {
	pivots := []int{pivot}
	for k := 0; k < config.PatchCount; k++ {
		if k != pivot {
			pivots = append(pivots, k)
		}
	}

	for changed := true; changed; {
		changed = false
		for _, k := range pivots {
			for i := 0; i < config.PatchCount; i++ {
				for j := 0; j < config.PatchCount; j++ {
					if r.known[i][j] || !r.known[i][k] || !r.known[k][j] {
						continue
					}
					r.set(i, j, r.m.At(i, k)*r.m.At(k, j))
					changed = true
				}
			}
		}
	}
}

func (r *ratioMatrix) dense() bool {
	for i := range r.known {
		for j := range r.known[i] {
			if !r.known[i][j] {
				return false
			}
		}
	}
	return true
}

// extremes returns the row with the most entries above 1 and the row with
// the most entries below 1, lowest index on ties
func (r *ratioMatrix) extremes(tolerance float64) (brightest, dimmest int) {
	bestAbove, bestBelow := -1, -1
	for i := 0; i < config.PatchCount; i++ {
		above, below := 0, 0
		for j := 0; j < config.PatchCount; j++ {
			if i == j || !r.known[i][j] {
				continue
			}
			v := r.m.At(i, j)
			if v > 1+tolerance {
				above++
			} else if v < 1-tolerance {
				below++
			}
		}
		if above > bestAbove {
			bestAbove, brightest = above, i
		}
		if below > bestBelow {
			bestBelow, dimmest = below, i
		}
	}
	return brightest, dimmest
}

// FormatRatios renders the ratio matrix for logs
func FormatRatios(m mat.Matrix) string {
	return fmt.Sprintf("%.3f", mat.Formatted(m, mat.Prefix(""), mat.Squeeze()))
}
