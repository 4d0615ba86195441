package estimator

import (
	"math"

	"github.com/df07/go-light-estimator/pkg/config"
	"github.com/df07/go-light-estimator/pkg/core"
	"github.com/df07/go-light-estimator/pkg/scene"
	"github.com/df07/go-light-estimator/pkg/workpool"
)

// RayDirections are the 8-connected neighbour steps except (1, -1)
var RayDirections = []core.Pixel{
	{X: 1, Y: 0},
	{X: 1, Y: 1},
	{X: 0, Y: 1},
	{X: -1, Y: 1},
	{X: -1, Y: 0},
	{X: -1, Y: -1},
	{X: 0, Y: -1},
}

// RayProbe is the best height candidate found along one direction
type RayProbe struct {
	Direction  core.Pixel
	Height     float64
	Confidence float64 // |b2 - b1| of the chosen sample, 0 when none was usable
	Boundaries int     // Boundary samples crossed by the ray
}

// HeightResult is the outcome of boundary ray casting
type HeightResult struct {
	Height     float64
	Confidence float64
	Direction  core.Pixel
	Probes     []RayProbe
}

// ProfileSample is one pixel visited by a ray
type ProfileSample struct {
	Pixel     core.Pixel
	Distance  float64 // From the ray origin
	Intensity float64
	Patch     int
	Boundary  bool // This pixel is the far side of a boundary sample
}

// HeightEstimator recovers the light height from intensity jumps at patch
// boundaries along a fixed set of rays
type HeightEstimator struct {
	grid       *scene.Grid
	config     config.HeightConfig
	numWorkers int
	logger     core.Logger
}

// NewHeightEstimator creates a height estimator
func NewHeightEstimator(cfg config.Config, logger core.Logger) *HeightEstimator {
	if logger == nil {
		logger = core.NopLogger{}
	}
	return &HeightEstimator{
		grid:       scene.NewGrid(cfg.Grid),
		config:     cfg.Height,
		numWorkers: cfg.NumWorkers,
		logger:     logger,
	}
}

// Estimate casts every ray from location and returns the height of the
// probe with the largest confidence. ok is false when no ray found a usable
// boundary sample.
func (he *HeightEstimator) Estimate(img *core.LinearImage, location core.Pixel) (HeightResult, bool) {
	probes := workpool.Map(len(RayDirections), he.numWorkers, func(i int) RayProbe {
		return he.cast(img, location, RayDirections[i])
	})

	result := HeightResult{Probes: probes}
	found := false
	for _, probe := range probes {
		if probe.Confidence <= 0 {
			continue
		}
		if !found || probe.Confidence > result.Confidence {
			result.Height = probe.Height
			result.Confidence = probe.Confidence
			result.Direction = probe.Direction
			found = true
		}
	}

	if found {
		he.logger.Printf("Height: %.2f from direction %v (confidence %.4f)\n", result.Height, result.Direction, result.Confidence)
	} else {
		he.logger.Printf("Height: no usable boundary along %d rays\n", len(probes))
	}
	return result, found
}

// cast walks one ray and keeps its best boundary sample
func (he *HeightEstimator) cast(img *core.LinearImage, location core.Pixel, dir core.Pixel) RayProbe {
	probe := RayProbe{Direction: dir}
	path := rayPath(img, location, dir)
	if len(path) < 2 {
		return probe
	}

	origin := location.Point()
	segmentStart := path[0]
	for n := 1; n < len(path); n++ {
		if !he.isBoundary(img, path, n) {
			continue
		}
		probe.Boundaries++

		// The segment from segmentStart to the near side of the boundary lies
		// in one patch, so both ends share an albedo
		if h, conf, ok := he.solve(img, origin, segmentStart, path[n-1]); ok && conf > probe.Confidence {
			probe.Height = h
			probe.Confidence = conf
		}
		segmentStart = path[n]
	}
	return probe
}

// isBoundary reports whether path[n-1] -> path[n] crosses into another patch
// with an intensity discontinuity
func (he *HeightEstimator) isBoundary(img *core.LinearImage, path []core.Pixel, n int) bool {
	prev, cur := path[n-1], path[n]
	if he.grid.PatchOf(prev) == he.grid.PatchOf(cur) {
		return false
	}

	jump := math.Abs(img.AtPixel(cur) - img.AtPixel(prev))
	local := 0.0
	if n >= 2 && he.grid.PatchOf(path[n-2]) == he.grid.PatchOf(prev) {
		local = math.Max(local, math.Abs(img.AtPixel(prev)-img.AtPixel(path[n-2])))
	}
	if n+1 < len(path) && he.grid.PatchOf(path[n+1]) == he.grid.PatchOf(cur) {
		local = math.Max(local, math.Abs(img.AtPixel(path[n+1])-img.AtPixel(cur)))
	}
	return jump > he.config.DiscontinuityRatio*local+he.config.MinDiscontinuity
}

// solve applies the two-point equation to pixels p1 and p2 of one patch:
// h^2 = |b2^2 r2^2 - b1^2 r1^2| / |b1^2 - b2^2| with b = I^(1/3).
// ok is false for ill-conditioned or non-finite results.
func (he *HeightEstimator) solve(img *core.LinearImage, origin core.Point, p1, p2 core.Pixel) (float64, float64, bool) {
	i1, i2 := img.AtPixel(p1), img.AtPixel(p2)
	if i1 <= 0 || i2 <= 0 {
		return 0, 0, false
	}
	b1, b2 := math.Cbrt(i1), math.Cbrt(i2)
	r1, r2 := origin.Distance(p1.Point()), origin.Distance(p2.Point())

	den := math.Abs(b1*b1 - b2*b2)
	if den < he.config.DenominatorEpsilon {
		return 0, 0, false
	}
	h := math.Sqrt(math.Abs(b2*b2*r2*r2-b1*b1*r1*r1) / den)
	if math.IsNaN(h) || math.IsInf(h, 0) || h <= 0 {
		return 0, 0, false
	}
	return h, math.Abs(b2 - b1), true
}

// Profile returns the pixels visited by one ray with boundary markers
func (he *HeightEstimator) Profile(img *core.LinearImage, location core.Pixel, dir core.Pixel) []ProfileSample {
	path := rayPath(img, location, dir)
	samples := make([]ProfileSample, len(path))
	for n, p := range path {
		samples[n] = ProfileSample{
			Pixel:     p,
			Distance:  location.Distance(p),
			Intensity: img.AtPixel(p),
			Patch:     he.grid.PatchOf(p),
			Boundary:  n > 0 && he.isBoundary(img, path, n),
		}
	}
	return samples
}

// rayPath returns the in-bounds pixels of the ray from start along dir.
// A start outside the image is allowed; the walk then begins where the ray
// enters the image.
func rayPath(img *core.LinearImage, start core.Pixel, dir core.Pixel) []core.Pixel {
	if dir == (core.Pixel{}) {
		return nil
	}
	limit := img.Width + img.Height + abs(start.X) + abs(start.Y)
	var path []core.Pixel
	for n := 0; n <= limit; n++ {
		p := start.Add(dir.Scale(n))
		if !img.InBounds(p) {
			if len(path) > 0 {
				break
			}
			continue
		}
		path = append(path, p)
	}
	return path
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
