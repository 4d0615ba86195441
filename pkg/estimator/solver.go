// Package estimator recovers a point light's ground position and height and
// the relative patch albedos from a single rendered intensity image.
package estimator

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/df07/go-light-estimator/pkg/config"
	"github.com/df07/go-light-estimator/pkg/core"
	"github.com/df07/go-light-estimator/pkg/scene"
)

// Solution holds the latest estimate of every unknown. Fields whose stage
// found nothing in a cycle keep the value of an earlier cycle.
type Solution struct {
	Location    core.Pixel
	HasLocation bool

	Height    float64
	HasHeight bool

	Albedo    [config.PatchCount]float64
	Brightest int
	Dimmest   int
	Ratios    *mat.Dense
	HasAlbedo bool

	// Stages holds this cycle's raw stage results, nil when a stage found nothing
	Stages StageResults
}

// StageResults are the per-stage outputs of one solving cycle
type StageResults struct {
	Location *LocationResult
	Height   *HeightResult
	Albedo   *AlbedoResult
}

// Solver runs Locate -> Height -> Albedo once per cycle, strictly in order
type Solver struct {
	grid     *scene.Grid
	locator  *LocationEstimator
	heighter *HeightEstimator
	albedo   *AlbedoEstimator
	logger   core.Logger
	last     Solution
}

// NewSolver creates a solver with every stage configured from cfg
func NewSolver(cfg config.Config, logger core.Logger) *Solver {
	if logger == nil {
		logger = core.NopLogger{}
	}
	s := &Solver{
		grid:     scene.NewGrid(cfg.Grid),
		locator:  NewLocationEstimator(cfg, logger),
		heighter: NewHeightEstimator(cfg, logger),
		albedo:   NewAlbedoEstimator(cfg, logger),
		logger:   logger,
	}
	if cfg.Height.DefaultHeight > 0 {
		s.last.Height = cfg.Height.DefaultHeight
		s.last.HasHeight = true
	}
	return s
}

// Previous returns the solution of the last cycle
func (s *Solver) Previous() Solution {
	return s.last
}

// Solve runs one estimation cycle over img. The image must match the
// configured grid; it is only read.
func (s *Solver) Solve(img *core.LinearImage) (Solution, error) {
	if img.Width != s.grid.Width() || img.Height != s.grid.Height() {
		return s.last, fmt.Errorf("%w: image is %dx%d, grid is %dx%d",
			core.ErrSizeMismatch, img.Width, img.Height, s.grid.Width(), s.grid.Height())
	}

	sol := s.last
	sol.Stages = StageResults{}

	if loc, ok := s.locator.Estimate(img); ok {
		sol.Location = loc.Location
		sol.HasLocation = true
		sol.Stages.Location = &loc
	} else {
		s.logger.Printf("Location: no estimate, keeping previous (%v, valid=%v)\n", sol.Location, sol.HasLocation)
	}
	if !sol.HasLocation {
		s.last = sol
		return sol, nil
	}

	if h, ok := s.heighter.Estimate(img, sol.Location); ok {
		sol.Height = h.Height
		sol.HasHeight = true
		sol.Stages.Height = &h
	} else {
		s.logger.Printf("Height: no estimate, keeping previous (%.2f, valid=%v)\n", sol.Height, sol.HasHeight)
	}
	if !sol.HasHeight {
		s.last = sol
		return sol, nil
	}

	alb, err := s.albedo.Estimate(img, sol.Location, sol.Height)
	if err != nil {
		s.logger.Printf("Albedo: %v\n", err)
	} else {
		sol.Albedo = alb.Albedo
		sol.Brightest = alb.Brightest
		sol.Dimmest = alb.Dimmest
		sol.Ratios = alb.Ratios
		sol.HasAlbedo = true
		sol.Stages.Albedo = &alb
	}

	s.last = sol
	return sol, nil
}

// Profiles returns the intensity profile of every ray cast from location
func (s *Solver) Profiles(img *core.LinearImage, location core.Pixel) map[core.Pixel][]ProfileSample {
	profiles := make(map[core.Pixel][]ProfileSample, len(RayDirections))
	for _, dir := range RayDirections {
		profiles[dir] = s.heighter.Profile(img, location, dir)
	}
	return profiles
}
