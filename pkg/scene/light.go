package scene

import (
	"fmt"

	"github.com/df07/go-light-estimator/pkg/config"
	"github.com/df07/go-light-estimator/pkg/core"
)

// DefaultAlbedo is the per-patch albedo used when none is supplied
var DefaultAlbedo = [config.PatchCount]float64{
	0.3, 0.7, 0.6,
	0.7, 0.6, 0.5,
	0.6, 0.5, 1.0,
}

// LightSource is a point light hovering over the ground plane
type LightSource struct {
	Position core.Point                 // Ground projection, may lie outside the grid
	Height   float64                    // Height above the ground in pixels
	On       bool                       // Whether the light is switched on
	Albedo   [config.PatchCount]float64 // Per-patch albedo in (0, 1]
}

// NewLightSource creates a switched-on light with the default albedo
func NewLightSource(position core.Point, height float64) LightSource {
	return LightSource{
		Position: position,
		Height:   height,
		On:       true,
		Albedo:   DefaultAlbedo,
	}
}

// Validate checks the light parameters
func (l LightSource) Validate() error {
	if l.Height < 0 {
		return fmt.Errorf("light height must be non-negative, got %f", l.Height)
	}
	for i, a := range l.Albedo {
		if a <= 0 || a > 1 {
			return fmt.Errorf("albedo[%d] must be in (0, 1], got %f", i, a)
		}
	}
	return nil
}
