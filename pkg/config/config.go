package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// PatchCount is the number of patches in the 3x3 scene grid
const PatchCount = 9

// ErrInvalidConfig is wrapped by every validation failure
var ErrInvalidConfig = errors.New("invalid config")

// GridConfig describes the fixed patch layout
type GridConfig struct {
	PatchSize   int                 `json:"patch_size"`  // Side of one patch in pixels
	Reflectance [PatchCount]float64 `json:"reflectance"` // Base reflectance per patch
}

// RenderConfig contains the photometric model and noise parameters.
//
// Location voting buckets raw intensities to Precision decimals, so noise
// much larger than one bucket scatters the equal-intensity clusters. With the
// default NoiseSigma of 0.01 on 200px patches the estimates are reproducible
// for a fixed Seed but not accurate; noisy renders are for exercising the
// pipeline, not for measuring it.
type RenderConfig struct {
	Luminosity            float64 `json:"luminosity"`              // Fixed light luminosity L
	Noise                 bool    `json:"noise"`                   // Add Gaussian noise per pixel
	NoiseSigma            float64 `json:"noise_sigma"`             // Noise standard deviation
	Seed                  int64   `json:"seed"`                    // Noise seed
	LocalLightCoordinates bool    `json:"local_light_coordinates"` // Light position given as patch (col, row)
}

// LocationConfig tunes circumcenter voting
type LocationConfig struct {
	Precision            int     `json:"precision"`               // Decimal places used to bucket intensities
	MaxClustersPerPatch  int     `json:"max_clusters_per_patch"`  // Cap on equal-intensity clusters kept per patch
	MaxTriplesPerCluster int     `json:"max_triples_per_cluster"` // Cap on sampled 3-point combinations per cluster
	MinPointSpacing      float64 `json:"min_point_spacing"`       // Minimum pairwise distance inside a triple
	CollinearEpsilon     float64 `json:"collinear_epsilon"`       // Triples with |D| below this are dropped
	BoundCheck           bool    `json:"bound_check"`             // Drop centers outside the image
	SkipFlatPatches      bool    `json:"skip_flat_patches"`       // Skip patches with a degenerate intensity range
	FlatRangeEpsilon     float64 `json:"flat_range_epsilon"`      // Range below which a patch counts as flat
	Seed                 int64   `json:"seed"`                    // Triple sampling seed
}

// HeightConfig tunes boundary ray casting
type HeightConfig struct {
	DiscontinuityRatio float64 `json:"discontinuity_ratio"` // Step across a boundary vs. in-patch steps
	MinDiscontinuity   float64 `json:"min_discontinuity"`   // Absolute floor for a boundary step
	DenominatorEpsilon float64 `json:"denominator_epsilon"` // |b1^2 - b2^2| below this is ill-conditioned
	DefaultHeight      float64 `json:"default_height"`      // Height used before any estimate exists (0 = unknown)
}

// AlbedoConfig tunes pairwise ratio propagation
type AlbedoConfig struct {
	BorderSamples  int     `json:"border_samples"`  // Pixel pairs measured along each shared edge
	RatioTolerance float64 `json:"ratio_tolerance"` // Ratios within 1 +/- tolerance count as equal
}

// Config is the immutable configuration handed to every component
type Config struct {
	Grid       GridConfig     `json:"grid"`
	Render     RenderConfig   `json:"render"`
	Location   LocationConfig `json:"location"`
	Height     HeightConfig   `json:"height"`
	Albedo     AlbedoConfig   `json:"albedo"`
	NumWorkers int            `json:"num_workers"` // Parallel workers (0 = use CPU count)
}

// Default returns sensible default values
func Default() Config {
	return Config{
		Grid: GridConfig{
			PatchSize:   200,
			Reflectance: [PatchCount]float64{1, 1, 1, 1, 1, 1, 1, 1, 1},
		},
		Render: RenderConfig{
			Luminosity: 1.0,
			NoiseSigma: 0.01,
			Seed:       42,
		},
		Location: LocationConfig{
			Precision:            3,
			MaxClustersPerPatch:  64,
			MaxTriplesPerCluster: 200,
			MinPointSpacing:      4,
			CollinearEpsilon:     1e-6,
			BoundCheck:           true,
			SkipFlatPatches:      true,
			FlatRangeEpsilon:     1e-6,
			Seed:                 42,
		},
		Height: HeightConfig{
			DiscontinuityRatio: 3,
			MinDiscontinuity:   1e-4,
			DenominatorEpsilon: 1e-9,
		},
		Albedo: AlbedoConfig{
			BorderSamples:  1,
			RatioTolerance: 1e-9,
		},
	}
}

// Validate checks that every field is usable
func (c Config) Validate() error {
	if c.Grid.PatchSize < 3 {
		return fmt.Errorf("%w: patch_size must be at least 3, got %d", ErrInvalidConfig, c.Grid.PatchSize)
	}
	for i, r := range c.Grid.Reflectance {
		if r < 0 {
			return fmt.Errorf("%w: reflectance[%d] must be non-negative, got %f", ErrInvalidConfig, i, r)
		}
	}
	if c.Render.Luminosity <= 0 {
		return fmt.Errorf("%w: luminosity must be positive, got %f", ErrInvalidConfig, c.Render.Luminosity)
	}
	if c.Render.Noise && c.Render.NoiseSigma < 0 {
		return fmt.Errorf("%w: noise_sigma must be non-negative, got %f", ErrInvalidConfig, c.Render.NoiseSigma)
	}
	if c.Location.Precision < 0 || c.Location.Precision > 8 {
		return fmt.Errorf("%w: precision must be between 0 and 8, got %d", ErrInvalidConfig, c.Location.Precision)
	}
	if c.Location.MaxClustersPerPatch <= 0 {
		return fmt.Errorf("%w: max_clusters_per_patch must be positive", ErrInvalidConfig)
	}
	if c.Location.MaxTriplesPerCluster <= 0 {
		return fmt.Errorf("%w: max_triples_per_cluster must be positive", ErrInvalidConfig)
	}
	if c.Height.DiscontinuityRatio < 1 {
		return fmt.Errorf("%w: discontinuity_ratio must be at least 1, got %f", ErrInvalidConfig, c.Height.DiscontinuityRatio)
	}
	if c.Height.DefaultHeight < 0 {
		return fmt.Errorf("%w: default_height must be non-negative", ErrInvalidConfig)
	}
	if c.Albedo.BorderSamples <= 0 || c.Albedo.BorderSamples > c.Grid.PatchSize {
		return fmt.Errorf("%w: border_samples must be between 1 and patch_size, got %d", ErrInvalidConfig, c.Albedo.BorderSamples)
	}
	if c.NumWorkers < 0 {
		return fmt.Errorf("%w: num_workers must be non-negative", ErrInvalidConfig)
	}
	return nil
}

// Load reads a JSON config file on top of Default.
// Fields omitted from the file keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()

	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return cfg, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return cfg, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return cfg, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
