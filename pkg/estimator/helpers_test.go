package estimator

import (
	"testing"

	"github.com/df07/go-light-estimator/pkg/config"
	"github.com/df07/go-light-estimator/pkg/core"
	"github.com/df07/go-light-estimator/pkg/renderer"
	"github.com/df07/go-light-estimator/pkg/scene"
)

// testLogger implements core.Logger for testing by forwarding to t.Logf
type testLogger struct {
	t *testing.T
}

var _ core.Logger = (*testLogger)(nil)

func (tl *testLogger) Printf(format string, args ...interface{}) {
	tl.t.Helper()
	tl.t.Logf(format, args...)
}

// testConfig returns the default config on a grid of the given patch size
func testConfig(patchSize int) config.Config {
	cfg := config.Default()
	cfg.Grid.PatchSize = patchSize
	return cfg
}

// renderScene renders a noiseless scene for the estimators to solve
func renderScene(t *testing.T, cfg config.Config, light scene.LightSource) *core.LinearImage {
	t.Helper()
	img, _ := renderer.NewRenderer(cfg, nil).Render(light)
	return img
}

func withAlbedo(light scene.LightSource, albedo [config.PatchCount]float64) scene.LightSource {
	light.Albedo = albedo
	return light
}

func uniformAlbedo(a float64) [config.PatchCount]float64 {
	var albedo [config.PatchCount]float64
	for i := range albedo {
		albedo[i] = a
	}
	return albedo
}
