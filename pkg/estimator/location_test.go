package estimator

import (
	"image"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/df07/go-light-estimator/pkg/core"
	"github.com/df07/go-light-estimator/pkg/scene"
)

func TestCircumcenter(t *testing.T) {
	tests := []struct {
		name     string
		a, b, c  core.Point
		expected core.Point
		ok       bool
	}{
		{"right triangle", core.NewPoint(0, 0), core.NewPoint(2, 0), core.NewPoint(0, 2), core.NewPoint(1, 1), true},
		{"points on circle", core.NewPoint(15, 10), core.NewPoint(10, 15), core.NewPoint(5, 10), core.NewPoint(10, 10), true},
		{"collinear", core.NewPoint(0, 0), core.NewPoint(1, 1), core.NewPoint(5, 5), core.Point{}, false},
		{"coincident", core.NewPoint(3, 3), core.NewPoint(3, 3), core.NewPoint(8, 1), core.Point{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			center, ok := Circumcenter(tt.a, tt.b, tt.c, 1e-9)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.InDelta(t, tt.expected.X, center.X, 1e-9)
				assert.InDelta(t, tt.expected.Y, center.Y, 1e-9)
			}
		})
	}
}

func TestLocateRecoversLight(t *testing.T) {
	tests := []struct {
		name     string
		position core.Point
		height   float64
	}{
		{"grid center", core.NewPoint(60, 60), 100},
		{"off center", core.NewPoint(45, 70), 120},
		{"corner patch", core.NewPoint(20, 95), 80},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(40)
			img := renderScene(t, cfg, scene.NewLightSource(tt.position, tt.height))

			result, ok := NewLocationEstimator(cfg, &testLogger{t}).Estimate(img)
			require.True(t, ok)
			assert.LessOrEqual(t, result.Location.Point().Distance(tt.position), 2.0,
				"estimated %v, want %v", result.Location, tt.position)
			assert.Greater(t, result.Votes, 0)
			assert.GreaterOrEqual(t, result.TotalVotes, result.Votes)
			assert.Equal(t, result.Location, result.Top[0].Pixel)
		})
	}
}

func TestLocateOutsideGridNeedsBoundCheckOff(t *testing.T) {
	cfg := testConfig(40)
	position := core.NewPoint(-20, 60)
	img := renderScene(t, cfg, scene.NewLightSource(position, 100))

	result, ok := NewLocationEstimator(cfg, nil).Estimate(img)
	if ok {
		for _, c := range result.Top {
			assert.True(t, img.InBounds(c.Pixel), "candidate %v outside image with bound check on", c.Pixel)
		}
	}

	cfg.Location.BoundCheck = false
	result, ok = NewLocationEstimator(cfg, nil).Estimate(img)
	require.True(t, ok)
	assert.LessOrEqual(t, result.Location.Point().Distance(position), 3.0,
		"estimated %v, want %v", result.Location, position)
}

func TestLocateFlatImageHasNoEstimate(t *testing.T) {
	cfg := testConfig(20)
	img := core.NewLinearImage(60, 60)
	for i := range img.Pix {
		img.Pix[i] = 0.5
	}

	result, ok := NewLocationEstimator(cfg, nil).Estimate(img)
	assert.False(t, ok)
	assert.Equal(t, 9, result.SkippedPatches)
	assert.Zero(t, result.TotalVotes)
}

func TestLocateIsDeterministic(t *testing.T) {
	cfg := testConfig(30)
	img := renderScene(t, cfg, scene.NewLightSource(core.NewPoint(40, 52), 90))

	cfg.NumWorkers = 1
	first, _ := NewLocationEstimator(cfg, nil).Estimate(img)
	cfg.NumWorkers = 6
	second, _ := NewLocationEstimator(cfg, nil).Estimate(img)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("location results differ between runs (-first +second):\n%s", diff)
	}
}

func TestStrideSelect(t *testing.T) {
	keys := []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	assert.Equal(t, keys, strideSelect(keys, 20))
	assert.Equal(t, []int64{1, 3, 5, 7, 9}, strideSelect(keys, 5))
}

func TestIntensityRange(t *testing.T) {
	img := core.NewLinearImage(4, 3)
	for i := range img.Pix {
		img.Pix[i] = float64(i) / 10
	}

	lo, hi := intensityRange(img, image.Rect(1, 1, 3, 3))
	assert.InDelta(t, 0.5, lo, 1e-12)
	assert.InDelta(t, 1.0, hi, 1e-12)

	lo, hi = intensityRange(img, image.Rect(2, 2, 2, 3))
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 0.0, hi)
}

func TestRankCandidatesTieBreak(t *testing.T) {
	votes := map[core.Pixel]int{
		{X: 5, Y: 2}: 3,
		{X: 1, Y: 2}: 3,
		{X: 9, Y: 0}: 3,
		{X: 0, Y: 0}: 1,
	}
	top := rankCandidates(votes, 3)
	require.Len(t, top, 3)
	assert.Equal(t, core.Pixel{X: 9, Y: 0}, top[0].Pixel)
	assert.Equal(t, core.Pixel{X: 1, Y: 2}, top[1].Pixel)
	assert.Equal(t, core.Pixel{X: 5, Y: 2}, top[2].Pixel)
}
