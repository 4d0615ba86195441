package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/df07/go-light-estimator/pkg/config"
	"github.com/df07/go-light-estimator/pkg/core"
	"github.com/df07/go-light-estimator/pkg/renderer"
	"github.com/df07/go-light-estimator/pkg/runstore"
	"github.com/df07/go-light-estimator/pkg/scoring"
)

func testOptions(t *testing.T) options {
	return options{
		mode:      "solve",
		x:         60,
		y:         60,
		row:       1,
		col:       1,
		height:    100,
		outputDir: t.TempDir(),
		limit:     10,
	}
}

func smallConfigFile(t *testing.T) string {
	path := filepath.Join(t.TempDir(), "estimator.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"grid": {"patch_size": 40}}`), 0644))
	return path
}

func TestParseAlbedo(t *testing.T) {
	albedo, err := parseAlbedo("0.5, 0.6,0.7,0.6,0.8,0.5,0.4,0.9,1")
	require.NoError(t, err)
	assert.Equal(t, 0.4, albedo[6])
	assert.Equal(t, 1.0, albedo[8])

	_, err = parseAlbedo("0.5,0.6")
	assert.Error(t, err)
	_, err = parseAlbedo("0.5,0.6,0.7,0.6,0.8,0.5,0.4,0.9,x")
	assert.Error(t, err)
}

func TestCreateLight(t *testing.T) {
	cfg := config.Default()
	opts := testOptions(t)

	light, err := createLight(cfg, opts)
	require.NoError(t, err)
	assert.Equal(t, core.NewPoint(60, 60), light.Position)
	assert.True(t, light.On)

	cfg.Render.LocalLightCoordinates = true
	opts.row, opts.col = 2, 2
	light, err = createLight(cfg, opts)
	require.NoError(t, err)
	assert.Equal(t, core.NewPoint(599, 599), light.Position)

	opts.row = 5
	_, err = createLight(cfg, opts)
	assert.Error(t, err)

	opts = testOptions(t)
	opts.albedo = "0.5,0.6,0.7,0.6,0.8,0.5,0.4,0.9,1.5"
	_, err = createLight(config.Default(), opts)
	assert.Error(t, err, "albedo above one should fail validation")
}

func TestLoadConfigFlags(t *testing.T) {
	opts := testOptions(t)
	opts.configPath = smallConfigFile(t)
	opts.noise = true

	cfg, err := loadConfig(opts)
	require.NoError(t, err)
	assert.Equal(t, 40, cfg.Grid.PatchSize)
	assert.True(t, cfg.Render.Noise)

	opts.configPath = filepath.Join(t.TempDir(), "missing.json")
	_, err = loadConfig(opts)
	assert.Error(t, err)
}

func TestSolveReportsErrorsAgainstTruth(t *testing.T) {
	cfg := config.Default()
	cfg.Grid.PatchSize = 40
	light, err := createLight(cfg, testOptions(t))
	require.NoError(t, err)
	img, _ := renderer.NewRenderer(cfg, nil).Render(light)

	truth := scoring.FromLight(light)
	result, err := solve(cfg, img, &truth, nil)
	require.NoError(t, err)
	require.NotNil(t, result.errors)
	assert.Less(t, result.errors.LocationError, 0.02)
	assert.Less(t, result.errors.HeightError, 0.05)
	assert.Less(t, result.errors.MaxAlbedoError, 0.05)
}

func TestRunModes(t *testing.T) {
	opts := testOptions(t)
	opts.configPath = smallConfigFile(t)
	opts.dbPath = filepath.Join(t.TempDir(), "runs.db")
	opts.linear = true
	opts.plot = true

	opts.mode = "render"
	require.NoError(t, run(opts))
	renders, err := filepath.Glob(filepath.Join(opts.outputDir, "render", "*", "render*.png"))
	require.NoError(t, err)
	assert.Len(t, renders, 2)

	opts.mode = "solve"
	require.NoError(t, run(opts))
	votes, err := filepath.Glob(filepath.Join(opts.outputDir, "solve", "*", "votes.png"))
	require.NoError(t, err)
	assert.Len(t, votes, 1)

	store, err := runstore.Open(opts.dbPath)
	require.NoError(t, err)
	runs, err := store.List(10)
	require.NoError(t, err)
	require.NoError(t, store.Close())
	require.Len(t, runs, 1)
	assert.Equal(t, "solve", runs[0].Mode)
	assert.True(t, runs[0].LocationError.Valid)

	opts.mode = "runs"
	assert.NoError(t, run(opts))

	opts.mode = "unknown"
	assert.Error(t, run(opts))
}

func TestRunScoreAndCompare(t *testing.T) {
	opts := testOptions(t)
	opts.configPath = smallConfigFile(t)
	cfg, err := loadConfig(opts)
	require.NoError(t, err)

	light, err := createLight(cfg, opts)
	require.NoError(t, err)
	img, _ := renderer.NewRenderer(cfg, nil).Render(light)
	photo := filepath.Join(t.TempDir(), "photo.png")
	require.NoError(t, saveImages(filepath.Dir(photo), img, true))
	linearPhoto := filepath.Join(filepath.Dir(photo), "render_linear.png")
	photo = filepath.Join(filepath.Dir(photo), "render.png")

	truth := scoring.FromLight(light)
	moved := truth
	moved.Height = 140
	paramsFile := filepath.Join(t.TempDir(), "params.txt")
	require.NoError(t, os.WriteFile(paramsFile, []byte(truth.String()+"\n"+moved.String()+"\n"), 0644))

	opts.mode = "score"
	opts.input = photo
	opts.params = paramsFile
	assert.NoError(t, run(opts))
	opts.input = linearPhoto
	assert.NoError(t, run(opts))

	opts.mode = "compare"
	assert.NoError(t, run(opts))

	single := filepath.Join(t.TempDir(), "single.txt")
	require.NoError(t, os.WriteFile(single, []byte(truth.String()+"\n"), 0644))
	opts.params = single
	assert.ErrorIs(t, run(opts), scoring.ErrInvalidParams)

	opts.mode = "score"
	opts.input = ""
	assert.Error(t, run(opts))
}
