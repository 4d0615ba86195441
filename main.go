package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/df07/go-light-estimator/pkg/config"
	"github.com/df07/go-light-estimator/pkg/core"
	"github.com/df07/go-light-estimator/pkg/estimator"
	"github.com/df07/go-light-estimator/pkg/loaders"
	"github.com/df07/go-light-estimator/pkg/plots"
	"github.com/df07/go-light-estimator/pkg/renderer"
	"github.com/df07/go-light-estimator/pkg/runstore"
	"github.com/df07/go-light-estimator/pkg/scene"
	"github.com/df07/go-light-estimator/pkg/scoring"
)

// options holds the parsed command line
type options struct {
	mode       string
	configPath string
	x, y       float64
	row, col   int
	height     float64
	albedo     string
	lightOff   bool
	noise      bool
	input      string
	truth      string
	params     string
	outputDir  string
	linear     bool
	plot       bool
	dbPath     string
	limit      int
}

func main() {
	opts := options{}
	flag.StringVar(&opts.mode, "mode", "solve", "Mode: 'render', 'solve', 'score', 'compare' or 'runs'")
	flag.StringVar(&opts.configPath, "config", "", "JSON configuration file (defaults are used when empty)")
	flag.Float64Var(&opts.x, "x", 300, "Light ground position x in pixels")
	flag.Float64Var(&opts.y, "y", 300, "Light ground position y in pixels")
	flag.IntVar(&opts.row, "row", 1, "Patch row of the light (with local_light_coordinates)")
	flag.IntVar(&opts.col, "col", 1, "Patch column of the light (with local_light_coordinates)")
	flag.Float64Var(&opts.height, "height", 500, "Light height in pixels")
	flag.StringVar(&opts.albedo, "albedo", "", "Nine comma separated patch albedos (default albedo when empty)")
	flag.BoolVar(&opts.lightOff, "off", false, "Render with the light switched off")
	flag.BoolVar(&opts.noise, "noise", false, "Add Gaussian noise to the render")
	flag.StringVar(&opts.input, "input", "", "Solve a photograph instead of a synthetic render")
	flag.StringVar(&opts.truth, "truth", "", "Parameter file with the true solution, used for errors")
	flag.StringVar(&opts.params, "params", "", "Parameter file with solutions to score or compare")
	flag.StringVar(&opts.outputDir, "output", "output", "Output directory")
	flag.BoolVar(&opts.linear, "linear", false, "Also save a 16-bit linear PNG")
	flag.BoolVar(&opts.plot, "plot", false, "Save ray profile and vote plots")
	flag.StringVar(&opts.dbPath, "db", "", "Record runs in this sqlite database")
	flag.IntVar(&opts.limit, "limit", 20, "Number of runs to list")
	help := flag.Bool("help", false, "Show help information")
	flag.Parse()

	if *help {
		printHelp()
		return
	}

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println("Light Estimator")
	fmt.Println("Usage: light-estimator [options]")
	fmt.Println()
	fmt.Println("Options:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("Modes:")
	fmt.Println("  render  - Render the patch grid lit by the configured light")
	fmt.Println("  solve   - Render (or load -input) and estimate location, height and albedo")
	fmt.Println("  score   - Score every line of -params against the -input photograph")
	fmt.Println("  compare - Compare the first two lines of -params")
	fmt.Println("  runs    - List runs recorded in -db")
	fmt.Println()
	fmt.Println("Output will be saved to <output>/<mode>/<timestamp>/")
}

// run dispatches the selected mode
func run(opts options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	logger := renderer.NewDefaultLogger()

	switch opts.mode {
	case "render":
		return runRender(cfg, opts, logger)
	case "solve":
		return runSolve(cfg, opts, logger)
	case "score":
		return runScore(cfg, opts, logger)
	case "compare":
		return runCompare(cfg, opts)
	case "runs":
		return runRuns(opts)
	default:
		return fmt.Errorf("unknown mode: %s", opts.mode)
	}
}

// loadConfig reads the config file, if any, and applies flag overrides
func loadConfig(opts options) (config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}
	if opts.noise {
		cfg.Render.Noise = true
	}
	return cfg, cfg.Validate()
}

// createLight builds the light described by the flags
func createLight(cfg config.Config, opts options) (scene.LightSource, error) {
	position := core.NewPoint(opts.x, opts.y)
	if cfg.Render.LocalLightCoordinates {
		var err error
		position, err = scene.NewGrid(cfg.Grid).Anchor(opts.row, opts.col)
		if err != nil {
			return scene.LightSource{}, err
		}
	}

	light := scene.NewLightSource(position, opts.height)
	light.On = !opts.lightOff
	if opts.albedo != "" {
		albedo, err := parseAlbedo(opts.albedo)
		if err != nil {
			return scene.LightSource{}, err
		}
		light.Albedo = albedo
	}
	return light, light.Validate()
}

// parseAlbedo parses nine comma separated values
func parseAlbedo(s string) ([config.PatchCount]float64, error) {
	var albedo [config.PatchCount]float64
	parts := strings.Split(s, ",")
	if len(parts) != config.PatchCount {
		return albedo, fmt.Errorf("expected %d albedo values, got %d", config.PatchCount, len(parts))
	}
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return albedo, fmt.Errorf("invalid albedo %q: %w", part, err)
		}
		albedo[i] = v
	}
	return albedo, nil
}

// createOutputDir creates a timestamped directory for one run
func createOutputDir(base, mode string) (string, error) {
	timestamp := time.Now().Format("20060102_150405")
	dir := filepath.Join(base, mode, timestamp)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("error creating output directory: %w", err)
	}
	return dir, nil
}

func runRender(cfg config.Config, opts options, logger core.Logger) error {
	light, err := createLight(cfg, opts)
	if err != nil {
		return err
	}

	startTime := time.Now()
	img, stats := renderer.NewRenderer(cfg, logger).Render(light)
	fmt.Printf("Render completed in %v (%d pixels, %d clamped)\n", time.Since(startTime), stats.TotalPixels, stats.ClampedPixels)

	outputDir, err := createOutputDir(opts.outputDir, "render")
	if err != nil {
		return err
	}
	if err := saveImages(outputDir, img, opts.linear); err != nil {
		return err
	}
	fmt.Printf("Parameters: %v\n", scoring.FromLight(light))
	return nil
}

func saveImages(outputDir string, img *core.LinearImage, linear bool) error {
	filename := filepath.Join(outputDir, "render.png")
	if err := loaders.SavePNG(filename, img); err != nil {
		return err
	}
	fmt.Printf("Render saved as %s\n", filename)

	if linear {
		filename = filepath.Join(outputDir, "render_linear.png")
		if err := loaders.SaveLinearPNG(filename, img); err != nil {
			return err
		}
		fmt.Printf("Linear render saved as %s\n", filename)
	}
	return nil
}

// solveResult is what a solve run produced, for reporting and recording
type solveResult struct {
	solution estimator.Solution
	truth    *scoring.Params
	errors   *scoring.Comparison
	duration time.Duration
}

func runSolve(cfg config.Config, opts options, logger core.Logger) error {
	outputDir, err := createOutputDir(opts.outputDir, "solve")
	if err != nil {
		return err
	}

	var img *core.LinearImage
	var truth *scoring.Params
	if opts.input != "" {
		if img, err = loaders.LoadLinear(opts.input); err != nil {
			return err
		}
	} else {
		light, err := createLight(cfg, opts)
		if err != nil {
			return err
		}
		img, _ = renderer.NewRenderer(cfg, logger).Render(light)
		if err := saveImages(outputDir, img, opts.linear); err != nil {
			return err
		}
		params := scoring.FromLight(light)
		truth = &params
	}
	if opts.truth != "" {
		params, err := scoring.LoadParams(opts.truth)
		if err != nil {
			return err
		}
		truth = &params
	}

	result, err := solve(cfg, img, truth, logger)
	if err != nil {
		return err
	}
	printSolution(result)

	if opts.plot {
		if err := savePlots(cfg, outputDir, img, result, logger); err != nil {
			return err
		}
	}
	if opts.dbPath != "" {
		return recordSolve(opts.dbPath, cfg, result)
	}
	return nil
}

// solve runs one estimation cycle and compares it with the truth when known
func solve(cfg config.Config, img *core.LinearImage, truth *scoring.Params, logger core.Logger) (solveResult, error) {
	startTime := time.Now()
	sol, err := estimator.NewSolver(cfg, logger).Solve(img)
	if err != nil {
		return solveResult{}, err
	}
	result := solveResult{solution: sol, truth: truth, duration: time.Since(startTime)}

	if truth != nil && sol.HasLocation && sol.HasHeight && sol.HasAlbedo {
		c := scoring.Compare(*truth, scoring.FromSolution(sol), scene.NewGrid(cfg.Grid).Diagonal())
		result.errors = &c
	}
	return result, nil
}

func printSolution(result solveResult) {
	sol := result.solution
	fmt.Printf("Solved in %v\n", result.duration)
	if !sol.HasLocation {
		fmt.Println("Location: no estimate")
		return
	}
	fmt.Printf("Location: %v\n", sol.Location)
	if !sol.HasHeight {
		fmt.Println("Height: no estimate")
		return
	}
	fmt.Printf("Height: %.2f\n", sol.Height)
	if sol.HasAlbedo {
		fmt.Printf("Brightest patch %d, dimmest patch %d\n", sol.Brightest, sol.Dimmest)
		for i, a := range sol.Albedo {
			fmt.Printf("  albedo%d/albedo_max: %.4f\n", i+1, a)
		}
		fmt.Printf("Ratios:\n%s\n", estimator.FormatRatios(sol.Ratios))
		fmt.Printf("Solution: %v\n", scoring.FromSolution(sol))
	}
	if result.errors != nil {
		printComparison(*result.errors)
	}
}

func printComparison(c scoring.Comparison) {
	fmt.Printf("Error in location: %.6f\n", c.LocationError)
	fmt.Printf("Error in height: %.6f\n", c.HeightError)
	for i, e := range c.AlbedoError {
		fmt.Printf("  error in albedo%d: %.6f\n", i+1, e)
	}
	fmt.Printf("Albedo error: mean %.6f, max %.6f\n", c.MeanAlbedoError, c.MaxAlbedoError)
}

func savePlots(cfg config.Config, outputDir string, img *core.LinearImage, result solveResult, logger core.Logger) error {
	sol := result.solution
	if sol.Stages.Location != nil {
		var truth *core.Point
		if result.truth != nil {
			truth = &result.truth.Position
		}
		p, err := plots.Votes(*sol.Stages.Location, truth)
		if err != nil {
			return err
		}
		if err := plots.Save(p, filepath.Join(outputDir, "votes.png")); err != nil {
			return err
		}
	}
	if sol.HasLocation {
		profiles := estimator.NewSolver(cfg, nil).Profiles(img, sol.Location)
		p, err := plots.Profiles(profiles)
		if err != nil {
			return err
		}
		if err := plots.Save(p, filepath.Join(outputDir, "profiles.png")); err != nil {
			return err
		}
	}
	logger.Printf("Plots saved in %s\n", outputDir)
	return nil
}

func recordSolve(dbPath string, cfg config.Config, result solveResult) error {
	store, err := runstore.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	sol := result.solution
	run := &runstore.Run{
		Mode:        "solve",
		PatchSize:   cfg.Grid.PatchSize,
		Estimate:    scoring.FromSolution(sol).String(),
		HasLocation: sol.HasLocation,
		HasHeight:   sol.HasHeight,
		HasAlbedo:   sol.HasAlbedo,
		Duration:    result.duration,
	}
	if result.truth != nil {
		run.Truth = result.truth.String()
	}
	if result.errors != nil {
		run.LocationError = sql.NullFloat64{Float64: result.errors.LocationError, Valid: true}
		run.HeightError = sql.NullFloat64{Float64: result.errors.HeightError, Valid: true}
		run.MaxAlbedoError = sql.NullFloat64{Float64: result.errors.MaxAlbedoError, Valid: true}
	}
	if err := store.Record(run); err != nil {
		return err
	}
	fmt.Printf("Recorded run %s\n", run.ID)
	return nil
}

func runScore(cfg config.Config, opts options, logger core.Logger) error {
	if opts.input == "" || opts.params == "" {
		return errors.New("score needs -input and -params")
	}
	reference, encoding, err := loaders.LoadReference(opts.input)
	if err != nil {
		return err
	}
	file, err := os.Open(opts.params)
	if err != nil {
		return fmt.Errorf("failed to open parameter file: %w", err)
	}
	defer file.Close()
	candidates, err := scoring.ReadParams(file)
	if err != nil {
		return err
	}

	var store *runstore.Store
	if opts.dbPath != "" {
		if store, err = runstore.Open(opts.dbPath); err != nil {
			return err
		}
		defer store.Close()
	}

	scorer := scoring.NewScorer(cfg, logger)
	for i, p := range candidates {
		score, err := scorer.Score(reference, encoding, p)
		if err != nil {
			return fmt.Errorf("candidate %d: %w", i+1, err)
		}
		fmt.Printf("%d\t%.6f\t%v\n", i+1, score, p)
		if store != nil {
			run := &runstore.Run{
				Mode:      "score",
				PatchSize: cfg.Grid.PatchSize,
				Estimate:  p.String(),
				Score:     sql.NullFloat64{Float64: score, Valid: true},
			}
			if err := store.Record(run); err != nil {
				return err
			}
		}
	}
	return nil
}

func runCompare(cfg config.Config, opts options) error {
	if opts.params == "" {
		return errors.New("compare needs -params with two solution lines")
	}
	file, err := os.Open(opts.params)
	if err != nil {
		return fmt.Errorf("failed to open parameter file: %w", err)
	}
	defer file.Close()
	solutions, err := scoring.ReadParams(file)
	if err != nil {
		return err
	}
	if len(solutions) < 2 {
		return fmt.Errorf("%w: compare needs two solutions, got %d", scoring.ErrInvalidParams, len(solutions))
	}

	diagonal := scene.NewGrid(cfg.Grid).Diagonal()
	for i, sol := range solutions[:2] {
		fmt.Printf("sol%d\n", i+1)
		fmt.Printf("  loc: %v\n", sol.Position)
		fmt.Printf("  height: %.6f\n", sol.Height/diagonal)
		for p, a := range scoring.NormalizeAlbedo(sol.Albedo) {
			fmt.Printf("  albedo%d/albedo_max: %.6f\n", p+1, a)
		}
	}
	printComparison(scoring.Compare(solutions[0], solutions[1], diagonal))
	return nil
}

func runRuns(opts options) error {
	if opts.dbPath == "" {
		return errors.New("runs needs -db")
	}
	store, err := runstore.Open(opts.dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.List(opts.limit)
	if err != nil {
		return err
	}
	for _, r := range runs {
		fmt.Printf("%s  %s  %-7s patch=%d  %s", r.ID, r.CreatedAt.Format(time.RFC3339), r.Mode, r.PatchSize, r.Estimate)
		if r.LocationError.Valid {
			fmt.Printf("  loc_err=%.5f h_err=%.5f albedo_err=%.5f", r.LocationError.Float64, r.HeightError.Float64, r.MaxAlbedoError.Float64)
		}
		if r.Score.Valid {
			fmt.Printf("  score=%.6f", r.Score.Float64)
		}
		fmt.Println()
	}
	return nil
}
