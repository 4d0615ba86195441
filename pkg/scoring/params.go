// Package scoring compares estimates against ground truth: it parses
// parameter lines, scores a parameter set against a reference photograph and
// reports normalised errors between two solutions.
package scoring

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/df07/go-light-estimator/pkg/config"
	"github.com/df07/go-light-estimator/pkg/core"
	"github.com/df07/go-light-estimator/pkg/estimator"
	"github.com/df07/go-light-estimator/pkg/scene"
)

// ErrInvalidParams is returned for malformed or out-of-range parameter lines
var ErrInvalidParams = errors.New("invalid parameters")

// paramFields is x, y, height and one albedo per patch
const paramFields = 3 + config.PatchCount

// Params is one candidate solution: "x y height a1 .. a9"
type Params struct {
	Position core.Point
	Height   float64
	Albedo   [config.PatchCount]float64
}

// ParseParams parses a whitespace separated parameter line
func ParseParams(line string) (Params, error) {
	fields := strings.Fields(line)
	if len(fields) != paramFields {
		return Params{}, fmt.Errorf("%w: expected %d fields, got %d", ErrInvalidParams, paramFields, len(fields))
	}

	values := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return Params{}, fmt.Errorf("%w: field %d %q is not a number", ErrInvalidParams, i+1, f)
		}
		values[i] = v
	}

	p := Params{
		Position: core.NewPoint(values[0], values[1]),
		Height:   values[2],
	}
	copy(p.Albedo[:], values[3:])

	if p.Height < 0 {
		return Params{}, fmt.Errorf("%w: negative height %g", ErrInvalidParams, p.Height)
	}
	for i, a := range p.Albedo {
		if a <= 0 {
			return Params{}, fmt.Errorf("%w: albedo %d must be positive, got %g", ErrInvalidParams, i+1, a)
		}
	}
	return p, nil
}

// ReadParams parses every non-empty line of r; lines starting with '#' are
// comments
func ReadParams(r io.Reader) ([]Params, error) {
	var params []Params
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		p, err := ParseParams(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		params = append(params, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read parameters: %w", err)
	}
	return params, nil
}

// LoadParams reads the first parameter line of a file
func LoadParams(filename string) (Params, error) {
	file, err := os.Open(filename)
	if err != nil {
		return Params{}, fmt.Errorf("failed to open parameter file: %w", err)
	}
	defer file.Close()

	params, err := ReadParams(file)
	if err != nil {
		return Params{}, fmt.Errorf("%s: %w", filename, err)
	}
	if len(params) == 0 {
		return Params{}, fmt.Errorf("%w: %s has no parameter line", ErrInvalidParams, filename)
	}
	return params[0], nil
}

// FromLight captures a light's parameters
func FromLight(light scene.LightSource) Params {
	return Params{Position: light.Position, Height: light.Height, Albedo: light.Albedo}
}

// FromSolution captures an estimate's parameters
func FromSolution(sol estimator.Solution) Params {
	return Params{Position: sol.Location.Point(), Height: sol.Height, Albedo: sol.Albedo}
}

// Light returns a switched-on light with these parameters
func (p Params) Light() scene.LightSource {
	light := scene.NewLightSource(p.Position, p.Height)
	light.Albedo = p.Albedo
	return light
}

// String formats the parameters in the same layout ParseParams reads
func (p Params) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%g %g %g", p.Position.X, p.Position.Y, p.Height)
	for _, a := range p.Albedo {
		sb.WriteString(" ")
		sb.WriteString(strconv.FormatFloat(a, 'g', 6, 64))
	}
	return sb.String()
}
