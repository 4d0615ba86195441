// Package plots draws diagnostic charts of the estimation stages
package plots

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/df07/go-light-estimator/pkg/core"
	"github.com/df07/go-light-estimator/pkg/estimator"
)

// Palette returns n evenly spaced hues
func Palette(n int) []color.Color {
	colors := make([]color.Color, n)
	for i := range colors {
		colors[i] = colorful.Hsv(360*float64(i)/float64(max(n, 1)), 0.75, 0.85).Clamped()
	}
	return colors
}

// Profiles plots intensity against distance along each ray, with the
// detected boundary samples marked
func Profiles(profiles map[core.Pixel][]estimator.ProfileSample) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Ray intensity profiles"
	p.X.Label.Text = "Distance from location (px)"
	p.Y.Label.Text = "Linear intensity"

	// Keep the legend in the fixed ray order
	var dirs []core.Pixel
	for _, dir := range estimator.RayDirections {
		if _, ok := profiles[dir]; ok {
			dirs = append(dirs, dir)
		}
	}
	colors := Palette(len(dirs))

	for i, dir := range dirs {
		samples := profiles[dir]
		if len(samples) == 0 {
			continue
		}
		pts := make(plotter.XYs, len(samples))
		var boundaries plotter.XYs
		for n, s := range samples {
			pts[n] = plotter.XY{X: s.Distance, Y: s.Intensity}
			if s.Boundary {
				boundaries = append(boundaries, pts[n])
			}
		}

		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, err
		}
		line.Color = colors[i]
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(dir.String(), line)

		if len(boundaries) > 0 {
			marks, err := plotter.NewScatter(boundaries)
			if err != nil {
				return nil, err
			}
			marks.Color = colors[i]
			marks.Shape = draw.CrossGlyph{}
			marks.Radius = vg.Points(4)
			p.Add(marks)
		}
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

// Votes plots the best location candidates, sized by votes, and the true
// light position when known
func Votes(result estimator.LocationResult, truth *core.Point) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Location votes (%d total, %d clusters)", result.TotalVotes, result.Clusters)
	p.X.Label.Text = "x (px)"
	p.Y.Label.Text = "y (px)"

	if len(result.Top) > 0 {
		data := make(plotter.XYZs, len(result.Top))
		for i, c := range result.Top {
			data[i] = plotter.XYZ{X: float64(c.Pixel.X), Y: float64(c.Pixel.Y), Z: float64(c.Votes)}
		}
		peak := data[0].Z

		scatter, err := plotter.NewScatter(data)
		if err != nil {
			return nil, err
		}
		scatter.GlyphStyleFunc = func(i int) draw.GlyphStyle {
			return draw.GlyphStyle{
				Color:  color.RGBA{R: 200, G: 60, B: 40, A: 255},
				Radius: vg.Points(2 + 8*data[i].Z/peak),
				Shape:  draw.CircleGlyph{},
			}
		}
		p.Add(scatter)
		p.Legend.Add("candidates", scatter)
	}

	if truth != nil {
		mark, err := plotter.NewScatter(plotter.XYs{{X: truth.X, Y: truth.Y}})
		if err != nil {
			return nil, err
		}
		mark.Shape = draw.PlusGlyph{}
		mark.Radius = vg.Points(6)
		p.Add(mark)
		p.Legend.Add("light", mark)
	}
	return p, nil
}

// Save writes a plot as an image, the format chosen by the file extension
func Save(p *plot.Plot, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return fmt.Errorf("failed to create plot dir: %w", err)
	}
	if err := p.Save(10*vg.Inch, 6*vg.Inch, filename); err != nil {
		return fmt.Errorf("save plot %s: %w", filepath.Base(filename), err)
	}
	return nil
}
