package scene

import (
	"fmt"
	"image"

	"github.com/df07/go-light-estimator/pkg/config"
	"github.com/df07/go-light-estimator/pkg/core"
)

// GridSide is the number of patches along each axis
const GridSide = 3

// CenterPatch is the index of the middle patch
const CenterPatch = 4

// Grid is the fixed 3x3 patch layout. Patch i covers row i/3, column i%3.
type Grid struct {
	PatchSize   int
	Reflectance [config.PatchCount]float64
}

// NewGrid creates the grid described by the configuration
func NewGrid(cfg config.GridConfig) *Grid {
	return &Grid{
		PatchSize:   cfg.PatchSize,
		Reflectance: cfg.Reflectance,
	}
}

// Width returns the image width in pixels
func (g *Grid) Width() int { return g.PatchSize * GridSide }

// Height returns the image height in pixels
func (g *Grid) Height() int { return g.PatchSize * GridSide }

// Diagonal returns the length of the image diagonal in pixels
func (g *Grid) Diagonal() float64 {
	return core.Pixel{}.Distance(core.Pixel{X: g.Width(), Y: g.Height()})
}

// PatchIndex returns the patch containing pixel (x, y).
// Coordinates beyond the last patch are clamped into it.
func (g *Grid) PatchIndex(x, y int) int {
	col := min(max(x/g.PatchSize, 0), GridSide-1)
	row := min(max(y/g.PatchSize, 0), GridSide-1)
	return row*GridSide + col
}

// PatchOf returns the patch containing p
func (g *Grid) PatchOf(p core.Pixel) int {
	return g.PatchIndex(p.X, p.Y)
}

// PatchBounds returns the pixel rectangle covered by patch i
func (g *Grid) PatchBounds(i int) image.Rectangle {
	row, col := i/GridSide, i%GridSide
	return image.Rect(col*g.PatchSize, row*g.PatchSize, (col+1)*g.PatchSize, (row+1)*g.PatchSize)
}

// PatchCenter returns the ground position of patch (row, col)'s center
func (g *Grid) PatchCenter(row, col int) core.Point {
	return core.NewPoint(float64(col*g.PatchSize+g.PatchSize/2), float64(row*g.PatchSize+g.PatchSize/2))
}

// Anchor maps a frame-relative light placement to a ground position.
// Corner patches anchor at the outer image corner, all other patches at
// their center.
func (g *Grid) Anchor(row, col int) (core.Point, error) {
	if row < 0 || row >= GridSide || col < 0 || col >= GridSide {
		return core.Point{}, fmt.Errorf("patch (%d, %d) outside the %dx%d grid", row, col, GridSide, GridSide)
	}
	last := float64(g.Width() - 1)
	isCornerRow := row == 0 || row == GridSide-1
	isCornerCol := col == 0 || col == GridSide-1
	if isCornerRow && isCornerCol {
		x, y := 0.0, 0.0
		if col == GridSide-1 {
			x = last
		}
		if row == GridSide-1 {
			y = last
		}
		return core.NewPoint(x, y), nil
	}
	return g.PatchCenter(row, col), nil
}

// Adjacency is an ordered pair of orthogonally neighbouring patches
type Adjacency struct {
	A, B       int
	Horizontal bool // B is to the right of A, otherwise B is below A
}

// Adjacencies lists the 12 orthogonal patch neighbours, left-to-right and
// top-to-bottom
func Adjacencies() []Adjacency {
	adj := make([]Adjacency, 0, 12)
	for row := 0; row < GridSide; row++ {
		for col := 0; col < GridSide-1; col++ {
			i := row*GridSide + col
			adj = append(adj, Adjacency{A: i, B: i + 1, Horizontal: true})
		}
	}
	for row := 0; row < GridSide-1; row++ {
		for col := 0; col < GridSide; col++ {
			i := row*GridSide + col
			adj = append(adj, Adjacency{A: i, B: i + GridSide})
		}
	}
	return adj
}

// BorderPairs returns n pixel pairs straddling the shared edge of an
// adjacency, spread evenly along the edge. The first pixel of each pair lies
// in patch A, the second in patch B.
func (g *Grid) BorderPairs(a Adjacency, n int) [][2]core.Pixel {
	n = max(1, min(n, g.PatchSize))
	boundsA := g.PatchBounds(a.A)
	pairs := make([][2]core.Pixel, 0, n)
	for k := 0; k < n; k++ {
		// Offset along the edge: midpoint for n == 1, evenly spaced otherwise
		offset := (2*k + 1) * g.PatchSize / (2 * n)
		if a.Horizontal {
			y := boundsA.Min.Y + offset
			pairs = append(pairs, [2]core.Pixel{{X: boundsA.Max.X - 1, Y: y}, {X: boundsA.Max.X, Y: y}})
		} else {
			x := boundsA.Min.X + offset
			pairs = append(pairs, [2]core.Pixel{{X: x, Y: boundsA.Max.Y - 1}, {X: x, Y: boundsA.Max.Y}})
		}
	}
	return pairs
}
