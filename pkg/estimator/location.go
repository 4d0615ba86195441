package estimator

import (
	"image"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/df07/go-light-estimator/pkg/config"
	"github.com/df07/go-light-estimator/pkg/core"
	"github.com/df07/go-light-estimator/pkg/scene"
	"github.com/df07/go-light-estimator/pkg/workpool"
)

// Candidate is a pixel that received circumcenter votes
type Candidate struct {
	Pixel core.Pixel
	Votes int
}

// LocationResult is the outcome of circumcenter voting
type LocationResult struct {
	Location       core.Pixel  // Arg-max of the summed votes
	Votes          int         // Votes at Location
	TotalVotes     int         // Accepted circumcenters over all clusters
	Clusters       int         // Equal-intensity clusters sampled
	SkippedPatches int         // Patches skipped as flat
	Top            []Candidate // Best candidates, most votes first
}

// cluster is a set of pixels of one patch sharing an intensity bucket
type cluster struct {
	patch  int
	key    int64
	points []core.Pixel
}

// LocationEstimator recovers the light's ground position by voting for the
// circumcenters of equal-intensity pixel triples
type LocationEstimator struct {
	grid       *scene.Grid
	config     config.LocationConfig
	numWorkers int
	logger     core.Logger
}

// NewLocationEstimator creates a location estimator
func NewLocationEstimator(cfg config.Config, logger core.Logger) *LocationEstimator {
	if logger == nil {
		logger = core.NopLogger{}
	}
	return &LocationEstimator{
		grid:       scene.NewGrid(cfg.Grid),
		config:     cfg.Location,
		numWorkers: cfg.NumWorkers,
		logger:     logger,
	}
}

// topCandidates is how many runner-up candidates a result keeps
const topCandidates = 10

// Estimate returns the most voted light position. ok is false when no
// triple produced an accepted circumcenter.
func (le *LocationEstimator) Estimate(img *core.LinearImage) (LocationResult, bool) {
	clusters, skipped := le.clusters(img)

	// Each cluster votes into its own map; maps are merged after the join
	voteMaps := workpool.Map(len(clusters), le.numWorkers, func(i int) map[core.Pixel]int {
		return le.vote(img, clusters[i])
	})

	total := make(map[core.Pixel]int)
	totalVotes := 0
	for _, votes := range voteMaps {
		for p, n := range votes {
			total[p] += n
			totalVotes += n
		}
	}

	result := LocationResult{
		TotalVotes:     totalVotes,
		Clusters:       len(clusters),
		SkippedPatches: skipped,
	}
	le.logger.Printf("Location: %d clusters, %d flat patches skipped, %d votes over %d candidates\n",
		len(clusters), skipped, totalVotes, len(total))
	if totalVotes == 0 {
		return result, false
	}

	result.Top = rankCandidates(total, topCandidates)
	result.Location = result.Top[0].Pixel
	result.Votes = result.Top[0].Votes
	return result, true
}

// clusters buckets every patch's pixels by quantized intensity
func (le *LocationEstimator) clusters(img *core.LinearImage) ([]cluster, int) {
	scale := math.Pow(10, float64(le.config.Precision))
	var clusters []cluster
	skipped := 0

	for patch := 0; patch < config.PatchCount; patch++ {
		bounds := le.grid.PatchBounds(patch).Intersect(img.Bounds())
		if bounds.Empty() {
			continue
		}

		if le.config.SkipFlatPatches {
			lo, hi := intensityRange(img, bounds)
			if hi-lo < le.config.FlatRangeEpsilon {
				skipped++
				continue
			}
		}

		buckets := make(map[int64][]core.Pixel)
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				key := int64(math.Round(img.At(x, y) * scale))
				buckets[key] = append(buckets[key], core.Pixel{X: x, Y: y})
			}
		}

		keys := make([]int64, 0, len(buckets))
		for key, points := range buckets {
			if len(points) >= 3 {
				keys = append(keys, key)
			}
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

		for _, key := range strideSelect(keys, le.config.MaxClustersPerPatch) {
			clusters = append(clusters, cluster{patch: patch, key: key, points: buckets[key]})
		}
	}
	return clusters, skipped
}

// vote samples bounded triples from one cluster and counts their centers
func (le *LocationEstimator) vote(img *core.LinearImage, c cluster) map[core.Pixel]int {
	votes := make(map[core.Pixel]int)
	n := len(c.points)
	limit := le.config.MaxTriplesPerCluster

	try := func(i, j, k int) {
		if p, ok := le.center(img, c.points[i], c.points[j], c.points[k]); ok {
			votes[p]++
		}
	}

	if binomial3(n) <= limit {
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				for k := j + 1; k < n; k++ {
					try(i, j, k)
				}
			}
		}
		return votes
	}

	random := rand.New(rand.NewSource(le.config.Seed + int64(c.patch)*1000003 + c.key))
	for t := 0; t < limit; t++ {
		i := random.Intn(n)
		j := random.Intn(n - 1)
		if j >= i {
			j++
		}
		k := random.Intn(n)
		if k == i || k == j {
			continue
		}
		try(i, j, k)
	}
	return votes
}

// center returns the rounded circumcenter of a triple if it passes every filter
func (le *LocationEstimator) center(img *core.LinearImage, a, b, c core.Pixel) (core.Pixel, bool) {
	if minPairDistance(a, b, c) < le.config.MinPointSpacing {
		return core.Pixel{}, false
	}
	center, ok := Circumcenter(a.Point(), b.Point(), c.Point(), le.config.CollinearEpsilon)
	if !ok {
		return core.Pixel{}, false
	}
	p := center.Round()
	if le.config.BoundCheck && !img.InBounds(p) {
		return core.Pixel{}, false
	}
	return p, true
}

// Circumcenter returns the center of the circle through a, b and c.
// ok is false when the points are (nearly) collinear, i.e. |D| < eps.
func Circumcenter(a, b, c core.Point, eps float64) (core.Point, bool) {
	d := 2 * (a.X*(b.Y-c.Y) + b.X*(c.Y-a.Y) + c.X*(a.Y-b.Y))
	if math.Abs(d) < eps {
		return core.Point{}, false
	}
	a2 := a.X*a.X + a.Y*a.Y
	b2 := b.X*b.X + b.Y*b.Y
	c2 := c.X*c.X + c.Y*c.Y
	ux := (a2*(b.Y-c.Y) + b2*(c.Y-a.Y) + c2*(a.Y-b.Y)) / d
	uy := (a2*(c.X-b.X) + b2*(a.X-c.X) + c2*(b.X-a.X)) / d
	return core.NewPoint(ux, uy), true
}

// rankCandidates returns the n best candidates, ties broken by row then column
func rankCandidates(votes map[core.Pixel]int, n int) []Candidate {
	candidates := make([]Candidate, 0, len(votes))
	for p, v := range votes {
		candidates = append(candidates, Candidate{Pixel: p, Votes: v})
	}
	sort.Slice(candidates, func(i, j int) bool {
		ci, cj := candidates[i], candidates[j]
		if ci.Votes != cj.Votes {
			return ci.Votes > cj.Votes
		}
		if ci.Pixel.Y != cj.Pixel.Y {
			return ci.Pixel.Y < cj.Pixel.Y
		}
		return ci.Pixel.X < cj.Pixel.X
	})
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	return candidates
}

// strideSelect keeps at most limit keys, evenly spread over the sorted input
func strideSelect(keys []int64, limit int) []int64 {
	if len(keys) <= limit {
		return keys
	}
	selected := make([]int64, limit)
	for i := range selected {
		selected[i] = keys[i*len(keys)/limit]
	}
	return selected
}

// intensityRange returns the darkest and brightest pixel inside bounds
func intensityRange(img *core.LinearImage, bounds image.Rectangle) (float64, float64) {
	if bounds.Empty() {
		return 0, 0
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		row := img.Row(y)[bounds.Min.X:bounds.Max.X]
		lo = math.Min(lo, floats.Min(row))
		hi = math.Max(hi, floats.Max(row))
	}
	return lo, hi
}

func minPairDistance(a, b, c core.Pixel) float64 {
	return math.Min(a.Distance(b), math.Min(b.Distance(c), a.Distance(c)))
}

// binomial3 returns n choose 3, saturating well above any sampling cap
func binomial3(n int) int {
	if n < 3 {
		return 0
	}
	if n > 2000 {
		return math.MaxInt32
	}
	return n * (n - 1) * (n - 2) / 6
}
