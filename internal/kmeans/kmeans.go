// Package kmeans partitions the rows of a dense matrix into k clusters
// using Lloyd's algorithm with k-means++ seeding.
package kmeans

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrInvalidCenters = errors.New("center count must be at least 1")
	ErrTooManyCenters = errors.New("center count exceeds number of rows")
	ErrEmptyInput     = errors.New("cannot cluster an empty matrix")
)

// Model is a fitted clustering. Labels[i] is the cluster of row i
type Model struct {
	Centers       [][]float64
	Labels        []int
	Sizes         []int
	WithinSS      []float64
	TotalWithinSS float64
	Iterations    int
	Converged     bool
}

func (m Model) K() int {
	return len(m.Centers)
}

// Predict returns the nearest center for row
func (m Model) Predict(row []float64) int {
	best, _ := nearest(row, m.Centers)
	return best
}

type Options struct {
	// Restarts is the number of independently seeded runs. the run with
	// the lowest total within-cluster sum of squares is kept
	Restarts      int
	MaxIterations int
	Rand          *rand.Rand
}

func (o Options) withDefaults() Options {
	if o.Restarts < 1 {
		o.Restarts = 1
	}
	if o.MaxIterations < 1 {
		o.MaxIterations = 100
	}
	if o.Rand == nil {
		seed := uint64(time.Now().UnixNano())
		o.Rand = rand.New(rand.NewPCG(seed, seed>>1))
	}
	return o
}

func rowsOf(x mat.Matrix) [][]float64 {
	r, c := x.Dims()
	rows := make([][]float64, r)
	for i := 0; i < r; i++ {
		rows[i] = make([]float64, c)
		mat.Row(rows[i], i, x)
	}
	return rows
}

func validate(x mat.Matrix, k int) error {
	if x == nil {
		return ErrEmptyInput
	}
	if d, ok := x.(*mat.Dense); ok && d.IsEmpty() {
		return ErrEmptyInput
	}
	n, _ := x.Dims()
	if n == 0 {
		return ErrEmptyInput
	}
	if k < 1 {
		return ErrInvalidCenters
	}
	if k > n {
		return fmt.Errorf("%w: k=%d, rows=%d", ErrTooManyCenters, k, n)
	}
	return nil
}

// Fit clusters the rows of x into k groups
func Fit(x mat.Matrix, k int, opts Options) (*Model, error) {
	if err := validate(x, k); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	rows := rowsOf(x)

	var best *Model
	for r := 0; r < opts.Restarts; r++ {
		centers := seedPlusPlus(rows, k, opts.Rand)
		m := lloyd(rows, centers, opts.MaxIterations)
		if best == nil || m.TotalWithinSS < best.TotalWithinSS {
			best = m
		}
	}

	return best, nil
}

// FitFrom runs Lloyd iterations starting from the given centers. the
// returned model never has a higher total within-cluster sum of squares
// than the initial assignment to those centers
func FitFrom(x mat.Matrix, centers [][]float64, opts Options) (*Model, error) {
	if err := validate(x, len(centers)); err != nil {
		return nil, err
	}
	_, c := x.Dims()
	start := make([][]float64, len(centers))
	for i, center := range centers {
		if len(center) != c {
			return nil, fmt.Errorf("center %d has %d dims, expected %d", i, len(center), c)
		}
		start[i] = append([]float64{}, center...)
	}
	opts = opts.withDefaults()

	return lloyd(rowsOf(x), start, opts.MaxIterations), nil
}

// FarthestRow returns the row with the largest squared distance to its
// assigned center in m
func FarthestRow(x mat.Matrix, m Model) []float64 {
	rows := rowsOf(x)
	bestIdx, bestDist := 0, -1.0
	for i, row := range rows {
		d := sqDist(row, m.Centers[m.Labels[i]])
		if d > bestDist {
			bestIdx, bestDist = i, d
		}
	}
	return append([]float64{}, rows[bestIdx]...)
}

func sqDist(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

func nearest(row []float64, centers [][]float64) (int, float64) {
	best, bestDist := 0, math.Inf(1)
	for c, center := range centers {
		d := sqDist(row, center)
		if d < bestDist {
			best, bestDist = c, d
		}
	}
	return best, bestDist
}

// seedPlusPlus picks k starting centers, each new one sampled with
// probability proportional to its squared distance from the closest
// center already chosen
func seedPlusPlus(rows [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(rows)
	chosen := make([]bool, n)
	centers := make([][]float64, 0, k)

	first := rng.IntN(n)
	chosen[first] = true
	centers = append(centers, append([]float64{}, rows[first]...))

	dists := make([]float64, n)
	for i, row := range rows {
		dists[i] = sqDist(row, centers[0])
	}

	for len(centers) < k {
		total := floats.Sum(dists)
		next := -1
		if total > 0 {
			target := rng.Float64() * total
			var acc float64
			for i, d := range dists {
				if chosen[i] || d == 0 {
					continue
				}
				acc += d
				next = i
				if acc >= target {
					break
				}
			}
		}
		if next == -1 {
			// every remaining row sits on an existing center
			remaining := []int{}
			for i := range rows {
				if !chosen[i] {
					remaining = append(remaining, i)
				}
			}
			next = remaining[rng.IntN(len(remaining))]
		}

		chosen[next] = true
		center := append([]float64{}, rows[next]...)
		centers = append(centers, center)
		for i, row := range rows {
			if d := sqDist(row, center); d < dists[i] {
				dists[i] = d
			}
		}
	}

	return centers
}

type state struct {
	labels  []int
	centers [][]float64
	cost    float64
}

func snapshot(labels []int, centers [][]float64, cost float64) state {
	s := state{
		labels:  append([]int{}, labels...),
		centers: make([][]float64, len(centers)),
		cost:    cost,
	}
	for i, c := range centers {
		s.centers[i] = append([]float64{}, c...)
	}
	return s
}

// lloyd alternates assignment and mean updates. the cheapest
// assignment seen is returned, so the result is never worse than the
// first assignment to the starting centers. every center keeps at least
// one row
func lloyd(rows [][]float64, centers [][]float64, maxIterations int) *Model {
	dims := len(rows[0])
	labels := make([]int, len(rows))
	for i := range labels {
		labels[i] = -1
	}

	var best *state
	converged := false
	iterations := 0

	for iter := 0; iter < maxIterations; iter++ {
		iterations = iter + 1
		changed := false
		for i, row := range rows {
			c, d := nearest(row, centers)
			if labels[i] >= 0 && c != labels[i] && d == sqDist(row, centers[labels[i]]) {
				// keep ties where they are
				c = labels[i]
			}
			if c != labels[i] {
				labels[i] = c
				changed = true
			}
		}
		if fillEmpty(rows, labels, centers) {
			changed = true
		}

		cost := assignmentCost(rows, labels, centers)
		if best == nil || cost < best.cost {
			s := snapshot(labels, centers, cost)
			best = &s
		}
		if !changed {
			converged = true
			break
		}

		centers = means(rows, labels, centers, dims)
	}

	return buildModel(rows, *best, iterations, converged)
}

// fillEmpty gives every empty cluster one row, taken only from clusters
// with two or more members. a row that is as close to the empty center as
// to its own moves first. otherwise the worst placed row moves and the
// empty center is put on it. neither move raises the cost
func fillEmpty(rows [][]float64, labels []int, centers [][]float64) bool {
	sizes := make([]int, len(centers))
	for _, l := range labels {
		sizes[l]++
	}

	moved := false
	for c := range centers {
		if sizes[c] > 0 {
			continue
		}
		pick, tie := -1, false
		worstDist := -1.0
		for i, row := range rows {
			own := labels[i]
			if sizes[own] < 2 {
				continue
			}
			d := sqDist(row, centers[own])
			if sqDist(row, centers[c]) <= d {
				pick, tie = i, true
				break
			}
			if d > worstDist {
				pick, worstDist = i, d
			}
		}
		if pick == -1 {
			// only possible with more centers than rows
			continue
		}
		sizes[labels[pick]]--
		labels[pick] = c
		sizes[c] = 1
		if !tie {
			centers[c] = append([]float64{}, rows[pick]...)
		}
		moved = true
	}
	return moved
}

func assignmentCost(rows [][]float64, labels []int, centers [][]float64) float64 {
	var cost float64
	for i, row := range rows {
		cost += sqDist(row, centers[labels[i]])
	}
	return cost
}

func means(rows [][]float64, labels []int, centers [][]float64, dims int) [][]float64 {
	k := len(centers)
	sums := make([][]float64, k)
	sizes := make([]int, k)
	for c := range sums {
		sums[c] = make([]float64, dims)
	}
	for i, row := range rows {
		floats.Add(sums[labels[i]], row)
		sizes[labels[i]]++
	}
	for c := range sums {
		if sizes[c] == 0 {
			copy(sums[c], centers[c])
			continue
		}
		floats.Scale(1/float64(sizes[c]), sums[c])
	}
	return sums
}

func buildModel(rows [][]float64, s state, iterations int, converged bool) *Model {
	k := len(s.centers)
	sizes := make([]int, k)
	withinSS := make([]float64, k)
	for i, row := range rows {
		c := s.labels[i]
		sizes[c]++
		withinSS[c] += sqDist(row, s.centers[c])
	}

	return &Model{
		Centers:       s.centers,
		Labels:        s.labels,
		Sizes:         sizes,
		WithinSS:      withinSS,
		TotalWithinSS: s.cost,
		Iterations:    iterations,
		Converged:     converged,
	}
}
