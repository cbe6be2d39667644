// Package umap embeds the rows of a matrix into two dimensions with
// uniform manifold approximation and projection.
//
// The embedding is stochastic. Two runs over the same input produce
// different, equally valid layouts unless Options.Rand is seeded.
package umap

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/mat"
)

const (
	components = 2
	gradClip   = 4.0
	initScale  = 10.0
)

type Options struct {
	NNeighbors         int
	MinDist            float64
	Spread             float64
	Epochs             int
	LearningRate       float64
	NegativeSampleRate int
	Rand               *rand.Rand
}

func DefaultOptions() Options {
	return Options{
		NNeighbors:         15,
		MinDist:            0.1,
		Spread:             1.0,
		Epochs:             200,
		LearningRate:       1.0,
		NegativeSampleRate: 5,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.NNeighbors < 2 {
		o.NNeighbors = d.NNeighbors
	}
	if o.Spread <= 0 {
		o.Spread = d.Spread
	}
	if o.Epochs < 1 {
		o.Epochs = d.Epochs
	}
	if o.LearningRate <= 0 {
		o.LearningRate = d.LearningRate
	}
	if o.NegativeSampleRate < 1 {
		o.NegativeSampleRate = d.NegativeSampleRate
	}
	if o.Rand == nil {
		seed := uint64(time.Now().UnixNano())
		o.Rand = rand.New(rand.NewPCG(seed, seed>>1))
	}
	return o
}

type UMAP struct {
	opts Options
}

func New(opts Options) *UMAP {
	return &UMAP{opts: opts.withDefaults()}
}

// Fit returns an n x 2 matrix whose row i is the embedding of row i of x
func (u *UMAP) Fit(ctx context.Context, x mat.Matrix) (*mat.Dense, error) {
	n, d := x.Dims()
	if n == 0 || d == 0 {
		return nil, fmt.Errorf("cannot embed an empty matrix")
	}
	if n < 3 {
		// no neighborhood structure to preserve
		return principalComponents(x)
	}

	k := min(u.opts.NNeighbors, n-1)
	a, b, err := fitAB(u.opts.Spread, u.opts.MinDist)
	if err != nil {
		return nil, err
	}

	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = make([]float64, d)
		mat.Row(rows[i], i, x)
	}

	knn := nearestNeighbors(rows, k)
	sigmas, rhos := smoothKNNDistance(knn, k)
	edges := fuzzySimplicialSet(knn, sigmas, rhos)
	if len(edges) == 0 {
		return principalComponents(x)
	}

	embedding, err := u.initialize(x)
	if err != nil {
		return nil, err
	}

	if err := u.optimize(ctx, embedding, edges, a, b); err != nil {
		return nil, err
	}

	out := mat.NewDense(n, components, nil)
	for i, row := range embedding {
		out.SetRow(i, row)
	}
	return out, nil
}

// initialize scales the pca layout into a fixed box and jitters it so
// that coincident rows can separate
func (u *UMAP) initialize(x mat.Matrix) ([][]float64, error) {
	pcs, err := principalComponents(x)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding: %w", err)
	}
	n, _ := pcs.Dims()
	out := make([][]float64, n)

	var maxAbs float64
	for i := 0; i < n; i++ {
		for j := 0; j < components; j++ {
			maxAbs = math.Max(maxAbs, math.Abs(pcs.At(i, j)))
		}
	}

	for i := 0; i < n; i++ {
		out[i] = make([]float64, components)
		for j := 0; j < components; j++ {
			v := 0.0
			if maxAbs > 0 {
				v = pcs.At(i, j) / maxAbs * initScale
			} else {
				v = (u.opts.Rand.Float64()*2 - 1) * initScale
			}
			out[i][j] = v + u.opts.Rand.NormFloat64()*1e-4
		}
	}
	return out, nil
}

func clip(v float64) float64 {
	if v > gradClip {
		return gradClip
	}
	if v < -gradClip {
		return -gradClip
	}
	return v
}

func sqDist(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

// optimize runs stochastic gradient descent on the cross entropy between
// the input graph and the embedding. edges are sampled in proportion to
// their weight and each positive sample is paired with a few random
// negative samples
func (u *UMAP) optimize(ctx context.Context, embedding [][]float64, edges []edge, a, b float64) error {
	epochs := u.opts.Epochs
	n := len(embedding)
	rng := u.opts.Rand

	var maxWeight float64
	for _, e := range edges {
		maxWeight = math.Max(maxWeight, e.weight)
	}

	active := edges[:0:0]
	for _, e := range edges {
		if e.weight >= maxWeight/float64(epochs) {
			active = append(active, e)
		}
	}

	epochsPerSample := make([]float64, len(active))
	epochNextSample := make([]float64, len(active))
	epochsPerNegSample := make([]float64, len(active))
	epochNextNegSample := make([]float64, len(active))
	for i, e := range active {
		epochsPerSample[i] = maxWeight / e.weight
		epochNextSample[i] = epochsPerSample[i]
		epochsPerNegSample[i] = epochsPerSample[i] / float64(u.opts.NegativeSampleRate)
		epochNextNegSample[i] = epochsPerNegSample[i]
	}

	for epoch := 0; epoch < epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("embedding cancelled at epoch %d: %w", epoch, err)
		}
		alpha := u.opts.LearningRate * (1 - float64(epoch)/float64(epochs))
		current := float64(epoch)

		for i, e := range active {
			if epochNextSample[i] > current {
				continue
			}
			head := embedding[e.head]
			tail := embedding[e.tail]

			distSq := sqDist(head, tail)
			if distSq > 0 {
				coeff := -2 * a * b * math.Pow(distSq, b-1) / (a*math.Pow(distSq, b) + 1)
				for j := range head {
					grad := clip(coeff * (head[j] - tail[j]))
					head[j] += grad * alpha
					tail[j] -= grad * alpha
				}
			}
			epochNextSample[i] += epochsPerSample[i]

			negSamples := int((current - epochNextNegSample[i]) / epochsPerNegSample[i])
			for s := 0; s < negSamples; s++ {
				other := rng.IntN(n)
				if other == e.head {
					continue
				}
				neg := embedding[other]
				distSq := sqDist(head, neg)
				for j := range head {
					grad := gradClip
					if distSq > 0 {
						coeff := 2 * b / ((0.001 + distSq) * (a*math.Pow(distSq, b) + 1))
						grad = clip(coeff * (head[j] - neg[j]))
					}
					head[j] += grad * alpha
				}
			}
			epochNextNegSample[i] += float64(negSamples) * epochsPerNegSample[i]
		}
	}
	return nil
}
