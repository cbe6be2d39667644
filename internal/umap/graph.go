package umap

import (
	"math"
	"sort"
)

const (
	smoothKTolerance = 1e-5
	minKDistScale    = 1e-3
	bisectIterations = 64
)

type neighbor struct {
	index int
	dist  float64
}

type edge struct {
	head   int
	tail   int
	weight float64
}

func euclidean(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return math.Sqrt(s)
}

// nearestNeighbors does an exact search, which is fine for the few
// hundred rows of an index universe
func nearestNeighbors(rows [][]float64, k int) [][]neighbor {
	n := len(rows)
	dists := make([][]float64, n)
	for i := range dists {
		dists[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := euclidean(rows[i], rows[j])
			dists[i][j] = d
			dists[j][i] = d
		}
	}

	out := make([][]neighbor, n)
	for i := 0; i < n; i++ {
		candidates := make([]neighbor, 0, n-1)
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			candidates = append(candidates, neighbor{index: j, dist: dists[i][j]})
		}
		sort.SliceStable(candidates, func(a, b int) bool {
			return candidates[a].dist < candidates[b].dist
		})
		out[i] = candidates[:k]
	}
	return out
}

// smoothKNNDistance finds, for every row, the distance to its closest
// distinct neighbor (rho) and the bandwidth (sigma) for which the
// membership strengths of its k neighbors sum to log2(k)
func smoothKNNDistance(knn [][]neighbor, k int) (sigmas, rhos []float64) {
	n := len(knn)
	sigmas = make([]float64, n)
	rhos = make([]float64, n)
	target := math.Log2(float64(k))

	var meanAll float64
	for _, ns := range knn {
		for _, nb := range ns {
			meanAll += nb.dist
		}
	}
	meanAll /= float64(n * k)

	for i, ns := range knn {
		for _, nb := range ns {
			if nb.dist > 0 {
				rhos[i] = nb.dist
				break
			}
		}

		lo, hi, mid := 0.0, math.Inf(1), 1.0
		for it := 0; it < bisectIterations; it++ {
			var psum float64
			for _, nb := range ns {
				d := nb.dist - rhos[i]
				if d > 0 {
					psum += math.Exp(-d / mid)
				} else {
					psum += 1
				}
			}
			if math.Abs(psum-target) < smoothKTolerance {
				break
			}
			if psum > target {
				hi = mid
				mid = (lo + hi) / 2
			} else {
				lo = mid
				if math.IsInf(hi, 1) {
					mid *= 2
				} else {
					mid = (lo + hi) / 2
				}
			}
		}

		var meanI float64
		for _, nb := range ns {
			meanI += nb.dist
		}
		meanI /= float64(len(ns))
		if rhos[i] > 0 {
			mid = math.Max(mid, minKDistScale*meanI)
		} else {
			mid = math.Max(mid, minKDistScale*meanAll)
		}
		sigmas[i] = mid
	}
	return sigmas, rhos
}

// fuzzySimplicialSet turns the directed kNN memberships into a
// symmetric graph using the probabilistic union a + b - ab
func fuzzySimplicialSet(knn [][]neighbor, sigmas, rhos []float64) []edge {
	type key struct{ i, j int }
	directed := map[key]float64{}
	for i, ns := range knn {
		for _, nb := range ns {
			var w float64
			if nb.dist-rhos[i] <= 0 || sigmas[i] == 0 {
				w = 1
			} else {
				w = math.Exp(-(nb.dist - rhos[i]) / sigmas[i])
			}
			directed[key{i, nb.index}] = w
		}
	}

	edges := []edge{}
	for k, w := range directed {
		transpose := directed[key{k.j, k.i}]
		combined := w + transpose - w*transpose
		if _, ok := directed[key{k.j, k.i}]; ok && k.j < k.i {
			// emitted from the other direction already
			continue
		}
		if combined <= 0 {
			continue
		}
		edges = append(edges, edge{head: k.i, tail: k.j, weight: combined})
		edges = append(edges, edge{head: k.j, tail: k.i, weight: combined})
	}
	sort.Slice(edges, func(a, b int) bool {
		if edges[a].head != edges[b].head {
			return edges[a].head < edges[b].head
		}
		return edges[a].tail < edges[b].tail
	})
	return edges
}
