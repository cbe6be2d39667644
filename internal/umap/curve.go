package umap

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
)

// fitAB finds a and b so that 1 / (1 + a*d^(2b)) approximates the
// membership curve that is flat up to minDist and decays exponentially
// with scale spread afterwards
func fitAB(spread, minDist float64) (a, b float64, err error) {
	if spread <= 0 {
		return 0, 0, fmt.Errorf("spread must be positive, got %f", spread)
	}
	if minDist < 0 || minDist > spread {
		return 0, 0, fmt.Errorf("min dist must be in [0, spread], got %f", minDist)
	}

	xs := make([]float64, 300)
	floats.Span(xs, 0, spread*3)
	ys := make([]float64, len(xs))
	for i, x := range xs {
		if x < minDist {
			ys[i] = 1
		} else {
			ys[i] = math.Exp(-(x - minDist) / spread)
		}
	}

	problem := optimize.Problem{
		Func: func(p []float64) float64 {
			if p[0] <= 0 || p[1] <= 0 {
				return math.Inf(1)
			}
			var sse float64
			for i, x := range xs {
				r := 1/(1+p[0]*math.Pow(x, 2*p[1])) - ys[i]
				sse += r * r
			}
			return sse
		},
	}

	result, err := optimize.Minimize(problem, []float64{1.5, 0.9}, nil, &optimize.NelderMead{})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to fit embedding curve: %w", err)
	}

	return result.X[0], result.X[1], nil
}
