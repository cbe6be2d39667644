package service

import (
	"context"
	"fmt"
	"math/rand/v2"
	"stockcluster/internal/domain"
	"stockcluster/internal/kmeans"
	"stockcluster/internal/logger"
	"sync"
	"time"

	"gonum.org/v1/gonum/mat"
)

type ClusterSweepService interface {
	Sweep(ctx context.Context, matrix domain.ReturnMatrix, in SweepInput) (domain.ClusterFits, error)
}

type SweepInput struct {
	MinCenters    int
	MaxCenters    int
	Restarts      int
	MaxIterations int
	// Workers > 1 fits several center counts at once
	Workers int
	// Seed 0 seeds from the clock
	Seed uint64
}

// FitError identifies the center count whose fit failed
type FitError struct {
	CenterCount int
	Err         error
}

func (e FitError) Error() string {
	return fmt.Sprintf("failed to fit %d centers: %v", e.CenterCount, e.Err)
}

func (e FitError) Unwrap() error {
	return e.Err
}

type clusterSweepServiceHandler struct{}

func NewClusterSweepService() ClusterSweepService {
	return clusterSweepServiceHandler{}
}

func validateSweep(rows int, in SweepInput) error {
	if in.MinCenters < 1 {
		return domain.ConfigurationError{Parameter: "minCenters", Value: in.MinCenters, Reason: "must be at least 1"}
	}
	if in.MaxCenters < in.MinCenters {
		return domain.ConfigurationError{Parameter: "maxCenters", Value: in.MaxCenters, Reason: fmt.Sprintf("must not be below minCenters=%d", in.MinCenters)}
	}
	if in.MaxCenters > rows {
		return domain.ConfigurationError{Parameter: "maxCenters", Value: in.MaxCenters, Reason: fmt.Sprintf("exceeds the %d rows available to cluster", rows)}
	}
	if in.Restarts < 1 {
		return domain.ConfigurationError{Parameter: "restarts", Value: in.Restarts, Reason: "must be at least 1"}
	}
	return nil
}

func (in SweepInput) randFor(centers int) *rand.Rand {
	seed := in.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, uint64(centers)))
}

// Sweep fits k-means once per center count in the inclusive range and
// keeps the best restart for each. the total within-cluster sum of
// squares of the result never increases with the center count
func (h clusterSweepServiceHandler) Sweep(ctx context.Context, matrix domain.ReturnMatrix, in SweepInput) (domain.ClusterFits, error) {
	if err := validateSweep(matrix.NumRows(), in); err != nil {
		return nil, err
	}
	log := logger.FromContext(ctx)
	x := matrix.Features()

	count := in.MaxCenters - in.MinCenters + 1
	fits := make(domain.ClusterFits, count)
	errs := make([]error, count)

	workers := in.Workers
	if workers < 1 {
		workers = 1
	}
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i := 0; i < count; i++ {
		k := in.MinCenters + i
		wg.Add(1)
		sem <- struct{}{}
		go func(i, k int) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := ctx.Err(); err != nil {
				errs[i] = FitError{CenterCount: k, Err: err}
				return
			}
			model, err := kmeans.Fit(x, k, kmeans.Options{
				Restarts:      in.Restarts,
				MaxIterations: in.MaxIterations,
				Rand:          in.randFor(k),
			})
			if err != nil {
				errs[i] = FitError{CenterCount: k, Err: err}
				return
			}
			fits[i] = domain.ClusterFit{
				CenterCount:   k,
				Model:         *model,
				TotalWithinSS: model.TotalWithinSS,
			}
		}(i, k)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	if err := refineFromSmaller(x, fits, in); err != nil {
		return nil, err
	}

	for _, fit := range fits {
		log.Infow(
			"fit cluster count",
			"centers", fit.CenterCount,
			"totalWithinSS", fit.TotalWithinSS,
			"iterations", fit.Model.Iterations,
			"converged", fit.Model.Converged,
		)
	}

	return fits, nil
}

// refineFromSmaller seeds each count with the previous count's centers
// plus its worst placed row. that start can only lower the previous
// total, so a random restart that landed higher is replaced
func refineFromSmaller(x mat.Matrix, fits domain.ClusterFits, in SweepInput) error {
	for i := 1; i < len(fits); i++ {
		prev := fits[i-1].Model
		centers := make([][]float64, 0, prev.K()+1)
		centers = append(centers, prev.Centers...)
		centers = append(centers, kmeans.FarthestRow(x, prev))

		warm, err := kmeans.FitFrom(x, centers, kmeans.Options{MaxIterations: in.MaxIterations})
		if err != nil {
			return FitError{CenterCount: fits[i].CenterCount, Err: err}
		}
		if warm.TotalWithinSS < fits[i].TotalWithinSS {
			fits[i] = domain.ClusterFit{
				CenterCount:   fits[i].CenterCount,
				Model:         *warm,
				TotalWithinSS: warm.TotalWithinSS,
			}
		}
	}
	return nil
}
