package service

import (
	"context"
	"fmt"
	"stockcluster/internal/domain"
	"stockcluster/internal/logger"

	"gonum.org/v1/gonum/mat"
)

// Projector reduces each row of x to a 2D coordinate. row i of the
// result belongs to row i of x
type Projector interface {
	Fit(ctx context.Context, x mat.Matrix) (*mat.Dense, error)
}

type EmbeddingService interface {
	Project(ctx context.Context, matrix domain.ReturnMatrix) (domain.Embedding, error)
}

type embeddingServiceHandler struct {
	Projector Projector
}

func NewEmbeddingService(projector Projector) EmbeddingService {
	return embeddingServiceHandler{Projector: projector}
}

// Project embeds the numeric part of the matrix and zips the coordinates
// back to symbols by row position
func (h embeddingServiceHandler) Project(ctx context.Context, matrix domain.ReturnMatrix) (domain.Embedding, error) {
	if matrix.NumRows() == 0 {
		return nil, fmt.Errorf("cannot embed a matrix with no rows")
	}

	coords, err := h.Projector.Fit(ctx, matrix.Features())
	if err != nil {
		return nil, fmt.Errorf("failed to project return matrix: %w", err)
	}
	rows, cols := coords.Dims()
	if rows != matrix.NumRows() || cols < 2 {
		return nil, fmt.Errorf("projector returned %dx%d coordinates for %d symbols", rows, cols, matrix.NumRows())
	}

	out := make(domain.Embedding, rows)
	for i, symbol := range matrix.Symbols {
		out[symbol] = domain.Coordinate{
			V1: coords.At(i, 0),
			V2: coords.At(i, 1),
		}
	}

	logger.FromContext(ctx).Infow("projected return matrix", "symbols", rows, "dates", matrix.NumCols())
	return out, nil
}
