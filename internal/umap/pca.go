package umap

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// PCA projects rows onto their first two principal components. it is
// deterministic and is also used to initialize UMAP
type PCA struct{}

func (PCA) Fit(_ context.Context, x mat.Matrix) (*mat.Dense, error) {
	return principalComponents(x)
}

func centered(x mat.Matrix) *mat.Dense {
	n, d := x.Dims()
	out := mat.NewDense(n, d, nil)
	col := make([]float64, n)
	for j := 0; j < d; j++ {
		mat.Col(col, j, x)
		mean := stat.Mean(col, nil)
		for i := 0; i < n; i++ {
			out.Set(i, j, col[i]-mean)
		}
	}
	return out
}

func principalComponents(x mat.Matrix) (*mat.Dense, error) {
	n, d := x.Dims()
	if n == 0 || d == 0 {
		return nil, fmt.Errorf("cannot project an empty matrix")
	}
	out := mat.NewDense(n, 2, nil)
	if n == 1 {
		return out, nil
	}

	c := centered(x)
	var pc stat.PC
	if ok := pc.PrincipalComponents(c, nil); !ok {
		return nil, fmt.Errorf("principal component decomposition failed")
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)

	_, available := vecs.Dims()
	components := min(2, available)
	var proj mat.Dense
	proj.Mul(c, vecs.Slice(0, d, 0, components))
	for i := 0; i < n; i++ {
		for j := 0; j < components; j++ {
			out.Set(i, j, proj.At(i, j))
		}
	}

	return out, nil
}
