package umap

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func blobs(perBlob int) *mat.Dense {
	rng := rand.New(rand.NewPCG(7, 11))
	data := []float64{}
	for _, center := range []float64{0, 5} {
		for i := 0; i < perBlob; i++ {
			for j := 0; j < 4; j++ {
				data = append(data, center+rng.NormFloat64()*0.1)
			}
		}
	}
	return mat.NewDense(perBlob*2, 4, data)
}

func TestUMAP_Fit(t *testing.T) {
	t.Run("one finite coordinate pair per row", func(t *testing.T) {
		x := blobs(10)
		u := New(Options{
			NNeighbors: 5,
			Epochs:     50,
			Rand:       rand.New(rand.NewPCG(1, 1)),
		})

		out, err := u.Fit(context.Background(), x)
		require.NoError(t, err)

		r, c := out.Dims()
		require.Equal(t, 20, r)
		require.Equal(t, 2, c)
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				require.False(t, math.IsNaN(out.At(i, j)))
				require.False(t, math.IsInf(out.At(i, j), 0))
			}
		}
	})

	t.Run("neighbors clamp to row count", func(t *testing.T) {
		x := mat.NewDense(3, 2, []float64{
			0, 0,
			1, 1,
			2, 0,
		})
		out, err := New(Options{NNeighbors: 15, Epochs: 10}).Fit(context.Background(), x)
		require.NoError(t, err)
		r, _ := out.Dims()
		require.Equal(t, 3, r)
	})

	t.Run("tiny input falls back to pca", func(t *testing.T) {
		x := mat.NewDense(2, 2, []float64{
			0, 0,
			2, 2,
		})
		out, err := New(Options{}).Fit(context.Background(), x)
		require.NoError(t, err)
		require.InDelta(t, math.Abs(out.At(0, 0)), math.Abs(out.At(1, 0)), 1e-9)
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := New(Options{}).Fit(context.Background(), &mat.Dense{})
		require.Error(t, err)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := New(Options{NNeighbors: 5}).Fit(ctx, blobs(5))
		require.ErrorIs(t, err, context.Canceled)
	})
}

func Test_fitAB(t *testing.T) {
	t.Run("default curve", func(t *testing.T) {
		a, b, err := fitAB(1.0, 0.1)
		require.NoError(t, err)
		require.InDelta(t, 1.577, a, 0.08)
		require.InDelta(t, 0.895, b, 0.03)
	})

	t.Run("min dist beyond spread", func(t *testing.T) {
		_, _, err := fitAB(1.0, 2.0)
		require.Error(t, err)
	})
}

func TestPCA_Fit(t *testing.T) {
	x := mat.NewDense(3, 2, []float64{
		1, 1,
		2, 2,
		3, 3,
	})
	out, err := PCA{}.Fit(context.Background(), x)
	require.NoError(t, err)

	// all variance is on the first component
	require.InDelta(t, 0, out.At(1, 0), 1e-9)
	require.InDelta(t, math.Sqrt(2), math.Abs(out.At(0, 0)), 1e-9)
	for i := 0; i < 3; i++ {
		require.InDelta(t, 0, out.At(i, 1), 1e-9)
	}
}

func Test_fuzzySimplicialSet(t *testing.T) {
	rows := [][]float64{{0}, {1}, {3}}
	knn := nearestNeighbors(rows, 1)
	sigmas, rhos := smoothKNNDistance(knn, 1)
	edges := fuzzySimplicialSet(knn, sigmas, rhos)

	weights := map[[2]int]float64{}
	for _, e := range edges {
		weights[[2]int{e.head, e.tail}] = e.weight
	}
	for k, w := range weights {
		require.Equal(t, w, weights[[2]int{k[1], k[0]}])
	}
	require.Equal(t, float64(1), weights[[2]int{0, 1}])
}
