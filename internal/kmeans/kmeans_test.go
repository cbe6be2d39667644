package kmeans

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func twoBlobs() *mat.Dense {
	return mat.NewDense(6, 2, []float64{
		0, 0,
		0.1, 0,
		0, 0.1,
		10, 10,
		10.1, 10,
		10, 10.1,
	})
}

func testOpts() Options {
	return Options{
		Restarts:      5,
		MaxIterations: 50,
		Rand:          rand.New(rand.NewPCG(1, 2)),
	}
}

func TestFit(t *testing.T) {
	t.Run("separates obvious groups", func(t *testing.T) {
		m, err := Fit(twoBlobs(), 2, testOpts())
		require.NoError(t, err)

		require.Equal(t, m.Labels[0], m.Labels[1])
		require.Equal(t, m.Labels[0], m.Labels[2])
		require.Equal(t, m.Labels[3], m.Labels[4])
		require.Equal(t, m.Labels[3], m.Labels[5])
		require.NotEqual(t, m.Labels[0], m.Labels[3])
		require.Equal(t, []int{3, 3}, m.Sizes)
		require.InDelta(t, 4*0.1*0.1*2/3, m.TotalWithinSS, 1e-9)
	})

	t.Run("single center holds every row", func(t *testing.T) {
		m, err := Fit(twoBlobs(), 1, testOpts())
		require.NoError(t, err)

		require.Equal(t, []int{0, 0, 0, 0, 0, 0}, m.Labels)
		require.Equal(t, []int{6}, m.Sizes)
		require.InDeltaSlice(t, []float64{5.0333333333, 5.0333333333}, m.Centers[0], 1e-6)
	})

	t.Run("one center per row is a perfect fit", func(t *testing.T) {
		m, err := Fit(twoBlobs(), 6, testOpts())
		require.NoError(t, err)

		require.Equal(t, float64(0), m.TotalWithinSS)
		seen := map[int]bool{}
		for _, l := range m.Labels {
			seen[l] = true
		}
		require.Len(t, seen, 6)
	})

	t.Run("too many centers", func(t *testing.T) {
		_, err := Fit(twoBlobs(), 7, testOpts())
		require.Error(t, err)
		require.True(t, errors.Is(err, ErrTooManyCenters))
	})

	t.Run("zero centers", func(t *testing.T) {
		_, err := Fit(twoBlobs(), 0, testOpts())
		require.ErrorIs(t, err, ErrInvalidCenters)
	})

	t.Run("identical rows still fill every center", func(t *testing.T) {
		x := mat.NewDense(3, 1, []float64{1, 1, 1})
		m, err := Fit(x, 3, testOpts())
		require.NoError(t, err)
		require.Equal(t, float64(0), m.TotalWithinSS)
		require.Equal(t, []int{1, 1, 1}, m.Sizes)
	})

	t.Run("one center per row with a duplicated row", func(t *testing.T) {
		x := mat.NewDense(3, 2, []float64{
			0.01, 0.02,
			0.01, 0.02,
			-0.03, 0.01,
		})
		for seed := uint64(0); seed < 20; seed++ {
			m, err := Fit(x, 3, Options{Restarts: 2, Rand: rand.New(rand.NewPCG(seed, 1))})
			require.NoError(t, err)

			for c, size := range m.Sizes {
				require.NotZero(t, size, "seed=%d cluster=%d", seed, c)
			}
			require.ElementsMatch(t, []int{0, 1, 2}, m.Labels)
			require.Equal(t, float64(0), m.TotalWithinSS)
		}
	})

	t.Run("duplicated rows below the row count", func(t *testing.T) {
		x := mat.NewDense(5, 1, []float64{0, 0, 0, 5, 5})
		for seed := uint64(0); seed < 20; seed++ {
			m, err := Fit(x, 4, Options{Restarts: 1, Rand: rand.New(rand.NewPCG(seed, 3))})
			require.NoError(t, err)
			for c, size := range m.Sizes {
				require.NotZero(t, size, "seed=%d cluster=%d", seed, c)
			}
		}
	})
}

func TestFitFrom_coincidentCenters(t *testing.T) {
	x := mat.NewDense(4, 1, []float64{0, 0, 3, 3})
	m, err := FitFrom(x, [][]float64{{0}, {0}, {3}}, testOpts())
	require.NoError(t, err)

	for c, size := range m.Sizes {
		require.NotZero(t, size, "cluster=%d", c)
	}
	require.Equal(t, float64(0), m.TotalWithinSS)
}

func TestFitFrom(t *testing.T) {
	t.Run("warm start never worse than starting assignment", func(t *testing.T) {
		x := twoBlobs()
		one, err := Fit(x, 1, testOpts())
		require.NoError(t, err)

		centers := append(one.Centers, FarthestRow(x, *one))
		two, err := FitFrom(x, centers, testOpts())
		require.NoError(t, err)

		require.LessOrEqual(t, two.TotalWithinSS, one.TotalWithinSS)
		require.Len(t, two.Centers, 2)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		_, err := FitFrom(twoBlobs(), [][]float64{{1, 2, 3}}, testOpts())
		require.Error(t, err)
	})
}

func TestModel_Predict(t *testing.T) {
	m := Model{
		Centers: [][]float64{{0, 0}, {10, 10}},
	}
	require.Equal(t, 0, m.Predict([]float64{1, 1}))
	require.Equal(t, 1, m.Predict([]float64{9, 8}))
}
