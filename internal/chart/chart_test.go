package chart

import (
	"os"
	"path/filepath"
	"stockcluster/internal/domain"
	"stockcluster/internal/util"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScree(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scree.svg")
	err := Scree([]domain.ScreePoint{
		{CenterCount: 1, TotalWithinSS: 10},
		{CenterCount: 2, TotalWithinSS: 4},
		{CenterCount: 3, TotalWithinSS: 3.5},
	}, path)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(0))

	require.Error(t, Scree(nil, path))
}

func TestScatter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clusters.png")
	err := Scatter([]domain.AnnotatedResult{
		{Symbol: "AAPL", Cluster: 0, V1: util.FloatPointer(1), V2: util.FloatPointer(2)},
		{Symbol: "XOM", Cluster: 1, V1: util.FloatPointer(-1), V2: util.FloatPointer(0)},
		{Symbol: "NOPE", Cluster: 1},
	}, "clusters", path)
	require.NoError(t, err)

	_, err = os.Stat(path)
	require.NoError(t, err)

	require.Error(t, Scatter([]domain.AnnotatedResult{{Symbol: "NOPE"}}, "clusters", path))
}
