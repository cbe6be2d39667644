package service

import (
	"errors"
	"stockcluster/internal/domain"
	"stockcluster/internal/kmeans"
	"stockcluster/internal/util"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func composeFixture() ComposeInput {
	return ComposeInput{
		Fits: domain.ClusterFits{
			{
				CenterCount:   1,
				Model:         kmeans.Model{Labels: []int{0, 0, 0}},
				TotalWithinSS: 3,
			},
			{
				CenterCount:   2,
				Model:         kmeans.Model{Labels: []int{1, 0, 1}},
				TotalWithinSS: 1,
			},
		},
		CenterCount: 2,
		Symbols:     []string{"AAPL", "XOM", "MSFT"},
		Embedding: domain.Embedding{
			"AAPL": {V1: 1, V2: 2},
			"XOM":  {V1: -3, V2: 4},
			"MSFT": {V1: 1.5, V2: 2.5},
		},
		Companies: []domain.CompanyMetadata{
			{Symbol: "AAPL", Company: "Apple", Sector: "Information Technology"},
			{Symbol: "XOM", Company: "Exxon Mobil", Sector: "Energy"},
			{Symbol: "MSFT", Company: "Microsoft", Sector: "Information Technology"},
		},
	}
}

func TestResultComposerService_Compose(t *testing.T) {
	h := NewResultComposerService()

	t.Run("joins labels, coordinates and metadata", func(t *testing.T) {
		result, err := h.Compose(composeFixture())
		require.NoError(t, err)

		require.Empty(t, result.Warnings)
		require.Equal(
			t,
			"",
			cmp.Diff(
				[]domain.AnnotatedResult{
					{
						Symbol:  "XOM",
						Cluster: 0,
						V1:      util.FloatPointer(-3),
						V2:      util.FloatPointer(4),
						Company: util.StringPointer("Exxon Mobil"),
						Sector:  util.StringPointer("Energy"),
					},
					{
						Symbol:  "AAPL",
						Cluster: 1,
						V1:      util.FloatPointer(1),
						V2:      util.FloatPointer(2),
						Company: util.StringPointer("Apple"),
						Sector:  util.StringPointer("Information Technology"),
					},
					{
						Symbol:  "MSFT",
						Cluster: 1,
						V1:      util.FloatPointer(1.5),
						V2:      util.FloatPointer(2.5),
						Company: util.StringPointer("Microsoft"),
						Sector:  util.StringPointer("Information Technology"),
					},
				},
				result.Results,
			),
		)
		require.Equal(t, []domain.Assignment{
			{Symbol: "AAPL", Cluster: 1},
			{Symbol: "XOM", Cluster: 0},
			{Symbol: "MSFT", Cluster: 1},
		}, result.Assignments)
	})

	t.Run("missing metadata keeps the row", func(t *testing.T) {
		in := composeFixture()
		in.Companies = in.Companies[:1]
		delete(in.Embedding, "MSFT")

		result, err := h.Compose(in)
		require.NoError(t, err)

		require.Len(t, result.Results, len(result.Assignments))
		bySymbol := map[string]domain.AnnotatedResult{}
		for _, r := range result.Results {
			bySymbol[r.Symbol] = r
		}
		require.Nil(t, bySymbol["XOM"].Company)
		require.Nil(t, bySymbol["XOM"].Sector)
		require.NotNil(t, bySymbol["XOM"].V1)
		require.Nil(t, bySymbol["MSFT"].V1)
		require.Nil(t, bySymbol["MSFT"].Company)

		require.ElementsMatch(t, []domain.JoinMismatchError{
			{Symbol: "XOM", Missing: "company metadata"},
			{Symbol: "MSFT", Missing: "embedding"},
			{Symbol: "MSFT", Missing: "company metadata"},
		}, result.Warnings)
	})

	t.Run("duplicate metadata does not duplicate rows", func(t *testing.T) {
		in := composeFixture()
		in.Companies = append(in.Companies, domain.CompanyMetadata{Symbol: "AAPL", Company: "Apple again"})

		result, err := h.Compose(in)
		require.NoError(t, err)
		require.Len(t, result.Results, 3)
	})

	t.Run("center count not in sweep", func(t *testing.T) {
		in := composeFixture()
		in.CenterCount = 10

		_, err := h.Compose(in)
		configErr := domain.ConfigurationError{}
		require.True(t, errors.As(err, &configErr))
		require.Equal(t, "centerCount", configErr.Parameter)
		require.Equal(t, 10, configErr.Value)
	})

	t.Run("labels do not line up with symbols", func(t *testing.T) {
		in := composeFixture()
		in.Symbols = in.Symbols[:2]

		_, err := h.Compose(in)
		require.Error(t, err)
	})

	t.Run("summaries are attached", func(t *testing.T) {
		in := composeFixture()
		in.Summaries = map[string]domain.ReturnSummary{
			"AAPL": {Symbol: "AAPL", MeanReturn: 0.001, Volatility: 0.3},
		}

		result, err := h.Compose(in)
		require.NoError(t, err)
		for _, r := range result.Results {
			if r.Symbol == "AAPL" {
				require.Equal(t, 0.3, *r.Volatility)
			} else {
				require.Nil(t, r.Volatility)
			}
		}
	})
}

func TestComposeResult_SectorBreakdown(t *testing.T) {
	in := composeFixture()
	in.Companies[1].Sector = ""

	result, err := NewResultComposerService().Compose(in)
	require.NoError(t, err)

	require.Equal(t, map[int]map[string]int{
		0: {UnknownSector: 1},
		1: {"Information Technology": 2},
	}, result.SectorBreakdown())
	require.Len(t, result.GroupByCluster()[1], 2)
}
