package calculator

import (
	"math"
	"sort"
	"stockcluster/internal/domain"

	"github.com/montanaflynn/stats"
)

type ClusterMetrics struct {
	Cluster int `json:"cluster"`
	Size    int `json:"size"`
	// members without a return summary are counted in Size only
	AnnualizedReturn   float64 `json:"annualizedReturn"`
	MedianVolatility   float64 `json:"medianVolatility"`
	MeanVolatility     float64 `json:"meanVolatility"`
	ReturnToVolatility float64 `json:"returnToVolatility"`
	SummarizedSymbols  int     `json:"summarizedSymbols"`
}

// CalculateClusterMetrics rolls member return summaries up per cluster.
// daily mean returns are annualized by the trading day count
func CalculateClusterMetrics(results []domain.AnnotatedResult) ([]ClusterMetrics, error) {
	type members struct {
		size         int
		returns      []float64
		volatilities []float64
	}
	byCluster := map[int]*members{}
	for _, r := range results {
		m, ok := byCluster[r.Cluster]
		if !ok {
			m = &members{}
			byCluster[r.Cluster] = m
		}
		m.size++
		if r.MeanReturn != nil && r.Volatility != nil {
			m.returns = append(m.returns, *r.MeanReturn)
			m.volatilities = append(m.volatilities, *r.Volatility)
		}
	}

	out := make([]ClusterMetrics, 0, len(byCluster))
	for cluster, m := range byCluster {
		metrics := ClusterMetrics{
			Cluster:           cluster,
			Size:              m.size,
			SummarizedSymbols: len(m.returns),
		}
		if len(m.returns) > 0 {
			meanReturn, err := stats.Mean(m.returns)
			if err != nil {
				return nil, err
			}
			meanVol, err := stats.Mean(m.volatilities)
			if err != nil {
				return nil, err
			}
			medianVol, err := stats.Median(m.volatilities)
			if err != nil {
				return nil, err
			}
			metrics.AnnualizedReturn = meanReturn * tradingDaysPerYear
			metrics.MeanVolatility = meanVol
			metrics.MedianVolatility = medianVol
			if meanVol > 0 {
				metrics.ReturnToVolatility = metrics.AnnualizedReturn / meanVol
			}
		}
		out = append(out, metrics)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Cluster < out[j].Cluster
	})
	return out, nil
}

func annualizeVolatility(dailyStdev float64) float64 {
	return dailyStdev * math.Sqrt(tradingDaysPerYear)
}
