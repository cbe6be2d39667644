package domain

import "stockcluster/internal/kmeans"

// ClusterFit is the best k-means solution found for one center count
type ClusterFit struct {
	CenterCount   int
	Model         kmeans.Model
	TotalWithinSS float64
}

// ScreePoint is one point on the elbow curve
type ScreePoint struct {
	CenterCount   int     `json:"centerCount" csv:"center_count"`
	TotalWithinSS float64 `json:"totalWithinSS" csv:"total_within_ss"`
}

type ClusterFits []ClusterFit

func (f ClusterFits) Scree() []ScreePoint {
	out := make([]ScreePoint, 0, len(f))
	for _, fit := range f {
		out = append(out, ScreePoint{
			CenterCount:   fit.CenterCount,
			TotalWithinSS: fit.TotalWithinSS,
		})
	}
	return out
}

func (f ClusterFits) Get(centerCount int) (*ClusterFit, bool) {
	for i := range f {
		if f[i].CenterCount == centerCount {
			return &f[i], true
		}
	}
	return nil, false
}

// Assignment maps a symbol to its cluster label
type Assignment struct {
	Symbol  string
	Cluster int
}
