package domain

// Coordinate is a point in the 2D embedding
type Coordinate struct {
	V1 float64 `json:"v1"`
	V2 float64 `json:"v2"`
}

// Embedding maps symbol to its projected coordinate
type Embedding map[string]Coordinate

type CompanyMetadata struct {
	Symbol  string
	Company string
	Sector  string
}

// AnnotatedResult is the final per-symbol row used for visualization.
// nil pointers mean the join found nothing for the symbol
type AnnotatedResult struct {
	Symbol     string   `json:"symbol"`
	Cluster    int      `json:"cluster"`
	V1         *float64 `json:"v1"`
	V2         *float64 `json:"v2"`
	Company    *string  `json:"company"`
	Sector     *string  `json:"sector"`
	MeanReturn *float64 `json:"meanReturn,omitempty"`
	Volatility *float64 `json:"volatility,omitempty"`
}
