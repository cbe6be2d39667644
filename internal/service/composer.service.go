package service

import (
	"fmt"
	"sort"
	"stockcluster/internal/domain"
)

type ResultComposerService interface {
	Compose(in ComposeInput) (*ComposeResult, error)
}

type ComposeInput struct {
	Fits        domain.ClusterFits
	CenterCount int
	// Symbols is the row order of the matrix the fits were made on
	Symbols   []string
	Embedding domain.Embedding
	Companies []domain.CompanyMetadata
	Summaries map[string]domain.ReturnSummary
}

type ComposeResult struct {
	CenterCount int
	Assignments []domain.Assignment
	Results     []domain.AnnotatedResult
	// advisory only, every row is still present in Results
	Warnings []domain.JoinMismatchError
}

type resultComposerServiceHandler struct{}

func NewResultComposerService() ResultComposerService {
	return resultComposerServiceHandler{}
}

// Compose left joins the chosen fit's labels with the embedding and the
// company metadata. a symbol with a label is never dropped
func (h resultComposerServiceHandler) Compose(in ComposeInput) (*ComposeResult, error) {
	fit, ok := in.Fits.Get(in.CenterCount)
	if !ok {
		return nil, domain.ConfigurationError{
			Parameter: "centerCount",
			Value:     in.CenterCount,
			Reason:    "no fit with that many centers in the sweep",
		}
	}
	if len(fit.Model.Labels) != len(in.Symbols) {
		return nil, fmt.Errorf("fit has %d labels but %d symbols were given", len(fit.Model.Labels), len(in.Symbols))
	}

	companies := map[string]domain.CompanyMetadata{}
	for _, c := range in.Companies {
		if _, ok := companies[c.Symbol]; !ok {
			companies[c.Symbol] = c
		}
	}

	out := &ComposeResult{
		CenterCount: in.CenterCount,
		Assignments: make([]domain.Assignment, 0, len(in.Symbols)),
		Results:     make([]domain.AnnotatedResult, 0, len(in.Symbols)),
		Warnings:    []domain.JoinMismatchError{},
	}

	for i, symbol := range in.Symbols {
		label := fit.Model.Labels[i]
		out.Assignments = append(out.Assignments, domain.Assignment{
			Symbol:  symbol,
			Cluster: label,
		})

		row := domain.AnnotatedResult{
			Symbol:  symbol,
			Cluster: label,
		}
		if coord, ok := in.Embedding[symbol]; ok {
			v1, v2 := coord.V1, coord.V2
			row.V1 = &v1
			row.V2 = &v2
		} else {
			out.Warnings = append(out.Warnings, domain.JoinMismatchError{Symbol: symbol, Missing: "embedding"})
		}
		if c, ok := companies[symbol]; ok {
			company := c.Company
			row.Company = &company
			if c.Sector != "" {
				sector := c.Sector
				row.Sector = &sector
			}
		} else {
			out.Warnings = append(out.Warnings, domain.JoinMismatchError{Symbol: symbol, Missing: "company metadata"})
		}
		if s, ok := in.Summaries[symbol]; ok {
			mean, vol := s.MeanReturn, s.Volatility
			row.MeanReturn = &mean
			row.Volatility = &vol
		}
		out.Results = append(out.Results, row)
	}

	sort.SliceStable(out.Results, func(i, j int) bool {
		if out.Results[i].Cluster != out.Results[j].Cluster {
			return out.Results[i].Cluster < out.Results[j].Cluster
		}
		return out.Results[i].Symbol < out.Results[j].Symbol
	})

	return out, nil
}

func (r ComposeResult) GroupByCluster() map[int][]domain.AnnotatedResult {
	out := map[int][]domain.AnnotatedResult{}
	for _, row := range r.Results {
		out[row.Cluster] = append(out[row.Cluster], row)
	}
	return out
}

const UnknownSector = "Unknown"

// SectorBreakdown counts the members of each cluster by sector
func (r ComposeResult) SectorBreakdown() map[int]map[string]int {
	out := map[int]map[string]int{}
	for _, row := range r.Results {
		if _, ok := out[row.Cluster]; !ok {
			out[row.Cluster] = map[string]int{}
		}
		sector := UnknownSector
		if row.Sector != nil {
			sector = *row.Sector
		}
		out[row.Cluster][sector]++
	}
	return out
}
