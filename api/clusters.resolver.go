package api

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"stockcluster/internal/calculator"
	"stockcluster/internal/domain"
	"strconv"

	"github.com/gin-gonic/gin"
)

var errNoRun = errors.New("pipeline has not produced a result yet")

type clustersResponse struct {
	CenterCount int                      `json:"centerCount"`
	Results     []domain.AnnotatedResult `json:"results"`
	Warnings    []string                 `json:"warnings"`
}

type sectorCount struct {
	Sector string `json:"sector"`
	Count  int    `json:"count"`
}

type clusterSectorsResponse struct {
	Cluster int           `json:"cluster"`
	Size    int           `json:"size"`
	Sectors []sectorCount `json:"sectors"`
}

func parseCenterCount(raw string) (int, error) {
	k, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.ConfigurationError{Parameter: "k", Value: raw, Reason: "must be an integer"}
	}
	return k, nil
}

func statusFor(err error) int {
	configErr := domain.ConfigurationError{}
	if errors.As(err, &configErr) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (m ApiHandler) scree(c *gin.Context) {
	out, ok := m.latest()
	if !ok {
		returnErrorJsonCode(errNoRun, c, http.StatusServiceUnavailable)
		return
	}
	c.JSON(200, out.Fits.Scree())
}

func (m ApiHandler) clusters(c *gin.Context) {
	out, ok := m.latest()
	if !ok {
		returnErrorJsonCode(errNoRun, c, http.StatusServiceUnavailable)
		return
	}

	composed := out.Composed
	if raw, ok := c.GetQuery("k"); ok {
		k, err := parseCenterCount(raw)
		if err != nil {
			returnErrorJsonCode(err, c, http.StatusBadRequest)
			return
		}
		if k != composed.CenterCount {
			composed, err = m.ClusteringHandler.ComposeAt(c.Request.Context(), out, k)
			if err != nil {
				returnErrorJsonCode(err, c, statusFor(err))
				return
			}
		}
	}

	warnings := make([]string, 0, len(composed.Warnings))
	for _, w := range composed.Warnings {
		warnings = append(warnings, w.Error())
	}

	c.JSON(200, clustersResponse{
		CenterCount: composed.CenterCount,
		Results:     composed.Results,
		Warnings:    warnings,
	})
}

func (m ApiHandler) sectors(c *gin.Context) {
	out, ok := m.latest()
	if !ok {
		returnErrorJsonCode(errNoRun, c, http.StatusServiceUnavailable)
		return
	}
	k, err := parseCenterCount(c.Param("k"))
	if err != nil {
		returnErrorJsonCode(err, c, http.StatusBadRequest)
		return
	}
	composed, err := m.ClusteringHandler.ComposeAt(c.Request.Context(), out, k)
	if err != nil {
		returnErrorJsonCode(err, c, statusFor(err))
		return
	}

	breakdown := composed.SectorBreakdown()
	response := make([]clusterSectorsResponse, 0, len(breakdown))
	for cluster, counts := range breakdown {
		entry := clusterSectorsResponse{Cluster: cluster}
		for sector, n := range counts {
			entry.Sectors = append(entry.Sectors, sectorCount{Sector: sector, Count: n})
			entry.Size += n
		}
		sort.Slice(entry.Sectors, func(i, j int) bool {
			if entry.Sectors[i].Count != entry.Sectors[j].Count {
				return entry.Sectors[i].Count > entry.Sectors[j].Count
			}
			return entry.Sectors[i].Sector < entry.Sectors[j].Sector
		})
		response = append(response, entry)
	}
	sort.Slice(response, func(i, j int) bool {
		return response[i].Cluster < response[j].Cluster
	})

	c.JSON(200, response)
}

func (m ApiHandler) metrics(c *gin.Context) {
	out, ok := m.latest()
	if !ok {
		returnErrorJsonCode(errNoRun, c, http.StatusServiceUnavailable)
		return
	}
	k, err := parseCenterCount(c.Param("k"))
	if err != nil {
		returnErrorJsonCode(err, c, http.StatusBadRequest)
		return
	}
	composed, err := m.ClusteringHandler.ComposeAt(c.Request.Context(), out, k)
	if err != nil {
		returnErrorJsonCode(err, c, statusFor(err))
		return
	}

	metrics, err := calculator.CalculateClusterMetrics(composed.Results)
	if err != nil {
		returnErrorJson(err, c)
		return
	}
	c.JSON(200, metrics)
}

func (m ApiHandler) embedding(c *gin.Context) {
	out, ok := m.latest()
	if !ok {
		returnErrorJsonCode(errNoRun, c, http.StatusServiceUnavailable)
		return
	}
	c.JSON(200, out.Embedding)
}

func (m ApiHandler) profile(c *gin.Context) {
	out, ok := m.latest()
	if !ok {
		returnErrorJsonCode(errNoRun, c, http.StatusServiceUnavailable)
		return
	}
	c.JSON(200, out.Profile)
}

func (m ApiHandler) run(c *gin.Context) {
	out, err := m.Refresh(c.Request.Context())
	if err != nil {
		returnErrorJsonCode(fmt.Errorf("failed to run pipeline: %w", err), c, statusFor(err))
		return
	}
	c.JSON(200, gin.H{
		"symbols":     out.Matrix.NumRows(),
		"dates":       out.Matrix.NumCols(),
		"skipped":     len(out.Skipped),
		"centerCount": out.Composed.CenterCount,
	})
}
