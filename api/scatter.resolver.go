package api

import (
	"fmt"
	"html/template"
	"math"
	"net/http"
	"stockcluster/internal/domain"
	"stockcluster/internal/service"

	"github.com/gin-gonic/gin"
	"gonum.org/v1/plot/plotutil"
)

const (
	scatterSize    = 720.0
	scatterPadding = 30.0
)

var scatterTemplate = template.Must(template.New("scatter").Parse(`<!DOCTYPE html>
<html>
<head><title>{{.Title}}</title></head>
<body>
<h3>{{.Title}}</h3>
<svg xmlns="http://www.w3.org/2000/svg" width="{{.Size}}" height="{{.Size}}">
<rect width="100%" height="100%" fill="white" stroke="#ccc"/>
{{range .Points}}<circle cx="{{printf "%.2f" .X}}" cy="{{printf "%.2f" .Y}}" r="4" fill="{{.Fill}}"><title>{{.Label}}</title></circle>
{{end}}</svg>
</body>
</html>
`))

type scatterPoint struct {
	X, Y  float64
	Fill  string
	Label string
}

type scatterPage struct {
	Title  string
	Size   float64
	Points []scatterPoint
}

func hoverLabel(r domain.AnnotatedResult) string {
	label := fmt.Sprintf("%s (cluster %d)", r.Symbol, r.Cluster)
	if r.Company != nil {
		label += " " + *r.Company
	}
	if r.Sector != nil {
		label += " / " + *r.Sector
	}
	return label
}

func clusterFill(cluster int) string {
	r, g, b, _ := plotutil.Color(cluster).RGBA()
	return fmt.Sprintf("#%02x%02x%02x", r>>8, g>>8, b>>8)
}

// newScatterPage scales the embedding into the svg box. y is flipped so
// larger v2 is drawn higher
func newScatterPage(composed *service.ComposeResult) scatterPage {
	page := scatterPage{
		Title: fmt.Sprintf("%d clusters", composed.CenterCount),
		Size:  scatterSize,
	}

	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, r := range composed.Results {
		if r.V1 == nil || r.V2 == nil {
			continue
		}
		minX, maxX = math.Min(minX, *r.V1), math.Max(maxX, *r.V1)
		minY, maxY = math.Min(minY, *r.V2), math.Max(maxY, *r.V2)
	}
	spanX, spanY := maxX-minX, maxY-minY
	if spanX == 0 {
		spanX = 1
	}
	if spanY == 0 {
		spanY = 1
	}
	inner := scatterSize - 2*scatterPadding

	for _, r := range composed.Results {
		if r.V1 == nil || r.V2 == nil {
			continue
		}
		page.Points = append(page.Points, scatterPoint{
			X:     scatterPadding + (*r.V1-minX)/spanX*inner,
			Y:     scatterPadding + (maxY-*r.V2)/spanY*inner,
			Fill:  clusterFill(r.Cluster),
			Label: hoverLabel(r),
		})
	}
	return page
}

func (m ApiHandler) scatter(c *gin.Context) {
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
		composed, err = m.ClusteringHandler.ComposeAt(c.Request.Context(), out, k)
		if err != nil {
			returnErrorJsonCode(err, c, statusFor(err))
			return
		}
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := scatterTemplate.Execute(c.Writer, newScatterPage(composed)); err != nil {
		returnErrorJson(fmt.Errorf("failed to render scatter: %w", err), c)
	}
}
