package api

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"stockcluster/internal/app"
	"stockcluster/internal/logger"
	"stockcluster/internal/service"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type ApiHandler struct {
	Db                *sql.DB
	ClusteringHandler app.ClusteringHandler
	// nil when prices come from csv
	IngestService service.IngestService
	RunInput      app.RunInput

	state *runState
}

// runState holds the most recent pipeline output. requests read it, a
// rerun swaps it
type runState struct {
	mu     sync.RWMutex
	output *app.RunOutput
}

func NewApiHandler(db *sql.DB, clusteringHandler app.ClusteringHandler, ingestService service.IngestService, runInput app.RunInput) *ApiHandler {
	return &ApiHandler{
		Db:                db,
		ClusteringHandler: clusteringHandler,
		IngestService:     ingestService,
		RunInput:          runInput,
		state:             &runState{},
	}
}

func (m ApiHandler) latest() (*app.RunOutput, bool) {
	m.state.mu.RLock()
	defer m.state.mu.RUnlock()
	return m.state.output, m.state.output != nil
}

func (m ApiHandler) SetLatest(out *app.RunOutput) {
	m.state.mu.Lock()
	m.state.output = out
	m.state.mu.Unlock()
}

// Refresh reruns the pipeline and publishes the result
func (m ApiHandler) Refresh(ctx context.Context) (*app.RunOutput, error) {
	out, err := m.ClusteringHandler.Run(ctx, m.RunInput)
	if err != nil {
		return nil, err
	}
	m.SetLatest(out)
	return out, nil
}

func (m ApiHandler) InitializeRouterEngine() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.Default())
	router.Use(m.logRequestMiddleware)

	router.GET("/", func(ctx *gin.Context) {
		ctx.JSON(200, map[string]string{"message": "welcome to stockcluster"})
	})
	router.GET("/scree", m.scree)
	router.GET("/clusters", m.clusters)
	router.GET("/clusters/:k/sectors", m.sectors)
	router.GET("/clusters/:k/metrics", m.metrics)
	router.GET("/embedding", m.embedding)
	router.GET("/scatter", m.scatter)
	router.GET("/profile", m.profile)
	router.POST("/run", m.run)
	router.POST("/updatePrices", m.updatePrices)

	return router
}

func (m ApiHandler) StartApi(port int) error {
	return m.InitializeRouterEngine().Run(fmt.Sprintf(":%d", port))
}

func returnErrorJson(err error, c *gin.Context) {
	returnErrorJsonCode(err, c, http.StatusInternalServerError)
}

func returnErrorJsonCode(err error, c *gin.Context, code int) {
	logger.FromContext(c.Request.Context()).Errorw("request failed", "route", c.FullPath(), "error", err.Error())
	c.AbortWithStatusJSON(code, gin.H{
		"error": err.Error(),
	})
}

func (m ApiHandler) logRequestMiddleware(ctx *gin.Context) {
	start := time.Now().UTC()
	ctx.Next()

	logger.FromContext(ctx.Request.Context()).Infow(
		"handled request",
		"method", ctx.Request.Method,
		"route", ctx.Request.URL.Path,
		"status", ctx.Writer.Status(),
		"durationMs", time.Since(start).Milliseconds(),
		"ip", ctx.ClientIP(),
	)
}
