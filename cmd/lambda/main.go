package main

import (
	"context"
	"log"
	"os"
	"stockcluster/api"
	"stockcluster/cmd"
	"stockcluster/internal/config"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"go.uber.org/zap"
)

type lambdaHandler struct {
	apiHandler *api.ApiHandler
	ginLambda  *ginadapter.GinLambda
	// the pipeline runs on the first request of a cold start
	warm sync.Once
}

func (m *lambdaHandler) Handler(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	m.warm.Do(func() {
		if _, err := m.apiHandler.Refresh(ctx); err != nil {
			zap.S().Errorw("failed to run pipeline on cold start", "error", err)
		}
	})

	zap.S().Infow("lambda request", "method", req.HTTPMethod, "path", req.Path)
	return m.ginLambda.ProxyWithContext(ctx, req)
}

func main() {
	cfg, err := config.Load(os.Getenv("CLUSTER_CONFIG"))
	if err != nil {
		log.Fatal(err)
	}
	apiHandler, err := cmd.InitializeDependencies(*cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer cmd.CloseDependencies(apiHandler)

	handler := &lambdaHandler{
		apiHandler: apiHandler,
		ginLambda:  ginadapter.New(apiHandler.InitializeRouterEngine()),
	}
	lambda.Start(handler.Handler)
}
