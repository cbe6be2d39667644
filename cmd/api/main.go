package main

import (
	"context"
	"log"
	"os"
	"stockcluster/cmd"
	"stockcluster/internal/config"

	"go.uber.org/zap"
)

func main() {
	zap.S().Infow("starting api", "commitHash", os.Getenv("commit_hash"))
	cfg, err := config.Load(os.Getenv("CLUSTER_CONFIG"))
	if err != nil {
		log.Fatal(err)
	}
	apiHandler, err := cmd.InitializeDependencies(*cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer cmd.CloseDependencies(apiHandler)

	if _, err := apiHandler.Refresh(context.Background()); err != nil {
		log.Fatal(err)
	}
	err = apiHandler.StartApi(cfg.Api.Port)
	if err != nil {
		log.Fatal(err)
	}
}
