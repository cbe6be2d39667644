package cmd

import (
	"database/sql"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"stockcluster/api"
	"stockcluster/internal/app"
	"stockcluster/internal/config"
	"stockcluster/internal/repository"
	"stockcluster/internal/service"
	"stockcluster/internal/umap"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

func CloseDependencies(handler *api.ApiHandler) {
	if handler.Db == nil {
		return
	}
	if err := handler.Db.Close(); err != nil {
		zap.S().Errorw("failed to close db", "error", err)
	}
}

// RunInputFromConfig maps the pipeline and output sections onto a run
func RunInputFromConfig(cfg config.Config) (app.RunInput, error) {
	since, err := cfg.SinceDate()
	if err != nil {
		return app.RunInput{}, err
	}
	return app.RunInput{
		Since: since,
		Sweep: service.SweepInput{
			MinCenters:    cfg.Pipeline.MinCenters,
			MaxCenters:    cfg.Pipeline.MaxCenters,
			Restarts:      cfg.Pipeline.Restarts,
			MaxIterations: cfg.Pipeline.MaxIterations,
			Workers:       cfg.Pipeline.Workers,
			Seed:          cfg.Pipeline.Seed,
		},
		ComposeCenters: cfg.Pipeline.ComposeCenters,
		UseReturnCache: cfg.Output.CacheReturns,
		SaveOutputs:    cfg.Output.Dir != "",
		Charts:         cfg.Output.Charts,
		ChartDir:       filepath.Join(cfg.Output.Dir, "charts"),
		ChartFormat:    cfg.Output.ChartFormat,
	}, nil
}

func newProjector(cfg config.Config) service.Projector {
	if cfg.Pipeline.Projector == config.ProjectorPca {
		return umap.PCA{}
	}
	opts := umap.Options{
		NNeighbors:         cfg.Umap.NNeighbors,
		MinDist:            cfg.Umap.MinDist,
		Spread:             cfg.Umap.Spread,
		Epochs:             cfg.Umap.Epochs,
		LearningRate:       cfg.Umap.LearningRate,
		NegativeSampleRate: cfg.Umap.NegativeSampleRate,
	}
	if cfg.Pipeline.Seed != 0 {
		opts.Rand = rand.New(rand.NewPCG(cfg.Pipeline.Seed, 0))
	}
	return umap.New(opts)
}

func InitializeDependencies(cfg config.Config) (*api.ApiHandler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	runInput, err := RunInputFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	var (
		dbConn            *sql.DB
		priceRepository   repository.PriceRepository
		companyRepository repository.CompanyRepository
		ingestService     service.IngestService
	)

	switch cfg.Source.Kind {
	case config.SourcePostgres:
		secrets, err := config.LoadSecrets()
		if err != nil {
			return nil, fmt.Errorf("failed to load secrets: %w", err)
		}
		dbConn, err = sql.Open("postgres", secrets.Db.ToConnectionStr())
		if err != nil {
			return nil, fmt.Errorf("failed to connect to db: %w", err)
		}
		adjPriceRepository := repository.NewAdjustedPriceRepository(dbConn)
		tickerRepository := repository.NewTickerRepository(dbConn)
		priceRepository = adjPriceRepository
		companyRepository = tickerRepository
		ingestService = service.NewIngestService(
			dbConn,
			adjPriceRepository,
			tickerRepository,
			service.NewYahooPriceFetcher(),
		)
	default:
		priceRepository = repository.NewCsvPriceRepository(cfg.Source.PricesCsv)
		companyRepository = repository.NewCsvCompanyRepository(cfg.Source.CompaniesCsv)
	}

	var resultRepository repository.ResultRepository
	if cfg.Output.Dir != "" {
		resultRepository = repository.NewResultRepository(cfg.Output.Dir)
	}

	clusteringHandler := app.ClusteringHandler{
		PriceRepository:   priceRepository,
		CompanyRepository: companyRepository,
		ResultRepository:  resultRepository,
		SweepService:      service.NewClusterSweepService(),
		EmbeddingService:  service.NewEmbeddingService(newProjector(cfg)),
		ComposerService:   service.NewResultComposerService(),
	}

	zap.S().Infow(
		"initialized dependencies",
		"source", cfg.Source.Kind,
		"projector", cfg.Pipeline.Projector,
		"since", runInput.Since.Format(time.DateOnly),
	)

	return api.NewApiHandler(dbConn, clusteringHandler, ingestService, runInput), nil
}
