package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"stockcluster/cmd"
	"stockcluster/internal/calculator"
	"stockcluster/internal/config"
	"stockcluster/internal/domain"
	"stockcluster/internal/repository"
	"stockcluster/internal/util"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type flags struct {
	configPath     string
	since          string
	minCenters     int
	maxCenters     int
	composeCenters int
	workers        int
	seed           uint64
	projector      string
	outputDir      string
	noCharts       bool
}

func (f flags) load(c *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	changed := c.Flags().Changed
	if changed("since") {
		cfg.Pipeline.Since = f.since
	}
	if changed("min-centers") {
		cfg.Pipeline.MinCenters = f.minCenters
	}
	if changed("max-centers") {
		cfg.Pipeline.MaxCenters = f.maxCenters
	}
	if changed("k") {
		cfg.Pipeline.ComposeCenters = f.composeCenters
	}
	if changed("workers") {
		cfg.Pipeline.Workers = f.workers
	}
	if changed("seed") {
		cfg.Pipeline.Seed = f.seed
	}
	if changed("projector") {
		cfg.Pipeline.Projector = f.projector
	}
	if changed("out") {
		cfg.Output.Dir = f.outputDir
	}
	if f.noCharts {
		cfg.Output.Charts = false
	}
	return cfg, cfg.Validate()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer zap.S().Sync()

	if err := rootCmd(ctx).Execute(); err != nil {
		zap.S().Errorw("command failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func rootCmd(ctx context.Context) *cobra.Command {
	f := &flags{}
	root := &cobra.Command{
		Use:           "stockcluster",
		Short:         "cluster S&P 500 constituents by their daily returns",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "", "yaml config file")
	pf.StringVar(&f.since, "since", "", "first date of the return window, yyyy-mm-dd")
	pf.IntVar(&f.minCenters, "min-centers", 1, "smallest center count to sweep")
	pf.IntVar(&f.maxCenters, "max-centers", 30, "largest center count to sweep")
	pf.IntVar(&f.composeCenters, "k", 10, "center count used for the annotated result")
	pf.IntVar(&f.workers, "workers", 1, "center counts fit at once")
	pf.Uint64Var(&f.seed, "seed", 0, "random seed, 0 seeds from the clock")
	pf.StringVar(&f.projector, "projector", "umap", "umap or pca")
	pf.StringVar(&f.outputDir, "out", "out", "directory for csv outputs and charts")
	pf.BoolVar(&f.noCharts, "no-charts", false, "skip chart rendering")

	root.AddCommand(runCmd(ctx, f))
	root.AddCommand(ingestCmd(ctx, f))
	root.AddCommand(serveCmd(ctx, f))
	return root
}

func runCmd(ctx context.Context, f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "run the pipeline once and write its outputs",
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := f.load(c)
			if err != nil {
				return err
			}
			handler, err := cmd.InitializeDependencies(*cfg)
			if err != nil {
				return err
			}
			defer cmd.CloseDependencies(handler)

			profile, endProfile := domain.NewProfile()
			ctx := domain.NewCtxWithProfile(ctx, profile)
			out, err := handler.ClusteringHandler.Run(ctx, handler.RunInput)
			if err != nil {
				return err
			}
			endProfile()

			groups := out.Composed.GroupByCluster()
			clusters := make([]int, 0, len(groups))
			for cluster := range groups {
				clusters = append(clusters, cluster)
			}
			sort.Ints(clusters)
			for _, cluster := range clusters {
				rows := groups[cluster]
				symbols := make([]string, 0, len(rows))
				for _, r := range rows {
					symbols = append(symbols, r.Symbol)
				}
				fmt.Printf("cluster %d (%d): %v\n", cluster, len(rows), symbols)
			}
			metrics, err := calculator.CalculateClusterMetrics(out.Composed.Results)
			if err != nil {
				return err
			}
			util.Pprint(metrics)

			zap.S().Infow(
				"pipeline finished",
				"symbols", out.Matrix.NumRows(),
				"files", out.Files,
				"totalMs", profile.TotalMs,
			)
			return nil
		},
	}
}

func ingestCmd(ctx context.Context, f *flags) *cobra.Command {
	var seedTickers bool
	c := &cobra.Command{
		Use:   "ingest",
		Short: "pull daily adjusted closes for every ticker into postgres",
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := f.load(c)
			if err != nil {
				return err
			}
			if cfg.Source.Kind != config.SourcePostgres {
				return domain.ConfigurationError{Parameter: "source.kind", Value: cfg.Source.Kind, Reason: "ingest writes to postgres"}
			}
			handler, err := cmd.InitializeDependencies(*cfg)
			if err != nil {
				return err
			}
			defer cmd.CloseDependencies(handler)

			if seedTickers {
				companies, err := repository.NewCsvCompanyRepository(cfg.Source.CompaniesCsv).List()
				if err != nil {
					return err
				}
				if err := handler.IngestService.SeedTickers(ctx, companies); err != nil {
					return fmt.Errorf("failed to seed tickers: %w", err)
				}
				zap.S().Infow("seeded tickers", "count", len(companies))
			}

			return handler.IngestService.UpdateUniversePrices(ctx, handler.RunInput.Since)
		},
	}
	c.Flags().BoolVar(&seedTickers, "seed-tickers", false, "upsert tickers from the companies csv first")
	return c
}

func serveCmd(ctx context.Context, f *flags) *cobra.Command {
	var port int
	c := &cobra.Command{
		Use:   "serve",
		Short: "run the pipeline then serve its results over http",
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := f.load(c)
			if err != nil {
				return err
			}
			if c.Flags().Changed("port") {
				cfg.Api.Port = port
			}
			handler, err := cmd.InitializeDependencies(*cfg)
			if err != nil {
				return err
			}
			defer cmd.CloseDependencies(handler)

			if _, err := handler.Refresh(ctx); err != nil {
				return err
			}
			return handler.StartApi(cfg.Api.Port)
		},
	}
	c.Flags().IntVar(&port, "port", 3009, "http port")
	return c
}
