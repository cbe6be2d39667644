package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"stockcluster/internal/calculator"
	"stockcluster/internal/chart"
	"stockcluster/internal/domain"
	"stockcluster/internal/logger"
	"stockcluster/internal/repository"
	"stockcluster/internal/service"
	"time"
)

type ClusteringHandler struct {
	PriceRepository   repository.PriceRepository
	CompanyRepository repository.CompanyRepository
	// optional, only needed when outputs are saved or the return cache
	// is used
	ResultRepository repository.ResultRepository
	SweepService     service.ClusterSweepService
	EmbeddingService service.EmbeddingService
	ComposerService  service.ResultComposerService
}

type RunInput struct {
	Since          time.Time
	Sweep          service.SweepInput
	ComposeCenters int
	UseReturnCache bool
	SaveOutputs    bool
	Charts         bool
	ChartDir       string
	ChartFormat    string
}

type RunOutput struct {
	Matrix    *domain.ReturnMatrix
	Returns   []domain.AssetReturn
	Skipped   []domain.DataIntegrityError
	Summaries map[string]domain.ReturnSummary
	Fits      domain.ClusterFits
	Embedding domain.Embedding
	Companies []domain.CompanyMetadata
	Composed  *service.ComposeResult
	Profile   *domain.Profile
	Files     []string
}

func (in RunInput) validate() error {
	if in.ComposeCenters < in.Sweep.MinCenters || in.ComposeCenters > in.Sweep.MaxCenters {
		return domain.ConfigurationError{
			Parameter: "composeCenters",
			Value:     in.ComposeCenters,
			Reason:    fmt.Sprintf("outside swept range %d..%d", in.Sweep.MinCenters, in.Sweep.MaxCenters),
		}
	}
	if in.Charts && in.ChartDir == "" {
		return domain.ConfigurationError{Parameter: "chartDir", Value: in.ChartDir, Reason: "required to render charts"}
	}
	return nil
}

// Run loads prices and metadata and runs returns -> matrix -> sweep ->
// embedding -> composition. each stage gets a span on the profile
func (h ClusteringHandler) Run(ctx context.Context, in RunInput) (*RunOutput, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	log := logger.FromContext(ctx)
	profile, endProfile := domain.GetProfile(ctx)
	defer endProfile()

	out := &RunOutput{Profile: profile}

	_, endSpan := profile.StartNewSpan("build return matrix")
	matrix, err := h.loadMatrix(ctx, in, out)
	if err != nil {
		return nil, err
	}
	endSpan()
	out.Matrix = matrix
	log.Infow(
		"built return matrix",
		"symbols", matrix.NumRows(),
		"dates", matrix.NumCols(),
		"skipped", len(out.Skipped),
	)

	_, endSpan = profile.StartNewSpan("load company metadata")
	companies, err := h.CompanyRepository.List()
	if err != nil {
		return nil, fmt.Errorf("failed to load company metadata: %w", err)
	}
	endSpan()
	out.Companies = companies

	_, endSpan = profile.StartNewSpan("cluster sweep")
	fits, err := h.SweepService.Sweep(ctx, *matrix, in.Sweep)
	if err != nil {
		return nil, fmt.Errorf("cluster sweep failed: %w", err)
	}
	endSpan()
	out.Fits = fits

	_, endSpan = profile.StartNewSpan("embedding")
	embedding, err := h.EmbeddingService.Project(ctx, *matrix)
	if err != nil {
		return nil, err
	}
	endSpan()
	out.Embedding = embedding

	_, endSpan = profile.StartNewSpan("compose result")
	composed, err := h.ComposeAt(ctx, out, in.ComposeCenters)
	if err != nil {
		return nil, err
	}
	endSpan()
	out.Composed = composed

	if in.SaveOutputs {
		_, endSpan = profile.StartNewSpan("save outputs")
		if err := h.save(in, out); err != nil {
			return nil, err
		}
		endSpan()
	}
	if in.Charts {
		_, endSpan = profile.StartNewSpan("render charts")
		if err := h.render(in, out); err != nil {
			return nil, err
		}
		endSpan()
	}

	return out, nil
}

func (h ClusteringHandler) loadMatrix(ctx context.Context, in RunInput, out *RunOutput) (*domain.ReturnMatrix, error) {
	log := logger.FromContext(ctx)
	if in.UseReturnCache && h.ResultRepository != nil {
		cached, err := h.ResultRepository.LoadReturns(in.Since)
		if err == nil {
			log.Infow("using cached returns", "since", in.Since.Format(time.DateOnly), "rows", len(cached))
			return h.fromReturns(cached, out)
		}
		log.Warnw("return cache unavailable, computing from prices", "error", err)
	}

	prices, err := h.PriceRepository.ListSince(in.Since)
	if err != nil {
		return nil, fmt.Errorf("failed to load prices: %w", err)
	}
	if len(prices) == 0 {
		return nil, fmt.Errorf("no prices found since %s", in.Since.Format(time.DateOnly))
	}

	returns := calculator.ComputeReturns(prices, in.Since)
	for _, skipped := range returns.Skipped {
		log.Warnw("skipped price", "symbol", skipped.Symbol, "date", skipped.Date.Format(time.DateOnly), "reason", skipped.Reason)
	}
	out.Skipped = returns.Skipped

	return h.fromReturns(returns.Returns, out)
}

// fromReturns summarizes and pivots observed returns. summaries never see
// the zero filled cells of the matrix
func (h ClusteringHandler) fromReturns(returns []domain.AssetReturn, out *RunOutput) (*domain.ReturnMatrix, error) {
	summaries, err := calculator.SummarizeReturns(returns)
	if err != nil {
		return nil, err
	}
	out.Summaries = summaries
	out.Returns = returns

	matrix, err := calculator.BuildReturnMatrix(returns)
	if err != nil {
		return nil, fmt.Errorf("failed to build return matrix: %w", err)
	}
	return matrix, nil
}

// ComposeAt annotates the clustering for any count that was swept. the
// sweep itself is not rerun
func (h ClusteringHandler) ComposeAt(ctx context.Context, out *RunOutput, centerCount int) (*service.ComposeResult, error) {
	composed, err := h.ComposerService.Compose(service.ComposeInput{
		Fits:        out.Fits,
		CenterCount: centerCount,
		Symbols:     out.Matrix.Symbols,
		Embedding:   out.Embedding,
		Companies:   out.Companies,
		Summaries:   out.Summaries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to compose result: %w", err)
	}
	for _, w := range composed.Warnings {
		logger.FromContext(ctx).Warnw("join mismatch", "symbol", w.Symbol, "missing", w.Missing)
	}
	return composed, nil
}

func (h ClusteringHandler) save(in RunInput, out *RunOutput) error {
	if h.ResultRepository == nil {
		return fmt.Errorf("cannot save outputs without a result repository")
	}
	path, err := h.ResultRepository.SaveScree(out.Fits.Scree())
	if err != nil {
		return err
	}
	out.Files = append(out.Files, path)

	path, err = h.ResultRepository.SaveResults(out.Composed.Results)
	if err != nil {
		return err
	}
	out.Files = append(out.Files, path)

	if in.UseReturnCache {
		path, err = h.ResultRepository.SaveReturns(in.Since, out.Returns)
		if err != nil {
			return err
		}
		out.Files = append(out.Files, path)
	}
	return nil
}

func (h ClusteringHandler) render(in RunInput, out *RunOutput) error {
	format := in.ChartFormat
	if format == "" {
		format = "png"
	}
	if err := os.MkdirAll(in.ChartDir, 0o755); err != nil {
		return fmt.Errorf("failed to create chart dir %s: %w", in.ChartDir, err)
	}
	screePath := filepath.Join(in.ChartDir, "scree."+format)
	if err := chart.Scree(out.Fits.Scree(), screePath); err != nil {
		return err
	}
	scatterPath := filepath.Join(in.ChartDir, "clusters."+format)
	title := fmt.Sprintf("%d clusters", out.Composed.CenterCount)
	if err := chart.Scatter(out.Composed.Results, title, scatterPath); err != nil {
		return err
	}
	out.Files = append(out.Files, screePath, scatterPath)
	return nil
}
