package repository

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"stockcluster/internal/domain"
	"time"

	"github.com/gocarina/gocsv"
)

type annotatedRow struct {
	Symbol     string   `csv:"symbol"`
	Cluster    int      `csv:"cluster"`
	V1         *float64 `csv:"v1"`
	V2         *float64 `csv:"v2"`
	Company    *string  `csv:"company"`
	Sector     *string  `csv:"sector"`
	MeanReturn *float64 `csv:"mean_return"`
	Volatility *float64 `csv:"volatility"`
}

type returnRow struct {
	Since  string  `csv:"since"`
	Symbol string  `csv:"symbol"`
	Date   string  `csv:"date"`
	Return float64 `csv:"return"`
}

// ResultRepository persists pipeline outputs. none of these files are
// read back by the pipeline except the optional return cache
type ResultRepository interface {
	SaveScree(points []domain.ScreePoint) (string, error)
	SaveResults(rows []domain.AnnotatedResult) (string, error)
	SaveReturns(since time.Time, returns []domain.AssetReturn) (string, error)
	LoadReturns(since time.Time) ([]domain.AssetReturn, error)
}

type resultRepositoryHandler struct {
	Dir string
}

func NewResultRepository(dir string) ResultRepository {
	return resultRepositoryHandler{Dir: dir}
}

func (h resultRepositoryHandler) write(name string, rows interface{}) (string, error) {
	if err := os.MkdirAll(h.Dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output dir %s: %w", h.Dir, err)
	}
	path := filepath.Join(h.Dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := gocsv.MarshalFile(rows, f); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

func (h resultRepositoryHandler) SaveScree(points []domain.ScreePoint) (string, error) {
	return h.write("scree.csv", &points)
}

func (h resultRepositoryHandler) SaveResults(results []domain.AnnotatedResult) (string, error) {
	rows := make([]annotatedRow, 0, len(results))
	for _, r := range results {
		rows = append(rows, annotatedRow(r))
	}
	return h.write("clusters.csv", &rows)
}

// ErrReturnCacheMismatch means the cached returns were computed from a
// different lower bound than the one requested
var ErrReturnCacheMismatch = errors.New("return cache was built for a different since date")

// SaveReturns writes the observed long returns only. zero filled matrix
// cells are never cached so summaries read back the same as a fresh run
func (h resultRepositoryHandler) SaveReturns(since time.Time, returns []domain.AssetReturn) (string, error) {
	key := since.Format(time.DateOnly)
	rows := make([]returnRow, 0, len(returns))
	for _, r := range returns {
		rows = append(rows, returnRow{
			Since:  key,
			Symbol: r.Symbol,
			Date:   r.Date.Format(time.DateOnly),
			Return: r.Return,
		})
	}
	return h.write("returns.csv", &rows)
}

func (h resultRepositoryHandler) LoadReturns(since time.Time) ([]domain.AssetReturn, error) {
	path := filepath.Join(h.Dir, "returns.csv")
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open return cache: %w", err)
	}
	defer f.Close()

	rows := []returnRow{}
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("failed to read return cache: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("return cache %s is empty", path)
	}

	key := since.Format(time.DateOnly)
	out := make([]domain.AssetReturn, 0, len(rows))
	for _, row := range rows {
		if row.Since != key {
			return nil, fmt.Errorf("%w: cached %s, requested %s", ErrReturnCacheMismatch, row.Since, key)
		}
		date, err := time.ParseInLocation(time.DateOnly, row.Date, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("failed to parse cached date %q: %w", row.Date, err)
		}
		out = append(out, domain.AssetReturn{
			Symbol: row.Symbol,
			Date:   date,
			Return: row.Return,
		})
	}
	return out, nil
}
