package service

import (
	"context"
	"database/sql"
	"fmt"
	"stockcluster/internal/db/models/postgres/public/model"
	"stockcluster/internal/domain"
	"stockcluster/internal/logger"
	"stockcluster/internal/repository"
	"stockcluster/internal/util"
	"time"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/shopspring/decimal"
)

// PriceFetcher pulls daily adjusted closes from an upstream provider
type PriceFetcher interface {
	Fetch(symbol string, start, end time.Time) ([]domain.AssetPrice, error)
}

type yahooPriceFetcher struct{}

func NewYahooPriceFetcher() PriceFetcher {
	return yahooPriceFetcher{}
}

// the bar's adjusted close is a decimal upstream and a float in the fork
func adjCloseFloat(v any) (float64, error) {
	switch p := v.(type) {
	case decimal.Decimal:
		return p.InexactFloat64(), nil
	case float64:
		return p, nil
	}
	return 0, fmt.Errorf("unexpected adjusted close type %T", v)
}

func (yahooPriceFetcher) Fetch(symbol string, start, end time.Time) ([]domain.AssetPrice, error) {
	params := &chart.Params{
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Symbol:   symbol,
		Interval: datetime.OneDay,
	}
	iter := chart.Get(params)

	out := []domain.AssetPrice{}
	for iter.Next() {
		price, err := adjCloseFloat(iter.Bar().AdjClose)
		if err != nil {
			return nil, err
		}
		ts := time.Unix(int64(iter.Bar().Timestamp), 0).UTC()
		out = append(out, domain.AssetPrice{
			Symbol: symbol,
			Price:  price,
			Date:   util.NewDate(ts.Year(), int(ts.Month()), ts.Day()),
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to get prices for %s: %w", symbol, err)
	}

	return out, nil
}

type IngestService interface {
	IngestPrices(ctx context.Context, symbol string, since time.Time) (int, error)
	UpdateUniversePrices(ctx context.Context, since time.Time) error
	SeedTickers(ctx context.Context, companies []domain.CompanyMetadata) error
}

type ingestServiceHandler struct {
	Db                 *sql.DB
	AdjPriceRepository repository.AdjustedPriceRepository
	TickerRepository   repository.TickerRepository
	PriceFetcher       PriceFetcher
}

func NewIngestService(
	db *sql.DB,
	adjPriceRepository repository.AdjustedPriceRepository,
	tickerRepository repository.TickerRepository,
	priceFetcher PriceFetcher,
) IngestService {
	return ingestServiceHandler{
		Db:                 db,
		AdjPriceRepository: adjPriceRepository,
		TickerRepository:   tickerRepository,
		PriceFetcher:       priceFetcher,
	}
}

// fetchStart resumes from the day after the latest stored price
func fetchStart(latest *time.Time, since time.Time) time.Time {
	if latest == nil || latest.Before(since) {
		return since
	}
	return latest.AddDate(0, 0, 1)
}

func (h ingestServiceHandler) IngestPrices(ctx context.Context, symbol string, since time.Time) (int, error) {
	latest, err := h.AdjPriceRepository.LatestDate(symbol)
	if err != nil {
		return 0, err
	}
	start := fetchStart(latest, since)
	end := time.Now().UTC()
	if !start.Before(end) {
		return 0, nil
	}

	prices, err := h.PriceFetcher.Fetch(symbol, start, end)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	models := make([]model.AdjustedPrice, 0, len(prices))
	for _, p := range prices {
		models = append(models, model.AdjustedPrice{
			Symbol:    p.Symbol,
			Date:      p.Date,
			Price:     p.Price,
			CreatedAt: now,
		})
	}

	tx, err := h.Db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := h.AdjPriceRepository.Add(tx, models); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit prices for %s: %w", symbol, err)
	}

	return len(models), nil
}

// UpdateUniversePrices ingests every ticker and reports how many failed.
// one bad symbol does not stop the rest
func (h ingestServiceHandler) UpdateUniversePrices(ctx context.Context, since time.Time) error {
	log := logger.FromContext(ctx)
	tickers, err := h.TickerRepository.List()
	if err != nil {
		return err
	}
	if len(tickers) == 0 {
		return fmt.Errorf("no tickers found in universe")
	}

	errors := []error{}
	for _, t := range tickers {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := h.IngestPrices(ctx, t.Symbol, since)
		if err != nil {
			err = fmt.Errorf("failed to ingest historical prices for %s: %w", t.Symbol, err)
			log.Warnw("ingest failed", "symbol", t.Symbol, "error", err)
			errors = append(errors, err)
			continue
		}
		log.Infow("ingested prices", "symbol", t.Symbol, "rows", n)
	}

	if len(errors) > 0 {
		return fmt.Errorf("failed to update %d/%d universe prices. first err: %w", len(errors), len(tickers), errors[0])
	}

	return nil
}

func (h ingestServiceHandler) SeedTickers(ctx context.Context, companies []domain.CompanyMetadata) error {
	tickers := make([]model.Ticker, 0, len(companies))
	for _, c := range companies {
		t := model.Ticker{
			Symbol: c.Symbol,
			Name:   c.Company,
		}
		if c.Sector != "" {
			sector := c.Sector
			t.Sector = &sector
		}
		tickers = append(tickers, t)
	}

	tx, err := h.Db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := h.TickerRepository.Upsert(tx, tickers); err != nil {
		return err
	}
	return tx.Commit()
}
