package repository

import (
	"database/sql"
	"fmt"
	"stockcluster/internal/db/models/postgres/public/model"
	. "stockcluster/internal/db/models/postgres/public/table"
	"stockcluster/internal/domain"
	"time"

	. "github.com/go-jet/jet/v2/postgres"
)

// PriceRepository is where the pipeline reads adjusted prices from
type PriceRepository interface {
	ListSince(since time.Time) ([]domain.AssetPrice, error)
}

type AdjustedPriceRepository interface {
	PriceRepository
	Add(*sql.Tx, []model.AdjustedPrice) error
	LatestDate(symbol string) (*time.Time, error)
}

func NewAdjustedPriceRepository(db *sql.DB) AdjustedPriceRepository {
	return adjustedPriceRepositoryHandler{Db: db}
}

type adjustedPriceRepositoryHandler struct {
	Db *sql.DB
}

func (h adjustedPriceRepositoryHandler) Add(tx *sql.Tx, adjPrices []model.AdjustedPrice) error {
	if len(adjPrices) == 0 {
		return nil
	}
	query := AdjustedPrice.
		INSERT(AdjustedPrice.MutableColumns).
		MODELS(adjPrices).
		ON_CONFLICT(
			AdjustedPrice.Symbol, AdjustedPrice.Date,
		).DO_UPDATE(
		SET(
			AdjustedPrice.Price.SET(AdjustedPrice.EXCLUDED.Price),
		),
	)

	_, err := query.Exec(tx)
	if err != nil {
		return fmt.Errorf("failed to add adjusted prices to db: %w", err)
	}

	return nil
}

// ListSince returns every price on or after since, ordered by symbol
// then date
func (h adjustedPriceRepositoryHandler) ListSince(since time.Time) ([]domain.AssetPrice, error) {
	query := AdjustedPrice.
		SELECT(AdjustedPrice.Symbol, AdjustedPrice.Date, AdjustedPrice.Price).
		WHERE(AdjustedPrice.Date.GT_EQ(DateT(since))).
		ORDER_BY(AdjustedPrice.Symbol.ASC(), AdjustedPrice.Date.ASC())

	result := []model.AdjustedPrice{}
	err := query.Query(h.Db, &result)
	if err != nil {
		return nil, fmt.Errorf("failed to list prices since %s: %w", since.Format(time.DateOnly), err)
	}

	out := make([]domain.AssetPrice, 0, len(result))
	for _, r := range result {
		out = append(out, domain.AssetPrice{
			Symbol: r.Symbol,
			Price:  r.Price,
			Date:   r.Date,
		})
	}
	return out, nil
}

func (h adjustedPriceRepositoryHandler) LatestDate(symbol string) (*time.Time, error) {
	query := AdjustedPrice.
		SELECT(AdjustedPrice.AllColumns).
		WHERE(AdjustedPrice.Symbol.EQ(String(symbol))).
		ORDER_BY(AdjustedPrice.Date.DESC()).
		LIMIT(1)

	result := []model.AdjustedPrice{}
	err := query.Query(h.Db, &result)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest price date for %s: %w", symbol, err)
	}
	if len(result) == 0 {
		return nil, nil
	}
	return &result[0].Date, nil
}
