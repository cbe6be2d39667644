package repository

import (
	"database/sql"
	"fmt"
	"stockcluster/internal/db/models/postgres/public/model"
	"stockcluster/internal/db/models/postgres/public/table"
	"stockcluster/internal/domain"

	"github.com/go-jet/jet/v2/postgres"
)

// CompanyRepository lists the static name and sector of each index
// constituent
type CompanyRepository interface {
	List() ([]domain.CompanyMetadata, error)
}

type TickerRepository interface {
	CompanyRepository
	Upsert(tx *sql.Tx, tickers []model.Ticker) error
}

type tickerRepositoryHandler struct {
	Db *sql.DB
}

func NewTickerRepository(db *sql.DB) TickerRepository {
	return tickerRepositoryHandler{Db: db}
}

func (h tickerRepositoryHandler) List() ([]domain.CompanyMetadata, error) {
	query := table.Ticker.
		SELECT(table.Ticker.AllColumns).
		ORDER_BY(table.Ticker.Symbol.ASC())

	result := []model.Ticker{}
	err := query.Query(h.Db, &result)
	if err != nil {
		return nil, fmt.Errorf("failed to get tickers: %w", err)
	}

	out := make([]domain.CompanyMetadata, 0, len(result))
	for _, t := range result {
		m := domain.CompanyMetadata{
			Symbol:  t.Symbol,
			Company: t.Name,
		}
		if t.Sector != nil {
			m.Sector = *t.Sector
		}
		out = append(out, m)
	}
	return out, nil
}

func (h tickerRepositoryHandler) Upsert(tx *sql.Tx, tickers []model.Ticker) error {
	if len(tickers) == 0 {
		return nil
	}
	query := table.Ticker.
		INSERT(table.Ticker.MutableColumns).
		MODELS(tickers).
		ON_CONFLICT(table.Ticker.Symbol).DO_UPDATE(
		postgres.SET(
			table.Ticker.Name.SET(table.Ticker.EXCLUDED.Name),
			table.Ticker.Sector.SET(table.Ticker.EXCLUDED.Sector),
		),
	)

	_, err := query.Exec(tx)
	if err != nil {
		return fmt.Errorf("failed to upsert tickers: %w", err)
	}
	return nil
}
