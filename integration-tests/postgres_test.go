package integration_tests

import (
	"context"
	"database/sql"
	"os"
	"stockcluster/cmd"
	"stockcluster/internal/config"
	"stockcluster/internal/db/models/postgres/public/model"
	"stockcluster/internal/db/models/postgres/public/table"
	"stockcluster/internal/logger"
	"stockcluster/internal/repository"
	"stockcluster/internal/util"
	"testing"
	"time"

	"github.com/go-jet/jet/v2/postgres"
	"github.com/google/go-cmp/cmp"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

func seedPrices(tx *sql.Tx) error {
	f, err := os.Open("testdata/prices.csv")
	if err != nil {
		return err
	}
	defer f.Close()

	prices, err := repository.ReadPrices(f)
	if err != nil {
		return err
	}

	models := []model.AdjustedPrice{}
	for _, p := range prices {
		models = append(models, model.AdjustedPrice{
			Date:      p.Date,
			Symbol:    p.Symbol,
			Price:     p.Price,
			CreatedAt: time.Now().UTC(),
		})
	}

	query := table.AdjustedPrice.INSERT(table.AdjustedPrice.MutableColumns).MODELS(models)
	_, err = query.Exec(tx)
	return err
}

func clearTables(db *sql.DB) error {
	if _, err := table.AdjustedPrice.DELETE().WHERE(postgres.Bool(true)).Exec(db); err != nil {
		return err
	}
	_, err := table.Ticker.DELETE().WHERE(postgres.Bool(true)).Exec(db)
	return err
}

// needs a scratch database described by secrets-test.json
func Test_postgresPipeline(t *testing.T) {
	if os.Getenv(logger.EnvVar) != "test" {
		t.Skipf("set %s=test to run against postgres", logger.EnvVar)
	}

	cfg := csvConfig(t)
	cfg.Source.Kind = config.SourcePostgres
	handler, err := cmd.InitializeDependencies(cfg)
	require.NoError(t, err)
	defer cmd.CloseDependencies(handler)

	db := handler.Db
	require.NoError(t, clearTables(db))
	defer clearTables(db)

	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, seedPrices(tx))
	require.NoError(t, tx.Commit())

	companies, err := repository.NewCsvCompanyRepository(cfg.Source.CompaniesCsv).List()
	require.NoError(t, err)
	require.NoError(t, handler.IngestService.SeedTickers(context.Background(), companies))

	t.Run("tickers round trip", func(t *testing.T) {
		stored, err := handler.ClusteringHandler.CompanyRepository.List()
		require.NoError(t, err)
		require.Equal(t, "", cmp.Diff(companies, stored))
	})

	t.Run("latest stored date", func(t *testing.T) {
		latest, err := repository.NewAdjustedPriceRepository(db).LatestDate("AAPL")
		require.NoError(t, err)
		require.NotNil(t, latest)
		require.True(t, latest.Equal(util.NewDate(2020, 1, 10)))
	})

	t.Run("pipeline reads from postgres", func(t *testing.T) {
		out, err := handler.Refresh(context.Background())
		require.NoError(t, err)
		require.Equal(t, 3, out.Matrix.NumRows())
		require.Equal(t, 4, out.Matrix.NumCols())
		require.Len(t, out.Composed.Results, 3)
		require.Empty(t, out.Composed.Warnings)
	})
}
