package service

import (
	"context"
	"fmt"
	"stockcluster/internal/domain"
	mock_repository "stockcluster/internal/repository/mocks"
	"stockcluster/internal/util"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func Test_fetchStart(t *testing.T) {
	since := util.NewDate(2018, 1, 1)

	t.Run("nothing stored", func(t *testing.T) {
		require.Equal(t, since, fetchStart(nil, since))
	})

	t.Run("resume after latest", func(t *testing.T) {
		latest := util.NewDate(2020, 5, 1)
		require.Equal(t, util.NewDate(2020, 5, 2), fetchStart(&latest, since))
	})

	t.Run("stored prices older than since", func(t *testing.T) {
		latest := util.NewDate(2010, 5, 1)
		require.Equal(t, since, fetchStart(&latest, since))
	})
}

func Test_adjCloseFloat(t *testing.T) {
	v, err := adjCloseFloat(decimal.NewFromFloat(101.25))
	require.NoError(t, err)
	require.Equal(t, 101.25, v)

	v, err = adjCloseFloat(99.5)
	require.NoError(t, err)
	require.Equal(t, 99.5, v)

	_, err = adjCloseFloat("1")
	require.Error(t, err)
}

type fakePriceFetcher struct {
	calls []string
}

func (f *fakePriceFetcher) Fetch(symbol string, start, end time.Time) ([]domain.AssetPrice, error) {
	f.calls = append(f.calls, symbol)
	return nil, nil
}

func TestIngestService_UpdateUniversePrices(t *testing.T) {
	since := util.NewDate(2018, 1, 1)

	t.Run("one failed symbol does not stop the rest", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		adjPriceRepository := mock_repository.NewMockAdjustedPriceRepository(ctrl)
		tickerRepository := mock_repository.NewMockTickerRepository(ctrl)
		fetcher := &fakePriceFetcher{}

		tickerRepository.EXPECT().List().Return([]domain.CompanyMetadata{
			{Symbol: "AAPL"},
			{Symbol: "MSFT"},
		}, nil)
		adjPriceRepository.EXPECT().LatestDate("AAPL").Return(nil, fmt.Errorf("connection reset"))
		// already up to date, nothing to fetch or write
		tomorrow := time.Now().UTC().AddDate(0, 0, 1)
		adjPriceRepository.EXPECT().LatestDate("MSFT").Return(&tomorrow, nil)

		service := NewIngestService(nil, adjPriceRepository, tickerRepository, fetcher)
		err := service.UpdateUniversePrices(context.Background(), since)

		require.ErrorContains(t, err, "failed to update 1/2 universe prices")
		require.ErrorContains(t, err, "connection reset")
		require.Empty(t, fetcher.calls)
	})

	t.Run("empty universe", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		tickerRepository := mock_repository.NewMockTickerRepository(ctrl)
		tickerRepository.EXPECT().List().Return(nil, nil)

		service := NewIngestService(nil, nil, tickerRepository, &fakePriceFetcher{})
		err := service.UpdateUniversePrices(context.Background(), since)
		require.ErrorContains(t, err, "no tickers found")
	})
}
