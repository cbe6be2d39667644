package repository

import (
	"fmt"
	"io"
	"os"
	"stockcluster/internal/domain"
	"stockcluster/internal/util"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
)

type priceRow struct {
	Date   string  `csv:"date"`
	Symbol string  `csv:"symbol"`
	Price  float64 `csv:"price"`
}

type companyRow struct {
	Symbol  string `csv:"symbol"`
	Company string `csv:"company"`
	Sector  string `csv:"sector"`
}

type csvPriceRepositoryHandler struct {
	Path string
}

// NewCsvPriceRepository reads prices from a file with a date,symbol,price
// header
func NewCsvPriceRepository(path string) PriceRepository {
	return csvPriceRepositoryHandler{Path: path}
}

func (h csvPriceRepositoryHandler) ListSince(since time.Time) ([]domain.AssetPrice, error) {
	f, err := os.Open(h.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open prices csv: %w", err)
	}
	defer f.Close()

	prices, err := ReadPrices(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", h.Path, err)
	}

	out := []domain.AssetPrice{}
	for _, p := range prices {
		if !p.Date.Before(since) {
			out = append(out, p)
		}
	}
	return out, nil
}

func ReadPrices(r io.Reader) ([]domain.AssetPrice, error) {
	rows := []priceRow{}
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal prices: %w", err)
	}

	out := make([]domain.AssetPrice, 0, len(rows))
	for _, row := range rows {
		date, err := util.ParseDate(row.Date)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.AssetPrice{
			Symbol: strings.TrimSpace(row.Symbol),
			Price:  row.Price,
			Date:   date,
		})
	}
	return out, nil
}

type csvCompanyRepositoryHandler struct {
	Path string
}

// NewCsvCompanyRepository reads metadata from a file with a
// symbol,company,sector header
func NewCsvCompanyRepository(path string) CompanyRepository {
	return csvCompanyRepositoryHandler{Path: path}
}

func (h csvCompanyRepositoryHandler) List() ([]domain.CompanyMetadata, error) {
	f, err := os.Open(h.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open companies csv: %w", err)
	}
	defer f.Close()

	return ReadCompanies(f)
}

func ReadCompanies(r io.Reader) ([]domain.CompanyMetadata, error) {
	rows := []companyRow{}
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal companies: %w", err)
	}

	out := make([]domain.CompanyMetadata, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.CompanyMetadata{
			Symbol:  strings.TrimSpace(row.Symbol),
			Company: row.Company,
			Sector:  row.Sector,
		})
	}
	return out, nil
}
