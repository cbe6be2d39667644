package calculator

import (
	"fmt"
	"math"
	"sort"
	"stockcluster/internal/domain"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/shopspring/decimal"
)

const tradingDaysPerYear = 252

type ComputeReturnsResult struct {
	Returns []domain.AssetReturn
	// rows that could not produce a return. they are reported here and
	// left out of Returns
	Skipped []domain.DataIntegrityError
}

func percentChange(current, previous float64) float64 {
	c := decimal.NewFromFloat(current)
	p := decimal.NewFromFloat(previous)
	return c.Sub(p).Div(p).InexactFloat64()
}

func validPrice(p float64) bool {
	return p > 0 && !math.IsNaN(p) && !math.IsInf(p, 0)
}

// calendarDate drops the clock so that two prices on the same trading day
// compare equal here and in the matrix pivot
func calendarDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ComputeReturns converts adjusted prices on or after since into daily
// returns. the first price of each symbol has no predecessor and never
// produces a row
func ComputeReturns(prices []domain.AssetPrice, since time.Time) ComputeReturnsResult {
	inRange := make([]domain.AssetPrice, 0, len(prices))
	for _, p := range prices {
		p.Date = calendarDate(p.Date)
		if !p.Date.Before(since) {
			inRange = append(inRange, p)
		}
	}
	sort.SliceStable(inRange, func(i, j int) bool {
		if inRange[i].Symbol != inRange[j].Symbol {
			return inRange[i].Symbol < inRange[j].Symbol
		}
		return inRange[i].Date.Before(inRange[j].Date)
	})

	out := ComputeReturnsResult{
		Returns: []domain.AssetReturn{},
		Skipped: []domain.DataIntegrityError{},
	}

	// predecessor is nil at the start of every symbol run and after a
	// price that cannot be used as a base
	var predecessor *domain.AssetPrice
	for i := range inRange {
		current := inRange[i]
		if predecessor != nil && predecessor.Symbol != current.Symbol {
			predecessor = nil
		}
		if i > 0 && inRange[i-1].Symbol == current.Symbol && inRange[i-1].Date.Equal(current.Date) {
			out.Skipped = append(out.Skipped, domain.DataIntegrityError{
				Symbol: current.Symbol,
				Date:   current.Date,
				Reason: "duplicate price for date",
			})
			continue
		}
		if !validPrice(current.Price) {
			out.Skipped = append(out.Skipped, domain.DataIntegrityError{
				Symbol: current.Symbol,
				Date:   current.Date,
				Reason: fmt.Sprintf("non-positive adjusted price %f", current.Price),
			})
			predecessor = nil
			continue
		}
		if predecessor == nil {
			if i > 0 && inRange[i-1].Symbol == current.Symbol {
				out.Skipped = append(out.Skipped, domain.DataIntegrityError{
					Symbol: current.Symbol,
					Date:   current.Date,
					Reason: "previous price is undefined",
				})
			}
			predecessor = &inRange[i]
			continue
		}

		out.Returns = append(out.Returns, domain.AssetReturn{
			Symbol: current.Symbol,
			Date:   current.Date,
			Return: percentChange(current.Price, predecessor.Price),
		})
		predecessor = &inRange[i]
	}

	return out
}

// SummarizeReturns computes the mean daily return and annualized
// volatility of each symbol's series
func SummarizeReturns(returns []domain.AssetReturn) (map[string]domain.ReturnSummary, error) {
	bySymbol := map[string][]float64{}
	for _, r := range returns {
		bySymbol[r.Symbol] = append(bySymbol[r.Symbol], r.Return)
	}

	out := make(map[string]domain.ReturnSummary, len(bySymbol))
	for symbol, data := range bySymbol {
		mean, err := stats.Mean(data)
		if err != nil {
			return nil, fmt.Errorf("failed to calculate mean return for %s: %w", symbol, err)
		}
		summary := domain.ReturnSummary{
			Symbol:     symbol,
			MeanReturn: mean,
			NumReturns: len(data),
		}
		if len(data) > 1 {
			stdev, err := stats.StandardDeviationSample(data)
			if err != nil {
				return nil, fmt.Errorf("failed to calculate stdev for %s: %w", symbol, err)
			}
			summary.Volatility = annualizeVolatility(stdev)
		}
		out[symbol] = summary
	}

	return out, nil
}
