package calculator

import (
	"fmt"
	"sort"
	"stockcluster/internal/domain"
	"time"
)

// BuildReturnMatrix pivots long (symbol, date, return) rows into the wide
// symbol x date matrix. a symbol with no return on a date gets 0 for
// that cell, since clustering needs every cell populated
func BuildReturnMatrix(returns []domain.AssetReturn) (*domain.ReturnMatrix, error) {
	if len(returns) == 0 {
		return nil, fmt.Errorf("cannot build return matrix from no returns")
	}

	// symbol -> date -> return
	cells := map[string]map[string]float64{}
	dateSet := map[string]time.Time{}
	for _, r := range returns {
		key := r.Date.Format(time.DateOnly)
		if _, ok := cells[r.Symbol]; !ok {
			cells[r.Symbol] = map[string]float64{}
		}
		if _, ok := cells[r.Symbol][key]; ok {
			return nil, fmt.Errorf("duplicate return for %s on %s", r.Symbol, key)
		}
		cells[r.Symbol][key] = r.Return
		dateSet[key] = r.Date
	}

	symbols := make([]string, 0, len(cells))
	for s := range cells {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	dateKeys := make([]string, 0, len(dateSet))
	for k := range dateSet {
		dateKeys = append(dateKeys, k)
	}
	sort.Strings(dateKeys)
	dates := make([]time.Time, len(dateKeys))
	for i, k := range dateKeys {
		dates[i] = dateSet[k]
	}

	values := make([][]float64, len(symbols))
	for i, s := range symbols {
		values[i] = make([]float64, len(dateKeys))
		for j, k := range dateKeys {
			// missing keys read as 0
			values[i][j] = cells[s][k]
		}
	}

	return domain.NewReturnMatrix(symbols, dates, values)
}
