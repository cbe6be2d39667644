package domain

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"
)

// ReturnMatrix is the wide symbol x date table of daily returns. every
// symbol has a value for every date; unobserved days are 0
type ReturnMatrix struct {
	Symbols []string
	Dates   []time.Time
	Values  [][]float64

	index map[string]int
}

func NewReturnMatrix(symbols []string, dates []time.Time, values [][]float64) (*ReturnMatrix, error) {
	if len(symbols) != len(values) {
		return nil, fmt.Errorf("matrix has %d symbols but %d rows", len(symbols), len(values))
	}
	index := make(map[string]int, len(symbols))
	for i, s := range symbols {
		if _, ok := index[s]; ok {
			return nil, fmt.Errorf("duplicate symbol %s in matrix", s)
		}
		if len(values[i]) != len(dates) {
			return nil, fmt.Errorf("row %s has %d values, expected %d", s, len(values[i]), len(dates))
		}
		index[s] = i
	}

	return &ReturnMatrix{
		Symbols: symbols,
		Dates:   dates,
		Values:  values,
		index:   index,
	}, nil
}

func (m ReturnMatrix) NumRows() int {
	return len(m.Symbols)
}

func (m ReturnMatrix) NumCols() int {
	return len(m.Dates)
}

// Get returns the cell for symbol on date
func (m ReturnMatrix) Get(symbol string, date time.Time) (float64, bool) {
	i, ok := m.index[symbol]
	if !ok {
		return 0, false
	}
	for j, d := range m.Dates {
		if d.Equal(date) {
			return m.Values[i][j], true
		}
	}
	return 0, false
}

func (m ReturnMatrix) Row(symbol string) ([]float64, bool) {
	i, ok := m.index[symbol]
	if !ok {
		return nil, false
	}
	out := make([]float64, len(m.Values[i]))
	copy(out, m.Values[i])
	return out, true
}

// Features copies the numeric part of the matrix into a dense
// rows x dates matrix. row i belongs to Symbols[i]
func (m ReturnMatrix) Features() *mat.Dense {
	if m.NumRows() == 0 || m.NumCols() == 0 {
		return &mat.Dense{}
	}
	data := make([]float64, 0, m.NumRows()*m.NumCols())
	for _, row := range m.Values {
		data = append(data, row...)
	}
	return mat.NewDense(m.NumRows(), m.NumCols(), data)
}
