package domain

import "time"

// AssetPrice is one adjusted close for a symbol on a trading day
type AssetPrice struct {
	Symbol string
	Price  float64
	Date   time.Time
}

// AssetReturn is the percentage change in adjusted price from the
// previous trading day in the same symbol's series
type AssetReturn struct {
	Symbol string
	Date   time.Time
	Return float64
}

// ReturnSummary describes a symbol's return series. volatility is
// annualized
type ReturnSummary struct {
	Symbol     string
	MeanReturn float64
	Volatility float64
	NumReturns int
}
