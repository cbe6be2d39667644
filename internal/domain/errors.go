package domain

import (
	"fmt"
	"time"
)

// DataIntegrityError marks an input row that cannot produce a return.
// the row is skipped and reported, never patched
type DataIntegrityError struct {
	Symbol string
	Date   time.Time
	Reason string
}

func (e DataIntegrityError) Error() string {
	return fmt.Sprintf("data integrity error for %s on %s: %s", e.Symbol, e.Date.Format(time.DateOnly), e.Reason)
}

// ConfigurationError is returned for a parameter the pipeline cannot
// honor. there is no fallback value
type ConfigurationError struct {
	Parameter string
	Value     any
	Reason    string
}

func (e ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s=%v: %s", e.Parameter, e.Value, e.Reason)
}

// JoinMismatchError is advisory. the row it describes is kept
type JoinMismatchError struct {
	Symbol  string
	Missing string
}

func (e JoinMismatchError) Error() string {
	return fmt.Sprintf("no %s found for %s", e.Missing, e.Symbol)
}
