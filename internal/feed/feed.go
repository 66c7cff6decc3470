// Package feed supplies market data ticks to the simulator.
package feed

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tick is a single observed market price for a symbol.
type Tick struct {
	Timestamp time.Time
	Symbol    string
	Price     decimal.Decimal
}

// Feeder yields ticks in timestamp order. Next returns io.EOF once the
// feed is exhausted.
type Feeder interface {
	Next() (*Tick, error)
	Close() error
}
