package sim

import (
	"github.com/shopspring/decimal"

	"github.com/coachpo/simbroker/internal/schema"
)

var bpsDivisor = decimal.NewFromInt(10_000)

// SlippageModel adjusts execution prices to account for market impact.
type SlippageModel interface {
	Adjust(side schema.TradeSide, price decimal.Decimal) decimal.Decimal
}

// BasisPointSlippage shifts the execution price by a fixed BPS amount,
// adverse to the order's direction.
type BasisPointSlippage struct {
	BPS decimal.Decimal
}

// Adjust implements SlippageModel.
func (b BasisPointSlippage) Adjust(side schema.TradeSide, price decimal.Decimal) decimal.Decimal {
	if b.BPS.Equal(decimal.Zero) {
		return price
	}
	impact := price.Mul(b.BPS.Div(bpsDivisor))
	if side == schema.TradeSideSell {
		return price.Sub(impact)
	}
	return price.Add(impact)
}

// CommissionModel evaluates trading fees for executed fills.
type CommissionModel interface {
	Fee(qty, price decimal.Decimal) decimal.Decimal
}

// PerShareCommission applies a flat fee per share traded.
type PerShareCommission struct {
	PerShare decimal.Decimal
}

// Fee implements CommissionModel.
func (p PerShareCommission) Fee(qty, _ decimal.Decimal) decimal.Decimal {
	if qty.LessThanOrEqual(decimal.Zero) || p.PerShare.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return qty.Mul(p.PerShare)
}

// LiquidityModel decides how much of the remaining quantity a single
// fill consumes.
type LiquidityModel interface {
	FillQuantity(remaining decimal.Decimal) decimal.Decimal
}

// FullLiquidity fills the entire remaining quantity in one shot.
type FullLiquidity struct{}

// FillQuantity implements LiquidityModel.
func (FullLiquidity) FillQuantity(remaining decimal.Decimal) decimal.Decimal {
	return remaining
}

// FractionalLiquidity fills a fixed fraction of the remaining quantity,
// producing genuine partial fills. Residues below one share, or
// fractions at or above one, fall back to the full remainder.
type FractionalLiquidity struct {
	Fraction decimal.Decimal
}

// FillQuantity implements LiquidityModel.
func (f FractionalLiquidity) FillQuantity(remaining decimal.Decimal) decimal.Decimal {
	if f.Fraction.LessThanOrEqual(decimal.Zero) || f.Fraction.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return remaining
	}
	qty := remaining.Mul(f.Fraction).Floor()
	if qty.LessThanOrEqual(decimal.Zero) || qty.GreaterThanOrEqual(remaining) {
		return remaining
	}
	return qty
}
