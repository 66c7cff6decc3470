package sim

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/coachpo/simbroker/internal/schema"
)

// Verdict is the outcome of a pre-trade validation pass.
type Verdict struct {
	OK      bool
	Reason  schema.RejectReason
	Message string
}

func rejected(reason schema.RejectReason, format string, args ...any) Verdict {
	return Verdict{OK: false, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// Validator runs stateless pre-trade checks over an order. Checks run
// in fixed order and stop at the first failure; the validator never
// mutates its inputs.
type Validator struct {
	// MinQuantity and MaxQuantity bound acceptable order sizes. A zero
	// bound disables that side of the check.
	MinQuantity decimal.Decimal
	MaxQuantity decimal.Decimal
}

// Validate checks the order against available cash, held positions, and
// the last known market prices.
func (v Validator) Validate(order *schema.Order, cash decimal.Decimal, positions map[string]decimal.Decimal, prices map[string]decimal.Decimal) Verdict {
	if order.Quantity.LessThanOrEqual(decimal.Zero) {
		return rejected(schema.ReasonInvalidQuantity, "quantity %s must be positive", order.Quantity)
	}
	if v.MinQuantity.GreaterThan(decimal.Zero) && order.Quantity.LessThan(v.MinQuantity) {
		return rejected(schema.ReasonInvalidQuantity, "quantity %s below minimum %s", order.Quantity, v.MinQuantity)
	}
	if v.MaxQuantity.GreaterThan(decimal.Zero) && order.Quantity.GreaterThan(v.MaxQuantity) {
		return rejected(schema.ReasonInvalidQuantity, "quantity %s above maximum %s", order.Quantity, v.MaxQuantity)
	}

	switch order.Side {
	case schema.TradeSideBuy:
		reference, known := buyReferencePrice(order, prices)
		if !known {
			// No limit and no observed market price: affordability
			// cannot be evaluated before the fill.
			break
		}
		required := order.Quantity.Mul(reference)
		if required.GreaterThan(cash) {
			return rejected(schema.ReasonInsufficientFunds, "required cash %s exceeds available %s", required, cash)
		}
	case schema.TradeSideSell:
		held := positions[order.Symbol]
		if held.LessThan(order.Quantity) {
			return rejected(schema.ReasonInsufficientPosition, "position %s is less than sell quantity %s", held, order.Quantity)
		}
	}

	return Verdict{OK: true}
}

func buyReferencePrice(order *schema.Order, prices map[string]decimal.Decimal) (decimal.Decimal, bool) {
	if order.LimitPrice != nil {
		return *order.LimitPrice, true
	}
	price, ok := prices[order.Symbol]
	return price, ok
}
