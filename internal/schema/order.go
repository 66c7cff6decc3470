// Package schema defines the canonical order and execution model shared across simbroker.
package schema

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TradeSide captures the direction of an order.
type TradeSide string

const (
	// TradeSideBuy indicates buy orders.
	TradeSideBuy TradeSide = "Buy"
	// TradeSideSell indicates sell orders.
	TradeSideSell TradeSide = "Sell"
)

// OrderType enumerates supported order types.
type OrderType string

const (
	// OrderTypeMarket represents market orders.
	OrderTypeMarket OrderType = "Market"
	// OrderTypeLimit represents limit orders.
	OrderTypeLimit OrderType = "Limit"
)

// OrderStatus tracks an order through its lifecycle.
type OrderStatus string

const (
	// StatusNew marks an accepted order awaiting acknowledgement.
	StatusNew OrderStatus = "NEW"
	// StatusSubmitted marks an acknowledged order eligible for fills.
	StatusSubmitted OrderStatus = "SUBMITTED"
	// StatusPartiallyFilled marks an order with some quantity executed.
	StatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	// StatusFilled marks a completely executed order. Terminal.
	StatusFilled OrderStatus = "FILLED"
	// StatusCancelled marks a cancelled order. Terminal.
	StatusCancelled OrderStatus = "CANCELLED"
	// StatusRejected marks an order refused by validation, risk, or settlement. Terminal.
	StatusRejected OrderStatus = "REJECTED"
)

// IsTerminal reports whether the status permits no further mutation.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case StatusFilled, StatusCancelled, StatusRejected:
		return true
	default:
		return false
	}
}

// RejectReason categorises why an order was refused.
type RejectReason string

const (
	// ReasonInvalidQuantity flags a non-positive or out-of-bounds quantity.
	ReasonInvalidQuantity RejectReason = "INVALID_QUANTITY"
	// ReasonInsufficientFunds flags a buy whose notional exceeds available cash.
	ReasonInsufficientFunds RejectReason = "INSUFFICIENT_FUNDS"
	// ReasonInsufficientPosition flags a sell exceeding the held position.
	ReasonInsufficientPosition RejectReason = "INSUFFICIENT_POSITION"
	// ReasonTradingDisabled flags the risk kill-switch.
	ReasonTradingDisabled RejectReason = "TRADING_DISABLED"
	// ReasonPositionLimit flags a projected position beyond configured share or value caps.
	ReasonPositionLimit RejectReason = "POSITION_LIMIT"
	// ReasonExposureLimit flags gross or net exposure beyond configured caps.
	ReasonExposureLimit RejectReason = "EXPOSURE_LIMIT"
	// ReasonDrawdownLimit flags daily or total drawdown beyond configured caps.
	ReasonDrawdownLimit RejectReason = "DRAWDOWN_LIMIT"
	// ReasonOrderRateLimit flags submissions beyond the configured order rate.
	ReasonOrderRateLimit RejectReason = "ORDER_RATE_LIMIT"
	// ReasonPriceUnavailable flags a value-based risk rule evaluated without a market price.
	ReasonPriceUnavailable RejectReason = "PRICE_UNAVAILABLE"
)

// Execution is an immutable fill record applied to an order.
type Execution struct {
	ExecutionID string          `json:"execution_id"`
	OrderID     string          `json:"order_id"`
	Timestamp   time.Time       `json:"timestamp"`
	Quantity    decimal.Decimal `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Commission  decimal.Decimal `json:"commission"`
	IsPartial   bool            `json:"is_partial"`
}

// NewExecution constructs a fill record with a generated execution id.
func NewExecution(orderID string, ts time.Time, qty, price, commission decimal.Decimal, partial bool) Execution {
	return Execution{
		ExecutionID: uuid.NewString(),
		OrderID:     orderID,
		Timestamp:   ts,
		Quantity:    qty,
		Price:       price,
		Commission:  commission,
		IsPartial:   partial,
	}
}

// Order tracks a buy/sell request through its lifecycle to a terminal state.
// Mutated only by the execution simulator.
type Order struct {
	OrderID   string          `json:"order_id"`
	Symbol    string          `json:"symbol"`
	Side      TradeSide       `json:"side"`
	OrderType OrderType       `json:"order_type"`
	Quantity  decimal.Decimal `json:"quantity"`
	CreatedAt time.Time       `json:"created_at"`

	Status          OrderStatus      `json:"status"`
	LimitPrice      *decimal.Decimal `json:"limit_price,omitempty"`
	SubmittedAt     *time.Time       `json:"submitted_at,omitempty"`
	FilledQuantity  decimal.Decimal  `json:"filled_quantity"`
	AvgFillPrice    decimal.Decimal  `json:"avg_fill_price"`
	TotalCommission decimal.Decimal  `json:"total_commission"`
	Executions      []Execution      `json:"executions"`

	RejectedAt       *time.Time   `json:"rejected_at,omitempty"`
	RejectionReason  RejectReason `json:"rejection_reason,omitempty"`
	RejectionMessage string       `json:"rejection_message,omitempty"`
	CancelledAt      *time.Time   `json:"cancelled_at,omitempty"`
}

// NewOrder constructs an order in the NEW state. A zero id is replaced
// with a generated one.
func NewOrder(id, symbol string, side TradeSide, orderType OrderType, quantity decimal.Decimal, limitPrice *decimal.Decimal, createdAt time.Time) *Order {
	if id == "" {
		id = uuid.NewString()
	}
	var limit *decimal.Decimal
	if limitPrice != nil {
		v := *limitPrice
		limit = &v
	}
	return &Order{
		OrderID:         id,
		Symbol:          symbol,
		Side:            side,
		OrderType:       orderType,
		Quantity:        quantity,
		CreatedAt:       createdAt,
		Status:          StatusNew,
		LimitPrice:      limit,
		FilledQuantity:  decimal.Zero,
		AvgFillPrice:    decimal.Zero,
		TotalCommission: decimal.Zero,
		Executions:      nil,
	}
}

// IsTerminal reports whether the order reached a terminal state.
func (o *Order) IsTerminal() bool {
	return o.Status.IsTerminal()
}

// Remaining returns the unfilled quantity.
func (o *Order) Remaining() decimal.Decimal {
	return o.Quantity.Sub(o.FilledQuantity)
}

// MarkSubmitted acknowledges the order, flipping NEW to SUBMITTED.
func (o *Order) MarkSubmitted(ts time.Time) {
	if o.Status != StatusNew {
		return
	}
	o.Status = StatusSubmitted
	stamped := ts
	o.SubmittedAt = &stamped
}

// Reject moves the order to the terminal REJECTED state with the given reason.
func (o *Order) Reject(ts time.Time, reason RejectReason, message string) {
	if o.IsTerminal() {
		return
	}
	o.Status = StatusRejected
	stamped := ts
	o.RejectedAt = &stamped
	o.RejectionReason = reason
	o.RejectionMessage = message
}

// Cancel moves the order to the terminal CANCELLED state.
func (o *Order) Cancel(ts time.Time) {
	if o.IsTerminal() {
		return
	}
	o.Status = StatusCancelled
	stamped := ts
	o.CancelledAt = &stamped
}

// ApplyExecution appends a fill and advances the order's fill progress.
// It is the only mutator for filled quantity, commission, and average
// fill price. The average price is recomputed as the quantity-weighted
// mean over all executions.
func (o *Order) ApplyExecution(exec Execution) bool {
	if o.IsTerminal() {
		return false
	}
	if exec.Quantity.LessThanOrEqual(decimal.Zero) {
		return false
	}
	if exec.Quantity.GreaterThan(o.Remaining()) {
		return false
	}

	o.Executions = append(o.Executions, exec)
	o.FilledQuantity = o.FilledQuantity.Add(exec.Quantity)
	o.TotalCommission = o.TotalCommission.Add(exec.Commission)

	totalQty := decimal.Zero
	totalNotional := decimal.Zero
	for _, e := range o.Executions {
		totalQty = totalQty.Add(e.Quantity)
		totalNotional = totalNotional.Add(e.Quantity.Mul(e.Price))
	}
	if totalQty.GreaterThan(decimal.Zero) {
		o.AvgFillPrice = totalNotional.Div(totalQty)
	}

	if o.FilledQuantity.Equal(o.Quantity) {
		o.Status = StatusFilled
	} else {
		o.Status = StatusPartiallyFilled
	}
	return true
}

// Clone returns a deep copy of the order, detached from the live instance.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	if o.LimitPrice != nil {
		v := *o.LimitPrice
		clone.LimitPrice = &v
	}
	clone.SubmittedAt = cloneTime(o.SubmittedAt)
	clone.RejectedAt = cloneTime(o.RejectedAt)
	clone.CancelledAt = cloneTime(o.CancelledAt)
	if o.Executions != nil {
		clone.Executions = make([]Execution, len(o.Executions))
		copy(clone.Executions, o.Executions)
	}
	return &clone
}

func cloneTime(ts *time.Time) *time.Time {
	if ts == nil {
		return nil
	}
	v := *ts
	return &v
}
