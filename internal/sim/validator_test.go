package sim

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/coachpo/simbroker/internal/schema"
)

func testOrder(side schema.TradeSide, qty int64, limit *decimal.Decimal) *schema.Order {
	orderType := schema.OrderTypeMarket
	if limit != nil {
		orderType = schema.OrderTypeLimit
	}
	return schema.NewOrder("", "SPY", side, orderType, decimal.NewFromInt(qty), limit,
		time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC))
}

func TestValidateQuantity(t *testing.T) {
	v := Validator{MinQuantity: decimal.NewFromInt(5), MaxQuantity: decimal.NewFromInt(100)}
	cash := decimal.NewFromInt(1_000_000)

	zero := testOrder(schema.TradeSideBuy, 10, nil)
	zero.Quantity = decimal.Zero
	verdict := v.Validate(zero, cash, nil, nil)
	require.False(t, verdict.OK)
	require.Equal(t, schema.ReasonInvalidQuantity, verdict.Reason)

	small := testOrder(schema.TradeSideBuy, 2, nil)
	verdict = v.Validate(small, cash, nil, nil)
	require.False(t, verdict.OK)
	require.Equal(t, schema.ReasonInvalidQuantity, verdict.Reason)

	big := testOrder(schema.TradeSideBuy, 150, nil)
	verdict = v.Validate(big, cash, nil, nil)
	require.False(t, verdict.OK)
	require.Equal(t, schema.ReasonInvalidQuantity, verdict.Reason)

	ok := testOrder(schema.TradeSideBuy, 50, nil)
	require.True(t, v.Validate(ok, cash, nil, nil).OK)
}

func TestValidateBuyAffordability(t *testing.T) {
	v := Validator{}
	prices := map[string]decimal.Decimal{"SPY": decimal.NewFromInt(450)}

	order := testOrder(schema.TradeSideBuy, 10, nil)
	verdict := v.Validate(order, decimal.NewFromInt(1000), nil, prices)
	require.False(t, verdict.OK)
	require.Equal(t, schema.ReasonInsufficientFunds, verdict.Reason)

	require.True(t, v.Validate(order, decimal.NewFromInt(5000), nil, prices).OK)
}

func TestValidateBuyUsesLimitPriceFirst(t *testing.T) {
	v := Validator{}
	limit := decimal.NewFromInt(500)
	order := testOrder(schema.TradeSideBuy, 10, &limit)
	prices := map[string]decimal.Decimal{"SPY": decimal.NewFromInt(100)}

	// 10 * 500 = 5000 required even though the market trades at 100.
	verdict := v.Validate(order, decimal.NewFromInt(4999), nil, prices)
	require.False(t, verdict.OK)
	require.Equal(t, schema.ReasonInsufficientFunds, verdict.Reason)
}

func TestValidateBuyWithoutAnyPricePasses(t *testing.T) {
	v := Validator{}
	order := testOrder(schema.TradeSideBuy, 10, nil)
	require.True(t, v.Validate(order, decimal.NewFromInt(1), nil, nil).OK)
}

func TestValidateSellPositionCoverage(t *testing.T) {
	v := Validator{}
	positions := map[string]decimal.Decimal{"SPY": decimal.NewFromInt(5)}

	order := testOrder(schema.TradeSideSell, 10, nil)
	verdict := v.Validate(order, decimal.Zero, positions, nil)
	require.False(t, verdict.OK)
	require.Equal(t, schema.ReasonInsufficientPosition, verdict.Reason)

	covered := testOrder(schema.TradeSideSell, 5, nil)
	require.True(t, v.Validate(covered, decimal.Zero, positions, nil).OK)
}
