package sim

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/coachpo/simbroker/errs"
	"github.com/coachpo/simbroker/internal/risk"
	"github.com/coachpo/simbroker/internal/schema"
)

var t0 = time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)

func marketOrder(id string, side schema.TradeSide, qty int64, ts time.Time) *schema.Order {
	return schema.NewOrder(id, "SPY", side, schema.OrderTypeMarket, decimal.NewFromInt(qty), nil, ts)
}

func TestSubmitZeroLatencyAcknowledgesImmediately(t *testing.T) {
	s := NewSimulator("t", decimal.NewFromInt(100_000))
	order := marketOrder("o1", schema.TradeSideBuy, 10, t0)

	require.NoError(t, s.SubmitOrder(order, t0))
	require.Equal(t, schema.StatusSubmitted, order.Status)
	require.NotNil(t, order.SubmittedAt)
	require.True(t, order.SubmittedAt.Equal(t0))
}

func TestSubmitLatencyDelaysAcknowledgement(t *testing.T) {
	s := NewSimulator("t", decimal.NewFromInt(100_000),
		WithLatencyProfile(LatencyProfile{Submission: 100 * time.Millisecond}))
	order := marketOrder("o1", schema.TradeSideBuy, 10, t0)

	require.NoError(t, s.SubmitOrder(order, t0))
	require.Equal(t, schema.StatusNew, order.Status)

	// Ticks on another symbol advance time without filling the order.
	s.ProcessMarketData("QQQ", decimal.NewFromInt(380), t0.Add(50*time.Millisecond))
	require.Equal(t, schema.StatusNew, order.Status)

	s.ProcessMarketData("QQQ", decimal.NewFromInt(380), t0.Add(100*time.Millisecond))
	require.Equal(t, schema.StatusSubmitted, order.Status)
	require.True(t, order.SubmittedAt.Equal(t0.Add(100*time.Millisecond)))
}

func TestMarketBuyFillWithSlippageAndCommission(t *testing.T) {
	s := NewSimulator("t", decimal.NewFromInt(100_000),
		WithSlippageBps(decimal.NewFromInt(5)),
		WithCommissionPerShare(decimal.RequireFromString("0.01")))
	order := marketOrder("o1", schema.TradeSideBuy, 10, t0)

	require.NoError(t, s.SubmitOrder(order, t0))
	execs := s.ProcessMarketData("SPY", decimal.NewFromInt(450), t0)
	require.Len(t, execs, 1)

	exec := execs[0]
	require.True(t, exec.Price.Equal(decimal.RequireFromString("450.225")), exec.Price.String())
	require.True(t, exec.Commission.Equal(decimal.RequireFromString("0.10")), exec.Commission.String())
	require.False(t, exec.IsPartial)

	require.Equal(t, schema.StatusFilled, order.Status)
	require.True(t, order.AvgFillPrice.Equal(decimal.RequireFromString("450.225")))
	require.True(t, s.Cash().Equal(decimal.RequireFromString("95497.65")), s.Cash().String())
	require.True(t, s.Position("SPY").Equal(decimal.NewFromInt(10)))

	_, done := s.Order("o1")
	require.True(t, done)
	require.Len(t, s.CompletedOrders(), 1)
	require.Empty(t, s.PendingOrders())
}

func TestFillUsesPriceCapturedAtScheduling(t *testing.T) {
	s := NewSimulator("t", decimal.NewFromInt(100_000),
		WithLatencyProfile(LatencyProfile{FillMin: 100 * time.Millisecond, FillMax: 100 * time.Millisecond}))
	order := marketOrder("o1", schema.TradeSideBuy, 10, t0)

	require.NoError(t, s.SubmitOrder(order, t0))
	execs := s.ProcessMarketData("SPY", decimal.NewFromInt(450), t0)
	require.Empty(t, execs)
	require.Equal(t, schema.StatusSubmitted, order.Status)

	// Price has moved, but the fill matures against the captured 450.
	execs = s.ProcessMarketData("SPY", decimal.NewFromInt(460), t0.Add(110*time.Millisecond))
	require.NotEmpty(t, execs)
	require.True(t, execs[0].Price.Equal(decimal.NewFromInt(450)), execs[0].Price.String())
	require.True(t, execs[0].Timestamp.Equal(t0.Add(100*time.Millisecond)))
	require.Equal(t, schema.StatusFilled, order.Status)
}

func TestCancelBeforeFillMatures(t *testing.T) {
	s := NewSimulator("t", decimal.NewFromInt(100_000),
		WithLatencyProfile(LatencyProfile{FillMin: 100 * time.Millisecond, FillMax: 100 * time.Millisecond}))
	order := marketOrder("o1", schema.TradeSideBuy, 10, t0)

	require.NoError(t, s.SubmitOrder(order, t0))
	s.ProcessMarketData("SPY", decimal.NewFromInt(450), t0)
	require.NotEmpty(t, s.PendingActionsFor("o1"))

	require.NoError(t, s.CancelOrder("o1", t0.Add(50*time.Millisecond)))
	require.Equal(t, schema.StatusCancelled, order.Status)
	require.Empty(t, s.PendingActionsFor("o1"))

	execs := s.ProcessMarketData("SPY", decimal.NewFromInt(450), t0.Add(200*time.Millisecond))
	require.Empty(t, execs)
	require.True(t, s.Cash().Equal(decimal.NewFromInt(100_000)))
	require.Empty(t, s.Positions())
}

func TestCancelLatencyDefersCancellation(t *testing.T) {
	s := NewSimulator("t", decimal.NewFromInt(100_000),
		WithLatencyProfile(LatencyProfile{Cancel: 100 * time.Millisecond}))
	order := marketOrder("o1", schema.TradeSideBuy, 10, t0)

	require.NoError(t, s.SubmitOrder(order, t0))
	require.NoError(t, s.CancelOrder("o1", t0))
	require.Equal(t, schema.StatusSubmitted, order.Status)

	s.ProcessMarketData("SPY", decimal.NewFromInt(450), t0.Add(100*time.Millisecond))
	require.Equal(t, schema.StatusCancelled, order.Status)
	require.True(t, order.CancelledAt.Equal(t0.Add(100*time.Millisecond)))
}

func TestCancelUnknownAndCompletedOrders(t *testing.T) {
	s := NewSimulator("t", decimal.NewFromInt(100_000))

	err := s.CancelOrder("ghost", t0)
	require.Error(t, err)
	require.True(t, errs.IsNotFound(err))

	order := marketOrder("o1", schema.TradeSideBuy, 10, t0)
	require.NoError(t, s.SubmitOrder(order, t0))
	s.ProcessMarketData("SPY", decimal.NewFromInt(450), t0)
	require.Equal(t, schema.StatusFilled, order.Status)

	// Cancelling a completed order is a silent no-op.
	require.NoError(t, s.CancelOrder("o1", t0))
	require.Equal(t, schema.StatusFilled, order.Status)
}

func TestDuplicateOrderIDRejected(t *testing.T) {
	s := NewSimulator("t", decimal.NewFromInt(100_000))
	require.NoError(t, s.SubmitOrder(marketOrder("o1", schema.TradeSideBuy, 10, t0), t0))

	err := s.SubmitOrder(marketOrder("o1", schema.TradeSideBuy, 5, t0), t0)
	require.Error(t, err)
	require.Equal(t, errs.CodeInvalid, errs.CodeOf(err))
}

func TestValidationRejectionIsSynchronous(t *testing.T) {
	s := NewSimulator("t", decimal.NewFromInt(100_000))
	order := marketOrder("o1", schema.TradeSideSell, 10, t0)

	require.NoError(t, s.SubmitOrder(order, t0))
	require.Equal(t, schema.StatusRejected, order.Status)
	require.Equal(t, schema.ReasonInsufficientPosition, order.RejectionReason)
	require.Len(t, s.CompletedOrders(), 1)
	require.Empty(t, s.PendingOrders())
}

func TestFillTimeInsufficientFundsRejects(t *testing.T) {
	s := NewSimulator("t", decimal.NewFromInt(100))
	// No market price yet, so affordability cannot be checked up front.
	order := marketOrder("o1", schema.TradeSideBuy, 10, t0)
	require.NoError(t, s.SubmitOrder(order, t0))
	require.Equal(t, schema.StatusSubmitted, order.Status)

	execs := s.ProcessMarketData("SPY", decimal.NewFromInt(450), t0)
	require.Empty(t, execs)
	require.Equal(t, schema.StatusRejected, order.Status)
	require.Equal(t, schema.ReasonInsufficientFunds, order.RejectionReason)
	require.True(t, s.Cash().Equal(decimal.NewFromInt(100)))
	require.Empty(t, s.Positions())
}

func TestKillSwitchRejectsEverything(t *testing.T) {
	checker := risk.NewChecker(risk.Config{KillSwitch: true})
	s := NewSimulator("t", decimal.NewFromInt(100_000), WithRiskChecker(checker))

	order := marketOrder("o1", schema.TradeSideBuy, 10, t0)
	require.NoError(t, s.SubmitOrder(order, t0))
	require.Equal(t, schema.StatusRejected, order.Status)
	require.Equal(t, schema.ReasonTradingDisabled, order.RejectionReason)

	checker.EnableTrading()
	again := marketOrder("o2", schema.TradeSideBuy, 10, t0)
	require.NoError(t, s.SubmitOrder(again, t0))
	require.Equal(t, schema.StatusSubmitted, again.Status)
}

func TestPositionLimitRejectsOversizedBuy(t *testing.T) {
	checker := risk.NewChecker(risk.Config{
		Position: risk.PositionRule{MaxShares: decimal.NewFromInt(100)},
	})
	s := NewSimulator("t", decimal.NewFromInt(1_000_000), WithRiskChecker(checker))

	big := marketOrder("big", schema.TradeSideBuy, 150, t0)
	require.NoError(t, s.SubmitOrder(big, t0))
	require.Equal(t, schema.StatusRejected, big.Status)
	require.Equal(t, schema.ReasonPositionLimit, big.RejectionReason)

	small := marketOrder("small", schema.TradeSideBuy, 50, t0)
	require.NoError(t, s.SubmitOrder(small, t0))
	require.Equal(t, schema.StatusSubmitted, small.Status)
}

func TestSellRestoresCashAndClearsPosition(t *testing.T) {
	s := NewSimulator("t", decimal.NewFromInt(100_000))
	buy := marketOrder("buy", schema.TradeSideBuy, 10, t0)
	require.NoError(t, s.SubmitOrder(buy, t0))
	s.ProcessMarketData("SPY", decimal.NewFromInt(450), t0)
	require.True(t, s.Position("SPY").Equal(decimal.NewFromInt(10)))

	sell := marketOrder("sell", schema.TradeSideSell, 10, t0.Add(time.Minute))
	require.NoError(t, s.SubmitOrder(sell, t0.Add(time.Minute)))
	execs := s.ProcessMarketData("SPY", decimal.NewFromInt(450), t0.Add(time.Minute))
	require.Len(t, execs, 1)

	require.Equal(t, schema.StatusFilled, sell.Status)
	require.True(t, s.Cash().Equal(decimal.NewFromInt(100_000)), s.Cash().String())
	require.Empty(t, s.Positions())
}

func TestLimitOrderFillsOnlyAtEligiblePrices(t *testing.T) {
	limit := decimal.NewFromInt(440)
	order := schema.NewOrder("lim", "SPY", schema.TradeSideBuy, schema.OrderTypeLimit,
		decimal.NewFromInt(10), &limit, t0)
	s := NewSimulator("t", decimal.NewFromInt(100_000))

	require.NoError(t, s.SubmitOrder(order, t0))
	execs := s.ProcessMarketData("SPY", decimal.NewFromInt(450), t0)
	require.Empty(t, execs)
	require.Equal(t, schema.StatusSubmitted, order.Status)

	execs = s.ProcessMarketData("SPY", decimal.NewFromInt(439), t0.Add(time.Second))
	require.Len(t, execs, 1)
	require.Equal(t, schema.StatusFilled, order.Status)
	require.True(t, order.AvgFillPrice.Equal(decimal.NewFromInt(439)))
}

func TestPartialFillsAccumulate(t *testing.T) {
	s := NewSimulator("t", decimal.NewFromInt(100_000),
		WithLiquidityModel(FractionalLiquidity{Fraction: decimal.RequireFromString("0.5")}))
	order := marketOrder("o1", schema.TradeSideBuy, 10, t0)

	require.NoError(t, s.SubmitOrder(order, t0))
	execs := s.ProcessMarketData("SPY", decimal.NewFromInt(100), t0)
	require.Len(t, execs, 1)
	require.True(t, execs[0].IsPartial)
	require.Equal(t, schema.StatusPartiallyFilled, order.Status)
	require.True(t, order.FilledQuantity.Equal(decimal.NewFromInt(5)))

	// 5 -> 2 -> 1 -> fully filled.
	for i := 1; order.Status != schema.StatusFilled && i < 10; i++ {
		s.ProcessMarketData("SPY", decimal.NewFromInt(100), t0.Add(time.Duration(i)*time.Second))
	}
	require.Equal(t, schema.StatusFilled, order.Status)
	require.True(t, order.FilledQuantity.Equal(decimal.NewFromInt(10)))
	require.True(t, s.Position("SPY").Equal(decimal.NewFromInt(10)))
}

func TestAccountValue(t *testing.T) {
	s := NewSimulator("t", decimal.NewFromInt(100_000))
	buy := marketOrder("buy", schema.TradeSideBuy, 10, t0)
	require.NoError(t, s.SubmitOrder(buy, t0))
	s.ProcessMarketData("SPY", decimal.NewFromInt(450), t0)

	value := s.AccountValue(map[string]decimal.Decimal{"SPY": decimal.NewFromInt(460)})
	want := s.Cash().Add(decimal.NewFromInt(4600))
	require.True(t, value.Equal(want), value.String())

	// Unpriced positions contribute nothing.
	require.True(t, s.AccountValue(nil).Equal(s.Cash()))
}

func TestRestoreStateDropsQueuedActions(t *testing.T) {
	s := NewSimulator("t", decimal.NewFromInt(100_000),
		WithLatencyProfile(LatencyProfile{FillMin: time.Second, FillMax: time.Second}))
	order := marketOrder("o1", schema.TradeSideBuy, 10, t0)
	require.NoError(t, s.SubmitOrder(order, t0))
	s.ProcessMarketData("SPY", decimal.NewFromInt(450), t0)
	require.NotZero(t, s.PendingActionCount())

	restored := marketOrder("r1", schema.TradeSideBuy, 5, t0)
	restored.MarkSubmitted(t0)
	s.RestoreState(decimal.NewFromInt(42),
		map[string]decimal.Decimal{"QQQ": decimal.NewFromInt(3)},
		[]*schema.Order{restored}, nil)

	require.Zero(t, s.PendingActionCount())
	require.True(t, s.Cash().Equal(decimal.NewFromInt(42)))
	require.True(t, s.Position("QQQ").Equal(decimal.NewFromInt(3)))
	got, ok := s.Order("r1")
	require.True(t, ok)
	require.Equal(t, schema.StatusSubmitted, got.Status)
	_, gone := s.Order("o1")
	require.False(t, gone)
}
