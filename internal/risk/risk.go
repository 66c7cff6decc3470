// Package risk implements the stateful portfolio-risk rule engine
// guarding order submissions.
package risk

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/coachpo/simbroker/internal/schema"
)

var hundred = decimal.NewFromInt(100)

// PositionRule caps the projected post-trade position of a single symbol.
// Zero fields disable the corresponding cap.
type PositionRule struct {
	// MaxShares is the largest absolute post-trade share count.
	MaxShares decimal.Decimal `json:"max_shares"`
	// MaxValue is the largest post-trade position value. When set, a
	// known market price is mandatory: evaluating the rule without a
	// price is a violation rather than a silent pass.
	MaxValue decimal.Decimal `json:"max_value"`
}

// ExposureRule caps portfolio exposure as percentages of portfolio value.
type ExposureRule struct {
	MaxGrossPct decimal.Decimal `json:"max_gross_pct"`
	MaxNetPct   decimal.Decimal `json:"max_net_pct"`
}

// DrawdownRule caps portfolio drawdown as loss percentages.
type DrawdownRule struct {
	MaxDailyPct decimal.Decimal `json:"max_daily_pct"`
	MaxTotalPct decimal.Decimal `json:"max_total_pct"`
}

// RateRule caps order submissions per rolling window.
type RateRule struct {
	MaxOrders int           `json:"max_orders"`
	Window    time.Duration `json:"window"`
}

// Config is the immutable rule set owned by one Checker.
type Config struct {
	// KillSwitch starts the checker with trading disabled.
	KillSwitch bool         `json:"kill_switch"`
	Position   PositionRule `json:"position"`
	Exposure   ExposureRule `json:"exposure"`
	Drawdown   DrawdownRule `json:"drawdown"`
	Rate       RateRule     `json:"rate"`
}

// Violation names the first risk rule an order would break.
type Violation struct {
	Reason  schema.RejectReason
	Message string
}

func violation(reason schema.RejectReason, format string, args ...any) *Violation {
	return &Violation{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// Checker owns mutable risk state and evaluates orders against the
// configured rules in a fixed priority, returning only the first
// violation.
type Checker struct {
	cfg Config

	peakValue       decimal.Decimal
	dailyStartValue decimal.Decimal
	tradingEnabled  bool

	limiter *rate.Limiter
}

// NewChecker creates a checker with the given rule set. Peak and daily
// baselines start at zero until seeded.
func NewChecker(cfg Config) *Checker {
	c := &Checker{
		cfg:             cfg,
		peakValue:       decimal.Zero,
		dailyStartValue: decimal.Zero,
		tradingEnabled:  !cfg.KillSwitch,
		limiter:         nil,
	}
	if cfg.Rate.MaxOrders > 0 && cfg.Rate.Window > 0 {
		perSecond := float64(cfg.Rate.MaxOrders) / cfg.Rate.Window.Seconds()
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), cfg.Rate.MaxOrders)
	}
	return c
}

// Seed initialises the peak and daily baselines, typically from the
// simulator's initial cash.
func (c *Checker) Seed(value decimal.Decimal) {
	c.peakValue = value
	c.dailyStartValue = value
}

// Config returns the immutable rule set.
func (c *Checker) Config() Config {
	return c.cfg
}

// TradingEnabled reports the kill-switch state.
func (c *Checker) TradingEnabled() bool {
	return c.tradingEnabled
}

// EnableTrading releases the kill-switch.
func (c *Checker) EnableTrading() {
	c.tradingEnabled = true
}

// DisableTrading trips the kill-switch; every subsequent order is rejected.
func (c *Checker) DisableTrading() {
	c.tradingEnabled = false
}

// PeakValue returns the monotonic all-time portfolio peak.
func (c *Checker) PeakValue() decimal.Decimal {
	return c.peakValue
}

// DailyStartValue returns the current daily drawdown baseline.
func (c *Checker) DailyStartValue() decimal.Decimal {
	return c.dailyStartValue
}

// UpdateState advances the peak (never decreasing) and, on a new day,
// resets the daily baseline to the given portfolio value.
func (c *Checker) UpdateState(portfolioValue decimal.Decimal, isNewDay bool) {
	if portfolioValue.GreaterThan(c.peakValue) {
		c.peakValue = portfolioValue
	}
	if isNewDay {
		c.dailyStartValue = portfolioValue
	}
}

// ResetDailyTracking resets the daily baseline independently of day
// boundaries.
func (c *Checker) ResetDailyTracking(value decimal.Decimal) {
	c.dailyStartValue = value
}

// RestoreState overwrites the mutable risk state from a checkpoint.
func (c *Checker) RestoreState(peak, dailyStart decimal.Decimal, tradingEnabled bool) {
	c.peakValue = peak
	c.dailyStartValue = dailyStart
	c.tradingEnabled = tradingEnabled
}

// CheckOrder evaluates the order and returns the first violation in
// priority order: kill-switch, position limits, exposure limits,
// drawdown limits, order rate.
func (c *Checker) CheckOrder(order *schema.Order, positions map[string]decimal.Decimal, prices map[string]decimal.Decimal, cash decimal.Decimal, now time.Time) *Violation {
	if !c.tradingEnabled {
		return violation(schema.ReasonTradingDisabled, "trading disabled by kill-switch")
	}
	if v := c.checkPosition(order, positions, prices); v != nil {
		return v
	}
	if v := c.checkExposure(order, positions, prices, cash); v != nil {
		return v
	}
	if v := c.checkDrawdown(positions, prices, cash); v != nil {
		return v
	}
	if c.limiter != nil && !c.limiter.AllowN(now, 1) {
		return violation(schema.ReasonOrderRateLimit, "order rate above %d per %s", c.cfg.Rate.MaxOrders, c.cfg.Rate.Window)
	}
	return nil
}

// checkPosition applies share and value caps to buys only; sells reduce
// exposure and are always exempt.
func (c *Checker) checkPosition(order *schema.Order, positions map[string]decimal.Decimal, prices map[string]decimal.Decimal) *Violation {
	if order.Side != schema.TradeSideBuy {
		return nil
	}
	projected := positions[order.Symbol].Add(order.Quantity)
	if c.cfg.Position.MaxShares.GreaterThan(decimal.Zero) && projected.GreaterThan(c.cfg.Position.MaxShares) {
		return violation(schema.ReasonPositionLimit, "projected position %s exceeds max shares %s", projected, c.cfg.Position.MaxShares)
	}
	if c.cfg.Position.MaxValue.GreaterThan(decimal.Zero) {
		price, known := prices[order.Symbol]
		if !known && order.LimitPrice != nil {
			price, known = *order.LimitPrice, true
		}
		if !known {
			return violation(schema.ReasonPriceUnavailable, "max position value configured for %s but no price is available", order.Symbol)
		}
		projectedValue := projected.Mul(price)
		if projectedValue.GreaterThan(c.cfg.Position.MaxValue) {
			return violation(schema.ReasonPositionLimit, "projected value %s exceeds max value %s", projectedValue, c.cfg.Position.MaxValue)
		}
	}
	return nil
}

func (c *Checker) checkExposure(order *schema.Order, positions map[string]decimal.Decimal, prices map[string]decimal.Decimal, cash decimal.Decimal) *Violation {
	if c.cfg.Exposure.MaxGrossPct.LessThanOrEqual(decimal.Zero) && c.cfg.Exposure.MaxNetPct.LessThanOrEqual(decimal.Zero) {
		return nil
	}
	portfolioValue := portfolioValue(cash, positions, prices)
	if portfolioValue.LessThanOrEqual(decimal.Zero) {
		return nil
	}

	projected := make(map[string]decimal.Decimal, len(positions)+1)
	for symbol, qty := range positions {
		projected[symbol] = qty
	}
	switch order.Side {
	case schema.TradeSideBuy:
		projected[order.Symbol] = projected[order.Symbol].Add(order.Quantity)
	case schema.TradeSideSell:
		projected[order.Symbol] = projected[order.Symbol].Sub(order.Quantity)
	}

	gross := decimal.Zero
	net := decimal.Zero
	for symbol, qty := range projected {
		price, known := prices[symbol]
		if !known {
			continue
		}
		gross = gross.Add(qty.Abs().Mul(price))
		net = net.Add(qty.Mul(price))
	}

	grossPct := gross.Div(portfolioValue).Mul(hundred)
	if c.cfg.Exposure.MaxGrossPct.GreaterThan(decimal.Zero) && grossPct.GreaterThan(c.cfg.Exposure.MaxGrossPct) {
		return violation(schema.ReasonExposureLimit, "gross exposure %s%% exceeds cap %s%%", grossPct.StringFixed(2), c.cfg.Exposure.MaxGrossPct)
	}
	netPct := net.Abs().Div(portfolioValue).Mul(hundred)
	if c.cfg.Exposure.MaxNetPct.GreaterThan(decimal.Zero) && netPct.GreaterThan(c.cfg.Exposure.MaxNetPct) {
		return violation(schema.ReasonExposureLimit, "net exposure %s%% exceeds cap %s%%", netPct.StringFixed(2), c.cfg.Exposure.MaxNetPct)
	}
	return nil
}

// checkDrawdown evaluates daily and total drawdown as loss fractions of
// their respective baselines.
func (c *Checker) checkDrawdown(positions map[string]decimal.Decimal, prices map[string]decimal.Decimal, cash decimal.Decimal) *Violation {
	if c.cfg.Drawdown.MaxDailyPct.LessThanOrEqual(decimal.Zero) && c.cfg.Drawdown.MaxTotalPct.LessThanOrEqual(decimal.Zero) {
		return nil
	}
	current := portfolioValue(cash, positions, prices)

	if c.cfg.Drawdown.MaxDailyPct.GreaterThan(decimal.Zero) && c.dailyStartValue.GreaterThan(decimal.Zero) {
		dailyPct := c.dailyStartValue.Sub(current).Div(c.dailyStartValue).Mul(hundred)
		if dailyPct.GreaterThan(c.cfg.Drawdown.MaxDailyPct) {
			return violation(schema.ReasonDrawdownLimit, "daily drawdown %s%% exceeds cap %s%%", dailyPct.StringFixed(2), c.cfg.Drawdown.MaxDailyPct)
		}
	}
	if c.cfg.Drawdown.MaxTotalPct.GreaterThan(decimal.Zero) && c.peakValue.GreaterThan(decimal.Zero) {
		totalPct := c.peakValue.Sub(current).Div(c.peakValue).Mul(hundred)
		if totalPct.GreaterThan(c.cfg.Drawdown.MaxTotalPct) {
			return violation(schema.ReasonDrawdownLimit, "total drawdown %s%% exceeds cap %s%%", totalPct.StringFixed(2), c.cfg.Drawdown.MaxTotalPct)
		}
	}
	return nil
}

func portfolioValue(cash decimal.Decimal, positions map[string]decimal.Decimal, prices map[string]decimal.Decimal) decimal.Decimal {
	value := cash
	for symbol, qty := range positions {
		price, known := prices[symbol]
		if !known {
			continue
		}
		value = value.Add(qty.Mul(price))
	}
	return value
}
