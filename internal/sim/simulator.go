package sim

import (
	"math/rand"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coachpo/simbroker/errs"
	"github.com/coachpo/simbroker/internal/observability"
	"github.com/coachpo/simbroker/internal/risk"
	"github.com/coachpo/simbroker/internal/schema"
)

// Simulator advances submitted orders through their lifecycle, driven
// entirely by explicit simulation timestamps. It owns cash and
// positions, keeps every order in exactly one of two buckets (pending
// or completed), and defers acknowledgements, fills, and cancellations
// through a time-ordered action queue.
type Simulator struct {
	id          string
	cash        decimal.Decimal
	initialCash decimal.Decimal
	positions   map[string]decimal.Decimal
	lastPrices  map[string]decimal.Decimal

	pending   map[string]*schema.Order
	completed map[string]*schema.Order

	queue     *PendingQueue
	validator Validator
	risk      *risk.Checker

	latency            LatencyProfile
	slippageBps        decimal.Decimal
	commissionPerShare decimal.Decimal
	slippage           SlippageModel
	commission         CommissionModel
	liquidity          LiquidityModel

	rng *rand.Rand
}

// Option configures optional simulator behaviour.
type Option func(*Simulator)

// WithRiskChecker attaches a risk checker; its peak and daily baselines
// are seeded from the simulator's initial cash.
func WithRiskChecker(checker *risk.Checker) Option {
	return func(s *Simulator) {
		s.risk = checker
	}
}

// WithLatencyProfile sets the latency profile applied to submissions,
// fills, and cancellations.
func WithLatencyProfile(profile LatencyProfile) Option {
	return func(s *Simulator) {
		s.latency = profile.Normalize()
	}
}

// WithSlippageBps sets the adverse fill-price adjustment in basis points.
func WithSlippageBps(bps decimal.Decimal) Option {
	return func(s *Simulator) {
		s.slippageBps = bps
		s.slippage = BasisPointSlippage{BPS: bps}
	}
}

// WithCommissionPerShare sets the flat per-share commission.
func WithCommissionPerShare(perShare decimal.Decimal) Option {
	return func(s *Simulator) {
		s.commissionPerShare = perShare
		s.commission = PerShareCommission{PerShare: perShare}
	}
}

// WithQuantityBounds sets the validator's order-size bounds.
func WithQuantityBounds(minQty, maxQty decimal.Decimal) Option {
	return func(s *Simulator) {
		s.validator = Validator{MinQuantity: minQty, MaxQuantity: maxQty}
	}
}

// WithLiquidityModel overrides the fill-quantity model.
func WithLiquidityModel(model LiquidityModel) Option {
	return func(s *Simulator) {
		if model != nil {
			s.liquidity = model
		}
	}
}

// WithSeed fixes the fill-latency jitter source for reproducible runs.
func WithSeed(seed int64) Option {
	return func(s *Simulator) {
		s.rng = rand.New(rand.NewSource(seed))
	}
}

// NewSimulator creates a simulator holding the given initial cash.
func NewSimulator(id string, initialCash decimal.Decimal, opts ...Option) *Simulator {
	s := &Simulator{
		id:                 id,
		cash:               initialCash,
		initialCash:        initialCash,
		positions:          make(map[string]decimal.Decimal),
		lastPrices:         make(map[string]decimal.Decimal),
		pending:            make(map[string]*schema.Order),
		completed:          make(map[string]*schema.Order),
		queue:              NewPendingQueue(),
		validator:          Validator{},
		risk:               nil,
		latency:            ZeroLatency(),
		slippageBps:        decimal.Zero,
		commissionPerShare: decimal.Zero,
		slippage:           BasisPointSlippage{BPS: decimal.Zero},
		commission:         PerShareCommission{PerShare: decimal.Zero},
		liquidity:          FullLiquidity{},
		rng:                rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.risk != nil {
		s.risk.Seed(initialCash)
	}
	return s
}

// Configure applies options after construction, used when rebuilding a
// simulator from persisted state.
func (s *Simulator) Configure(opts ...Option) {
	for _, opt := range opts {
		opt(s)
	}
}

// ID returns the simulator identity tag.
func (s *Simulator) ID() string { return s.id }

// Cash returns the current settled cash balance.
func (s *Simulator) Cash() decimal.Decimal { return s.cash }

// InitialCash returns the cash the simulator started with.
func (s *Simulator) InitialCash() decimal.Decimal { return s.initialCash }

// Latency returns the active latency profile.
func (s *Simulator) Latency() LatencyProfile { return s.latency }

// SlippageBps returns the configured slippage in basis points.
func (s *Simulator) SlippageBps() decimal.Decimal { return s.slippageBps }

// CommissionPerShare returns the configured per-share commission.
func (s *Simulator) CommissionPerShare() decimal.Decimal { return s.commissionPerShare }

// RiskChecker returns the attached risk checker, if any.
func (s *Simulator) RiskChecker() *risk.Checker { return s.risk }

// Positions returns a copy of the current positions map.
func (s *Simulator) Positions() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(s.positions))
	for symbol, qty := range s.positions {
		out[symbol] = qty
	}
	return out
}

// Position returns the held quantity for a symbol.
func (s *Simulator) Position(symbol string) decimal.Decimal {
	return s.positions[symbol]
}

// Order looks up an order by id across both buckets.
func (s *Simulator) Order(id string) (*schema.Order, bool) {
	if o, ok := s.pending[id]; ok {
		return o, true
	}
	o, ok := s.completed[id]
	return o, ok
}

// PendingOrders returns the live pending orders, oldest first.
func (s *Simulator) PendingOrders() []*schema.Order {
	return sortOrders(s.pending)
}

// CompletedOrders returns the terminal orders, oldest first.
func (s *Simulator) CompletedOrders() []*schema.Order {
	return sortOrders(s.completed)
}

// PendingActionCount returns the number of queued actions.
func (s *Simulator) PendingActionCount() int {
	return s.queue.Len()
}

// PendingActionsFor returns the queued actions referencing an order.
func (s *Simulator) PendingActionsFor(orderID string) []PendingAction {
	return s.queue.PendingFor(orderID)
}

// SubmitOrder runs pre-trade validation and risk checks, then either
// rejects the order synchronously or schedules its acknowledgement.
// With zero submission latency the caller observes SUBMITTED on return.
func (s *Simulator) SubmitOrder(order *schema.Order, ts time.Time) error {
	if _, exists := s.Order(order.OrderID); exists {
		return errs.New("sim/simulator", errs.CodeInvalid,
			errs.WithMessage("duplicate order id "+order.OrderID))
	}

	if verdict := s.validator.Validate(order, s.cash, s.positions, s.lastPrices); !verdict.OK {
		s.rejectOnEntry(order, ts, verdict.Reason, verdict.Message)
		return nil
	}
	if s.risk != nil {
		if v := s.risk.CheckOrder(order, s.positions, s.lastPrices, s.cash, ts); v != nil {
			s.rejectOnEntry(order, ts, v.Reason, v.Message)
			return nil
		}
	}

	s.pending[order.OrderID] = order
	s.queue.Add(PendingAction{
		Type:        ActionSubmit,
		OrderID:     order.OrderID,
		ScheduledAt: ts.Add(s.latency.Submission),
	})
	observability.Telemetry().IncCounter(observability.MetricOrdersSubmitted, 1, map[string]string{"symbol": order.Symbol})
	observability.Log().Debug("order accepted",
		observability.F("order_id", order.OrderID),
		observability.F("symbol", order.Symbol),
		observability.F("side", order.Side))

	s.drainDue(ts, nil)
	s.publishQueueDepth()
	return nil
}

// ProcessMarketData records the tick, drains every due action in
// ascending scheduled order, then scans pending orders for new fill
// eligibility at this price. It returns the executions produced
// synchronously during the call.
func (s *Simulator) ProcessMarketData(symbol string, price decimal.Decimal, ts time.Time) []schema.Execution {
	s.lastPrices[symbol] = price

	var executions []schema.Execution
	s.drainDue(ts, &executions)

	for _, order := range s.PendingOrders() {
		if order.Symbol != symbol {
			continue
		}
		if order.Status != schema.StatusSubmitted && order.Status != schema.StatusPartiallyFilled {
			continue
		}
		if !fillEligible(order, price) {
			continue
		}
		captured := price
		s.queue.Add(PendingAction{
			Type:        ActionFill,
			OrderID:     order.OrderID,
			ScheduledAt: ts.Add(s.fillDelay()),
			Price:       &captured,
		})
	}

	// Zero-latency fills mature at the current timestamp.
	s.drainDue(ts, &executions)

	if s.risk != nil {
		s.risk.UpdateState(s.AccountValue(s.lastPrices), false)
	}
	s.publishQueueDepth()
	return executions
}

// CancelOrder cancels a pending order. An unknown id is a not-found
// error; an already-completed order is left untouched. With non-zero
// cancel latency the order's visible status is unchanged until the
// scheduled cancellation drains.
func (s *Simulator) CancelOrder(orderID string, ts time.Time) error {
	if _, done := s.completed[orderID]; done {
		return nil
	}
	order, ok := s.pending[orderID]
	if !ok {
		return errs.New("sim/simulator", errs.CodeNotFound,
			errs.WithMessage("order "+orderID+" not found"))
	}

	if s.latency.Cancel == 0 {
		s.applyCancel(order, ts)
	} else {
		s.queue.Add(PendingAction{
			Type:        ActionCancel,
			OrderID:     orderID,
			ScheduledAt: ts.Add(s.latency.Cancel),
		})
	}
	s.publishQueueDepth()
	return nil
}

// AccountValue returns cash plus the value of all positions priced by
// the given map; positions without a price contribute nothing.
func (s *Simulator) AccountValue(prices map[string]decimal.Decimal) decimal.Decimal {
	value := s.cash
	for symbol, qty := range s.positions {
		price, ok := prices[symbol]
		if !ok {
			continue
		}
		value = value.Add(qty.Mul(price))
	}
	return value
}

// ResetDailyRiskTracking resets the attached checker's daily baseline
// to the current account value.
func (s *Simulator) ResetDailyRiskTracking() {
	if s.risk == nil {
		return
	}
	s.risk.ResetDailyTracking(s.AccountValue(s.lastPrices))
}

// StartNewDay rolls the attached checker's daily baseline forward to
// the current account value.
func (s *Simulator) StartNewDay() {
	if s.risk == nil {
		return
	}
	s.risk.UpdateState(s.AccountValue(s.lastPrices), true)
}

// RestoreState overwrites cash, positions, and both order buckets,
// dropping any queued actions. Used when rebuilding a simulator from a
// checkpoint.
func (s *Simulator) RestoreState(cash decimal.Decimal, positions map[string]decimal.Decimal, pending, completed []*schema.Order) {
	s.cash = cash
	s.positions = make(map[string]decimal.Decimal, len(positions))
	for symbol, qty := range positions {
		s.positions[symbol] = qty
	}
	s.pending = make(map[string]*schema.Order, len(pending))
	for _, order := range pending {
		s.pending[order.OrderID] = order
	}
	s.completed = make(map[string]*schema.Order, len(completed))
	for _, order := range completed {
		s.completed[order.OrderID] = order
	}
	s.queue.Clear()
	s.lastPrices = make(map[string]decimal.Decimal)
}

func (s *Simulator) rejectOnEntry(order *schema.Order, ts time.Time, reason schema.RejectReason, message string) {
	order.Reject(ts, reason, message)
	s.completed[order.OrderID] = order
	observability.Telemetry().IncCounter(observability.MetricOrdersRejected, 1, map[string]string{"symbol": order.Symbol})
	observability.Log().Debug("order rejected",
		observability.F("order_id", order.OrderID),
		observability.F("reason", reason),
		observability.F("message", message))
}

// drainDue applies every matured action in ascending scheduled order.
// A cancel scheduled ahead of a fill for the same order therefore
// always wins: the fill finds the order terminal and is skipped.
func (s *Simulator) drainDue(now time.Time, executions *[]schema.Execution) {
	for _, action := range s.queue.PopDue(now) {
		order, ok := s.pending[action.OrderID]
		if !ok || order.IsTerminal() {
			continue
		}
		switch action.Type {
		case ActionSubmit:
			order.MarkSubmitted(action.ScheduledAt)
		case ActionCancel:
			s.applyCancel(order, action.ScheduledAt)
		case ActionFill:
			if action.Price == nil {
				continue
			}
			if order.Status != schema.StatusSubmitted && order.Status != schema.StatusPartiallyFilled {
				continue
			}
			s.executeFill(order, *action.Price, action.ScheduledAt, executions)
		}
	}
}

func (s *Simulator) applyCancel(order *schema.Order, ts time.Time) {
	order.Cancel(ts)
	s.queue.CancelOrder(order.OrderID)
	s.transition(order)
	observability.Telemetry().IncCounter(observability.MetricOrdersCancelled, 1, map[string]string{"symbol": order.Symbol})
}

// executeFill settles a trade at the price captured when the fill was
// scheduled, applying slippage and commission. Buys re-check cash at
// settlement and reject on a shortfall even after acknowledgement.
func (s *Simulator) executeFill(order *schema.Order, refPrice decimal.Decimal, ts time.Time, executions *[]schema.Execution) {
	fillPrice := s.slippage.Adjust(order.Side, refPrice)
	qty := s.liquidity.FillQuantity(order.Remaining())
	if qty.LessThanOrEqual(decimal.Zero) {
		return
	}
	if qty.GreaterThan(order.Remaining()) {
		qty = order.Remaining()
	}
	partial := qty.LessThan(order.Remaining())
	commission := s.commission.Fee(qty, fillPrice)
	notional := qty.Mul(fillPrice)

	if order.Side == schema.TradeSideBuy {
		required := notional.Add(commission)
		if required.GreaterThan(s.cash) {
			order.Reject(ts, schema.ReasonInsufficientFunds,
				"required cash "+required.String()+" exceeds available "+s.cash.String())
			s.queue.CancelOrder(order.OrderID)
			s.transition(order)
			observability.Telemetry().IncCounter(observability.MetricOrdersRejected, 1, map[string]string{"symbol": order.Symbol})
			return
		}
	}

	exec := schema.NewExecution(order.OrderID, ts, qty, fillPrice, commission, partial)
	if !order.ApplyExecution(exec) {
		return
	}

	switch order.Side {
	case schema.TradeSideBuy:
		s.cash = s.cash.Sub(notional).Sub(commission)
		s.positions[order.Symbol] = s.positions[order.Symbol].Add(qty)
	case schema.TradeSideSell:
		s.cash = s.cash.Add(notional).Sub(commission)
		s.positions[order.Symbol] = s.positions[order.Symbol].Sub(qty)
	}
	if s.positions[order.Symbol].IsZero() {
		delete(s.positions, order.Symbol)
	}

	if executions != nil {
		*executions = append(*executions, exec)
	}
	observability.Telemetry().IncCounter(observability.MetricExecutions, 1, map[string]string{"symbol": order.Symbol})
	if order.SubmittedAt != nil {
		latency := ts.Sub(*order.SubmittedAt)
		observability.Telemetry().ObserveHistogram(observability.MetricFillLatency,
			float64(latency)/float64(time.Millisecond), map[string]string{"symbol": order.Symbol})
	}
	if order.IsTerminal() {
		s.transition(order)
		observability.Telemetry().IncCounter(observability.MetricOrdersFilled, 1, map[string]string{"symbol": order.Symbol})
	}
	observability.Log().Debug("fill executed",
		observability.F("order_id", order.OrderID),
		observability.F("quantity", qty),
		observability.F("price", fillPrice))
}

// transition moves an order from the pending bucket to completed. The
// remove-then-insert pairing keeps "exactly one bucket" structural.
func (s *Simulator) transition(order *schema.Order) {
	delete(s.pending, order.OrderID)
	s.completed[order.OrderID] = order
}

func (s *Simulator) fillDelay() time.Duration {
	minD, maxD := s.latency.FillMin, s.latency.FillMax
	if maxD <= minD {
		return minD
	}
	return minD + time.Duration(s.rng.Int63n(int64(maxD-minD)+1))
}

func (s *Simulator) publishQueueDepth() {
	observability.Telemetry().SetGauge(observability.MetricQueueDepth, float64(s.queue.Len()), nil)
}

func fillEligible(order *schema.Order, price decimal.Decimal) bool {
	if order.OrderType == schema.OrderTypeMarket {
		return true
	}
	if order.LimitPrice == nil {
		return true
	}
	if order.Side == schema.TradeSideBuy {
		return price.LessThanOrEqual(*order.LimitPrice)
	}
	return price.GreaterThanOrEqual(*order.LimitPrice)
}

func sortOrders(bucket map[string]*schema.Order) []*schema.Order {
	out := make([]*schema.Order, 0, len(bucket))
	for _, order := range bucket {
		out = append(out, order)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].OrderID < out[j].OrderID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
