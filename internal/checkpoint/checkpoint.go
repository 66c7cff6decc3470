// Package checkpoint persists and restores full simulator state as
// versioned JSON records. Decimal fields serialize as exact-precision
// strings, so a round trip never loses a cent.
package checkpoint

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coachpo/simbroker/errs"
	"github.com/coachpo/simbroker/internal/risk"
	"github.com/coachpo/simbroker/internal/schema"
	"github.com/coachpo/simbroker/internal/sim"
)

// SchemaVersion is the current checkpoint format version. Records
// carrying any other version are refused on load.
const SchemaVersion = 1

// RiskState is the mutable portion of a risk checker worth persisting.
// The rule set itself lives in configuration, not in checkpoints.
type RiskState struct {
	PeakValue       decimal.Decimal `json:"peak_value"`
	DailyStartValue decimal.Decimal `json:"daily_start_value"`
	TradingEnabled  bool            `json:"trading_enabled"`
}

// Record is a complete point-in-time capture of a simulator.
type Record struct {
	Version   int       `json:"version"`
	SimID     string    `json:"sim_id"`
	CreatedAt time.Time `json:"created_at"`

	Cash               decimal.Decimal            `json:"cash"`
	InitialCash        decimal.Decimal            `json:"initial_cash"`
	Positions          map[string]decimal.Decimal `json:"positions"`
	PendingOrders      []*schema.Order            `json:"pending_orders"`
	CompletedOrders    []*schema.Order            `json:"completed_orders"`
	Latency            sim.LatencyProfile         `json:"latency"`
	SlippageBps        decimal.Decimal            `json:"slippage_bps"`
	CommissionPerShare decimal.Decimal            `json:"commission_per_share"`
	Risk               *RiskState                 `json:"risk,omitempty"`
	RiskConfig         *risk.Config               `json:"risk_config,omitempty"`
}

// Capture builds a record from the simulator's current state. Orders
// are deep-copied, so later simulator activity never leaks into a
// record awaiting persistence.
func Capture(s *sim.Simulator, at time.Time) *Record {
	rec := &Record{
		Version:            SchemaVersion,
		SimID:              s.ID(),
		CreatedAt:          at,
		Cash:               s.Cash(),
		InitialCash:        s.InitialCash(),
		Positions:          s.Positions(),
		PendingOrders:      cloneOrders(s.PendingOrders()),
		CompletedOrders:    cloneOrders(s.CompletedOrders()),
		Latency:            s.Latency(),
		SlippageBps:        s.SlippageBps(),
		CommissionPerShare: s.CommissionPerShare(),
	}
	if checker := s.RiskChecker(); checker != nil {
		rec.Risk = &RiskState{
			PeakValue:       checker.PeakValue(),
			DailyStartValue: checker.DailyStartValue(),
			TradingEnabled:  checker.TradingEnabled(),
		}
		cfg := checker.Config()
		rec.RiskConfig = &cfg
	}
	return rec
}

// Restore applies a record to the simulator. The version gate runs
// before any mutation: on mismatch the simulator is returned untouched.
func Restore(s *sim.Simulator, rec *Record) error {
	if err := checkVersion(rec.Version); err != nil {
		return err
	}

	s.Configure(
		sim.WithLatencyProfile(rec.Latency),
		sim.WithSlippageBps(rec.SlippageBps),
		sim.WithCommissionPerShare(rec.CommissionPerShare),
	)
	s.RestoreState(rec.Cash, rec.Positions,
		cloneOrders(rec.PendingOrders), cloneOrders(rec.CompletedOrders))

	if checker := s.RiskChecker(); checker != nil && rec.Risk != nil {
		checker.RestoreState(rec.Risk.PeakValue, rec.Risk.DailyStartValue, rec.Risk.TradingEnabled)
	}
	return nil
}

// Rebuild constructs a fresh simulator from a record. The risk checker
// is built from the given rule set when provided, otherwise from the
// rule config stored in the record.
func Rebuild(rec *Record, riskCfg *risk.Config) (*sim.Simulator, error) {
	if err := checkVersion(rec.Version); err != nil {
		return nil, err
	}

	opts := []sim.Option{
		sim.WithLatencyProfile(rec.Latency),
		sim.WithSlippageBps(rec.SlippageBps),
		sim.WithCommissionPerShare(rec.CommissionPerShare),
	}
	if riskCfg == nil {
		riskCfg = rec.RiskConfig
	}
	if riskCfg != nil {
		opts = append(opts, sim.WithRiskChecker(risk.NewChecker(*riskCfg)))
	}
	s := sim.NewSimulator(rec.SimID, rec.InitialCash, opts...)
	if err := Restore(s, rec); err != nil {
		return nil, err
	}
	return s, nil
}

func cloneOrders(orders []*schema.Order) []*schema.Order {
	if orders == nil {
		return nil
	}
	out := make([]*schema.Order, len(orders))
	for i, order := range orders {
		out[i] = order.Clone()
	}
	return out
}

func checkVersion(version int) error {
	if version == SchemaVersion {
		return nil
	}
	return errs.New("checkpoint", errs.CodeVersionMismatch,
		errs.WithMessage(fmt.Sprintf("checkpoint version %d does not match supported version %d", version, SchemaVersion)))
}
