// Package config centralises runtime configuration for simbroker.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/coachpo/simbroker/internal/risk"
	"github.com/coachpo/simbroker/internal/sim"
)

// Decimal wraps decimal.Decimal so money fields can be written as plain
// scalars in YAML.
type Decimal struct {
	decimal.Decimal
}

// Dec builds a config Decimal from a string literal, panicking on bad
// input. For defaults and tests.
func Dec(value string) Decimal {
	return Decimal{decimal.RequireFromString(value)}
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Decimal) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := decimal.NewFromString(strings.TrimSpace(node.Value))
	if err != nil {
		return fmt.Errorf("parse decimal %q: %w", node.Value, err)
	}
	d.Decimal = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Decimal) MarshalYAML() (any, error) {
	return d.String(), nil
}

// Duration wraps time.Duration so intervals can be written as "100ms"
// style scalars in YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(node.Value))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", node.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// LatencySettings selects a preset by name or spells out raw durations.
// Raw durations win when any of them is non-zero.
type LatencySettings struct {
	Preset     string   `yaml:"preset"`
	Submission Duration `yaml:"submission"`
	FillMin    Duration `yaml:"fillMin"`
	FillMax    Duration `yaml:"fillMax"`
	Cancel     Duration `yaml:"cancel"`
}

// Profile resolves the settings into a latency profile.
func (l LatencySettings) Profile() sim.LatencyProfile {
	if l.Submission == 0 && l.FillMin == 0 && l.FillMax == 0 && l.Cancel == 0 {
		if preset, ok := sim.LatencyPreset(l.Preset); ok {
			return preset
		}
		return sim.ZeroLatency()
	}
	return sim.LatencyProfile{
		Name:       l.Preset,
		Submission: time.Duration(l.Submission),
		FillMin:    time.Duration(l.FillMin),
		FillMax:    time.Duration(l.FillMax),
		Cancel:     time.Duration(l.Cancel),
	}.Normalize()
}

// RiskSettings mirrors risk.Config with YAML-friendly field types.
type RiskSettings struct {
	KillSwitch  bool     `yaml:"killSwitch"`
	MaxShares   Decimal  `yaml:"maxShares"`
	MaxValue    Decimal  `yaml:"maxValue"`
	MaxGrossPct Decimal  `yaml:"maxGrossPct"`
	MaxNetPct   Decimal  `yaml:"maxNetPct"`
	MaxDailyPct Decimal  `yaml:"maxDailyPct"`
	MaxTotalPct Decimal  `yaml:"maxTotalPct"`
	MaxOrders   int      `yaml:"maxOrders"`
	RateWindow  Duration `yaml:"rateWindow"`
}

// RuleConfig converts the settings into the risk engine's rule set.
func (r RiskSettings) RuleConfig() risk.Config {
	return risk.Config{
		KillSwitch: r.KillSwitch,
		Position: risk.PositionRule{
			MaxShares: r.MaxShares.Decimal,
			MaxValue:  r.MaxValue.Decimal,
		},
		Exposure: risk.ExposureRule{
			MaxGrossPct: r.MaxGrossPct.Decimal,
			MaxNetPct:   r.MaxNetPct.Decimal,
		},
		Drawdown: risk.DrawdownRule{
			MaxDailyPct: r.MaxDailyPct.Decimal,
			MaxTotalPct: r.MaxTotalPct.Decimal,
		},
		Rate: risk.RateRule{
			MaxOrders: r.MaxOrders,
			Window:    time.Duration(r.RateWindow),
		},
	}
}

// Enabled reports whether any rule is configured.
func (r RiskSettings) Enabled() bool {
	return r.KillSwitch ||
		r.MaxShares.GreaterThan(decimal.Zero) ||
		r.MaxValue.GreaterThan(decimal.Zero) ||
		r.MaxGrossPct.GreaterThan(decimal.Zero) ||
		r.MaxNetPct.GreaterThan(decimal.Zero) ||
		r.MaxDailyPct.GreaterThan(decimal.Zero) ||
		r.MaxTotalPct.GreaterThan(decimal.Zero) ||
		r.MaxOrders > 0
}

// CheckpointSettings configures checkpoint persistence.
type CheckpointSettings struct {
	Dir        string `yaml:"dir"`
	SaveOnExit bool   `yaml:"saveOnExit"`
}

// TelemetrySettings configures the OpenTelemetry bootstrap.
type TelemetrySettings struct {
	Enabled        bool     `yaml:"enabled"`
	OTLPEndpoint   string   `yaml:"otlpEndpoint"`
	OTLPInsecure   bool     `yaml:"otlpInsecure"`
	MetricInterval Duration `yaml:"metricInterval"`
	ServiceName    string   `yaml:"serviceName"`
}

// Settings is the simbroker configuration tree loaded from defaults,
// an optional YAML file, and environment overrides.
type Settings struct {
	SimID              string             `yaml:"simId"`
	InitialCash        Decimal            `yaml:"initialCash"`
	SlippageBps        Decimal            `yaml:"slippageBps"`
	CommissionPerShare Decimal            `yaml:"commissionPerShare"`
	MinQuantity        Decimal            `yaml:"minQuantity"`
	MaxQuantity        Decimal            `yaml:"maxQuantity"`
	Latency            LatencySettings    `yaml:"latency"`
	Risk               RiskSettings       `yaml:"risk"`
	Checkpoint         CheckpointSettings `yaml:"checkpoint"`
	Telemetry          TelemetrySettings  `yaml:"telemetry"`
}

// Default returns the default simbroker configuration.
func Default() Settings {
	return Settings{
		SimID:              "sim",
		InitialCash:        Dec("100000"),
		SlippageBps:        Dec("0"),
		CommissionPerShare: Dec("0"),
		MinQuantity:        Dec("0"),
		MaxQuantity:        Dec("0"),
		Latency:            LatencySettings{Preset: sim.LatencyZero},
		Risk:               RiskSettings{},
		Checkpoint: CheckpointSettings{
			Dir:        "checkpoints",
			SaveOnExit: true,
		},
		Telemetry: TelemetrySettings{
			Enabled:        false,
			OTLPEndpoint:   "localhost:4318",
			OTLPInsecure:   true,
			MetricInterval: Duration(30 * time.Second),
			ServiceName:    "simbroker",
		},
	}
}

// Load reads a YAML file over the defaults. An empty path returns the
// defaults untouched.
func Load(path string) (Settings, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, cfg.Validate()
}

// FromEnv applies SIMBROKER_* environment overrides to the settings.
func FromEnv(cfg Settings) Settings {
	if v := strings.TrimSpace(os.Getenv("SIMBROKER_SIM_ID")); v != "" {
		cfg.SimID = v
	}
	if v := strings.TrimSpace(os.Getenv("SIMBROKER_INITIAL_CASH")); v != "" {
		if parsed, err := decimal.NewFromString(v); err == nil {
			cfg.InitialCash = Decimal{parsed}
		}
	}
	if v := strings.TrimSpace(os.Getenv("SIMBROKER_SLIPPAGE_BPS")); v != "" {
		if parsed, err := decimal.NewFromString(v); err == nil {
			cfg.SlippageBps = Decimal{parsed}
		}
	}
	if v := strings.TrimSpace(os.Getenv("SIMBROKER_COMMISSION_PER_SHARE")); v != "" {
		if parsed, err := decimal.NewFromString(v); err == nil {
			cfg.CommissionPerShare = Decimal{parsed}
		}
	}
	if v := strings.TrimSpace(os.Getenv("SIMBROKER_LATENCY_PRESET")); v != "" {
		cfg.Latency = LatencySettings{Preset: strings.ToLower(v)}
	}
	if v := strings.TrimSpace(os.Getenv("SIMBROKER_CHECKPOINT_DIR")); v != "" {
		cfg.Checkpoint.Dir = v
	}
	if v := strings.TrimSpace(os.Getenv("SIMBROKER_OTLP_ENDPOINT")); v != "" {
		cfg.Telemetry.Enabled = true
		cfg.Telemetry.OTLPEndpoint = v
	}
	return cfg
}

// Validate rejects settings no simulator could run with.
func (s Settings) Validate() error {
	if strings.TrimSpace(s.SimID) == "" {
		return fmt.Errorf("simId required")
	}
	if s.InitialCash.LessThan(decimal.Zero) {
		return fmt.Errorf("initialCash must not be negative")
	}
	if s.SlippageBps.LessThan(decimal.Zero) {
		return fmt.Errorf("slippageBps must not be negative")
	}
	if s.CommissionPerShare.LessThan(decimal.Zero) {
		return fmt.Errorf("commissionPerShare must not be negative")
	}
	if s.MaxQuantity.GreaterThan(decimal.Zero) && s.MinQuantity.GreaterThan(s.MaxQuantity.Decimal) {
		return fmt.Errorf("minQuantity exceeds maxQuantity")
	}
	if s.Latency.Preset != "" {
		if _, ok := sim.LatencyPreset(s.Latency.Preset); !ok {
			// Unknown preset names are only acceptable when raw
			// durations are supplied alongside them.
			if s.Latency.Submission == 0 && s.Latency.FillMin == 0 && s.Latency.FillMax == 0 && s.Latency.Cancel == 0 {
				return fmt.Errorf("unknown latency preset %q", s.Latency.Preset)
			}
		}
	}
	return nil
}
