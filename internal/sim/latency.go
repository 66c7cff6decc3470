// Package sim implements the paper-trading execution simulator: order
// validation, latency-delayed acknowledgement and fills, cancellation,
// and the time-ordered action queue driving them.
package sim

import "time"

// LatencyProfile models artificial delays between an instruction and its
// effect. A profile may carry a preset name for labelling; the four
// durations are always authoritative, so custom profiles survive
// checkpoint round-trips without being coerced onto a preset.
type LatencyProfile struct {
	Name       string        `json:"name,omitempty"`
	Submission time.Duration `json:"submission"`
	FillMin    time.Duration `json:"fill_min"`
	FillMax    time.Duration `json:"fill_max"`
	Cancel     time.Duration `json:"cancel"`
}

// Preset latency profile names.
const (
	LatencyZero     = "zero"
	LatencyColo     = "colo"
	LatencyRetail   = "retail"
	LatencyDegraded = "degraded"
)

// ZeroLatency returns the instant-execution profile.
func ZeroLatency() LatencyProfile {
	return LatencyProfile{Name: LatencyZero}
}

// ColoLatency returns a co-located low-latency profile.
func ColoLatency() LatencyProfile {
	return LatencyProfile{
		Name:       LatencyColo,
		Submission: 5 * time.Millisecond,
		FillMin:    1 * time.Millisecond,
		FillMax:    10 * time.Millisecond,
		Cancel:     5 * time.Millisecond,
	}
}

// RetailLatency returns a retail-broker profile.
func RetailLatency() LatencyProfile {
	return LatencyProfile{
		Name:       LatencyRetail,
		Submission: 100 * time.Millisecond,
		FillMin:    50 * time.Millisecond,
		FillMax:    300 * time.Millisecond,
		Cancel:     100 * time.Millisecond,
	}
}

// DegradedLatency returns a congested-market profile.
func DegradedLatency() LatencyProfile {
	return LatencyProfile{
		Name:       LatencyDegraded,
		Submission: 500 * time.Millisecond,
		FillMin:    250 * time.Millisecond,
		FillMax:    1500 * time.Millisecond,
		Cancel:     500 * time.Millisecond,
	}
}

// LatencyPreset resolves a preset profile by name.
func LatencyPreset(name string) (LatencyProfile, bool) {
	switch name {
	case LatencyZero:
		return ZeroLatency(), true
	case LatencyColo:
		return ColoLatency(), true
	case LatencyRetail:
		return RetailLatency(), true
	case LatencyDegraded:
		return DegradedLatency(), true
	default:
		return LatencyProfile{}, false
	}
}

// Normalize clamps negative durations to zero and orders the fill bounds.
func (p LatencyProfile) Normalize() LatencyProfile {
	if p.Submission < 0 {
		p.Submission = 0
	}
	if p.FillMin < 0 {
		p.FillMin = 0
	}
	if p.FillMax < 0 {
		p.FillMax = 0
	}
	if p.Cancel < 0 {
		p.Cancel = 0
	}
	if p.FillMax < p.FillMin {
		p.FillMin, p.FillMax = p.FillMax, p.FillMin
	}
	return p
}

// Label returns the preset name when set, falling back to "custom".
func (p LatencyProfile) Label() string {
	if p.Name != "" {
		return p.Name
	}
	return "custom"
}
