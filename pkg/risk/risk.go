// Package risk computes the realtime composite risk score from system load,
// time of day and the equipment stress visible in the centrality snapshot.
package risk

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dd0wney/gridcascade/pkg/centrality"
	"github.com/dd0wney/gridcascade/pkg/metrics"
)

// Level is the qualitative risk band.
type Level string

const (
	LevelLow      Level = "LOW"
	LevelModerate Level = "MODERATE"
	LevelElevated Level = "ELEVATED"
	LevelSevere   Level = "SEVERE"
)

// Component weights of the composite score.
const (
	WeightLoad      = 0.4
	WeightPeak      = 0.3
	WeightEquipment = 0.3
)

// HighRiskScore is the cascade risk at which a node counts as stressed.
const HighRiskScore = 0.7

// equipmentStressScale maps the stressed fraction onto [0,1]; a fifth of the
// network above HighRiskScore saturates the factor.
const equipmentStressScale = 5

var levels = []struct {
	below  float64
	level  Level
	action string
}{
	{25, LevelLow, "Normal operations; continue routine monitoring"},
	{50, LevelModerate, "Review the top cascade candidates and confirm crew availability"},
	{75, LevelElevated, "Pre-position crews near high-risk substations and defer planned maintenance"},
	{math.Inf(1), LevelSevere, "Activate emergency operations; prepare load shedding and sectionalising plans"},
}

// ErrInvalidCapacity is returned when the configured peak capacity is not positive.
var ErrInvalidCapacity = errors.New("peak capacity must be positive")

// LoadReader supplies the current system load as a fraction of peak capacity.
type LoadReader interface {
	LoadFactor(ctx context.Context, now time.Time) (float64, error)
}

// hourlyProfile is the share of daily peak demand drawn at each local hour.
var hourlyProfile = [24]float64{
	0.55, 0.52, 0.50, 0.50, 0.52, 0.58, // 00-05
	0.68, 0.78, 0.82, 0.80, 0.78, 0.78, // 06-11
	0.80, 0.80, 0.82, 0.85, 0.90, 0.97, // 12-17
	1.00, 1.00, 0.95, 0.85, 0.72, 0.62, // 18-23
}

// DiurnalLoad estimates load from a configured system load scaled by a fixed
// daily profile.
type DiurnalLoad struct {
	SystemLoadMW   float64
	PeakCapacityMW float64
	Location       *time.Location
}

// LoadFactor returns SystemLoadMW × profile(hour) ÷ PeakCapacityMW.
func (d DiurnalLoad) LoadFactor(_ context.Context, now time.Time) (float64, error) {
	if d.PeakCapacityMW <= 0 {
		return 0, ErrInvalidCapacity
	}
	if d.Location != nil {
		now = now.In(d.Location)
	}
	return d.SystemLoadMW * hourlyProfile[now.Hour()] / d.PeakCapacityMW, nil
}

// Assessment is the realtime risk response.
type Assessment struct {
	Score             float64   `json:"score"`
	Level             Level     `json:"level"`
	RecommendedAction string    `json:"recommended_action"`
	LoadFactor        float64   `json:"load_factor"`
	PeakFactor        float64   `json:"peak_factor"`
	EquipmentStress   float64   `json:"equipment_stress"`
	HighRiskNodes     int       `json:"high_risk_nodes"`
	SnapshotVersion   uint64    `json:"snapshot_version"`
	AssessedAt        time.Time `json:"assessed_at"`
	Warnings          []string  `json:"warnings,omitempty"`
}

// Assessor combines the three factors.
type Assessor struct {
	loads    LoadReader
	location *time.Location
	metrics  *metrics.Registry
}

// NewAssessor creates an Assessor. loc sets the local time used for peak
// hours; nil means UTC. reg may be nil.
func NewAssessor(loads LoadReader, loc *time.Location, reg *metrics.Registry) *Assessor {
	if loc == nil {
		loc = time.UTC
	}
	return &Assessor{loads: loads, location: loc, metrics: reg}
}

// PeakFactor is 1.0 during the evening peak, 0.6 in the morning ramp and
// 0.2 otherwise, reduced by 30% on weekends.
func PeakFactor(local time.Time) float64 {
	h := local.Hour()
	f := 0.2
	switch {
	case h >= 17 && h < 21:
		f = 1.0
	case h >= 7 && h < 10:
		f = 0.6
	}
	if wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday {
		f *= 0.7
	}
	return f
}

// EquipmentStress returns the scaled share of nodes at or above HighRiskScore
// and how many there are.
func EquipmentStress(snap *centrality.Snapshot) (float64, int) {
	if snap.Len() == 0 {
		return 0, 0
	}
	high := 0
	for _, f := range snap.Features {
		if f.CascadeRiskScore >= HighRiskScore {
			high++
		}
	}
	return clamp01(float64(high) / float64(snap.Len()) * equipmentStressScale), high
}

// Classify maps a 0-100 score to a level and recommended action.
func Classify(score float64) (Level, string) {
	for _, l := range levels {
		if score < l.below {
			return l.level, l.action
		}
	}
	last := levels[len(levels)-1]
	return last.level, last.action
}

// Assess scores the system at now against snap, which may be nil.
func (a *Assessor) Assess(ctx context.Context, snap *centrality.Snapshot, now time.Time) *Assessment {
	local := now.In(a.location)
	out := &Assessment{AssessedAt: now, PeakFactor: PeakFactor(local)}

	if a.loads != nil {
		lf, err := a.loads.LoadFactor(ctx, now)
		if err != nil {
			out.Warnings = append(out.Warnings, fmt.Sprintf("load unavailable: %v", err))
		} else {
			out.LoadFactor = clamp01(lf)
		}
	} else {
		out.Warnings = append(out.Warnings, "no load source configured")
	}

	if snap == nil {
		out.Warnings = append(out.Warnings, "no centrality snapshot; equipment stress is 0")
	} else {
		out.SnapshotVersion = snap.Version
	}
	out.EquipmentStress, out.HighRiskNodes = EquipmentStress(snap)

	out.Score = 100 * (WeightLoad*out.LoadFactor + WeightPeak*out.PeakFactor + WeightEquipment*out.EquipmentStress)
	out.Score = math.Round(out.Score*10) / 10
	out.Level, out.RecommendedAction = Classify(out.Score)

	if a.metrics != nil {
		a.metrics.RealtimeRiskScore.Set(out.Score)
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
