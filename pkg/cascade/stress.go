package cascade

import (
	"fmt"
	"math"
)

// CustomersPerTransformer converts downstream transformer counts into
// customers. It is a flat approximation that ignores node type and region
// and has not been checked against customer-density data.
const CustomersPerTransformer = 50

// DistanceDecayKM is the e-folding distance of distance_decay.
const DistanceDecayKM = 10.0

// Parameter bounds accepted by Validate.
const (
	MinTemperatureC   = -60.0
	MaxTemperatureC   = 60.0
	MaxLoadMultiplier = 5.0
)

// Parameters is the environmental stress applied to a simulation.
type Parameters struct {
	TemperatureC     float64 `json:"temperature_c"`
	LoadMultiplier   float64 `json:"load_multiplier"`
	FailureThreshold float64 `json:"failure_threshold"`
}

// Validate checks parameter ranges.
func (p Parameters) Validate() error {
	switch {
	case math.IsNaN(p.FailureThreshold) || p.FailureThreshold < 0 || p.FailureThreshold > 1:
		return fmt.Errorf("%w: failure_threshold %v outside [0,1]", ErrInvalidParameters, p.FailureThreshold)
	case math.IsNaN(p.TemperatureC) || p.TemperatureC < MinTemperatureC || p.TemperatureC > MaxTemperatureC:
		return fmt.Errorf("%w: temperature_c %v outside [%v,%v]", ErrInvalidParameters, p.TemperatureC, MinTemperatureC, MaxTemperatureC)
	case math.IsNaN(p.LoadMultiplier) || p.LoadMultiplier <= 0 || p.LoadMultiplier > MaxLoadMultiplier:
		return fmt.Errorf("%w: load_multiplier %v outside (0,%v]", ErrInvalidParameters, p.LoadMultiplier, MaxLoadMultiplier)
	}
	return nil
}

// Stress is the combined environmental factor T×L.
func (p Parameters) Stress() float64 {
	return TemperatureStress(p.TemperatureC) * LoadStress(p.LoadMultiplier)
}

// DistanceDecay is exp(-d/10km).
func DistanceDecay(distanceKM float64) float64 {
	return math.Exp(-math.Max(distanceKM, 0) / DistanceDecayKM)
}

// TemperatureStress grows by 3% per degree below freezing and 4% per degree
// above 35°C.
func TemperatureStress(tempC float64) float64 {
	switch {
	case tempC < 0:
		return 1 + 0.03*(0-tempC)
	case tempC > 35:
		return 1 + 0.04*(tempC-35)
	default:
		return 1
	}
}

// LoadStress grows by half of the load above nominal.
func LoadStress(multiplier float64) float64 {
	if multiplier > 1 {
		return 1 + 0.5*(multiplier-1)
	}
	return 1
}

// FailureProbability is the chance that a failed source takes down a
// neighbour at distanceKM. sourceWeight is max(criticality, betweenness) of
// the source; targetBetweenness is the neighbour's betweenness.
func FailureProbability(distanceKM, sourceWeight, targetBetweenness, stress float64) float64 {
	return DistanceDecay(distanceKM) * sourceWeight * (0.5 + 0.5*targetBetweenness) * stress
}
